package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for monitoring
var (
	IntentsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paystreamer_intents_created_total",
		Help: "The total number of intents created",
	}, []string{"origin"}) // origin: api | scheduler

	IntentsExecuted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "paystreamer_intents_executed_total",
		Help: "The total number of intents settled successfully",
	})

	IntentsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "paystreamer_intents_expired_total",
		Help: "The total number of intents expired past their deadline",
	})

	IntentsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "paystreamer_intents_failed_total",
		Help: "The total number of intents that failed settlement",
	})

	IntentsCancelled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "paystreamer_intents_cancelled_total",
		Help: "The total number of intents cancelled by their owner",
	})

	MonitoringIntents = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "paystreamer_monitoring_intents",
		Help: "The number of intents currently being monitored for execution",
	})

	SettlementDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "paystreamer_settlement_duration_seconds",
		Help:    "Time taken for a verify-and-settle round trip",
		Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
	})

	SettlementErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paystreamer_settlement_errors_total",
		Help: "Total number of settlement path errors by stage",
	}, []string{"stage"}) // stage: verify | settle

	RegistryErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paystreamer_registry_errors_total",
		Help: "Total number of registry collaborator errors by operation",
	}, []string{"op"})

	RaceLost = promauto.NewCounter(prometheus.CounterOpts{
		Name: "paystreamer_execution_races_lost_total",
		Help: "Number of settlement attempts aborted because another attempt claimed the intent first",
	})

	ExecutorTickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "paystreamer_executor_tick_seconds",
		Help:    "Time taken by one executor tick",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
	})

	SchedulerTickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "paystreamer_scheduler_tick_seconds",
		Help:    "Time taken by one recurring scheduler tick",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
	})

	SubscriptionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "paystreamer_active_subscriptions",
		Help: "The number of active subscriptions",
	})

	SubscriptionSpawns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "paystreamer_subscription_spawns_total",
		Help: "The total number of intents spawned from subscriptions",
	})

	SubscriptionSpawnErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "paystreamer_subscription_spawn_errors_total",
		Help: "The total number of failed attempts to spawn an intent from a subscription",
	})
)
