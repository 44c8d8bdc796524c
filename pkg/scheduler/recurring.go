package scheduler

import (
	"context"
	"time"

	"github.com/paystream-hq/paystreamer/pkg/intent"
	"github.com/paystream-hq/paystreamer/pkg/logger"
	"github.com/paystream-hq/paystreamer/pkg/metrics"
	"github.com/paystream-hq/paystreamer/pkg/models"
	"github.com/paystream-hq/paystreamer/pkg/subscription"
)

// RecurringConfig carries the recurring scheduler's tunables.
type RecurringConfig struct {
	Interval time.Duration
	// Grace is how long a spawned intent stays executable past its due
	// time before it expires.
	Grace time.Duration
}

// Recurring is the subscription billing loop. Each tick it spawns an intent
// for every subscription whose next execution time has passed, then advances
// that subscription's schedule. A failed spawn leaves the schedule in place
// so the next tick retries it.
type Recurring struct {
	subs    *subscription.Manager
	intents *intent.Manager
	logger  logger.Logger
	config  RecurringConfig
	now     func() time.Time
}

// NewRecurring creates the subscription billing loop.
func NewRecurring(subs *subscription.Manager, mgr *intent.Manager, log logger.Logger, cfg RecurringConfig) *Recurring {
	return &Recurring{
		subs:    subs,
		intents: mgr,
		logger:  log,
		config:  cfg,
		now:     time.Now,
	}
}

// SetNowFunc overrides the clock, for tests.
func (r *Recurring) SetNowFunc(now func() time.Time) {
	r.now = now
}

// Start runs the scheduler loop until the context is cancelled. The first
// tick fires immediately rather than one interval in.
func (r *Recurring) Start(ctx context.Context) {
	r.logger.Notice("Starting recurring scheduler with %v interval", r.config.Interval)

	r.Tick(ctx)

	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Notice("Context cancelled, stopping recurring scheduler")
			return
		case <-ticker.C:
			r.Tick(ctx)
		}
	}
}

// Tick spawns intents for every due subscription. Failures are isolated per
// subscription.
func (r *Recurring) Tick(ctx context.Context) {
	start := time.Now()
	defer func() {
		metrics.SchedulerTickDuration.Observe(time.Since(start).Seconds())
	}()

	due := r.subs.DueSubscriptions()
	if len(due) == 0 {
		return
	}
	r.logger.Info("Recurring tick: %d subscriptions due", len(due))

	for _, sub := range due {
		if err := r.spawn(ctx, sub); err != nil {
			metrics.SubscriptionSpawnErrors.Inc()
			r.logger.Error("Failed to spawn intent for subscription %s: %v", sub.ID, err)
			continue
		}
	}
}

// spawn creates one billing intent for the subscription and, only on
// success, advances its schedule. The spawned intent inherits the
// subscription's payment details and gets the grace window as its deadline.
func (r *Recurring) spawn(ctx context.Context, sub models.Subscription) error {
	req := models.CreateIntentRequest{
		Token:          sub.Token,
		Amount:         sub.Amount,
		Recipient:      sub.Recipient,
		Type:           models.IntentTypePayment,
		Deadline:       r.now().Add(r.config.Grace),
		PaymentAuth:    sub.PaymentAuth,
		SubscriptionID: sub.ID,
		IsRecurring:    true,
		MaxExecutions:  sub.Schedule.MaxExecutions,
	}

	it, err := r.intents.CreateIntent(ctx, req, sub.CustomerAddress)
	if err != nil {
		return err
	}

	metrics.SubscriptionSpawns.Inc()
	r.logger.Info("Spawned intent %s for subscription %s (cycle %d)", it.ID, sub.ID, sub.Schedule.ExecutionCount+1)

	return r.subs.AdvanceSchedule(sub.ID)
}
