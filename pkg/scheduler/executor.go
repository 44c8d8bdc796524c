// Package scheduler runs the two background loops: the simple executor,
// which settles monitoring intents, and the recurring scheduler, which
// spawns intents from due subscriptions.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/paystream-hq/paystreamer/pkg/circuitbreaker"
	"github.com/paystream-hq/paystreamer/pkg/errs"
	"github.com/paystream-hq/paystreamer/pkg/intent"
	"github.com/paystream-hq/paystreamer/pkg/logger"
	"github.com/paystream-hq/paystreamer/pkg/metrics"
	"github.com/paystream-hq/paystreamer/pkg/models"
	"github.com/paystream-hq/paystreamer/pkg/settlement"
)

// ExecutorConfig carries the executor's tunables.
type ExecutorConfig struct {
	Interval    time.Duration
	CallTimeout time.Duration
	WorkerCount int
}

// Executor is the simple execution loop. Each tick it snapshots the
// monitoring intents, expires the ones past their deadline and attempts to
// settle the rest. A failure on one intent never blocks the others.
type Executor struct {
	intents *intent.Manager
	settler settlement.Client
	breaker *circuitbreaker.CircuitBreaker
	logger  logger.Logger
	config  ExecutorConfig
	now     func() time.Time
}

// NewExecutor creates the simple execution loop.
func NewExecutor(mgr *intent.Manager, settler settlement.Client, breaker *circuitbreaker.CircuitBreaker, log logger.Logger, cfg ExecutorConfig) *Executor {
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 1
	}
	return &Executor{
		intents: mgr,
		settler: settler,
		breaker: breaker,
		logger:  log,
		config:  cfg,
		now:     time.Now,
	}
}

// SetNowFunc overrides the clock, for tests.
func (e *Executor) SetNowFunc(now func() time.Time) {
	e.now = now
}

// Start runs the executor loop until the context is cancelled. The first
// tick fires immediately rather than one interval in.
func (e *Executor) Start(ctx context.Context) {
	e.logger.Notice("Starting executor with %v interval and %d workers", e.config.Interval, e.config.WorkerCount)

	e.Tick(ctx)

	ticker := time.NewTicker(e.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Notice("Context cancelled, stopping executor")
			return
		case <-ticker.C:
			e.Tick(ctx)
		}
	}
}

// Tick processes one snapshot of the monitoring intents with bounded
// concurrency.
func (e *Executor) Tick(ctx context.Context) {
	start := time.Now()
	defer func() {
		metrics.ExecutorTickDuration.Observe(time.Since(start).Seconds())
	}()

	snapshot := e.intents.MonitoringIntents()
	metrics.MonitoringIntents.Set(float64(len(snapshot)))
	if len(snapshot) == 0 {
		return
	}
	e.logger.Debug("Executor tick: %d monitoring intents", len(snapshot))

	var wg sync.WaitGroup
	sem := make(chan struct{}, e.config.WorkerCount)
	for _, it := range snapshot {
		wg.Add(1)
		sem <- struct{}{}
		go func(it models.Intent) {
			defer wg.Done()
			defer func() { <-sem }()
			e.process(ctx, it)
		}(it)
	}
	wg.Wait()
}

// process handles one intent from the tick snapshot. Race losses are benign
// here: another attempt is already settling the intent.
func (e *Executor) process(ctx context.Context, it models.Intent) {
	if e.now().After(it.Deadline) {
		e.intents.MarkExpired(it.ID)
		return
	}

	if err := e.ExecuteIntent(ctx, it.ID); err != nil && !errors.Is(err, errs.ErrRaceLost) {
		e.logger.Error("Execution of intent %s failed: %v", it.ID, err)
	}
}

// ExecuteIntent claims the intent and drives a single settlement attempt to
// a terminal state. It is shared between the executor loop and the
// execute-now API path, so the claim and the outcome recording behave
// identically for both.
func (e *Executor) ExecuteIntent(ctx context.Context, id string) error {
	it, err := e.intents.GetIntent(id)
	if err != nil {
		return err
	}

	if it.Status.Terminal() {
		return errs.InvalidStatef("intent %s is %s, not monitoring", it.ID, it.Status)
	}

	if it.Status == models.StatusMonitoring && e.now().After(it.Deadline) {
		e.intents.MarkExpired(it.ID)
		return errs.InvalidStatef("intent %s deadline has passed", it.ID)
	}

	if e.breaker.IsOpen() {
		e.intents.AddLog(it.ID, models.LogWarning, "Execution skipped: settlement circuit breaker is open", nil)
		return errs.Collaborator("settle intent", errors.New("circuit breaker open"))
	}

	if err := e.intents.TryBeginExecution(it.ID); err != nil {
		return err
	}

	e.intents.AddLog(it.ID, models.LogInfo, "Settlement attempt started", nil)

	cctx, cancel := context.WithTimeout(ctx, e.config.CallTimeout)
	defer cancel()

	ref, err := e.settler.Settle(cctx, settlement.Request{
		IntentID:    it.ID,
		Owner:       it.Owner,
		Token:       it.Token,
		Amount:      it.Amount,
		Recipient:   it.Recipient,
		PaymentAuth: it.PaymentAuth,
		Recurring:   it.IsRecurring,
	})
	if err != nil {
		e.breaker.RecordFailure()
		e.intents.MarkFailed(it.ID, err.Error())
		return errs.Collaborator("settle intent", err)
	}

	e.breaker.RecordSuccess()
	e.intents.MarkExecuted(it.ID, ref)

	if it.RegistryID != nil {
		if err := e.intents.Registry().MarkExecuted(ctx, *it.RegistryID, ref); err != nil {
			// Settlement already succeeded; the on-chain record lags behind.
			metrics.RegistryErrors.WithLabelValues("mark_executed").Inc()
			e.intents.AddLog(it.ID, models.LogWarning, "Failed to record execution on-chain", map[string]interface{}{"error": err.Error()})
		}
	}

	return nil
}
