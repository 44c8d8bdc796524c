package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paystream-hq/paystreamer/pkg/circuitbreaker"
	"github.com/paystream-hq/paystreamer/pkg/errs"
	"github.com/paystream-hq/paystreamer/pkg/intent"
	"github.com/paystream-hq/paystreamer/pkg/logger"
	"github.com/paystream-hq/paystreamer/pkg/models"
	"github.com/paystream-hq/paystreamer/pkg/registry"
	"github.com/paystream-hq/paystreamer/pkg/settlement"
	"github.com/paystream-hq/paystreamer/pkg/store"
)

// fakeRegistry is an in-memory registry.Client for scheduler tests.
type fakeRegistry struct {
	mu          sync.Mutex
	nextID      uint64
	registerErr error
	markedExec  []uint64
}

func (f *fakeRegistry) Register(_ context.Context, _, _, _ string, _ time.Time) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.registerErr != nil {
		return 0, f.registerErr
	}
	f.nextID++
	return f.nextID, nil
}

func (f *fakeRegistry) MarkExecuted(_ context.Context, registryID uint64, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markedExec = append(f.markedExec, registryID)
	return nil
}

func (f *fakeRegistry) Cancel(_ context.Context, _ uint64) error { return nil }

func (f *fakeRegistry) Get(_ context.Context, registryID uint64) (registry.RegisteredIntent, error) {
	return registry.RegisteredIntent{ID: registryID}, nil
}

func (f *fakeRegistry) ListForOwner(_ context.Context, _ string) ([]uint64, error) {
	return nil, nil
}

// fakeSettler counts settlement calls and can fail per intent.
type fakeSettler struct {
	mu      sync.Mutex
	calls   int
	failFor map[string]error
	delay   time.Duration
}

func (f *fakeSettler) Settle(_ context.Context, req settlement.Request) (string, error) {
	f.mu.Lock()
	f.calls++
	err := f.failFor[req.IntentID]
	f.mu.Unlock()
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if err != nil {
		return "", err
	}
	return "0xsettled-" + req.IntentID, nil
}

func (f *fakeSettler) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type executorFixture struct {
	executor *Executor
	intents  *intent.Manager
	settler  *fakeSettler
	registry *fakeRegistry
	breaker  *circuitbreaker.CircuitBreaker
}

func newExecutorFixture(t *testing.T) *executorFixture {
	t.Helper()
	reg := &fakeRegistry{}
	settler := &fakeSettler{failFor: map[string]error{}}
	mgr := intent.NewManager(store.NewIntentStore(), store.NewLogStore(), reg, &logger.EmptyLogger{})
	breaker := circuitbreaker.New(true, 5, time.Minute, time.Minute, &logger.EmptyLogger{})
	exec := NewExecutor(mgr, settler, breaker, &logger.EmptyLogger{}, ExecutorConfig{
		Interval:    30 * time.Second,
		CallTimeout: 5 * time.Second,
		WorkerCount: 4,
	})
	return &executorFixture{executor: exec, intents: mgr, settler: settler, registry: reg, breaker: breaker}
}

func (f *executorFixture) createIntent(t *testing.T, deadline time.Time) models.Intent {
	t.Helper()
	it, err := f.intents.CreateIntent(context.Background(), models.CreateIntentRequest{
		Token:     "0xToken",
		Amount:    "1000000",
		Recipient: "0xRecipient",
		Type:      models.IntentTypePayment,
		Deadline:  deadline,
	}, "0xOwner")
	require.NoError(t, err)
	return it
}

func TestTickSettlesMonitoringIntent(t *testing.T) {
	f := newExecutorFixture(t)
	it := f.createIntent(t, time.Now().Add(time.Hour))

	f.executor.Tick(context.Background())

	got, err := f.intents.GetIntent(it.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusExecuted, got.Status)
	assert.Equal(t, "0xsettled-"+it.ID, got.SettlementRef)
	assert.Equal(t, 1, f.settler.callCount())
	assert.Equal(t, []uint64{*it.RegistryID}, f.registry.markedExec)
}

func TestTickExpiresPastDeadline(t *testing.T) {
	f := newExecutorFixture(t)
	it := f.createIntent(t, time.Now().Add(time.Hour))

	// Advance the executor's clock past the deadline.
	f.executor.SetNowFunc(func() time.Time { return time.Now().Add(2 * time.Hour) })
	f.executor.Tick(context.Background())

	got, err := f.intents.GetIntent(it.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusExpired, got.Status)
	// An expired intent never reaches the settlement collaborator.
	assert.Zero(t, f.settler.callCount())
}

func TestTickIsolatesFailures(t *testing.T) {
	f := newExecutorFixture(t)
	bad := f.createIntent(t, time.Now().Add(time.Hour))
	good := f.createIntent(t, time.Now().Add(time.Hour))
	f.settler.failFor[bad.ID] = errors.New("facilitator rejected")

	f.executor.Tick(context.Background())

	gotBad, _ := f.intents.GetIntent(bad.ID)
	assert.Equal(t, models.StatusFailed, gotBad.Status)

	gotGood, _ := f.intents.GetIntent(good.ID)
	assert.Equal(t, models.StatusExecuted, gotGood.Status)
}

func TestExecuteIntentExactlyOnce(t *testing.T) {
	f := newExecutorFixture(t)
	f.settler.delay = 10 * time.Millisecond
	it := f.createIntent(t, time.Now().Add(time.Hour))

	const attempts = 16
	var wg sync.WaitGroup
	results := make(chan error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- f.executor.ExecuteIntent(context.Background(), it.ID)
		}()
	}
	wg.Wait()
	close(results)

	won, raceLost := 0, 0
	for err := range results {
		switch {
		case err == nil:
			won++
		case errors.Is(err, errs.ErrRaceLost):
			raceLost++
		}
	}

	// Exactly one attempt reaches the settlement collaborator.
	assert.Equal(t, 1, won)
	assert.Equal(t, attempts-1, raceLost)
	assert.Equal(t, 1, f.settler.callCount())

	got, _ := f.intents.GetIntent(it.ID)
	assert.Equal(t, models.StatusExecuted, got.Status)
}

func TestExecuteIntentSettlementFailure(t *testing.T) {
	f := newExecutorFixture(t)
	it := f.createIntent(t, time.Now().Add(time.Hour))
	f.settler.failFor[it.ID] = errors.New("insufficient allowance")

	err := f.executor.ExecuteIntent(context.Background(), it.ID)
	require.ErrorIs(t, err, errs.ErrCollaborator)

	got, _ := f.intents.GetIntent(it.ID)
	assert.Equal(t, models.StatusFailed, got.Status)

	count, _ := f.breaker.State()
	assert.Equal(t, 1, count)
}

func TestExecuteIntentBreakerOpen(t *testing.T) {
	f := newExecutorFixture(t)
	it := f.createIntent(t, time.Now().Add(time.Hour))

	for i := 0; i < 5; i++ {
		f.breaker.RecordFailure()
	}
	require.True(t, f.breaker.IsOpen())

	err := f.executor.ExecuteIntent(context.Background(), it.ID)
	require.ErrorIs(t, err, errs.ErrCollaborator)

	// The intent is not claimed while the breaker is open.
	got, _ := f.intents.GetIntent(it.ID)
	assert.Equal(t, models.StatusMonitoring, got.Status)
	assert.Zero(t, f.settler.callCount())
}

func TestExecuteIntentErrors(t *testing.T) {
	f := newExecutorFixture(t)

	err := f.executor.ExecuteIntent(context.Background(), "missing")
	assert.ErrorIs(t, err, errs.ErrNotFound)

	it := f.createIntent(t, time.Now().Add(time.Hour))
	f.executor.SetNowFunc(func() time.Time { return time.Now().Add(2 * time.Hour) })

	err = f.executor.ExecuteIntent(context.Background(), it.ID)
	assert.ErrorIs(t, err, errs.ErrInvalidState)

	got, _ := f.intents.GetIntent(it.ID)
	assert.Equal(t, models.StatusExpired, got.Status)
}

func TestExecuteIntentLeavesExecutedIntent(t *testing.T) {
	f := newExecutorFixture(t)
	it := f.createIntent(t, time.Now().Add(time.Hour))

	require.NoError(t, f.executor.ExecuteIntent(context.Background(), it.ID))

	// A second execute-now after the deadline passed must report the
	// invalid state, not expire the settled intent.
	f.executor.SetNowFunc(func() time.Time { return time.Now().Add(2 * time.Hour) })
	err := f.executor.ExecuteIntent(context.Background(), it.ID)
	assert.ErrorIs(t, err, errs.ErrInvalidState)

	got, _ := f.intents.GetIntent(it.ID)
	assert.Equal(t, models.StatusExecuted, got.Status)
	assert.Equal(t, "0xsettled-"+it.ID, got.SettlementRef)
	assert.Equal(t, 1, f.settler.callCount())
}

func TestStaleSnapshotDoesNotExpireExecutedIntent(t *testing.T) {
	f := newExecutorFixture(t)
	it := f.createIntent(t, time.Now().Add(time.Hour))

	// Snapshot taken while the intent was still monitoring.
	snapshot, err := f.intents.GetIntent(it.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusMonitoring, snapshot.Status)

	require.NoError(t, f.executor.ExecuteIntent(context.Background(), it.ID))

	// The worker processes the stale snapshot after the deadline passed.
	f.executor.SetNowFunc(func() time.Time { return time.Now().Add(2 * time.Hour) })
	f.executor.process(context.Background(), snapshot)

	got, _ := f.intents.GetIntent(it.ID)
	assert.Equal(t, models.StatusExecuted, got.Status)
	assert.Equal(t, 1, f.settler.callCount())
}

func TestStartRunsImmediateFirstTick(t *testing.T) {
	f := newExecutorFixture(t)
	it := f.createIntent(t, time.Now().Add(time.Hour))

	// An interval far longer than the test proves the first tick does not
	// wait for the ticker.
	f.executor.config.Interval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.executor.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		got, err := f.intents.GetIntent(it.ID)
		return err == nil && got.Status == models.StatusExecuted
	}, time.Second, 10*time.Millisecond)

	cancel()
	<-done
}
