// Package intent implements the intent lifecycle state machine. The Manager
// is the only component allowed to mutate intent state.
package intent

import (
	"context"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/paystream-hq/paystreamer/pkg/errs"
	"github.com/paystream-hq/paystreamer/pkg/logger"
	"github.com/paystream-hq/paystreamer/pkg/metrics"
	"github.com/paystream-hq/paystreamer/pkg/models"
	"github.com/paystream-hq/paystreamer/pkg/registry"
	"github.com/paystream-hq/paystreamer/pkg/store"
)

// Manager drives intents through the lifecycle:
//
//	Pending -> Monitoring -> Executing -> Executed
//
// with side exits to Expired, Cancelled and Failed. Terminal states never
// transition further.
type Manager struct {
	intents  *store.IntentStore
	logs     *store.LogStore
	registry registry.Client
	logger   logger.Logger
	now      func() time.Time
}

// NewManager creates an intent lifecycle manager.
func NewManager(intents *store.IntentStore, logs *store.LogStore, reg registry.Client, log logger.Logger) *Manager {
	return &Manager{
		intents:  intents,
		logs:     logs,
		registry: reg,
		logger:   log,
		now:      time.Now,
	}
}

// SetNowFunc overrides the clock, for tests.
func (m *Manager) SetNowFunc(now func() time.Time) {
	m.now = now
}

// CreateIntent validates the request, registers the intent with the on-chain
// registry and stores it in Monitoring state. Registration is a precondition
// for existence in the store: a registration failure leaves no record behind.
func (m *Manager) CreateIntent(ctx context.Context, req models.CreateIntentRequest, owner string) (models.Intent, error) {
	if err := m.validateCreate(req, owner); err != nil {
		return models.Intent{}, err
	}

	now := m.now()
	intent := models.Intent{
		ID:             uuid.NewString(),
		Owner:          owner,
		Token:          req.Token,
		Amount:         req.Amount,
		Recipient:      req.Recipient,
		Type:           req.Type,
		Status:         models.StatusPending,
		CreatedAt:      now,
		Deadline:       req.Deadline,
		PaymentAuth:    req.PaymentAuth,
		SubscriptionID: req.SubscriptionID,
		IsRecurring:    req.IsRecurring,
		MaxExecutions:  req.MaxExecutions,
	}

	if intent.PaymentAuth != "" {
		m.AddLog(intent.ID, models.LogInfo, "Intent created with payment authorization (decentralized)", nil)
	} else {
		m.AddLog(intent.ID, models.LogWarning, "Intent created without payment authorization (custodial fallback)", nil)
	}

	registryID, err := m.registry.Register(ctx, intent.Token, intent.Amount, intent.Recipient, intent.Deadline)
	if err != nil {
		metrics.RegistryErrors.WithLabelValues("register").Inc()
		m.AddLog(intent.ID, models.LogError, "Failed to register intent on-chain", map[string]interface{}{"error": err.Error()})
		return models.Intent{}, errs.Collaborator("register intent", err)
	}

	intent.RegistryID = &registryID
	intent.Status = models.StatusMonitoring

	if err := m.intents.Insert(intent); err != nil {
		return models.Intent{}, err
	}

	metrics.IntentsCreated.WithLabelValues(origin(req)).Inc()
	m.AddLog(intent.ID, models.LogSuccess, "Intent registered on-chain", map[string]interface{}{"registry_id": registryID})
	m.logger.Info("Intent %s created for %s (amount: %s, deadline: %s)", intent.ID, owner, intent.Amount, intent.Deadline.Format(time.RFC3339))

	return intent, nil
}

// GetIntent returns the intent with the given id.
func (m *Manager) GetIntent(id string) (models.Intent, error) {
	intent, ok := m.intents.Get(id)
	if !ok {
		return models.Intent{}, errs.NotFoundf("intent %s", id)
	}
	return intent, nil
}

// AllIntents returns a snapshot of every intent.
func (m *Manager) AllIntents() []models.Intent {
	return m.intents.List()
}

// UserIntents returns the intents owned by the given address. Address
// matching is case-insensitive.
func (m *Manager) UserIntents(owner string) []models.Intent {
	return m.intents.ListByOwner(owner)
}

// MonitoringIntents returns a snapshot of all intents awaiting execution.
func (m *Manager) MonitoringIntents() []models.Intent {
	return m.intents.ListByStatus(models.StatusMonitoring)
}

// RecurringIntents returns intents spawned from a subscription whose
// execution count has not reached their cap. Used for reconciliation and
// inspection, not by the schedulers.
func (m *Manager) RecurringIntents() []models.Intent {
	var out []models.Intent
	for _, intent := range m.intents.List() {
		if intent.SubscriptionID == "" {
			continue
		}
		if intent.MaxExecutions > 0 && intent.ExecutionCount >= intent.MaxExecutions {
			continue
		}
		out = append(out, intent)
	}
	return out
}

// UpdateStatus moves the intent to the given status, refusing transitions
// the state machine does not permit. Execution drivers must claim the
// intent through TryBeginExecution instead.
func (m *Manager) UpdateStatus(id string, status models.IntentStatus) error {
	var from models.IntentStatus
	err := m.intents.Update(id, func(intent *models.Intent) {
		from = intent.Status
		if !intent.Status.CanTransitionTo(status) {
			return
		}
		intent.Status = status
	})
	if err != nil {
		return err
	}
	if !from.CanTransitionTo(status) {
		return errs.InvalidStatef("intent %s cannot move from %s to %s", id, from, status)
	}
	return nil
}

// TryBeginExecution atomically claims the intent for a settlement attempt.
// Only the transition Monitoring -> Executing succeeds; a concurrent second
// attempt observes the claim and backs off with a race-lost error, without
// ever reaching the settlement collaborator.
func (m *Manager) TryBeginExecution(id string) error {
	swapped, err := m.intents.CompareAndSetStatus(id, models.StatusMonitoring, models.StatusExecuting)
	if err != nil {
		return err
	}
	if swapped {
		return nil
	}

	intent, ok := m.intents.Get(id)
	if !ok {
		return errs.NotFoundf("intent %s", id)
	}
	if intent.Status == models.StatusExecuting {
		metrics.RaceLost.Inc()
		m.AddLog(id, models.LogInfo, "Execution attempt skipped: another attempt already claimed this intent", nil)
		return errs.RaceLostf("intent %s already executing", id)
	}
	return errs.InvalidStatef("intent %s is %s, not monitoring", id, intent.Status)
}

// MarkExecuted records terminal success. Calling it again for an already
// executed intent is a guarded no-op, as is calling it for an unknown id.
func (m *Manager) MarkExecuted(id, settlementRef string) {
	var applied bool
	err := m.intents.Update(id, func(intent *models.Intent) {
		if !intent.Status.CanTransitionTo(models.StatusExecuted) {
			return
		}
		now := m.now()
		intent.Status = models.StatusExecuted
		intent.ExecutedAt = &now
		intent.SettlementRef = settlementRef
		intent.ExecutionCount++
		applied = true
	})
	if err != nil {
		m.logger.Error("Cannot mark unknown intent %s executed", id)
		return
	}
	if !applied {
		m.AddLog(id, models.LogInfo, "Duplicate executed notification ignored", nil)
		return
	}

	metrics.IntentsExecuted.Inc()
	m.AddLog(id, models.LogSuccess, "Intent executed successfully", map[string]interface{}{"settlement_ref": settlementRef})
}

// MarkExpired records that the deadline passed before settlement. Only a
// monitoring intent can expire; a stale call against an intent that was
// meanwhile executed, cancelled or claimed is a guarded no-op.
func (m *Manager) MarkExpired(id string) {
	var applied bool
	err := m.intents.Update(id, func(intent *models.Intent) {
		if !intent.Status.CanTransitionTo(models.StatusExpired) {
			return
		}
		intent.Status = models.StatusExpired
		applied = true
	})
	if err != nil {
		m.logger.Error("Cannot mark unknown intent %s expired", id)
		return
	}
	if !applied {
		m.AddLog(id, models.LogInfo, "Stale expiry notification ignored", nil)
		return
	}

	metrics.IntentsExpired.Inc()
	m.AddLog(id, models.LogWarning, "Intent expired - deadline passed", nil)
}

// MarkFailed records a permanently failed settlement attempt. Only a claimed
// intent can fail; stale calls against a terminal intent are guarded no-ops.
func (m *Manager) MarkFailed(id, reason string) {
	var applied bool
	err := m.intents.Update(id, func(intent *models.Intent) {
		if !intent.Status.CanTransitionTo(models.StatusFailed) {
			return
		}
		intent.Status = models.StatusFailed
		applied = true
	})
	if err != nil {
		m.logger.Error("Cannot mark unknown intent %s failed", id)
		return
	}
	if !applied {
		m.AddLog(id, models.LogInfo, "Stale failure notification ignored", nil)
		return
	}

	metrics.IntentsFailed.Inc()
	m.AddLog(id, models.LogError, "Intent execution failed: "+reason, nil)
}

// CancelIntent withdraws an intent that has not started executing. If the
// intent carries a registry identifier the on-chain record is cancelled
// first; a registry failure propagates and leaves the intent untouched.
func (m *Manager) CancelIntent(ctx context.Context, id string) error {
	intent, ok := m.intents.Get(id)
	if !ok {
		return errs.NotFoundf("intent %s", id)
	}
	if intent.Status != models.StatusPending && intent.Status != models.StatusMonitoring {
		return errs.InvalidStatef("intent %s cannot be cancelled in status %s", id, intent.Status)
	}

	if intent.RegistryID != nil {
		if err := m.registry.Cancel(ctx, *intent.RegistryID); err != nil {
			metrics.RegistryErrors.WithLabelValues("cancel").Inc()
			m.AddLog(id, models.LogError, "Failed to cancel intent on-chain", map[string]interface{}{"error": err.Error()})
			return errs.Collaborator("cancel intent", err)
		}
	}

	var raced bool
	err := m.intents.Update(id, func(intent *models.Intent) {
		if intent.Status != models.StatusPending && intent.Status != models.StatusMonitoring {
			raced = true
			return
		}
		intent.Status = models.StatusCancelled
	})
	if err != nil {
		return err
	}
	if raced {
		return errs.InvalidStatef("intent %s changed state during cancellation", id)
	}

	metrics.IntentsCancelled.Inc()
	m.AddLog(id, models.LogInfo, "Intent cancelled by user", nil)
	return nil
}

// AddLog appends an execution log entry for an intent.
func (m *Manager) AddLog(id string, level models.LogLevel, message string, data map[string]interface{}) {
	m.logs.Append(models.ExecutionLog{
		IntentID:  id,
		Timestamp: m.now(),
		Level:     level,
		Message:   message,
		Data:      data,
	})
}

// Logs returns the execution log entries for an intent, in insertion order.
func (m *Manager) Logs(id string) []models.ExecutionLog {
	return m.logs.ForIntent(id)
}

// Registry exposes the registry collaborator for execution drivers that
// record outcomes on-chain.
func (m *Manager) Registry() registry.Client {
	return m.registry
}

func (m *Manager) validateCreate(req models.CreateIntentRequest, owner string) error {
	if owner == "" {
		return errs.Validationf("owner is required")
	}
	if req.Token == "" {
		return errs.Validationf("token is required")
	}
	if req.Recipient == "" {
		return errs.Validationf("recipient is required")
	}
	if req.Type == "" {
		return errs.Validationf("type is required")
	}
	if req.Type != models.IntentTypePayment {
		return errs.Validationf("unsupported intent type: %s", req.Type)
	}
	if req.Deadline.IsZero() {
		return errs.Validationf("deadline is required")
	}
	if !req.Deadline.After(m.now()) {
		return errs.Validationf("deadline must be in the future")
	}
	if req.Amount == "" {
		return errs.Validationf("amount is required")
	}
	amount, ok := new(big.Int).SetString(req.Amount, 10)
	if !ok {
		return errs.Validationf("invalid amount format: %s", req.Amount)
	}
	if amount.Sign() <= 0 {
		return errs.Validationf("amount must be greater than zero")
	}
	return nil
}

func origin(req models.CreateIntentRequest) string {
	if req.IsRecurring {
		return "scheduler"
	}
	return "api"
}
