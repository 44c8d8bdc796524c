// Package subscription manages recurring payment agreements and the
// calendar-month schedule arithmetic behind them.
package subscription

import (
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/paystream-hq/paystreamer/pkg/errs"
	"github.com/paystream-hq/paystreamer/pkg/logger"
	"github.com/paystream-hq/paystreamer/pkg/metrics"
	"github.com/paystream-hq/paystreamer/pkg/models"
	"github.com/paystream-hq/paystreamer/pkg/store"
)

// Manager owns subscription state. The recurring scheduler consults it for
// due subscriptions and advances the schedule after each successful spawn.
type Manager struct {
	subs   *store.SubscriptionStore
	logger logger.Logger
	now    func() time.Time
}

// NewManager creates a subscription manager.
func NewManager(subs *store.SubscriptionStore, log logger.Logger) *Manager {
	return &Manager{
		subs:   subs,
		logger: log,
		now:    time.Now,
	}
}

// SetNowFunc overrides the clock, for tests.
func (m *Manager) SetNowFunc(now func() time.Time) {
	m.now = now
}

// CreateSubscription validates the request and stores an active monthly
// subscription. The first billing falls one calendar month after the start
// date, which defaults to now.
func (m *Manager) CreateSubscription(req models.CreateSubscriptionRequest) (models.Subscription, error) {
	if err := m.validateCreate(req); err != nil {
		return models.Subscription{}, err
	}

	now := m.now()
	start := req.StartDate
	if start.IsZero() {
		start = now
	}

	sub := models.Subscription{
		ID:              uuid.NewString(),
		MerchantID:      req.MerchantID,
		CustomerAddress: req.CustomerAddress,
		Recipient:       req.Recipient,
		Amount:          req.Amount,
		Token:           req.Token,
		PaymentAuth:     req.PaymentAuth,
		Status:          models.SubscriptionActive,
		CreatedAt:       now,
		Schedule: models.RecurringSchedule{
			Cadence:       models.CadenceMonthly,
			StartDate:     start,
			NextExecution: NextMonthlyExecution(start),
			MaxExecutions: req.MaxExecutions,
		},
	}

	if err := m.subs.Insert(sub); err != nil {
		return models.Subscription{}, err
	}

	metrics.SubscriptionsActive.Inc()
	m.logger.Info("Subscription %s created for %s (amount: %s %s, first billing: %s)",
		sub.ID, sub.CustomerAddress, sub.Amount, sub.Token,
		sub.Schedule.NextExecution.Format(time.RFC3339))

	return sub, nil
}

// GetSubscription returns the subscription with the given id.
func (m *Manager) GetSubscription(id string) (models.Subscription, error) {
	sub, ok := m.subs.Get(id)
	if !ok {
		return models.Subscription{}, errs.NotFoundf("subscription %s", id)
	}
	return sub, nil
}

// AllSubscriptions returns a snapshot of every subscription.
func (m *Manager) AllSubscriptions() []models.Subscription {
	return m.subs.List()
}

// CustomerSubscriptions returns the subscriptions for a customer address.
// Address matching is case-insensitive.
func (m *Manager) CustomerSubscriptions(customer string) []models.Subscription {
	return m.subs.ListByCustomer(customer)
}

// DueSubscriptions returns active subscriptions whose next execution time
// has passed.
func (m *Manager) DueSubscriptions() []models.Subscription {
	now := m.now()
	var due []models.Subscription
	for _, sub := range m.subs.ListActive() {
		if !sub.Schedule.NextExecution.After(now) {
			due = append(due, sub)
		}
	}
	return due
}

// CancelSubscription stops future billing. Cancelling an already cancelled
// subscription is a no-op; intents already spawned are unaffected.
func (m *Manager) CancelSubscription(id string) error {
	var wasActive bool
	err := m.subs.Update(id, func(sub *models.Subscription) {
		if sub.Status == models.SubscriptionCancelled {
			return
		}
		sub.Status = models.SubscriptionCancelled
		wasActive = true
	})
	if err != nil {
		return errs.NotFoundf("subscription %s", id)
	}
	if wasActive {
		metrics.SubscriptionsActive.Dec()
		m.logger.Info("Subscription %s cancelled", id)
	}
	return nil
}

// AdvanceSchedule moves the subscription one billing cycle forward after a
// successful spawn. When the execution count reaches the cap the
// subscription is cancelled instead of rescheduled.
func (m *Manager) AdvanceSchedule(id string) error {
	var capped bool
	err := m.subs.Update(id, func(sub *models.Subscription) {
		sub.Schedule.ExecutionCount++
		if sub.Schedule.MaxExecutions > 0 && sub.Schedule.ExecutionCount >= sub.Schedule.MaxExecutions {
			sub.Status = models.SubscriptionCancelled
			capped = true
			return
		}
		sub.Schedule.NextExecution = NextMonthlyExecution(sub.Schedule.NextExecution)
	})
	if err != nil {
		return errs.NotFoundf("subscription %s", id)
	}
	if capped {
		metrics.SubscriptionsActive.Dec()
		m.logger.Info("Subscription %s completed all billing cycles, cancelled", id)
	}
	return nil
}

// NextMonthlyExecution returns the time one calendar month after from.
// Day-of-month overflow normalizes forward: one month after January 31 lands
// in early March, not on February 28.
func NextMonthlyExecution(from time.Time) time.Time {
	return from.AddDate(0, 1, 0)
}

func (m *Manager) validateCreate(req models.CreateSubscriptionRequest) error {
	if req.MerchantID == "" {
		return errs.Validationf("merchant_id is required")
	}
	if req.CustomerAddress == "" {
		return errs.Validationf("customer_address is required")
	}
	if req.Recipient == "" {
		return errs.Validationf("recipient is required")
	}
	if req.Token == "" {
		return errs.Validationf("token is required")
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
	if req.MaxExecutions < 0 {
		return errs.Validationf("max_executions cannot be negative")
	}
	return nil
}
