package subscription

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paystream-hq/paystreamer/pkg/errs"
	"github.com/paystream-hq/paystreamer/pkg/logger"
	"github.com/paystream-hq/paystreamer/pkg/models"
	"github.com/paystream-hq/paystreamer/pkg/store"
)

func newTestManager() *Manager {
	return NewManager(store.NewSubscriptionStore(), &logger.EmptyLogger{})
}

func validRequest() models.CreateSubscriptionRequest {
	return models.CreateSubscriptionRequest{
		MerchantID:      "merchant-1",
		CustomerAddress: "0xCustomer",
		Recipient:       "0xMerchantWallet",
		Amount:          "5000000",
		Token:           "0x66e428c3f67a68878562e79A0234c1F83c208770",
		PaymentAuth:     "0xauth",
	}
}

func TestCreateSubscription(t *testing.T) {
	mgr := newTestManager()
	start := time.Date(2026, time.March, 15, 10, 0, 0, 0, time.UTC)
	mgr.SetNowFunc(func() time.Time { return start })

	sub, err := mgr.CreateSubscription(validRequest())
	require.NoError(t, err)

	assert.Equal(t, models.SubscriptionActive, sub.Status)
	assert.Equal(t, models.CadenceMonthly, sub.Schedule.Cadence)
	assert.Equal(t, start, sub.Schedule.StartDate)
	assert.Equal(t, time.Date(2026, time.April, 15, 10, 0, 0, 0, time.UTC), sub.Schedule.NextExecution)
	assert.Zero(t, sub.Schedule.ExecutionCount)
}

func TestCreateSubscriptionExplicitStart(t *testing.T) {
	mgr := newTestManager()
	req := validRequest()
	req.StartDate = time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC)

	sub, err := mgr.CreateSubscription(req)
	require.NoError(t, err)

	assert.Equal(t, req.StartDate, sub.Schedule.StartDate)
	assert.Equal(t, time.Date(2026, time.July, 1, 0, 0, 0, 0, time.UTC), sub.Schedule.NextExecution)
}

func TestCreateSubscriptionValidation(t *testing.T) {
	mgr := newTestManager()

	tests := []struct {
		name   string
		mutate func(*models.CreateSubscriptionRequest)
	}{
		{"missing merchant", func(r *models.CreateSubscriptionRequest) { r.MerchantID = "" }},
		{"missing customer", func(r *models.CreateSubscriptionRequest) { r.CustomerAddress = "" }},
		{"missing recipient", func(r *models.CreateSubscriptionRequest) { r.Recipient = "" }},
		{"missing token", func(r *models.CreateSubscriptionRequest) { r.Token = "" }},
		{"missing amount", func(r *models.CreateSubscriptionRequest) { r.Amount = "" }},
		{"zero amount", func(r *models.CreateSubscriptionRequest) { r.Amount = "0" }},
		{"bad amount", func(r *models.CreateSubscriptionRequest) { r.Amount = "lots" }},
		{"negative cap", func(r *models.CreateSubscriptionRequest) { r.MaxExecutions = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(&req)
			_, err := mgr.CreateSubscription(req)
			assert.ErrorIs(t, err, errs.ErrValidation)
		})
	}
}

func TestCustomerSubscriptionsCaseInsensitive(t *testing.T) {
	mgr := newTestManager()
	_, err := mgr.CreateSubscription(validRequest())
	require.NoError(t, err)

	assert.Len(t, mgr.CustomerSubscriptions("0xCUSTOMER"), 1)
	assert.Empty(t, mgr.CustomerSubscriptions("0xOther"))
}

func TestDueSubscriptions(t *testing.T) {
	mgr := newTestManager()
	now := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	mgr.SetNowFunc(func() time.Time { return now })

	sub, err := mgr.CreateSubscription(validRequest())
	require.NoError(t, err)

	// Not due yet: next execution is a month out.
	assert.Empty(t, mgr.DueSubscriptions())

	// Exactly at the next execution time it is due.
	now = sub.Schedule.NextExecution
	due := mgr.DueSubscriptions()
	require.Len(t, due, 1)
	assert.Equal(t, sub.ID, due[0].ID)

	// Cancelled subscriptions are never due.
	require.NoError(t, mgr.CancelSubscription(sub.ID))
	assert.Empty(t, mgr.DueSubscriptions())
}

func TestCancelSubscriptionIdempotent(t *testing.T) {
	mgr := newTestManager()
	sub, err := mgr.CreateSubscription(validRequest())
	require.NoError(t, err)

	require.NoError(t, mgr.CancelSubscription(sub.ID))
	require.NoError(t, mgr.CancelSubscription(sub.ID))

	got, err := mgr.GetSubscription(sub.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionCancelled, got.Status)

	err = mgr.CancelSubscription("missing")
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestAdvanceSchedule(t *testing.T) {
	mgr := newTestManager()
	req := validRequest()
	req.StartDate = time.Date(2026, time.February, 10, 0, 0, 0, 0, time.UTC)

	sub, err := mgr.CreateSubscription(req)
	require.NoError(t, err)

	require.NoError(t, mgr.AdvanceSchedule(sub.ID))

	got, err := mgr.GetSubscription(sub.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Schedule.ExecutionCount)
	assert.Equal(t, time.Date(2026, time.April, 10, 0, 0, 0, 0, time.UTC), got.Schedule.NextExecution)
}

func TestAdvanceScheduleCancelsAtCap(t *testing.T) {
	mgr := newTestManager()
	req := validRequest()
	req.MaxExecutions = 2

	sub, err := mgr.CreateSubscription(req)
	require.NoError(t, err)

	require.NoError(t, mgr.AdvanceSchedule(sub.ID))
	got, _ := mgr.GetSubscription(sub.ID)
	assert.Equal(t, models.SubscriptionActive, got.Status)

	require.NoError(t, mgr.AdvanceSchedule(sub.ID))
	got, _ = mgr.GetSubscription(sub.ID)
	assert.Equal(t, models.SubscriptionCancelled, got.Status)
	assert.Equal(t, 2, got.Schedule.ExecutionCount)
}

func TestNextMonthlyExecutionDayOverflow(t *testing.T) {
	tests := []struct {
		name string
		from time.Time
		want time.Time
	}{
		{
			name: "mid-month",
			from: time.Date(2026, time.March, 15, 9, 30, 0, 0, time.UTC),
			want: time.Date(2026, time.April, 15, 9, 30, 0, 0, time.UTC),
		},
		{
			name: "jan 31 normalizes into march",
			from: time.Date(2026, time.January, 31, 0, 0, 0, 0, time.UTC),
			want: time.Date(2026, time.March, 3, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "jan 31 leap year",
			from: time.Date(2028, time.January, 31, 0, 0, 0, 0, time.UTC),
			want: time.Date(2028, time.March, 2, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "year rollover",
			from: time.Date(2026, time.December, 20, 0, 0, 0, 0, time.UTC),
			want: time.Date(2027, time.January, 20, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "may 31 normalizes into july",
			from: time.Date(2026, time.May, 31, 0, 0, 0, 0, time.UTC),
			want: time.Date(2026, time.July, 1, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NextMonthlyExecution(tt.from))
		})
	}
}
