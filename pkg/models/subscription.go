package models

import (
	"time"
)

// SubscriptionStatus is the lifecycle state of a subscription.
type SubscriptionStatus string

const (
	// SubscriptionActive means the schedule keeps spawning intents.
	SubscriptionActive SubscriptionStatus = "active"
	// SubscriptionCancelled is terminal; cancellation is monotonic.
	SubscriptionCancelled SubscriptionStatus = "cancelled"
)

// CadenceMonthly is the only supported billing cadence.
const CadenceMonthly = "monthly"

// RecurringSchedule tracks when a subscription is next due.
type RecurringSchedule struct {
	Cadence        string    `json:"cadence"`
	StartDate      time.Time `json:"start_date"`
	NextExecution  time.Time `json:"next_execution"`
	ExecutionCount int       `json:"execution_count"`
	MaxExecutions  int       `json:"max_executions,omitempty"`
}

// Subscription is a recurring payment agreement between a customer and a merchant.
type Subscription struct {
	ID              string             `json:"id"`
	MerchantID      string             `json:"merchant_id"`
	CustomerAddress string             `json:"customer_address"`
	Recipient       string             `json:"recipient"`
	Amount          string             `json:"amount"`
	Token           string             `json:"token"`
	PaymentAuth     string             `json:"payment_auth"`
	Schedule        RecurringSchedule  `json:"schedule"`
	Status          SubscriptionStatus `json:"status"`
	CreatedAt       time.Time          `json:"created_at"`
}

// CreateSubscriptionRequest carries the caller-supplied fields for a new subscription.
type CreateSubscriptionRequest struct {
	MerchantID      string    `json:"merchant_id"`
	CustomerAddress string    `json:"customer_address"`
	Recipient       string    `json:"recipient"`
	Amount          string    `json:"amount"`
	Token           string    `json:"token"`
	PaymentAuth     string    `json:"payment_auth"`
	StartDate       time.Time `json:"start_date,omitempty"`
	MaxExecutions   int       `json:"max_executions,omitempty"`
}
