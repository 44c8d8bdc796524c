package models

import (
	"time"
)

// IntentType identifies what kind of obligation an intent settles.
type IntentType string

const (
	// IntentTypePayment is a one-shot token transfer to a recipient.
	IntentTypePayment IntentType = "payment"
)

// IntentStatus is the lifecycle state of an intent.
type IntentStatus string

const (
	// StatusPending is the only initial state, before on-chain registration.
	StatusPending IntentStatus = "pending"
	// StatusMonitoring means the intent is registered and waiting for execution.
	StatusMonitoring IntentStatus = "monitoring"
	// StatusExecuting means a settlement attempt has claimed the intent.
	StatusExecuting IntentStatus = "executing"
	// StatusExecuted is the terminal success state.
	StatusExecuted IntentStatus = "executed"
	// StatusExpired means the deadline passed before settlement.
	StatusExpired IntentStatus = "expired"
	// StatusCancelled means the owner withdrew the intent.
	StatusCancelled IntentStatus = "cancelled"
	// StatusFailed means a settlement attempt failed permanently.
	StatusFailed IntentStatus = "failed"
)

// Terminal reports whether no further transition may leave the status.
func (s IntentStatus) Terminal() bool {
	switch s {
	case StatusExecuted, StatusExpired, StatusCancelled, StatusFailed:
		return true
	}
	return false
}

// CanTransitionTo reports whether the state machine permits moving from s to next.
func (s IntentStatus) CanTransitionTo(next IntentStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusMonitoring || next == StatusCancelled
	case StatusMonitoring:
		return next == StatusExecuting || next == StatusExpired || next == StatusCancelled
	case StatusExecuting:
		return next == StatusExecuted || next == StatusFailed
	}
	// Terminal states have no outgoing transitions.
	return false
}

// Intent represents a single payment obligation moving toward settlement.
type Intent struct {
	ID             string       `json:"id"`
	Owner          string       `json:"owner"`
	Token          string       `json:"token"`
	Amount         string       `json:"amount"`
	Recipient      string       `json:"recipient"`
	Type           IntentType   `json:"type"`
	Status         IntentStatus `json:"status"`
	CreatedAt      time.Time    `json:"created_at"`
	Deadline       time.Time    `json:"deadline"`
	ExecutedAt     *time.Time   `json:"executed_at,omitempty"`
	SettlementRef  string       `json:"settlement_ref,omitempty"`
	RegistryID     *uint64      `json:"registry_id,omitempty"`
	PaymentAuth    string       `json:"payment_auth,omitempty"`
	SubscriptionID string       `json:"subscription_id,omitempty"`
	IsRecurring    bool         `json:"is_recurring,omitempty"`
	ExecutionCount int          `json:"execution_count"`
	MaxExecutions  int          `json:"max_executions,omitempty"`
}

// CreateIntentRequest carries the caller-supplied fields for a new intent.
type CreateIntentRequest struct {
	Token          string     `json:"token"`
	Amount         string     `json:"amount"`
	Recipient      string     `json:"recipient"`
	Type           IntentType `json:"type"`
	Deadline       time.Time  `json:"deadline"`
	PaymentAuth    string     `json:"payment_auth,omitempty"`
	SubscriptionID string     `json:"subscription_id,omitempty"`
	IsRecurring    bool       `json:"is_recurring,omitempty"`
	MaxExecutions  int        `json:"max_executions,omitempty"`
}
