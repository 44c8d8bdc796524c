// Package settlement talks to the external payment facilitator. The
// facilitator performs a verify-then-settle two-step: it first checks the
// payment authorization, then moves the funds and returns a settlement
// reference. Both steps surface as a single settlement failure to callers.
package settlement

import (
	"context"
)

// Request describes one settlement attempt.
type Request struct {
	IntentID  string
	Owner     string
	Token     string
	Amount    string
	Recipient string

	// PaymentAuth is the caller-supplied pre-signed authorization. When
	// empty the facilitator is asked to debit the service's custodial
	// signer instead.
	PaymentAuth string

	// Recurring widens the custodial authorization validity window so a
	// subscription's credential survives until the next billing cycle.
	Recurring bool
}

// Client is the payment settlement collaborator interface.
type Client interface {
	// Settle verifies and settles the payment, returning the settlement
	// reference on success.
	Settle(ctx context.Context, req Request) (string, error)
}
