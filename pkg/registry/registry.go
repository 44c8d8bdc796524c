// Package registry talks to the on-chain intent registry. The registry is an
// external collaborator: it records intent existence and outcome on an
// immutable ledger and hands back a numeric registry identifier.
package registry

import (
	"context"
	"math/big"
	"time"
)

// RegisteredIntent mirrors the on-chain intent record.
type RegisteredIntent struct {
	ID         uint64
	Owner      string
	Token      string
	Amount     *big.Int
	Recipient  string
	Status     uint8
	CreatedAt  time.Time
	Deadline   time.Time
	ExecutedAt time.Time
	TxHash     string
}

// Client is the registry collaborator interface. All calls may fail with a
// network or on-chain error; failures propagate to the caller unchanged.
type Client interface {
	// Register records a new intent and returns the registry identifier.
	Register(ctx context.Context, token, amount, recipient string, deadline time.Time) (uint64, error)

	// MarkExecuted records the settlement reference for an executed intent.
	MarkExecuted(ctx context.Context, registryID uint64, settlementRef string) error

	// Cancel withdraws a registered intent.
	Cancel(ctx context.Context, registryID uint64) error

	// Get fetches the on-chain record for a registry identifier.
	Get(ctx context.Context, registryID uint64) (RegisteredIntent, error)

	// ListForOwner returns the registry identifiers recorded for an owner.
	ListForOwner(ctx context.Context, owner string) ([]uint64, error)
}

// WalletInfo describes the service's custodial signer account.
type WalletInfo struct {
	Address    string `json:"address"`
	Balance    string `json:"balance"`
	BalanceWei string `json:"balance_wei"`
	Network    string `json:"network"`
}
