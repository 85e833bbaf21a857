package transaction

import (
	"context"

	"github.com/shopspring/decimal"
)

// Repository defines the interface for transaction data access.
// The idempotency and terminal-state guarantees are enforced by the
// implementation at the storage boundary, not by callers.
type Repository interface {
	// Create records a transaction. Returns ErrDuplicateHash when the hash is
	// already recorded and account.ErrAccountNotFound when the account is absent.
	Create(ctx context.Context, params CreateParams) (*Transaction, error)

	// CreatePendingOutgoing records a PENDING OUTGOING transaction only if the
	// account's spendable balance covers params.Amount. The check and the insert
	// run in one storage transaction. Returns ErrInsufficientBalance otherwise.
	CreatePendingOutgoing(ctx context.Context, params CreateParams) (*Transaction, error)

	// GetByHash retrieves a transaction by canonical hash. Returns nil, nil when absent.
	GetByHash(ctx context.Context, hash string) (*Transaction, error)

	// UpdateStatus moves a transaction to status. Returns ErrTransactionNotFound
	// for unknown hashes and ErrTerminalState for transitions out of COMPLETE or
	// FAILED. Setting the current status again is a no-op.
	UpdateStatus(ctx context.Context, hash string, status Status) (*Transaction, error)

	// ComputeBalance returns incoming minus outgoing over COMPLETE transactions.
	ComputeBalance(ctx context.Context, accountID string) (decimal.Decimal, error)

	// ListByAccountID returns an account's transactions, newest first.
	ListByAccountID(ctx context.Context, accountID string, limit, offset int) ([]*Transaction, error)
}
