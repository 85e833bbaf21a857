package account

import "context"

// Repository defines the interface for account data access
// This interface is defined in the domain layer, but implemented in the infrastructure layer
type Repository interface {
	// Create creates a new account. Returns ErrNameTaken when the name is already used.
	Create(ctx context.Context, params CreateParams) (*Account, error)

	// GetByID retrieves an account by its ID. Returns nil, nil when absent.
	GetByID(ctx context.Context, id string) (*Account, error)

	// GetByName retrieves an account by exact, case-sensitive name. Returns nil, nil when absent.
	GetByName(ctx context.Context, name string) (*Account, error)

	// List returns one page of accounts ordered by creation time, newest first.
	List(ctx context.Context, limit, offset int) ([]*Account, error)

	// Count returns the total number of accounts.
	Count(ctx context.Context) (int64, error)

	// ListAll returns every account in a stable order (oldest first).
	ListAll(ctx context.Context) ([]*Account, error)
}
