package transaction

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"shadowledger/internal/domain/paymenthash"
)

// Service exposes the ledger operations on transactions. Hashes are
// canonicalized here so callers may pass any encoding the node produced.
type Service struct {
	repo Repository
}

// NewService creates a new transaction service
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// RecordParams describes a transaction to record.
type RecordParams struct {
	AccountID      string
	Hash           any
	Amount         decimal.Decimal
	Direction      Direction
	Status         Status
	Memo           *string
	PaymentRequest *string
}

func (p RecordParams) toCreate() CreateParams {
	return CreateParams{
		ID:             uuid.NewString(),
		AccountID:      p.AccountID,
		Hash:           paymenthash.Normalize(p.Hash),
		Amount:         p.Amount,
		Direction:      p.Direction,
		Status:         p.Status,
		Memo:           p.Memo,
		PaymentRequest: p.PaymentRequest,
	}
}

// Record creates a transaction exactly once per payment hash.
func (s *Service) Record(ctx context.Context, p RecordParams) (*Transaction, error) {
	params := p.toCreate()
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return s.repo.Create(ctx, params)
}

// ReserveOutgoing records a PENDING OUTGOING transaction if the account can cover it.
func (s *Service) ReserveOutgoing(ctx context.Context, p RecordParams) (*Transaction, error) {
	p.Direction = DirectionOutgoing
	p.Status = StatusPending

	params := p.toCreate()
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return s.repo.CreatePendingOutgoing(ctx, params)
}

// GetByHash looks a transaction up by hash in any supported encoding.
func (s *Service) GetByHash(ctx context.Context, hash any) (*Transaction, error) {
	canonical := paymenthash.Normalize(hash)
	if canonical == "" {
		return nil, ErrMissingHash
	}
	return s.repo.GetByHash(ctx, canonical)
}

// UpdateStatus transitions a transaction. The terminal-state guard is enforced by the repository.
func (s *Service) UpdateStatus(ctx context.Context, hash any, status Status) (*Transaction, error) {
	if !status.IsValid() {
		return nil, ErrInvalidStatus
	}
	canonical := paymenthash.Normalize(hash)
	if canonical == "" {
		return nil, ErrMissingHash
	}
	return s.repo.UpdateStatus(ctx, canonical, status)
}

// Balance returns the account balance over COMPLETE transactions.
func (s *Service) Balance(ctx context.Context, accountID string) (decimal.Decimal, error) {
	return s.repo.ComputeBalance(ctx, accountID)
}

// ListByAccount returns an account's transactions, newest first.
func (s *Service) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*Transaction, error) {
	if limit < 1 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListByAccountID(ctx, accountID, limit, offset)
}
