package account

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// Service contains the business logic for account operations
type Service struct {
	repo Repository
}

// NewService creates a new account service
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// CreateAccount creates a new account. The name must be unique.
func (s *Service) CreateAccount(ctx context.Context, name string, description *string) (*Account, error) {
	params := CreateParams{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(name),
		Description: description,
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	return s.repo.Create(ctx, params)
}

// GetAccount returns the account or nil when it does not exist.
func (s *Service) GetAccount(ctx context.Context, id string) (*Account, error) {
	if id == "" {
		return nil, nil
	}
	return s.repo.GetByID(ctx, id)
}

// RequireAccount is GetAccount that turns absence into ErrAccountNotFound.
func (s *Service) RequireAccount(ctx context.Context, id string) (*Account, error) {
	acc, err := s.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		return nil, ErrAccountNotFound
	}
	return acc, nil
}

// ListAccounts returns one page of accounts, newest first.
func (s *Service) ListAccounts(ctx context.Context, limit, page int) ([]*Account, PageInfo, error) {
	limit, page = NormalizePaging(limit, page)

	accounts, err := s.repo.List(ctx, limit, (page-1)*limit)
	if err != nil {
		return nil, PageInfo{}, err
	}

	total, err := s.repo.Count(ctx)
	if err != nil {
		return nil, PageInfo{}, err
	}

	return accounts, NewPageInfo(page, limit, total), nil
}
