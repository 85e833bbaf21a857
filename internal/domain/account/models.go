package account

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"shadowledger/internal/shared/apperr"
)

const (
	maxNameLength = 100

	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// Domain errors
var (
	ErrAccountNotFound = fmt.Errorf("account not found: %w", apperr.ErrNotFound)
	ErrNameTaken       = fmt.Errorf("account name already exists: %w", apperr.ErrConflict)
	ErrInvalidName     = fmt.Errorf("account name is required and must be at most %d characters: %w", maxNameLength, apperr.ErrValidation)
	ErrInvalidPattern  = errors.New("memo pattern must contain exactly one capture group")
)

// Account is a logical sub-wallet inside the shared node wallet.
// Its balance is derived from transactions and never stored.
type Account struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// CreateParams contains parameters for creating a new account
type CreateParams struct {
	ID          string
	Name        string
	Description *string
}

// Validate validates the create parameters
func (p CreateParams) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("account ID is required: %w", apperr.ErrValidation)
	}
	name := strings.TrimSpace(p.Name)
	if name == "" || len(name) > maxNameLength {
		return ErrInvalidName
	}
	return nil
}

// PageInfo describes one page of a paginated account listing.
type PageInfo struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

// NewPageInfo computes the page count for total rows.
func NewPageInfo(page, limit int, total int64) PageInfo {
	pages := 0
	if limit > 0 {
		pages = int((total + int64(limit) - 1) / int64(limit))
	}
	return PageInfo{Page: page, Limit: limit, Total: total, TotalPages: pages}
}

// NormalizePaging clamps limit to 1..MaxPageLimit (default DefaultPageLimit) and page to >= 1.
func NormalizePaging(limit, page int) (int, int) {
	if limit < 1 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	if page < 1 {
		page = 1
	}
	return limit, page
}
