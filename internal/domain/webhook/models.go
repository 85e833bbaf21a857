package webhook

import (
	"fmt"
	"net/url"
	"time"

	"shadowledger/internal/shared/apperr"
)

// Domain errors
var (
	ErrWebhookNotFound = fmt.Errorf("webhook not found: %w", apperr.ErrNotFound)
	ErrInvalidURL      = fmt.Errorf("webhook URL must be an absolute http or https URL: %w", apperr.ErrValidation)
	ErrInvalidSecret   = fmt.Errorf("webhook secret must be at least 16 characters: %w", apperr.ErrValidation)
)

const minSecretLength = 16

// Webhook is a subscription of one URL to an account's ledger events.
// Secret signs every delivery and is never serialized.
type Webhook struct {
	ID        string    `json:"id"`
	AccountID string    `json:"accountId"`
	URL       string    `json:"url"`
	Secret    string    `json:"-"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CreateParams contains parameters for registering a webhook
type CreateParams struct {
	ID        string
	AccountID string
	URL       string
	Secret    string
	Enabled   bool
}

func (p CreateParams) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("webhook ID is required: %w", apperr.ErrValidation)
	}
	if p.AccountID == "" {
		return fmt.Errorf("account ID is required: %w", apperr.ErrValidation)
	}
	if !IsValidURL(p.URL) {
		return ErrInvalidURL
	}
	if len(p.Secret) < minSecretLength {
		return ErrInvalidSecret
	}
	return nil
}

// UpdateParams contains the fields that may change on a webhook; nil means unchanged.
type UpdateParams struct {
	URL     *string
	Secret  *string
	Enabled *bool
}

func (p UpdateParams) Validate() error {
	if p.URL != nil && !IsValidURL(*p.URL) {
		return ErrInvalidURL
	}
	if p.Secret != nil && len(*p.Secret) < minSecretLength {
		return ErrInvalidSecret
	}
	return nil
}

// IsValidURL reports whether raw is an absolute http(s) URL with a host.
func IsValidURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
