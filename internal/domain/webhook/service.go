package webhook

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// Service contains the business logic for webhook subscriptions
type Service struct {
	repo   Repository
	exists func(ctx context.Context, accountID string) error
}

// NewService creates a webhook service. requireAccount must return an error
// wrapping apperr.ErrNotFound when the account does not exist.
func NewService(repo Repository, requireAccount func(ctx context.Context, accountID string) error) *Service {
	return &Service{repo: repo, exists: requireAccount}
}

// CreateWebhook registers a webhook for an account. A secret is generated
// when none is supplied; the returned Webhook carries it in plain text.
func (s *Service) CreateWebhook(ctx context.Context, accountID, url string, secret *string, enabled *bool) (*Webhook, error) {
	if s.exists != nil {
		if err := s.exists(ctx, accountID); err != nil {
			return nil, err
		}
	}

	params := CreateParams{
		ID:        uuid.NewString(),
		AccountID: accountID,
		URL:       url,
		Enabled:   true,
	}
	if enabled != nil {
		params.Enabled = *enabled
	}
	if secret != nil && *secret != "" {
		params.Secret = *secret
	} else {
		generated, err := GenerateSecret()
		if err != nil {
			return nil, err
		}
		params.Secret = generated
	}

	if err := params.Validate(); err != nil {
		return nil, err
	}

	return s.repo.Create(ctx, params)
}

// ListWebhooks returns all webhooks of an account.
func (s *Service) ListWebhooks(ctx context.Context, accountID string) ([]*Webhook, error) {
	if s.exists != nil {
		if err := s.exists(ctx, accountID); err != nil {
			return nil, err
		}
	}
	return s.repo.ListByAccountID(ctx, accountID, false)
}

// EnabledWebhooks returns the webhooks that should receive an account's events.
func (s *Service) EnabledWebhooks(ctx context.Context, accountID string) ([]*Webhook, error) {
	return s.repo.ListByAccountID(ctx, accountID, true)
}

// UpdateWebhook changes URL, secret or enabled flag.
func (s *Service) UpdateWebhook(ctx context.Context, id string, params UpdateParams) (*Webhook, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return s.repo.Update(ctx, id, params)
}

// DeleteWebhook removes a webhook. Deliveries already in flight keep their copy.
func (s *Service) DeleteWebhook(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// GenerateSecret returns 32 random bytes, hex-encoded.
func GenerateSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate webhook secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
