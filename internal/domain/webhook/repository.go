package webhook

import "context"

// Repository defines the interface for webhook data access.
// Implementations store Secret encrypted and return it decrypted.
type Repository interface {
	Create(ctx context.Context, params CreateParams) (*Webhook, error)
	// GetByID returns nil, nil when the webhook does not exist.
	GetByID(ctx context.Context, id string) (*Webhook, error)
	// ListByAccountID returns the account's webhooks; enabledOnly filters disabled ones out.
	ListByAccountID(ctx context.Context, accountID string, enabledOnly bool) ([]*Webhook, error)
	// Update returns ErrWebhookNotFound when the webhook does not exist.
	Update(ctx context.Context, id string, params UpdateParams) (*Webhook, error)
	// Delete returns ErrWebhookNotFound when the webhook does not exist.
	Delete(ctx context.Context, id string) error
}
