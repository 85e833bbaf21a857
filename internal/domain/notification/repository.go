package notification

import (
	"context"

	"shadowledger/internal/domain/webhook"
)

// WebhookSource provides the enabled webhooks of an account at delivery time.
// Implemented by webhook.Service.
type WebhookSource interface {
	EnabledWebhooks(ctx context.Context, accountID string) ([]*webhook.Webhook, error)
}
