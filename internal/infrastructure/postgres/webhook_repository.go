package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"shadowledger/internal/domain/account"
	"shadowledger/internal/domain/webhook"
)

const webhookColumns = `id, account_id, url, secret_encrypted, enabled, created_at, updated_at`

// SecretCipher encrypts webhook secrets at rest.
type SecretCipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// WebhookRepository implements webhook.Repository for PostgreSQL
type WebhookRepository struct {
	db     *DB
	cipher SecretCipher
}

var _ webhook.Repository = (*WebhookRepository)(nil)

// NewWebhookRepository creates a webhook repository that stores secrets encrypted with cipher.
func NewWebhookRepository(db *DB, cipher SecretCipher) *WebhookRepository {
	return &WebhookRepository{db: db, cipher: cipher}
}

func (r *WebhookRepository) scan(s row) (*webhook.Webhook, error) {
	var wh webhook.Webhook
	var sealed string

	if err := s.Scan(&wh.ID, &wh.AccountID, &wh.URL, &sealed, &wh.Enabled, &wh.CreatedAt, &wh.UpdatedAt); err != nil {
		return nil, err
	}

	secret, err := r.cipher.Decrypt(sealed)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt secret of webhook %s: %w", wh.ID, err)
	}
	wh.Secret = secret
	return &wh, nil
}

// Create stores a new webhook
func (r *WebhookRepository) Create(ctx context.Context, params webhook.CreateParams) (*webhook.Webhook, error) {
	sealed, err := r.cipher.Encrypt(params.Secret)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt webhook secret: %w", err)
	}

	query := `
		INSERT INTO webhooks (id, account_id, url, secret_encrypted, enabled)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + webhookColumns

	wh, err := r.scan(r.db.QueryRowContext(ctx, query, params.ID, params.AccountID, params.URL, sealed, params.Enabled))
	if err != nil {
		if isForeignKeyViolation(err) || isInvalidText(err) {
			return nil, account.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to create webhook: %w", err)
	}
	return wh, nil
}

// GetByID retrieves a webhook
func (r *WebhookRepository) GetByID(ctx context.Context, id string) (*webhook.Webhook, error) {
	query := `SELECT ` + webhookColumns + ` FROM webhooks WHERE id = $1`

	wh, err := r.scan(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) || isInvalidText(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get webhook: %w", err)
	}
	return wh, nil
}

// ListByAccountID returns the account's webhooks, oldest first
func (r *WebhookRepository) ListByAccountID(ctx context.Context, accountID string, enabledOnly bool) ([]*webhook.Webhook, error) {
	query := `
		SELECT ` + webhookColumns + `
		FROM webhooks
		WHERE account_id = $1 AND (enabled OR NOT $2)
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, accountID, enabledOnly)
	if isInvalidText(err) {
		return []*webhook.Webhook{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list webhooks: %w", err)
	}
	defer rows.Close()

	hooks := []*webhook.Webhook{}
	for rows.Next() {
		wh, err := r.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan webhook: %w", err)
		}
		hooks = append(hooks, wh)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating webhooks: %w", err)
	}
	return hooks, nil
}

// Update applies the non-nil fields of params
func (r *WebhookRepository) Update(ctx context.Context, id string, params webhook.UpdateParams) (*webhook.Webhook, error) {
	var sealed *string
	if params.Secret != nil {
		s, err := r.cipher.Encrypt(*params.Secret)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt webhook secret: %w", err)
		}
		sealed = &s
	}

	query := `
		UPDATE webhooks SET
			url = COALESCE($2, url),
			secret_encrypted = COALESCE($3, secret_encrypted),
			enabled = COALESCE($4, enabled),
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + webhookColumns

	wh, err := r.scan(r.db.QueryRowContext(ctx, query, id, params.URL, sealed, params.Enabled))
	if errors.Is(err, sql.ErrNoRows) || isInvalidText(err) {
		return nil, webhook.ErrWebhookNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update webhook: %w", err)
	}
	return wh, nil
}

// Delete removes a webhook
func (r *WebhookRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM webhooks WHERE id = $1`, id)
	if isInvalidText(err) {
		return webhook.ErrWebhookNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete webhook: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return webhook.ErrWebhookNotFound
	}
	return nil
}
