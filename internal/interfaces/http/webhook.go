package http

import (
	"net/http"
	"time"

	"shadowledger/internal/domain/webhook"
)

// WebhookHandler serves webhook registration for accounts
type WebhookHandler struct {
	webhooks *webhook.Service
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(webhooks *webhook.Service) *WebhookHandler {
	return &WebhookHandler{webhooks: webhooks}
}

// CreateWebhookRequest is the body of POST /api/accounts/{id}/webhooks
type CreateWebhookRequest struct {
	URL     string  `json:"url"`
	Secret  *string `json:"secret,omitempty"`
	Enabled *bool   `json:"enabled,omitempty"`
}

// UpdateWebhookRequest is the body of PATCH /api/webhooks/{id}
type UpdateWebhookRequest struct {
	URL     *string `json:"url,omitempty"`
	Secret  *string `json:"secret,omitempty"`
	Enabled *bool   `json:"enabled,omitempty"`
}

// WebhookResponse exposes a webhook. Secret is only set in the create
// response so the caller can configure signature verification.
type WebhookResponse struct {
	ID        string    `json:"id"`
	AccountID string    `json:"accountId"`
	URL       string    `json:"url"`
	Enabled   bool      `json:"enabled"`
	Secret    string    `json:"secret,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func toWebhookResponse(h *webhook.Webhook, withSecret bool) WebhookResponse {
	resp := WebhookResponse{
		ID:        h.ID,
		AccountID: h.AccountID,
		URL:       h.URL,
		Enabled:   h.Enabled,
		CreatedAt: h.CreatedAt,
		UpdatedAt: h.UpdatedAt,
	}
	if withSecret {
		resp.Secret = h.Secret
	}
	return resp
}

// HandleListWebhooks returns every webhook of an account.
func (h *WebhookHandler) HandleListWebhooks(w http.ResponseWriter, r *http.Request) {
	hooks, err := h.webhooks.ListWebhooks(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	response := make([]WebhookResponse, 0, len(hooks))
	for _, hook := range hooks {
		response = append(response, toWebhookResponse(hook, false))
	}
	writeJSON(w, http.StatusOK, map[string]any{"webhooks": response})
}

// HandleCreateWebhook registers a webhook; a secret is generated when omitted.
func (h *WebhookHandler) HandleCreateWebhook(w http.ResponseWriter, r *http.Request) {
	var req CreateWebhookRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	hook, err := h.webhooks.CreateWebhook(r.Context(), r.PathValue("id"), req.URL, req.Secret, req.Enabled)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toWebhookResponse(hook, true))
}

// HandleUpdateWebhook applies a partial update.
func (h *WebhookHandler) HandleUpdateWebhook(w http.ResponseWriter, r *http.Request) {
	var req UpdateWebhookRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	hook, err := h.webhooks.UpdateWebhook(r.Context(), r.PathValue("id"), webhook.UpdateParams{
		URL:     req.URL,
		Secret:  req.Secret,
		Enabled: req.Enabled,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toWebhookResponse(hook, false))
}

// HandleDeleteWebhook removes a webhook.
func (h *WebhookHandler) HandleDeleteWebhook(w http.ResponseWriter, r *http.Request) {
	if err := h.webhooks.DeleteWebhook(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
