package http

import "net/http"

// Handlers groups every handler served by the API.
type Handlers struct {
	Health      *HealthHandler
	Account     *AccountHandler
	Transaction *TransactionHandler
	Payment     *PaymentHandler
	Webhook     *WebhookHandler
	Node        *NodeHandler
	Reconcile   *ReconcileHandler
}

// Register mounts all routes on mux. protect wraps every /api route.
func (h *Handlers) Register(mux *http.ServeMux, protect func(http.Handler) http.Handler) {
	api := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, protect(fn))
	}

	mux.HandleFunc("GET /health", h.Health.HandleHealth)

	api("POST /api/accounts", h.Account.HandleCreateAccount)
	api("GET /api/accounts", h.Account.HandleListAccounts)
	api("GET /api/accounts/{id}", h.Account.HandleGetAccount)
	api("GET /api/accounts/{id}/balance", h.Account.HandleGetBalance)
	api("GET /api/accounts/{id}/transactions", h.Transaction.HandleListByAccount)
	api("POST /api/accounts/{id}/invoices", h.Payment.HandleCreateInvoice)
	api("POST /api/accounts/{id}/payments", h.Payment.HandleSendPayment)
	api("GET /api/accounts/{id}/webhooks", h.Webhook.HandleListWebhooks)
	api("POST /api/accounts/{id}/webhooks", h.Webhook.HandleCreateWebhook)

	api("PATCH /api/webhooks/{id}", h.Webhook.HandleUpdateWebhook)
	api("DELETE /api/webhooks/{id}", h.Webhook.HandleDeleteWebhook)

	api("GET /api/transactions/{hash}", h.Transaction.HandleGetByHash)

	api("GET /api/node/info", h.Node.HandleInfo)
	api("POST /api/reconcile", h.Reconcile.HandleTrigger)
}
