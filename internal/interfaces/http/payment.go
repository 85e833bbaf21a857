package http

import (
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"shadowledger/internal/domain/payment"
	"shadowledger/internal/shared/apperr"
)

// PaymentHandler serves invoice creation and outgoing payments for an account
type PaymentHandler struct {
	payments *payment.Service
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(payments *payment.Service) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

// CreateInvoiceRequest is the body of POST /api/accounts/{id}/invoices
type CreateInvoiceRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	Memo          string          `json:"memo,omitempty"`
	ExpirySeconds int64           `json:"expirySeconds,omitempty"`
}

// SendPaymentRequest is the body of POST /api/accounts/{id}/payments
type SendPaymentRequest struct {
	PaymentRequest string `json:"paymentRequest"`
}

// HandleCreateInvoice creates an invoice on the node and records it as
// PENDING INCOMING for the account.
func (h *PaymentHandler) HandleCreateInvoice(w http.ResponseWriter, r *http.Request) {
	var req CreateInvoiceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.ExpirySeconds < 0 {
		writeError(w, r, fmt.Errorf("expirySeconds must not be negative: %w", apperr.ErrValidation))
		return
	}

	tx, err := h.payments.CreateInvoice(r.Context(), r.PathValue("id"), req.Amount, req.Memo, req.ExpirySeconds)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, tx)
}

// HandleSendPayment pays a BOLT11 payment request from the account's balance.
// A node-side failure is reported as 502 after the transaction is marked FAILED.
func (h *PaymentHandler) HandleSendPayment(w http.ResponseWriter, r *http.Request) {
	var req SendPaymentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.PaymentRequest == "" {
		writeError(w, r, fmt.Errorf("paymentRequest is required: %w", apperr.ErrValidation))
		return
	}

	tx, err := h.payments.SendPaymentFromAccount(r.Context(), r.PathValue("id"), req.PaymentRequest)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, tx)
}
