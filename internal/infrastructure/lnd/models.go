package lnd

import "github.com/shopspring/decimal"

// InvoiceState is the node-side lifecycle state of an invoice.
type InvoiceState string

const (
	InvoiceOpen     InvoiceState = "OPEN"
	InvoiceSettled  InvoiceState = "SETTLED"
	InvoiceCanceled InvoiceState = "CANCELED"
	InvoiceAccepted InvoiceState = "ACCEPTED"
)

// Info is the subset of /v1/getinfo the service exposes.
type Info struct {
	IdentityPubkey    string `json:"identity_pubkey"`
	Alias             string `json:"alias"`
	Version           string `json:"version"`
	NumActiveChannels int    `json:"num_active_channels"`
	NumPeers          int    `json:"num_peers"`
	BlockHeight       int64  `json:"block_height"`
	SyncedToChain     bool   `json:"synced_to_chain"`
}

// Invoice represents an invoice from /v1/invoices.
// RHash is base64 as served by the REST gateway; amounts may arrive as
// JSON strings or numbers.
type Invoice struct {
	Memo           string          `json:"memo"`
	RHash          string          `json:"r_hash"`
	Value          decimal.Decimal `json:"value"`
	AmtPaidSat     decimal.Decimal `json:"amt_paid_sat"`
	Settled        bool            `json:"settled"`
	State          InvoiceState    `json:"state"`
	PaymentRequest string          `json:"payment_request"`
}

// ListInvoicesResponse represents the /v1/invoices response body
type ListInvoicesResponse struct {
	Invoices []Invoice `json:"invoices"`
}

// PayReq is a decoded BOLT11 payment request.
type PayReq struct {
	Destination string          `json:"destination"`
	PaymentHash string          `json:"payment_hash"`
	NumSatoshis decimal.Decimal `json:"num_satoshis"`
	Description string          `json:"description"`
	Expiry      string          `json:"expiry,omitempty"`
}

// SendResult is the outcome of a synchronous send. A non-empty PaymentError
// means the node could not complete the payment.
type SendResult struct {
	PaymentError    string `json:"payment_error"`
	PaymentPreimage string `json:"payment_preimage"`
	PaymentHash     string `json:"payment_hash"`
}

// AddInvoiceResult is returned when the node creates an invoice.
type AddInvoiceResult struct {
	RHash          string `json:"r_hash"`
	PaymentRequest string `json:"payment_request"`
	AddIndex       string `json:"add_index,omitempty"`
}

// ErrorResponse represents an error body from the REST gateway
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Error   string `json:"error"`
}
