package lnd

import (
	"context"

	"github.com/shopspring/decimal"
)

// ClientInterface defines the node operations the ledger depends on
type ClientInterface interface {
	GetInfo(ctx context.Context) (*Info, error)
	ListInvoices(ctx context.Context, maxCount int) ([]Invoice, error)
	DecodePaymentRequest(ctx context.Context, paymentRequest string) (*PayReq, error)
	SendPayment(ctx context.Context, paymentRequest string) (*SendResult, error)
	CreateInvoice(ctx context.Context, amount decimal.Decimal, memo string, expirySeconds int64) (*AddInvoiceResult, error)
}
