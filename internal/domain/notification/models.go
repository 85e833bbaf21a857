package notification

import (
	"time"

	"github.com/shopspring/decimal"

	"shadowledger/internal/domain/transaction"
)

// EventType names a ledger transition delivered to webhook subscribers.
type EventType string

const (
	EventInvoiceCreated   EventType = "invoice.created"
	EventInvoiceUpdated   EventType = "invoice.updated"
	EventPaymentCompleted EventType = "payment.completed"
	EventPaymentFailed    EventType = "payment.failed"
)

// Payload is the "data" member of a delivered envelope.
type Payload struct {
	AccountID      string                `json:"accountId"`
	TransactionID  string                `json:"transactionId,omitempty"`
	Hash           string                `json:"hash,omitempty"`
	Amount         *decimal.Decimal      `json:"amount,omitempty"`
	Direction      transaction.Direction `json:"direction,omitempty"`
	Status         transaction.Status    `json:"status,omitempty"`
	PreviousStatus transaction.Status    `json:"previousStatus,omitempty"`
	Memo           *string               `json:"memo,omitempty"`
	PaymentRequest *string               `json:"paymentRequest,omitempty"`
	Error          string                `json:"error,omitempty"`
}

// Event is one ledger transition to be delivered.
type Event struct {
	Type    EventType
	Payload Payload
}

// Envelope is the JSON body POSTed to every webhook.
type Envelope struct {
	Event     EventType `json:"event"`
	Data      Payload   `json:"data"`
	Timestamp string    `json:"timestamp"`
}

// NewEnvelope wraps an event for delivery at time at.
func NewEnvelope(e Event, at time.Time) Envelope {
	return Envelope{
		Event:     e.Type,
		Data:      e.Payload,
		Timestamp: at.UTC().Format(time.RFC3339Nano),
	}
}

// TransactionEvent builds an event describing tx.
func TransactionEvent(t EventType, tx *transaction.Transaction) Event {
	amount := tx.Amount
	return Event{
		Type: t,
		Payload: Payload{
			AccountID:      tx.AccountID,
			TransactionID:  tx.ID,
			Hash:           tx.Hash,
			Amount:         &amount,
			Direction:      tx.Direction,
			Status:         tx.Status,
			Memo:           tx.Memo,
			PaymentRequest: tx.PaymentRequest,
		},
	}
}
