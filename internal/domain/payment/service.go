// Package payment drives node-side sends and invoice creation on behalf of accounts.
package payment

import (
	"context"
	"fmt"
	"log"

	"github.com/shopspring/decimal"

	"shadowledger/internal/domain/account"
	"shadowledger/internal/domain/notification"
	"shadowledger/internal/domain/paymenthash"
	"shadowledger/internal/domain/transaction"
	"shadowledger/internal/infrastructure/lnd"
	"shadowledger/internal/shared/apperr"
)

const DefaultInvoiceExpiry int64 = 3600

// Domain errors
var (
	ErrZeroAmount    = fmt.Errorf("payment request must carry a positive amount: %w", apperr.ErrValidation)
	ErrInvalidAmount = fmt.Errorf("invoice amount must be a positive integer: %w", apperr.ErrValidation)
	ErrPaymentFailed = fmt.Errorf("payment failed: %w", apperr.ErrUpstreamUnavailable)
)

// Node is the subset of the node client used for payments.
type Node interface {
	DecodePaymentRequest(ctx context.Context, paymentRequest string) (*lnd.PayReq, error)
	SendPayment(ctx context.Context, paymentRequest string) (*lnd.SendResult, error)
	CreateInvoice(ctx context.Context, amount decimal.Decimal, memo string, expirySeconds int64) (*lnd.AddInvoiceResult, error)
}

// Notifier delivers ledger events.
type Notifier interface {
	Notify(ctx context.Context, e notification.Event)
}

// Service contains the business logic for outgoing payments and invoices
type Service struct {
	node          Node
	accounts      *account.Service
	txs           *transaction.Service
	notifier      Notifier
	defaultExpiry int64
}

// NewService creates a new payment service. notifier may be nil.
func NewService(node Node, accounts *account.Service, txs *transaction.Service, notifier Notifier, defaultExpiry int64) *Service {
	if defaultExpiry <= 0 {
		defaultExpiry = DefaultInvoiceExpiry
	}
	return &Service{
		node:          node,
		accounts:      accounts,
		txs:           txs,
		notifier:      notifier,
		defaultExpiry: defaultExpiry,
	}
}

// SendPaymentFromAccount pays paymentRequest out of the account's balance.
//
// The balance check and the PENDING OUTGOING insert happen in one store
// transaction before the node is contacted, so an insufficient balance never
// reaches the node. The send is attempted exactly once. On success the
// transaction becomes COMPLETE; on any node failure it becomes FAILED and the
// error is returned.
func (s *Service) SendPaymentFromAccount(ctx context.Context, accountID, paymentRequest string) (*transaction.Transaction, error) {
	if _, err := s.accounts.RequireAccount(ctx, accountID); err != nil {
		return nil, err
	}

	decoded, err := s.node.DecodePaymentRequest(ctx, paymentRequest)
	if err != nil {
		return nil, fmt.Errorf("failed to decode payment request: %w", err)
	}
	if !decoded.NumSatoshis.IsPositive() {
		return nil, ErrZeroAmount
	}

	params := transaction.RecordParams{
		AccountID:      accountID,
		Hash:           decoded.PaymentHash,
		Amount:         decoded.NumSatoshis,
		PaymentRequest: &paymentRequest,
	}
	if decoded.Description != "" {
		description := decoded.Description
		params.Memo = &description
	}

	pending, err := s.txs.ReserveOutgoing(ctx, params)
	if err != nil {
		return nil, err
	}

	result, sendErr := s.node.SendPayment(ctx, paymentRequest)
	if sendErr == nil && result.PaymentError != "" {
		sendErr = fmt.Errorf("%s: %w", result.PaymentError, ErrPaymentFailed)
	}

	// The outcome is recorded even when the caller has gone away.
	bookCtx := context.WithoutCancel(ctx)

	if sendErr != nil {
		return nil, s.markFailed(bookCtx, pending, sendErr)
	}

	completed, err := s.txs.UpdateStatus(bookCtx, pending.Hash, transaction.StatusComplete)
	if err != nil {
		log.Printf("Payment %s was sent but could not be marked COMPLETE: %v", pending.Hash, err)
		return nil, fmt.Errorf("payment sent but ledger update failed: %w", err)
	}

	log.Printf("Payment %s of %s from account %s completed", completed.Hash, completed.Amount, accountID)
	s.notify(bookCtx, notification.TransactionEvent(notification.EventPaymentCompleted, completed))
	return completed, nil
}

func (s *Service) markFailed(ctx context.Context, pending *transaction.Transaction, cause error) error {
	log.Printf("Payment %s from account %s failed: %v", pending.Hash, pending.AccountID, cause)

	failed, err := s.txs.UpdateStatus(ctx, pending.Hash, transaction.StatusFailed)
	if err != nil {
		log.Printf("Payment %s could not be marked FAILED: %v", pending.Hash, err)
		failed = pending
	}

	event := notification.TransactionEvent(notification.EventPaymentFailed, failed)
	event.Payload.Error = cause.Error()
	s.notify(ctx, event)

	return fmt.Errorf("failed to send payment: %w", cause)
}

// CreateInvoice asks the node for an invoice and records it as a PENDING
// INCOMING transaction of the account. expirySeconds <= 0 uses the default.
func (s *Service) CreateInvoice(ctx context.Context, accountID string, amount decimal.Decimal, memo string, expirySeconds int64) (*transaction.Transaction, error) {
	if _, err := s.accounts.RequireAccount(ctx, accountID); err != nil {
		return nil, err
	}
	if !amount.IsPositive() || !transaction.IsValidAmount(amount) {
		return nil, ErrInvalidAmount
	}
	if expirySeconds <= 0 {
		expirySeconds = s.defaultExpiry
	}

	created, err := s.node.CreateInvoice(ctx, amount, memo, expirySeconds)
	if err != nil {
		return nil, fmt.Errorf("failed to create invoice: %w", err)
	}

	params := transaction.RecordParams{
		AccountID:      accountID,
		Hash:           paymenthash.FromString(created.RHash),
		Amount:         amount,
		Direction:      transaction.DirectionIncoming,
		Status:         transaction.StatusPending,
		PaymentRequest: &created.PaymentRequest,
	}
	if memo != "" {
		params.Memo = &memo
	}

	tx, err := s.txs.Record(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("invoice created on node but not recorded: %w", err)
	}

	s.notify(ctx, notification.TransactionEvent(notification.EventInvoiceCreated, tx))
	return tx, nil
}

func (s *Service) notify(ctx context.Context, e notification.Event) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, e)
}
