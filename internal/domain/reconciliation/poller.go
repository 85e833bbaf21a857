// Package reconciliation attributes node invoices to ledger accounts.
package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"shadowledger/internal/domain/notification"
	"shadowledger/internal/domain/paymenthash"
	"shadowledger/internal/domain/transaction"
	"shadowledger/internal/infrastructure/lnd"
	"shadowledger/internal/shared/apperr"
)

const DefaultInvoiceLimit = 100

var (
	reconcileTracer        = otel.Tracer("shadowledger/reconciliation")
	reconcileMeter         = otel.Meter("shadowledger/reconciliation")
	invoicesProcessed, _   = reconcileMeter.Int64Counter("reconcile.invoices", metric.WithDescription("Invoices processed per outcome"))
	invariantViolations, _ = reconcileMeter.Int64Counter("ledger.invariant_violations", metric.WithDescription("Attempted transitions out of a terminal transaction state"))
)

// InvoiceSource lists the node's invoices, most recent first.
type InvoiceSource interface {
	ListInvoices(ctx context.Context, maxCount int) ([]lnd.Invoice, error)
}

// AccountResolver maps an invoice memo to an account ID.
type AccountResolver interface {
	Resolve(ctx context.Context, memo string) (string, bool)
}

// TickResult contains the results of one reconciliation pass
type TickResult struct {
	Fetched int
	Created int
	Updated int
	Skipped int
	Errors  []string
	Events  []notification.Event
}

// Poller diffs the node's invoice set against the ledger.
type Poller struct {
	source   InvoiceSource
	txs      *transaction.Service
	resolver AccountResolver
	limit    int
}

// NewPoller creates a poller fetching at most limit invoices per tick.
func NewPoller(source InvoiceSource, txs *transaction.Service, resolver AccountResolver, limit int) *Poller {
	if limit <= 0 {
		limit = DefaultInvoiceLimit
	}
	return &Poller{source: source, txs: txs, resolver: resolver, limit: limit}
}

// Tick runs one reconciliation pass. A failed fetch aborts the pass and is
// returned; failures on single invoices are recorded in the result and the
// pass continues. The returned events are not delivered by Tick.
func (p *Poller) Tick(ctx context.Context) (*TickResult, error) {
	ctx, span := reconcileTracer.Start(ctx, "reconcile.tick",
		trace.WithAttributes(attribute.Int("invoice.limit", p.limit)),
	)
	defer span.End()

	result := &TickResult{Errors: []string{}}

	invoices, err := p.source.ListInvoices(ctx, p.limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return result, fmt.Errorf("failed to fetch invoices: %w", err)
	}
	result.Fetched = len(invoices)

	for _, inv := range invoices {
		if err := p.reconcileInvoice(ctx, inv, result); err != nil {
			errMsg := fmt.Sprintf("invoice %s: %v", inv.RHash, err)
			result.Errors = append(result.Errors, errMsg)
			invoicesProcessed.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "error")))

			if apperr.IsInvariant(err) {
				invariantViolations.Add(ctx, 1)
				log.Printf("INVARIANT VIOLATION: reconcile %s", errMsg)
			} else {
				log.Printf("Reconcile: %s", errMsg)
			}
		}
	}

	span.SetAttributes(
		attribute.Int("invoices.fetched", result.Fetched),
		attribute.Int("invoices.created", result.Created),
		attribute.Int("invoices.updated", result.Updated),
		attribute.Int("invoices.errors", len(result.Errors)),
	)

	return result, nil
}

func (p *Poller) reconcileInvoice(ctx context.Context, inv lnd.Invoice, result *TickResult) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while processing invoice: %v", r)
		}
	}()

	hash := paymenthash.FromString(inv.RHash)
	if hash == "" {
		return fmt.Errorf("invoice has no payment hash")
	}

	existing, err := p.txs.GetByHash(ctx, hash)
	if err != nil {
		return fmt.Errorf("failed to look up transaction: %w", err)
	}

	if existing != nil {
		return p.updateExisting(ctx, existing, MapInvoiceState(inv), result)
	}
	return p.createUntracked(ctx, hash, inv, result)
}

func (p *Poller) updateExisting(ctx context.Context, existing *transaction.Transaction, want transaction.Status, result *TickResult) error {
	if existing.Status == want {
		result.Skipped++
		invoicesProcessed.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "unchanged")))
		return nil
	}

	updated, err := p.txs.UpdateStatus(ctx, existing.Hash, want)
	if err != nil {
		return fmt.Errorf("failed to move %s to %s: %w", existing.Status, want, err)
	}

	result.Updated++
	invoicesProcessed.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "updated")))
	log.Printf("Reconcile: transaction %s %s -> %s", updated.Hash, existing.Status, updated.Status)

	event := notification.TransactionEvent(notification.EventInvoiceUpdated, updated)
	event.Payload.PreviousStatus = existing.Status
	result.Events = append(result.Events, event)
	return nil
}

func (p *Poller) createUntracked(ctx context.Context, hash string, inv lnd.Invoice, result *TickResult) error {
	memo := strings.TrimSpace(inv.Memo)
	if memo == "" {
		result.Skipped++
		invoicesProcessed.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "skipped")))
		return nil
	}

	accountID, ok := p.resolver.Resolve(ctx, memo)
	if !ok {
		result.Skipped++
		invoicesProcessed.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "skipped")))
		return nil
	}

	status := transaction.StatusPending
	if inv.Settled {
		status = transaction.StatusComplete
	}

	amount := inv.Value
	if amount.IsZero() && inv.AmtPaidSat.IsPositive() {
		amount = inv.AmtPaidSat
	}

	params := transaction.RecordParams{
		AccountID: accountID,
		Hash:      hash,
		Amount:    amount,
		Direction: transaction.DirectionIncoming,
		Status:    status,
		Memo:      &memo,
	}
	if inv.PaymentRequest != "" {
		pr := inv.PaymentRequest
		params.PaymentRequest = &pr
	}

	tx, err := p.txs.Record(ctx, params)
	if err != nil {
		if errors.Is(err, transaction.ErrDuplicateHash) {
			// An overlapping tick recorded it first.
			result.Skipped++
			invoicesProcessed.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "skipped")))
			return nil
		}
		return fmt.Errorf("failed to record transaction: %w", err)
	}

	result.Created++
	invoicesProcessed.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "created")))
	log.Printf("Reconcile: recorded %s %s for account %s (%s)", tx.Amount, tx.Hash, tx.AccountID, tx.Status)

	result.Events = append(result.Events, notification.TransactionEvent(notification.EventInvoiceCreated, tx))
	return nil
}

// MapInvoiceState returns the ledger status implied by the node's invoice state.
func MapInvoiceState(inv lnd.Invoice) transaction.Status {
	switch {
	case inv.State == lnd.InvoiceSettled || inv.Settled:
		return transaction.StatusComplete
	case inv.State == lnd.InvoiceCanceled:
		return transaction.StatusFailed
	default:
		return transaction.StatusPending
	}
}
