package scheduler

import (
	"context"
	"fmt"
	"log"

	"shadowledger/internal/domain/notification"
	"shadowledger/internal/domain/reconciliation"
)

// Ticker runs one reconciliation pass.
type Ticker interface {
	Tick(ctx context.Context) (*reconciliation.TickResult, error)
}

// EventNotifier delivers the events a tick produced.
type EventNotifier interface {
	NotifyAll(ctx context.Context, events []notification.Event)
}

// ReconcileJob implements the Job interface for one reconciliation tick
type ReconcileJob struct {
	poller   Ticker
	notifier EventNotifier
}

// NewReconcileJob creates a new reconciliation job
func NewReconcileJob(poller Ticker, notifier EventNotifier) *ReconcileJob {
	return &ReconcileJob{poller: poller, notifier: notifier}
}

// ReconcileJobProvider returns a job provider yielding one ReconcileJob per call.
func ReconcileJobProvider(poller Ticker, notifier EventNotifier) func(context.Context) ([]Job, error) {
	return func(context.Context) ([]Job, error) {
		return []Job{NewReconcileJob(poller, notifier)}, nil
	}
}

// Execute runs the tick, then dispatches every event it produced. Events are
// dispatched even when some invoices failed.
func (j *ReconcileJob) Execute(ctx context.Context) error {
	result, err := j.poller.Tick(ctx)
	if err != nil {
		return fmt.Errorf("reconcile tick failed: %w", err)
	}

	if j.notifier != nil && len(result.Events) > 0 {
		j.notifier.NotifyAll(ctx, result.Events)
	}

	if len(result.Errors) > 0 {
		log.Printf("Reconcile tick completed with errors: Fetched=%d, Created=%d, Updated=%d, Skipped=%d, Errors=%d",
			result.Fetched, result.Created, result.Updated, result.Skipped, len(result.Errors))
		return fmt.Errorf("tick completed with %d errors", len(result.Errors))
	}

	log.Printf("Reconcile tick completed: Fetched=%d, Created=%d, Updated=%d, Skipped=%d, Events=%d",
		result.Fetched, result.Created, result.Updated, result.Skipped, len(result.Events))
	return nil
}

// Description returns a human-readable description of the job
func (j *ReconcileJob) Description() string {
	return "reconcile tick"
}
