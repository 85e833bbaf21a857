package scheduler

import "context"

// Job represents a unit of work that can be executed by the worker pool.
type Job interface {
	// Execute runs the job. Context should be respected for cancellation and timeouts.
	Execute(ctx context.Context) error

	// Description returns a human-readable description of the job for logs and spans.
	Description() string
}
