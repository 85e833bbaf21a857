// Package apperr defines the error taxonomy shared by every domain package.
// Domain sentinels wrap one of these so callers can classify with errors.Is.
package apperr

import (
	"errors"
	"net/http"
)

var (
	// ErrNotFound is returned when a referenced account, transaction or webhook is absent.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a unique key (account name, payment hash) already exists.
	ErrConflict = errors.New("conflict")

	// ErrValidation is returned for malformed input or a rejected business rule
	// such as an insufficient balance.
	ErrValidation = errors.New("validation failed")

	// ErrUpstreamUnavailable is returned when the Lightning node is unreachable
	// or answers with a non-2xx status.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrInvariant marks a broken ledger invariant, e.g. a transition out of a
	// terminal transaction state. It must never be swallowed silently.
	ErrInvariant = errors.New("ledger invariant violated")
)

// HTTPStatus maps an error to the response status used by the HTTP layer.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrUpstreamUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// IsInvariant reports whether err is an invariant violation.
func IsInvariant(err error) bool {
	return errors.Is(err, ErrInvariant)
}
