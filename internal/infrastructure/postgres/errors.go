package postgres

import (
	"errors"

	"github.com/lib/pq"
)

// PostgreSQL SQLSTATE codes the repositories translate into domain errors.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
)

func pqCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

func isUniqueViolation(err error) bool     { return pqCode(err) == codeUniqueViolation }
func isForeignKeyViolation(err error) bool { return pqCode(err) == codeForeignKeyViolation }
func isCheckViolation(err error) bool      { return pqCode(err) == codeCheckViolation }

const codeInvalidTextRepresentation = "22P02"

// isInvalidText reports a malformed literal such as a non-UUID id; lookups
// treat it as "no such row".
func isInvalidText(err error) bool { return pqCode(err) == codeInvalidTextRepresentation }
