package postgres

import (
	"github.com/cockroachdb/errors"
	"github.com/lib/pq"
)

// uniqueViolation is the postgres error code raised when an insert breaks a
// uniqueness constraint. The idempotency ledger relies on it for race-free
// first-writer-wins creation.
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == uniqueViolation
	}
	return false
}
