package ledger

import (
	"context"

	"github.com/flexprice/payflow/internal/types"
)

// Repository defines the interface for idempotency ledger persistence.
// Insert races on the key's uniqueness constraint: exactly one concurrent
// caller wins, the rest observe an error marked ErrAlreadyExists and read
// the winner's record.
type Repository interface {
	Insert(ctx context.Context, record *Record) error
	Get(ctx context.Context, key string) (*Record, error)

	// Resolve moves the record from in-flight to the given resolved status
	// and stores the snapshot. Resolving an already-resolved record again is
	// a no-op, which keeps crash-retried resolutions harmless.
	Resolve(ctx context.Context, key string, status types.IdempotencyStatus, paymentID *string, snapshot []byte) error
}
