package payment

import (
	"context"
	"time"

	"github.com/flexprice/payflow/internal/types"
)

// Repository defines the interface for payment persistence. The store is
// the sole arbiter of transition races: TransitionStatus is a conditional
// update and GetForUpdate takes a row lock inside the ambient transaction.
type Repository interface {
	Create(ctx context.Context, payment *Payment) error
	Get(ctx context.Context, id string) (*Payment, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*Payment, error)

	// TransitionStatus atomically moves the payment from expected to target,
	// incrementing version and stamping reason. Returns the new version.
	// Zero rows affected surfaces as an error marked ErrStaleUpdate.
	TransitionStatus(ctx context.Context, id string, expected, target types.PaymentStatus, reason types.TransitionReason, errMsg *string) (int64, error)

	// GetForUpdate reads the payment under an exclusive row lock. Only valid
	// inside a transaction; the lock is held until commit or rollback.
	GetForUpdate(ctx context.Context, id string) (*Payment, error)

	// IncrementAttempts bumps the gateway attempt counter without touching
	// status, returning the new count.
	IncrementAttempts(ctx context.Context, id string) (int, error)

	// ListStuck returns up to limit payments sitting in the given status
	// whose updated_at is older than the cutoff, oldest first.
	ListStuck(ctx context.Context, status types.PaymentStatus, olderThan time.Time, limit int) ([]*Payment, error)
}
