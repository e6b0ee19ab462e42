package ledger

import (
	"time"

	ierr "github.com/flexprice/payflow/internal/errors"
	"github.com/flexprice/payflow/internal/types"
)

// Record is one idempotency ledger entry: the durable mapping from a client
// supplied key to the recorded outcome of the request it named. A key maps
// to exactly one fingerprint for its whole life; records are created in
// flight before any side effect and become read-only once resolved.
type Record struct {
	// Key is the client-supplied idempotency key, unique
	Key string `db:"key" json:"key"`
	// Fingerprint is the hash of the normalized request parameters
	Fingerprint string `db:"fingerprint" json:"fingerprint"`
	// PaymentID links to the payment created for this request, nil until resolved
	PaymentID *string `db:"payment_id" json:"payment_id,omitempty"`
	// ResponseSnapshot is the cached response body replayed verbatim on duplicates
	ResponseSnapshot []byte `db:"response_snapshot" json:"response_snapshot,omitempty"`
	// Status is the resolution status of the record
	Status types.IdempotencyStatus `db:"status" json:"status"`

	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	ResolvedAt *time.Time `db:"resolved_at" json:"resolved_at,omitempty"`
}

// New creates an in-flight record for a first-seen key
func New(key, fingerprint string) *Record {
	return &Record{
		Key:         key,
		Fingerprint: fingerprint,
		Status:      types.IdempotencyStatusInFlight,
		CreatedAt:   time.Now().UTC(),
	}
}

// Validate validates the record
func (r *Record) Validate() error {
	if r.Key == "" {
		return ierr.NewError("idempotency key cannot be empty").
			WithHint("Idempotency key is required").
			Mark(ierr.ErrValidation)
	}
	if r.Fingerprint == "" {
		return ierr.NewError("fingerprint cannot be empty").
			WithHint("Request fingerprint is required").
			Mark(ierr.ErrValidation)
	}
	return r.Status.Validate()
}

// TableName returns the table name for the idempotency record
func (r *Record) TableName() string {
	return "idempotency_keys"
}
