package payment

import (
	"time"

	"github.com/shopspring/decimal"

	ierr "github.com/flexprice/payflow/internal/errors"
	"github.com/flexprice/payflow/internal/types"
)

// Payment represents a payment transaction. Amount and currency are
// immutable after creation; status moves only through repository mediated
// transitions and version strictly increases on every committed one.
type Payment struct {
	// Unique identifier for this payment transaction
	ID string `db:"id" json:"id"`
	// Unique key used in the idempotency_key field to prevent duplicate payment processing
	IdempotencyKey string `db:"idempotency_key" json:"idempotency_key"`
	// The amount field specifies the payment value in the given currency
	Amount decimal.Decimal `db:"amount" json:"amount"`
	// The currency field uses a three-letter ISO code (USD, EUR, GBP, etc.)
	Currency string `db:"currency" json:"currency"`
	// The payment_status shows the current state of this payment (pending, processing, succeeded, failed)
	PaymentStatus types.PaymentStatus `db:"payment_status" json:"payment_status"`
	// Version is the optimistic concurrency token, incremented on every committed transition
	Version int64 `db:"version" json:"version"`
	// AttemptCount is the number of gateway attempts made so far
	AttemptCount int `db:"attempt_count" json:"attempt_count"`
	// LastTransitionReason records why the payment last changed state
	LastTransitionReason types.TransitionReason `db:"last_transition_reason" json:"last_transition_reason"`
	// The error_message field provides details about why the payment failed (optional)
	ErrorMessage *string `db:"error_message" json:"error_message,omitempty"`
	// The succeeded_at timestamp shows when this payment was successfully completed (optional)
	SucceededAt *time.Time `db:"succeeded_at" json:"succeeded_at,omitempty"`
	// The failed_at timestamp indicates when this payment failed (optional)
	FailedAt *time.Time `db:"failed_at" json:"failed_at,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// New creates a pending payment with a fresh id and version 1
func New(idempotencyKey string, amount decimal.Decimal, currency string) *Payment {
	now := time.Now().UTC()
	return &Payment{
		ID:                   types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PAYMENT),
		IdempotencyKey:       idempotencyKey,
		Amount:               amount,
		Currency:             currency,
		PaymentStatus:        types.PaymentStatusPending,
		Version:              1,
		LastTransitionReason: types.TransitionReasonCreated,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

// Validate validates the payment
func (p *Payment) Validate() error {
	if p.Amount.IsZero() || p.Amount.IsNegative() {
		return ierr.NewError("invalid amount").
			WithHint("Amount must be greater than 0").
			Mark(ierr.ErrValidation)
	}
	if len(p.Currency) != 3 {
		return ierr.NewError("invalid currency").
			WithHint("Currency must be a three-letter ISO code").
			Mark(ierr.ErrValidation)
	}
	if err := p.PaymentStatus.Validate(); err != nil {
		return ierr.WithError(err).
			WithHint("Payment status is invalid").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// TableName returns the table name for the payment
func (p *Payment) TableName() string {
	return "payments"
}
