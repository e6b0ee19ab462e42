package dto

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/flexprice/payflow/internal/domain/payment"
	ierr "github.com/flexprice/payflow/internal/errors"
	"github.com/flexprice/payflow/internal/types"
)

// CreatePaymentRequest represents a request to create a payment. The
// idempotency key arrives in the Idempotency-Key header and is stamped onto
// the request by the handler, it is never part of the fingerprinted body.
type CreatePaymentRequest struct {
	IdempotencyKey string          `json:"-"`
	Amount         decimal.Decimal `json:"amount" binding:"required"`
	Currency       string          `json:"currency" binding:"required"`
}

// Validate validates the create payment request
func (r *CreatePaymentRequest) Validate() error {
	if r.IdempotencyKey == "" {
		return ierr.NewError("missing idempotency key").
			WithHint("Idempotency-Key header is required").
			Mark(ierr.ErrValidation)
	}
	if r.Amount.IsZero() || r.Amount.IsNegative() {
		return ierr.NewError("invalid amount").
			WithHint("Amount must be greater than 0").
			Mark(ierr.ErrValidation)
	}
	if len(r.Currency) != 3 {
		return ierr.NewError("invalid currency").
			WithHint("Currency must be a three-letter ISO code").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// FingerprintParams returns the normalized parameters the request
// fingerprint is derived from. Amount is rendered at the storage scale so
// "100.5" and "100.50" hash identically, and currency is upper-cased.
func (r *CreatePaymentRequest) FingerprintParams() map[string]interface{} {
	return map[string]interface{}{
		"amount":   r.Amount.StringFixed(8),
		"currency": strings.ToUpper(r.Currency),
	}
}

// ToPayment converts the request into a pending domain payment
func (r *CreatePaymentRequest) ToPayment() *payment.Payment {
	return payment.New(r.IdempotencyKey, r.Amount, strings.ToUpper(r.Currency))
}

// PaymentResponse represents a payment response
type PaymentResponse struct {
	ID                   string                 `json:"id"`
	IdempotencyKey       string                 `json:"idempotency_key"`
	Amount               decimal.Decimal        `json:"amount"`
	Currency             string                 `json:"currency"`
	PaymentStatus        types.PaymentStatus    `json:"payment_status"`
	Version              int64                  `json:"version"`
	AttemptCount         int                    `json:"attempt_count"`
	LastTransitionReason types.TransitionReason `json:"last_transition_reason"`
	ErrorMessage         *string                `json:"error_message,omitempty"`
	SucceededAt          *time.Time             `json:"succeeded_at,omitempty"`
	FailedAt             *time.Time             `json:"failed_at,omitempty"`
	CreatedAt            time.Time              `json:"created_at"`
	UpdatedAt            time.Time              `json:"updated_at"`
}

// NewPaymentResponse creates a new payment response from a payment
func NewPaymentResponse(p *payment.Payment) *PaymentResponse {
	return &PaymentResponse{
		ID:                   p.ID,
		IdempotencyKey:       p.IdempotencyKey,
		Amount:               p.Amount,
		Currency:             p.Currency,
		PaymentStatus:        p.PaymentStatus,
		Version:              p.Version,
		AttemptCount:         p.AttemptCount,
		LastTransitionReason: p.LastTransitionReason,
		ErrorMessage:         p.ErrorMessage,
		SucceededAt:          p.SucceededAt,
		FailedAt:             p.FailedAt,
		CreatedAt:            p.CreatedAt,
		UpdatedAt:            p.UpdatedAt,
	}
}

// ProcessingResponse is returned when the original request for an
// idempotency key is still in flight after the bounded wait
type ProcessingResponse struct {
	Status string `json:"status"`
}

// NewProcessingResponse creates a processing response
func NewProcessingResponse() *ProcessingResponse {
	return &ProcessingResponse{Status: "processing"}
}
