package types

import (
	"fmt"

	"github.com/samber/lo"
)

// PaymentStatus represents the status of a payment
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "PENDING"
	PaymentStatusProcessing PaymentStatus = "PROCESSING"
	PaymentStatusSucceeded  PaymentStatus = "SUCCEEDED"
	PaymentStatusFailed     PaymentStatus = "FAILED"
)

func (s PaymentStatus) String() string {
	return string(s)
}

func (s PaymentStatus) Validate() error {
	allowed := []PaymentStatus{
		PaymentStatusPending,
		PaymentStatusProcessing,
		PaymentStatusSucceeded,
		PaymentStatusFailed,
	}
	if !lo.Contains(allowed, s) {
		return fmt.Errorf("invalid payment status: %s", s)
	}
	return nil
}

// IsTerminal reports whether the status is a terminal state. Terminal
// payments are never mutated again, only read for audit and replay.
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusSucceeded || s == PaymentStatusFailed
}

// TransitionReason records why a payment changed state. Stored on the
// payment row for diagnostics and audit.
type TransitionReason string

const (
	TransitionReasonCreated          TransitionReason = "created"
	TransitionReasonClaimed          TransitionReason = "claimed_for_processing"
	TransitionReasonGatewaySuccess   TransitionReason = "gateway_success"
	TransitionReasonGatewayDeclined  TransitionReason = "gateway_declined"
	TransitionReasonValidationFailed TransitionReason = "validation_failed"
	TransitionReasonRetriesExhausted TransitionReason = "retries_exhausted"
	TransitionReasonReconciled       TransitionReason = "reconciled"
)

func (r TransitionReason) String() string {
	return string(r)
}

// IdempotencyStatus represents the resolution status of an idempotency record
type IdempotencyStatus string

const (
	IdempotencyStatusInFlight  IdempotencyStatus = "IN_FLIGHT"
	IdempotencyStatusCompleted IdempotencyStatus = "COMPLETED"
	IdempotencyStatusFailed    IdempotencyStatus = "FAILED"
)

func (s IdempotencyStatus) String() string {
	return string(s)
}

func (s IdempotencyStatus) Validate() error {
	allowed := []IdempotencyStatus{
		IdempotencyStatusInFlight,
		IdempotencyStatusCompleted,
		IdempotencyStatusFailed,
	}
	if !lo.Contains(allowed, s) {
		return fmt.Errorf("invalid idempotency status: %s", s)
	}
	return nil
}

// IsResolved reports whether the record carries a cached outcome that can
// be replayed verbatim.
func (s IdempotencyStatus) IsResolved() bool {
	return s == IdempotencyStatusCompleted || s == IdempotencyStatusFailed
}
