package payment

import (
	ierr "github.com/flexprice/payflow/internal/errors"
	"github.com/flexprice/payflow/internal/types"
)

// legalTransitions is the full transition table. pending -> failed exists
// only for pre-processing validation rejection; terminal states have no
// outgoing edges.
var legalTransitions = map[types.PaymentStatus][]types.PaymentStatus{
	types.PaymentStatusPending: {
		types.PaymentStatusProcessing,
		types.PaymentStatusFailed,
	},
	types.PaymentStatusProcessing: {
		types.PaymentStatusSucceeded,
		types.PaymentStatusFailed,
	},
	types.PaymentStatusSucceeded: {},
	types.PaymentStatusFailed:    {},
}

// CanTransition reports whether current -> target is a legal edge. Pure
// decision logic, no storage and no I/O: the repository checks the decision
// atomically against the persisted row before committing.
func CanTransition(current, target types.PaymentStatus) bool {
	for _, allowed := range legalTransitions[current] {
		if allowed == target {
			return true
		}
	}
	return false
}

// ValidateTransition returns an illegal transition error carrying the
// current state and the rejected target when the edge is not legal.
func ValidateTransition(current, target types.PaymentStatus) error {
	if CanTransition(current, target) {
		return nil
	}
	return ierr.NewError("illegal payment state transition").
		WithHintf("Cannot transition payment from %s to %s", current, target).
		WithReportableDetails(map[string]any{
			"current_state": current.String(),
			"target_state":  target.String(),
		}).
		Mark(ierr.ErrIllegalTransition)
}
