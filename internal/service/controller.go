package service

import (
	"context"

	"github.com/flexprice/payflow/internal/domain/payment"
	ierr "github.com/flexprice/payflow/internal/errors"
	"github.com/flexprice/payflow/internal/types"
)

// TransitionService serializes conflicting state transitions on a payment.
// The optimistic path delegates to the store's conditional update; the
// pessimistic path holds an exclusive row lock around a read-decide-write.
// All status mutation in the system goes through one of the two.
type TransitionService interface {
	// Transition attempts expected -> target via the optimistic path.
	// Returns the new version on success. Errors are marked:
	//   ErrStaleUpdate       another transition already advanced the row;
	//                        re-read and re-derive intent, never blind-retry
	//   ErrIllegalTransition the requested edge is not in the table
	Transition(ctx context.Context, id string, expected, target types.PaymentStatus, reason types.TransitionReason, errMsg *string) (int64, error)

	// WithLockedPayment runs fn while holding an exclusive lock on the
	// payment row, inside one transaction. fn must stay a single short
	// logical step; other transition attempts on the row block until the
	// transaction ends.
	WithLockedPayment(ctx context.Context, id string, fn func(ctx context.Context, current *payment.Payment) error) error
}

type transitionService struct {
	ServiceParams
}

// NewTransitionService creates a new transition service
func NewTransitionService(params ServiceParams) TransitionService {
	return &transitionService{ServiceParams: params}
}

func (s *transitionService) Transition(ctx context.Context, id string, expected, target types.PaymentStatus, reason types.TransitionReason, errMsg *string) (int64, error) {
	newVersion, err := s.PaymentRepo.TransitionStatus(ctx, id, expected, target, reason, errMsg)
	if err != nil {
		if ierr.IsStaleUpdate(err) {
			s.Logger.Debugw("lost transition race",
				"payment_id", id,
				"expected", expected,
				"target", target,
			)
		}
		return 0, err
	}
	return newVersion, nil
}

func (s *transitionService) WithLockedPayment(ctx context.Context, id string, fn func(ctx context.Context, current *payment.Payment) error) error {
	return s.DB.WithTx(ctx, func(ctx context.Context) error {
		current, err := s.PaymentRepo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		return fn(ctx, current)
	})
}
