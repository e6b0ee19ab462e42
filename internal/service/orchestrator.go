package service

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/samber/lo"

	"github.com/flexprice/payflow/internal/domain/payment"
	ierr "github.com/flexprice/payflow/internal/errors"
	"github.com/flexprice/payflow/internal/types"
)

// OrchestratorService drives a payment from pending to a terminal state.
// ProcessPayment is the at-least-once processing unit: invoking it again
// for an already-terminal payment is a no-op and losing the claim race
// returns without side effects, so duplicate job deliveries are harmless.
type OrchestratorService interface {
	ProcessPayment(ctx context.Context, id string) error
}

type orchestratorService struct {
	ServiceParams
	transitions TransitionService
}

// NewOrchestratorService creates a new retry orchestrator
func NewOrchestratorService(params ServiceParams, transitions TransitionService) OrchestratorService {
	return &orchestratorService{
		ServiceParams: params,
		transitions:   transitions,
	}
}

func (s *orchestratorService) ProcessPayment(ctx context.Context, id string) error {
	p, err := s.PaymentRepo.Get(ctx, id)
	if err != nil {
		return err
	}

	// Re-entrancy guarantee: a terminal payment is done, whoever asks.
	if p.PaymentStatus.IsTerminal() {
		s.Logger.Debugw("payment already terminal, nothing to do",
			"payment_id", id,
			"status", p.PaymentStatus,
		)
		return nil
	}

	if p.PaymentStatus == types.PaymentStatusPending {
		if _, err := s.transitions.Transition(ctx, id,
			types.PaymentStatusPending, types.PaymentStatusProcessing,
			types.TransitionReasonClaimed, nil); err != nil {
			if ierr.IsStaleUpdate(err) {
				// Another worker owns the claim or already finished.
				return nil
			}
			return err
		}
	}
	// A payment found at PROCESSING here means a prior attempt crashed after
	// claiming; re-claiming is legal and expected, the gateway dedupes on
	// payment id.

	return s.chargeWithRetries(ctx, p)
}

// chargeWithRetries invokes the gateway once per attempt, backing off
// exponentially on retryable failures until the attempt budget is spent.
func (s *orchestratorService) chargeWithRetries(ctx context.Context, p *payment.Payment) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.Config.Payment.BackoffInitial
	bo.MaxInterval = s.Config.Payment.BackoffMax
	bo.MaxElapsedTime = 0 // bounded by attempt count, not wall clock
	bo.Reset()

	for {
		attempt, err := s.PaymentRepo.IncrementAttempts(ctx, p.ID)
		if err != nil {
			return err
		}

		result, chargeErr := s.Gateway.Charge(ctx, p.ID, p.Amount, p.Currency)
		if chargeErr != nil {
			// Transport-level failure, classified as retryable.
			s.Logger.Warnw("gateway unreachable",
				"payment_id", p.ID,
				"attempt", attempt,
				"error", chargeErr,
			)
			result = &payment.ChargeResult{
				Outcome:      payment.ChargeOutcomeRetryable,
				ErrorMessage: lo.ToPtr(chargeErr.Error()),
			}
		}

		switch result.Outcome {
		case payment.ChargeOutcomeSuccess:
			return s.applyTerminal(ctx, p.ID, types.PaymentStatusSucceeded,
				types.TransitionReasonGatewaySuccess, nil)

		case payment.ChargeOutcomeFatal:
			return s.applyTerminal(ctx, p.ID, types.PaymentStatusFailed,
				types.TransitionReasonGatewayDeclined, result.ErrorMessage)

		case payment.ChargeOutcomeRetryable:
			if attempt >= s.Config.Payment.MaxAttempts {
				return s.failExhausted(ctx, p.ID)
			}
			wait := bo.NextBackOff()
			s.Logger.Infow("retrying payment after backoff",
				"payment_id", p.ID,
				"attempt", attempt,
				"backoff", wait,
			)
			select {
			case <-ctx.Done():
				// The claim stays at PROCESSING; the sweeper picks it up.
				return ctx.Err()
			case <-time.After(wait):
			}

		default:
			return ierr.NewError("unknown gateway outcome").
				WithHintf("Gateway returned unrecognized outcome %s", result.Outcome).
				Mark(ierr.ErrSystem)
		}
	}
}

// applyTerminal commits the final transition. Losing the race here means a
// reconciliation sweep or another worker already finished the payment; the
// outcome is identical, so the loss is absorbed.
func (s *orchestratorService) applyTerminal(ctx context.Context, id string, target types.PaymentStatus, reason types.TransitionReason, errMsg *string) error {
	_, err := s.transitions.Transition(ctx, id,
		types.PaymentStatusProcessing, target, reason, errMsg)
	if err != nil {
		if ierr.IsStaleUpdate(err) {
			s.Logger.Infow("payment finished by a concurrent worker",
				"payment_id", id,
				"target", target,
			)
			return nil
		}
		return err
	}

	s.Logger.Infow("payment reached terminal state",
		"payment_id", id,
		"status", target,
		"reason", reason,
	)
	return nil
}

// failExhausted force-fails a payment whose retry budget ran out. The
// attempt check and the transition must agree, so this is the pessimistic
// path: the row stays locked from read to write.
func (s *orchestratorService) failExhausted(ctx context.Context, id string) error {
	return s.transitions.WithLockedPayment(ctx, id, func(ctx context.Context, current *payment.Payment) error {
		if current.PaymentStatus != types.PaymentStatusProcessing {
			// Already advanced elsewhere, nothing to force.
			return nil
		}
		if current.AttemptCount < s.Config.Payment.MaxAttempts {
			// A reconciliation reset or manual intervention refilled the
			// budget; leave it for the next delivery.
			return nil
		}
		_, err := s.PaymentRepo.TransitionStatus(ctx, id,
			types.PaymentStatusProcessing, types.PaymentStatusFailed,
			types.TransitionReasonRetriesExhausted,
			lo.ToPtr("retry attempts exhausted"))
		if err != nil && ierr.IsStaleUpdate(err) {
			return nil
		}
		return err
	})
}
