package service

import (
	"context"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/flexprice/payflow/internal/domain/payment"
	ierr "github.com/flexprice/payflow/internal/errors"
	"github.com/flexprice/payflow/internal/jobs"
	"github.com/flexprice/payflow/internal/types"
)

// sweepConcurrency bounds how many stuck payments one cycle repairs in
// parallel.
const sweepConcurrency = 8

// SweeperService is the reconciliation pass: it finds payments abandoned in
// transient states past the staleness threshold and drives them to the
// terminal state the gateway reports, through the same transition path
// normal processing uses. It never invents an outcome: if the gateway is
// unreachable the payment is left for the next sweep.
type SweeperService interface {
	// Start runs sweeps on the configured interval until ctx is cancelled
	Start(ctx context.Context)
	// Sweep runs one reconciliation cycle
	Sweep(ctx context.Context) error
}

type sweeperService struct {
	ServiceParams
	transitions TransitionService
}

// NewSweeperService creates a new reconciliation sweeper
func NewSweeperService(params ServiceParams, transitions TransitionService) SweeperService {
	return &sweeperService{
		ServiceParams: params,
		transitions:   transitions,
	}
}

func (s *sweeperService) Start(ctx context.Context) {
	ticker := time.NewTicker(s.Config.Payment.SweepInterval)
	defer ticker.Stop()

	s.Logger.Infow("reconciliation sweeper started",
		"interval", s.Config.Payment.SweepInterval,
		"stale_after", s.Config.Payment.StaleAfter,
	)

	for {
		select {
		case <-ctx.Done():
			s.Logger.Infow("reconciliation sweeper stopped")
			return
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				s.Logger.Errorw("reconciliation sweep failed", "error", err)
			}
		}
	}
}

func (s *sweeperService) Sweep(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-s.Config.Payment.StaleAfter)

	if err := s.repairProcessing(ctx, cutoff); err != nil {
		return err
	}
	return s.requeuePending(ctx, cutoff)
}

// repairProcessing handles workers that claimed PROCESSING and never
// finished the transition.
func (s *sweeperService) repairProcessing(ctx context.Context, cutoff time.Time) error {
	stuck, err := s.PaymentRepo.ListStuck(ctx, types.PaymentStatusProcessing, cutoff, s.Config.Payment.SweepBatch)
	if err != nil {
		return err
	}
	if len(stuck) == 0 {
		return nil
	}

	s.Logger.Infow("reconciling stuck payments", "count", len(stuck))

	workers := pool.New().WithMaxGoroutines(sweepConcurrency)
	for _, p := range stuck {
		p := p // per-iteration copy: required for correct capture under go < 1.22
		workers.Go(func() {
			if err := s.reconcile(ctx, p); err != nil {
				s.Logger.Errorw("failed to reconcile payment",
					"payment_id", p.ID,
					"error", err,
				)
			}
		})
	}
	workers.Wait()
	return nil
}

// requeuePending re-submits processing jobs for payments that were admitted
// but whose enqueue was lost before the worker ever claimed them.
func (s *sweeperService) requeuePending(ctx context.Context, cutoff time.Time) error {
	stale, err := s.PaymentRepo.ListStuck(ctx, types.PaymentStatusPending, cutoff, s.Config.Payment.SweepBatch)
	if err != nil {
		return err
	}
	for _, p := range stale {
		if err := jobs.Enqueue(ctx, s.JobPublisher, p.ID); err != nil {
			s.Logger.Errorw("failed to re-enqueue pending payment",
				"payment_id", p.ID,
				"error", err,
			)
			continue
		}
		s.Logger.Infow("re-enqueued stale pending payment", "payment_id", p.ID)
	}
	return nil
}

func (s *sweeperService) reconcile(ctx context.Context, p *payment.Payment) error {
	result, err := s.Gateway.Lookup(ctx, p.ID)
	if err != nil {
		// Gateway unreachable: leave the record untouched for the next sweep.
		s.Logger.Warnw("gateway unreachable during reconciliation, skipping",
			"payment_id", p.ID,
			"error", err,
		)
		return nil
	}

	switch result.Outcome {
	case payment.ChargeOutcomeSuccess:
		return s.applyReconciled(ctx, p.ID, types.PaymentStatusSucceeded, nil)

	case payment.ChargeOutcomeFatal:
		return s.applyReconciled(ctx, p.ID, types.PaymentStatusFailed, result.ErrorMessage)

	case payment.ChargeOutcomeRetryable:
		// No settled record on the gateway side: hand the payment back to
		// the orchestrator for another attempt.
		return jobs.Enqueue(ctx, s.JobPublisher, p.ID)

	default:
		return ierr.NewError("unknown gateway outcome").
			WithHintf("Gateway returned unrecognized outcome %s", result.Outcome).
			Mark(ierr.ErrSystem)
	}
}

func (s *sweeperService) applyReconciled(ctx context.Context, id string, target types.PaymentStatus, errMsg *string) error {
	_, err := s.transitions.Transition(ctx, id,
		types.PaymentStatusProcessing, target,
		types.TransitionReasonReconciled, errMsg)
	if err != nil {
		if ierr.IsStaleUpdate(err) {
			// A worker finished it between the scan and now.
			return nil
		}
		return err
	}
	s.Logger.Infow("reconciled stuck payment",
		"payment_id", id,
		"status", target,
	)
	return nil
}
