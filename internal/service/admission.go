package service

import (
	"context"
	"encoding/json"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/samber/lo"

	"github.com/flexprice/payflow/internal/api/dto"
	"github.com/flexprice/payflow/internal/domain/ledger"
	"github.com/flexprice/payflow/internal/domain/payment"
	ierr "github.com/flexprice/payflow/internal/errors"
	"github.com/flexprice/payflow/internal/idempotency"
	"github.com/flexprice/payflow/internal/jobs"
	"github.com/flexprice/payflow/internal/types"
)

// AdmissionOutcome tells the transport layer how the request was admitted
type AdmissionOutcome string

const (
	// AdmissionOutcomeNew means this request won the key and created the payment
	AdmissionOutcomeNew AdmissionOutcome = "NEW"
	// AdmissionOutcomeReplay means a cached outcome was returned verbatim
	AdmissionOutcomeReplay AdmissionOutcome = "REPLAY"
	// AdmissionOutcomeInFlight means the original request has not resolved
	// within the bounded wait
	AdmissionOutcomeInFlight AdmissionOutcome = "IN_FLIGHT"
)

// AdmissionService is the entry point for payment creation. It consults the
// idempotency ledger before any side effect: N concurrent identical
// requests produce exactly one payment and one processing job.
type AdmissionService interface {
	CreatePayment(ctx context.Context, req *dto.CreatePaymentRequest) (*dto.PaymentResponse, AdmissionOutcome, error)
	GetPayment(ctx context.Context, id string) (*dto.PaymentResponse, error)
}

type admissionService struct {
	ServiceParams
	// replayCache holds resolved ledger records so hot replays skip the
	// store round trip. Resolved records are immutable, staleness is not a
	// concern; the TTL only bounds memory.
	replayCache *gocache.Cache
}

// NewAdmissionService creates a new admission service
func NewAdmissionService(params ServiceParams) AdmissionService {
	return &admissionService{
		ServiceParams: params,
		replayCache:   gocache.New(time.Hour, 10*time.Minute),
	}
}

func (s *admissionService) CreatePayment(ctx context.Context, req *dto.CreatePaymentRequest) (*dto.PaymentResponse, AdmissionOutcome, error) {
	if err := req.Validate(); err != nil {
		return nil, "", err
	}

	fingerprint := s.Fingerprints.Fingerprint(idempotency.ScopePayment, req.FingerprintParams())

	if cached, ok := s.replayCache.Get(req.IdempotencyKey); ok {
		return s.replay(cached.(*ledger.Record), fingerprint)
	}

	record := ledger.New(req.IdempotencyKey, fingerprint)
	p := req.ToPayment()

	// The ledger insert and the payment creation commit as one unit: if the
	// payment cannot be created the key stays unclaimed and a client retry
	// starts fresh.
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		if err := s.LedgerRepo.Insert(ctx, record); err != nil {
			return err
		}
		return s.PaymentRepo.Create(ctx, p)
	})
	if err == nil {
		return s.finishAdmission(ctx, record, p)
	}
	if !ierr.IsAlreadyExists(err) {
		return nil, "", err
	}

	// Lost the uniqueness race or the key was seen before: observe the
	// winner's outcome.
	existing, getErr := s.LedgerRepo.Get(ctx, req.IdempotencyKey)
	if getErr != nil {
		return nil, "", getErr
	}
	if existing.Fingerprint != fingerprint {
		return nil, "", s.keyReusedError(req.IdempotencyKey)
	}
	if existing.Status.IsResolved() {
		return s.replay(existing, fingerprint)
	}
	return s.awaitResolution(ctx, req.IdempotencyKey, fingerprint)
}

func (s *admissionService) GetPayment(ctx context.Context, id string) (*dto.PaymentResponse, error) {
	p, err := s.PaymentRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return dto.NewPaymentResponse(p), nil
}

// finishAdmission runs after the payment committed: enqueue the processing
// job, resolve the key with the cacheable snapshot. A crash in between is
// repaired by the reconciliation sweeper (stale pending payments are
// re-enqueued) and by awaitResolution's lazy resolve.
func (s *admissionService) finishAdmission(ctx context.Context, record *ledger.Record, p *payment.Payment) (*dto.PaymentResponse, AdmissionOutcome, error) {
	resp := dto.NewPaymentResponse(p)

	if err := jobs.Enqueue(ctx, s.JobPublisher, p.ID); err != nil {
		s.Logger.Errorw("failed to enqueue processing job, sweeper will re-enqueue",
			"payment_id", p.ID,
			"error", err,
		)
	}

	snapshot, err := json.Marshal(resp)
	if err != nil {
		return nil, "", ierr.WithError(err).
			WithHint("Failed to encode response snapshot").
			Mark(ierr.ErrSystem)
	}
	if err := s.LedgerRepo.Resolve(ctx, record.Key, types.IdempotencyStatusCompleted, lo.ToPtr(p.ID), snapshot); err != nil {
		return nil, "", err
	}

	record.Status = types.IdempotencyStatusCompleted
	record.PaymentID = lo.ToPtr(p.ID)
	record.ResponseSnapshot = snapshot
	s.replayCache.SetDefault(record.Key, record)

	s.Logger.Infow("payment admitted",
		"payment_id", p.ID,
		"idempotency_key", record.Key,
	)
	return resp, AdmissionOutcomeNew, nil
}

// replay returns the cached outcome verbatim, after re-checking the
// fingerprint so a reused key with a different payload still conflicts.
func (s *admissionService) replay(record *ledger.Record, fingerprint string) (*dto.PaymentResponse, AdmissionOutcome, error) {
	if record.Fingerprint != fingerprint {
		return nil, "", s.keyReusedError(record.Key)
	}

	var resp dto.PaymentResponse
	if err := json.Unmarshal(record.ResponseSnapshot, &resp); err != nil {
		return nil, "", ierr.WithError(err).
			WithHint("Failed to decode cached response").
			Mark(ierr.ErrSystem)
	}
	s.replayCache.SetDefault(record.Key, record)
	return &resp, AdmissionOutcomeReplay, nil
}

// awaitResolution polls an in-flight record within the configured bound.
// Re-executing the request is never an option; after the bound the caller
// gets a processing answer and retries later.
func (s *admissionService) awaitResolution(ctx context.Context, key, fingerprint string) (*dto.PaymentResponse, AdmissionOutcome, error) {
	deadline := time.Now().Add(s.Config.Payment.InflightWait)
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return nil, "", ctx.Err()
		case <-time.After(s.Config.Payment.InflightPoll):
		}

		record, err := s.LedgerRepo.Get(ctx, key)
		if err != nil {
			return nil, "", err
		}
		if record.Fingerprint != fingerprint {
			return nil, "", s.keyReusedError(key)
		}
		if record.Status.IsResolved() {
			return s.replay(record, fingerprint)
		}
	}

	// The winner may have crashed after creating the payment but before
	// resolving the key. If the payment exists, resolve on its behalf.
	if p, err := s.PaymentRepo.GetByIdempotencyKey(ctx, key); err == nil {
		resp := dto.NewPaymentResponse(p)
		snapshot, mErr := json.Marshal(resp)
		if mErr == nil {
			if rErr := s.LedgerRepo.Resolve(ctx, key, types.IdempotencyStatusCompleted, lo.ToPtr(p.ID), snapshot); rErr == nil {
				s.Logger.Warnw("resolved abandoned idempotency record", "key", key, "payment_id", p.ID)
				return resp, AdmissionOutcomeReplay, nil
			}
		}
	}

	return nil, AdmissionOutcomeInFlight, nil
}

func (s *admissionService) keyReusedError(key string) error {
	return ierr.NewError("idempotency key reused with a different request").
		WithHint("This idempotency key was already used for a different payload").
		WithReportableDetails(map[string]any{
			"idempotency_key": key,
		}).
		Mark(ierr.ErrIdempotencyKeyReused)
}
