package service

import (
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/flexprice/payflow/internal/api/dto"
	"github.com/flexprice/payflow/internal/domain/ledger"
	ierr "github.com/flexprice/payflow/internal/errors"
	"github.com/flexprice/payflow/internal/idempotency"
	"github.com/flexprice/payflow/internal/jobs"
	"github.com/flexprice/payflow/internal/testutil"
	"github.com/flexprice/payflow/internal/types"
)

type AdmissionServiceSuite struct {
	testutil.BaseServiceTestSuite
	admission AdmissionService
}

func TestAdmissionService(t *testing.T) {
	suite.Run(t, new(AdmissionServiceSuite))
}

func (s *AdmissionServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.admission = NewAdmissionService(newTestParams(&s.BaseServiceTestSuite))
}

func (s *AdmissionServiceSuite) newRequest(key string) *dto.CreatePaymentRequest {
	return &dto.CreatePaymentRequest{
		IdempotencyKey: key,
		Amount:         decimal.NewFromFloat(100.50),
		Currency:       "USD",
	}
}

func (s *AdmissionServiceSuite) TestCreatePayment_New() {
	resp, outcome, err := s.admission.CreatePayment(s.GetContext(), s.newRequest("key-1"))
	s.NoError(err)
	s.Equal(AdmissionOutcomeNew, outcome)
	s.NotEmpty(resp.ID)
	s.Equal(types.PaymentStatusPending, resp.PaymentStatus)
	s.Equal(int64(1), resp.Version)
	s.Equal("USD", resp.Currency)

	s.Equal(1, s.GetStores().PaymentStore.Count())

	// Exactly one processing job for the new payment.
	ids := s.GetPublisher().PublishedPaymentIDs(jobs.TopicProcessPayment)
	s.Equal([]string{resp.ID}, ids)

	// The key resolved with a snapshot of the response.
	record, err := s.GetStores().LedgerStore.Get(s.GetContext(), "key-1")
	s.NoError(err)
	s.Equal(types.IdempotencyStatusCompleted, record.Status)
	s.Equal(resp.ID, *record.PaymentID)
	s.NotEmpty(record.ResponseSnapshot)
}

func (s *AdmissionServiceSuite) TestCreatePayment_Replay() {
	first, outcome, err := s.admission.CreatePayment(s.GetContext(), s.newRequest("key-1"))
	s.NoError(err)
	s.Equal(AdmissionOutcomeNew, outcome)

	second, outcome, err := s.admission.CreatePayment(s.GetContext(), s.newRequest("key-1"))
	s.NoError(err)
	s.Equal(AdmissionOutcomeReplay, outcome)
	s.Equal(first.ID, second.ID)
	s.Equal(first.Version, second.Version)

	// No second payment and no second job.
	s.Equal(1, s.GetStores().PaymentStore.Count())
	s.Len(s.GetPublisher().PublishedPaymentIDs(jobs.TopicProcessPayment), 1)
}

func (s *AdmissionServiceSuite) TestCreatePayment_ConcurrentSameKey() {
	const n = 20

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		outcomes = make(map[AdmissionOutcome]int)
		ids      = make(map[string]struct{})
	)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, outcome, err := s.admission.CreatePayment(s.GetContext(), s.newRequest("hot-key"))
			mu.Lock()
			defer mu.Unlock()
			s.NoError(err)
			outcomes[outcome]++
			if resp != nil {
				ids[resp.ID] = struct{}{}
			}
		}()
	}
	wg.Wait()

	// Exactly one payment exists, exactly one request won the key, and
	// every caller that got a body got the same payment.
	s.Equal(1, s.GetStores().PaymentStore.Count())
	s.Equal(1, outcomes[AdmissionOutcomeNew])
	s.Equal(n-1, outcomes[AdmissionOutcomeReplay])
	s.Len(ids, 1)
	s.Len(s.GetPublisher().PublishedPaymentIDs(jobs.TopicProcessPayment), 1)
}

func (s *AdmissionServiceSuite) TestCreatePayment_KeyReusedWithDifferentPayload() {
	_, outcome, err := s.admission.CreatePayment(s.GetContext(), s.newRequest("key-1"))
	s.NoError(err)
	s.Equal(AdmissionOutcomeNew, outcome)

	conflicting := &dto.CreatePaymentRequest{
		IdempotencyKey: "key-1",
		Amount:         decimal.NewFromInt(999),
		Currency:       "USD",
	}
	_, _, err = s.admission.CreatePayment(s.GetContext(), conflicting)
	s.Error(err)
	s.True(ierr.IsIdempotencyKeyReused(err))

	// The existing payment is untouched.
	s.Equal(1, s.GetStores().PaymentStore.Count())
}

func (s *AdmissionServiceSuite) TestCreatePayment_EquivalentFormattingReplays() {
	_, outcome, err := s.admission.CreatePayment(s.GetContext(), s.newRequest("key-1"))
	s.NoError(err)
	s.Equal(AdmissionOutcomeNew, outcome)

	// Same value, different formatting: lower-case currency, trailing zero.
	equivalent := &dto.CreatePaymentRequest{
		IdempotencyKey: "key-1",
		Amount:         decimal.RequireFromString("100.50"),
		Currency:       "usd",
	}
	_, outcome, err = s.admission.CreatePayment(s.GetContext(), equivalent)
	s.NoError(err)
	s.Equal(AdmissionOutcomeReplay, outcome)
}

func (s *AdmissionServiceSuite) TestCreatePayment_InFlightWithoutPayment() {
	// A record claimed by a winner that has produced no payment yet and
	// never resolves within the wait budget.
	req := s.newRequest("key-1")
	fp := s.GetFingerprints().Fingerprint(idempotency.ScopePayment, req.FingerprintParams())
	s.NoError(s.GetStores().LedgerStore.Insert(s.GetContext(), ledger.New("key-1", fp)))

	resp, outcome, err := s.admission.CreatePayment(s.GetContext(), req)
	s.NoError(err)
	s.Equal(AdmissionOutcomeInFlight, outcome)
	s.Nil(resp)
}

func (s *AdmissionServiceSuite) TestCreatePayment_RepairsAbandonedRecord() {
	// The winner crashed after committing the payment but before resolving
	// the key: the record is stuck IN_FLIGHT while the payment exists.
	req := s.newRequest("key-1")
	fp := s.GetFingerprints().Fingerprint(idempotency.ScopePayment, req.FingerprintParams())
	s.NoError(s.GetStores().LedgerStore.Insert(s.GetContext(), ledger.New("key-1", fp)))
	p := req.ToPayment()
	s.NoError(s.GetStores().PaymentStore.Create(s.GetContext(), p))

	resp, outcome, err := s.admission.CreatePayment(s.GetContext(), req)
	s.NoError(err)
	s.Equal(AdmissionOutcomeReplay, outcome)
	s.Equal(p.ID, resp.ID)

	record, err := s.GetStores().LedgerStore.Get(s.GetContext(), "key-1")
	s.NoError(err)
	s.Equal(types.IdempotencyStatusCompleted, record.Status)
}

func (s *AdmissionServiceSuite) TestCreatePayment_Validation() {
	testCases := []struct {
		name string
		req  *dto.CreatePaymentRequest
	}{
		{
			name: "missing idempotency key",
			req: &dto.CreatePaymentRequest{
				Amount:   decimal.NewFromInt(10),
				Currency: "USD",
			},
		},
		{
			name: "zero amount",
			req: &dto.CreatePaymentRequest{
				IdempotencyKey: "key-1",
				Amount:         decimal.Zero,
				Currency:       "USD",
			},
		},
		{
			name: "negative amount",
			req: &dto.CreatePaymentRequest{
				IdempotencyKey: "key-1",
				Amount:         decimal.NewFromInt(-5),
				Currency:       "USD",
			},
		},
		{
			name: "bad currency",
			req: &dto.CreatePaymentRequest{
				IdempotencyKey: "key-1",
				Amount:         decimal.NewFromInt(10),
				Currency:       "DOLLARS",
			},
		},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			_, _, err := s.admission.CreatePayment(s.GetContext(), tc.req)
			s.Error(err)
			s.True(ierr.IsValidation(err))
		})
	}
	s.Equal(0, s.GetStores().PaymentStore.Count())
}

func (s *AdmissionServiceSuite) TestGetPayment() {
	resp, _, err := s.admission.CreatePayment(s.GetContext(), s.newRequest("key-1"))
	s.NoError(err)

	got, err := s.admission.GetPayment(s.GetContext(), resp.ID)
	s.NoError(err)
	s.Equal(resp.ID, got.ID)

	_, err = s.admission.GetPayment(s.GetContext(), "pay_missing")
	s.Error(err)
	s.True(ierr.IsNotFound(err))
}
