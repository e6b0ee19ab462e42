package service

import (
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/flexprice/payflow/internal/domain/payment"
	"github.com/flexprice/payflow/internal/jobs"
	"github.com/flexprice/payflow/internal/testutil"
	"github.com/flexprice/payflow/internal/types"
)

type SweeperServiceSuite struct {
	testutil.BaseServiceTestSuite
	sweeper     SweeperService
	transitions TransitionService
}

func TestSweeperService(t *testing.T) {
	suite.Run(t, new(SweeperServiceSuite))
}

func (s *SweeperServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	params := newTestParams(&s.BaseServiceTestSuite)
	s.transitions = NewTransitionService(params)
	s.sweeper = NewSweeperService(params, s.transitions)
}

// stagePayment creates a payment and forces it into the given status with an
// updated_at older than the staleness threshold.
func (s *SweeperServiceSuite) stagePayment(key string, status types.PaymentStatus) *payment.Payment {
	p := payment.New(key, decimal.NewFromInt(100), "USD")
	s.NoError(s.GetStores().PaymentStore.Create(s.GetContext(), p))
	staleAt := time.Now().UTC().Add(-2 * s.GetConfig().Payment.StaleAfter)
	s.GetStores().PaymentStore.ForceState(p.ID, status, staleAt)
	return p
}

func (s *SweeperServiceSuite) paymentNow(id string) *payment.Payment {
	current, err := s.GetStores().PaymentStore.Get(s.GetContext(), id)
	s.Require().NoError(err)
	return current
}

func (s *SweeperServiceSuite) TestSweep_GatewayReportsSuccess() {
	p := s.stagePayment("key-1", types.PaymentStatusProcessing)
	s.GetGateway().SetLookup(p.ID, &payment.ChargeResult{Outcome: payment.ChargeOutcomeSuccess})

	s.NoError(s.sweeper.Sweep(s.GetContext()))

	current := s.paymentNow(p.ID)
	s.Equal(types.PaymentStatusSucceeded, current.PaymentStatus)
	s.Equal(types.TransitionReasonReconciled, current.LastTransitionReason)
}

func (s *SweeperServiceSuite) TestSweep_GatewayReportsFatal() {
	p := s.stagePayment("key-1", types.PaymentStatusProcessing)
	s.GetGateway().SetLookup(p.ID, &payment.ChargeResult{
		Outcome:      payment.ChargeOutcomeFatal,
		ErrorMessage: lo.ToPtr("card declined"),
	})

	s.NoError(s.sweeper.Sweep(s.GetContext()))

	current := s.paymentNow(p.ID)
	s.Equal(types.PaymentStatusFailed, current.PaymentStatus)
	s.Equal(types.TransitionReasonReconciled, current.LastTransitionReason)
	s.Equal("card declined", *current.ErrorMessage)
}

func (s *SweeperServiceSuite) TestSweep_NoSettledRecordReenqueues() {
	p := s.stagePayment("key-1", types.PaymentStatusProcessing)
	s.GetGateway().SetLookup(p.ID, &payment.ChargeResult{Outcome: payment.ChargeOutcomeRetryable})

	s.NoError(s.sweeper.Sweep(s.GetContext()))

	// Status untouched, but a processing job was handed back to the
	// orchestrator.
	current := s.paymentNow(p.ID)
	s.Equal(types.PaymentStatusProcessing, current.PaymentStatus)
	s.Equal([]string{p.ID}, s.GetPublisher().PublishedPaymentIDs(jobs.TopicProcessPayment))
}

func (s *SweeperServiceSuite) TestSweep_GatewayUnreachableLeavesUntouched() {
	p := s.stagePayment("key-1", types.PaymentStatusProcessing)
	s.GetGateway().SetUnreachable(true)

	s.NoError(s.sweeper.Sweep(s.GetContext()))

	current := s.paymentNow(p.ID)
	s.Equal(types.PaymentStatusProcessing, current.PaymentStatus)
	s.Empty(s.GetPublisher().PublishedPaymentIDs(jobs.TopicProcessPayment))
}

func (s *SweeperServiceSuite) TestSweep_FreshProcessingIsIgnored() {
	p := payment.New("key-1", decimal.NewFromInt(100), "USD")
	s.NoError(s.GetStores().PaymentStore.Create(s.GetContext(), p))
	_, err := s.transitions.Transition(s.GetContext(), p.ID,
		types.PaymentStatusPending, types.PaymentStatusProcessing,
		types.TransitionReasonClaimed, nil)
	s.NoError(err)

	s.NoError(s.sweeper.Sweep(s.GetContext()))

	s.Equal(0, s.GetGateway().LookupCalls(p.ID))
	s.Equal(types.PaymentStatusProcessing, s.paymentNow(p.ID).PaymentStatus)
}

func (s *SweeperServiceSuite) TestSweep_StalePendingIsReenqueued() {
	p := s.stagePayment("key-1", types.PaymentStatusPending)

	s.NoError(s.sweeper.Sweep(s.GetContext()))

	// The payment stays pending; only the lost job is re-submitted.
	current := s.paymentNow(p.ID)
	s.Equal(types.PaymentStatusPending, current.PaymentStatus)
	s.Equal([]string{p.ID}, s.GetPublisher().PublishedPaymentIDs(jobs.TopicProcessPayment))
}

func (s *SweeperServiceSuite) TestSweep_MixedBatch() {
	succeeding := s.stagePayment("key-1", types.PaymentStatusProcessing)
	failing := s.stagePayment("key-2", types.PaymentStatusProcessing)
	unknown := s.stagePayment("key-3", types.PaymentStatusProcessing)

	s.GetGateway().SetLookup(succeeding.ID, &payment.ChargeResult{Outcome: payment.ChargeOutcomeSuccess})
	s.GetGateway().SetLookup(failing.ID, &payment.ChargeResult{Outcome: payment.ChargeOutcomeFatal})
	s.GetGateway().SetLookup(unknown.ID, &payment.ChargeResult{Outcome: payment.ChargeOutcomeRetryable})

	s.NoError(s.sweeper.Sweep(s.GetContext()))

	s.Equal(types.PaymentStatusSucceeded, s.paymentNow(succeeding.ID).PaymentStatus)
	s.Equal(types.PaymentStatusFailed, s.paymentNow(failing.ID).PaymentStatus)
	s.Equal(types.PaymentStatusProcessing, s.paymentNow(unknown.ID).PaymentStatus)
	s.Equal([]string{unknown.ID}, s.GetPublisher().PublishedPaymentIDs(jobs.TopicProcessPayment))
}
