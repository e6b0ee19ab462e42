package service

import (
	"testing"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/flexprice/payflow/internal/domain/payment"
	"github.com/flexprice/payflow/internal/testutil"
	"github.com/flexprice/payflow/internal/types"
)

type OrchestratorServiceSuite struct {
	testutil.BaseServiceTestSuite
	orchestrator OrchestratorService
	transitions  TransitionService
}

func TestOrchestratorService(t *testing.T) {
	suite.Run(t, new(OrchestratorServiceSuite))
}

func (s *OrchestratorServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	params := newTestParams(&s.BaseServiceTestSuite)
	s.transitions = NewTransitionService(params)
	s.orchestrator = NewOrchestratorService(params, s.transitions)
}

func (s *OrchestratorServiceSuite) createPayment() *payment.Payment {
	p := payment.New("key-1", decimal.NewFromInt(100), "USD")
	s.NoError(s.GetStores().PaymentStore.Create(s.GetContext(), p))
	return p
}

func (s *OrchestratorServiceSuite) paymentNow(id string) *payment.Payment {
	current, err := s.GetStores().PaymentStore.Get(s.GetContext(), id)
	s.Require().NoError(err)
	return current
}

func (s *OrchestratorServiceSuite) TestProcessPayment_Success() {
	p := s.createPayment()

	s.NoError(s.orchestrator.ProcessPayment(s.GetContext(), p.ID))

	current := s.paymentNow(p.ID)
	s.Equal(types.PaymentStatusSucceeded, current.PaymentStatus)
	s.Equal(types.TransitionReasonGatewaySuccess, current.LastTransitionReason)
	s.Equal(1, current.AttemptCount)
	s.NotNil(current.SucceededAt)
	s.Equal(1, s.GetGateway().ChargeCalls(p.ID))
}

func (s *OrchestratorServiceSuite) TestProcessPayment_TerminalIsNoOp() {
	p := s.createPayment()
	s.NoError(s.orchestrator.ProcessPayment(s.GetContext(), p.ID))
	succeeded := s.paymentNow(p.ID)

	// Duplicate delivery of the same job: no error, no state change and no
	// gateway traffic.
	s.NoError(s.orchestrator.ProcessPayment(s.GetContext(), p.ID))

	current := s.paymentNow(p.ID)
	s.Equal(succeeded.Version, current.Version)
	s.Equal(succeeded.AttemptCount, current.AttemptCount)
	s.Equal(1, s.GetGateway().ChargeCalls(p.ID))
}

func (s *OrchestratorServiceSuite) TestProcessPayment_FatalFailure() {
	p := s.createPayment()
	s.GetGateway().Script(p.ID, &payment.ChargeResult{
		Outcome:      payment.ChargeOutcomeFatal,
		ErrorMessage: lo.ToPtr("card declined"),
	})

	s.NoError(s.orchestrator.ProcessPayment(s.GetContext(), p.ID))

	current := s.paymentNow(p.ID)
	s.Equal(types.PaymentStatusFailed, current.PaymentStatus)
	s.Equal(types.TransitionReasonGatewayDeclined, current.LastTransitionReason)
	s.Equal("card declined", *current.ErrorMessage)
	s.NotNil(current.FailedAt)
	// Fatal means no retry.
	s.Equal(1, s.GetGateway().ChargeCalls(p.ID))
}

func (s *OrchestratorServiceSuite) TestProcessPayment_RetryThenSuccess() {
	p := s.createPayment()
	s.GetGateway().Script(p.ID,
		&payment.ChargeResult{Outcome: payment.ChargeOutcomeRetryable},
		&payment.ChargeResult{Outcome: payment.ChargeOutcomeRetryable},
		&payment.ChargeResult{Outcome: payment.ChargeOutcomeSuccess},
	)

	s.NoError(s.orchestrator.ProcessPayment(s.GetContext(), p.ID))

	current := s.paymentNow(p.ID)
	s.Equal(types.PaymentStatusSucceeded, current.PaymentStatus)
	s.Equal(3, current.AttemptCount)
	s.Equal(3, s.GetGateway().ChargeCalls(p.ID))
}

func (s *OrchestratorServiceSuite) TestProcessPayment_RetriesExhausted() {
	p := s.createPayment()
	s.GetGateway().SetDefault(&payment.ChargeResult{Outcome: payment.ChargeOutcomeRetryable})

	s.NoError(s.orchestrator.ProcessPayment(s.GetContext(), p.ID))

	current := s.paymentNow(p.ID)
	s.Equal(types.PaymentStatusFailed, current.PaymentStatus)
	s.Equal(types.TransitionReasonRetriesExhausted, current.LastTransitionReason)
	s.Equal(s.GetConfig().Payment.MaxAttempts, current.AttemptCount)
	s.Equal(s.GetConfig().Payment.MaxAttempts, s.GetGateway().ChargeCalls(p.ID))
}

func (s *OrchestratorServiceSuite) TestProcessPayment_TransportErrorIsRetryable() {
	p := s.createPayment()
	s.GetGateway().SetUnreachable(true)

	s.NoError(s.orchestrator.ProcessPayment(s.GetContext(), p.ID))

	current := s.paymentNow(p.ID)
	s.Equal(types.PaymentStatusFailed, current.PaymentStatus)
	s.Equal(types.TransitionReasonRetriesExhausted, current.LastTransitionReason)
	s.Equal(s.GetConfig().Payment.MaxAttempts, current.AttemptCount)
}

func (s *OrchestratorServiceSuite) TestProcessPayment_ResumesClaimedPayment() {
	// A prior worker claimed the payment and crashed mid-attempt.
	p := s.createPayment()
	_, err := s.transitions.Transition(s.GetContext(), p.ID,
		types.PaymentStatusPending, types.PaymentStatusProcessing,
		types.TransitionReasonClaimed, nil)
	s.NoError(err)

	s.NoError(s.orchestrator.ProcessPayment(s.GetContext(), p.ID))

	current := s.paymentNow(p.ID)
	s.Equal(types.PaymentStatusSucceeded, current.PaymentStatus)
}

func (s *OrchestratorServiceSuite) TestProcessPayment_MissingPayment() {
	s.Error(s.orchestrator.ProcessPayment(s.GetContext(), "pay_missing"))
}
