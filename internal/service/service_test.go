package service

import (
	"github.com/flexprice/payflow/internal/testutil"
)

// newTestParams assembles ServiceParams from the suite's in-memory fixtures
func newTestParams(s *testutil.BaseServiceTestSuite) ServiceParams {
	stores := s.GetStores()
	return ServiceParams{
		Logger:       s.GetLogger(),
		Config:       s.GetConfig(),
		DB:           s.GetTxClient(),
		PaymentRepo:  stores.PaymentStore,
		LedgerRepo:   stores.LedgerStore,
		Gateway:      s.GetGateway(),
		JobPublisher: s.GetPublisher(),
		Fingerprints: s.GetFingerprints(),
	}
}
