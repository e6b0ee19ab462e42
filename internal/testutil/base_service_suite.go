package testutil

import (
	"context"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/flexprice/payflow/internal/config"
	"github.com/flexprice/payflow/internal/idempotency"
	"github.com/flexprice/payflow/internal/logger"
	"github.com/flexprice/payflow/internal/types"
)

// Stores holds the repository fakes for testing
type Stores struct {
	PaymentStore *InMemoryPaymentStore
	LedgerStore  *InMemoryLedgerStore
}

// BaseServiceTestSuite provides common functionality for all service test
// suites: fresh stores, fakes and a fast-timing config per test.
type BaseServiceTestSuite struct {
	suite.Suite
	ctx          context.Context
	cfg          *config.Configuration
	log          *logger.Logger
	stores       Stores
	gateway      *FakeGateway
	publisher    *RecorderPublisher
	txClient     *InMemoryTxClient
	fingerprints *idempotency.Generator
}

// SetupTest initializes fresh fixtures
func (s *BaseServiceTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.cfg = NewTestConfig()
	log, err := logger.NewLogger(types.LogLevelDebug)
	s.Require().NoError(err)
	s.log = log
	s.stores = Stores{
		PaymentStore: NewInMemoryPaymentStore(),
		LedgerStore:  NewInMemoryLedgerStore(),
	}
	s.gateway = NewFakeGateway()
	s.publisher = NewRecorderPublisher()
	s.txClient = NewInMemoryTxClient()
	s.fingerprints = idempotency.NewGenerator()
}

// TearDownTest clears the fixtures
func (s *BaseServiceTestSuite) TearDownTest() {
	s.stores.PaymentStore.Clear()
	s.stores.LedgerStore.Clear()
	s.publisher.Clear()
}

func (s *BaseServiceTestSuite) GetContext() context.Context      { return s.ctx }
func (s *BaseServiceTestSuite) GetConfig() *config.Configuration { return s.cfg }
func (s *BaseServiceTestSuite) GetLogger() *logger.Logger        { return s.log }
func (s *BaseServiceTestSuite) GetStores() Stores                { return s.stores }
func (s *BaseServiceTestSuite) GetGateway() *FakeGateway         { return s.gateway }
func (s *BaseServiceTestSuite) GetPublisher() *RecorderPublisher { return s.publisher }
func (s *BaseServiceTestSuite) GetTxClient() *InMemoryTxClient   { return s.txClient }
func (s *BaseServiceTestSuite) GetFingerprints() *idempotency.Generator {
	return s.fingerprints
}

// NewTestConfig returns a configuration with timings tightened for tests
func NewTestConfig() *config.Configuration {
	return &config.Configuration{
		Deployment: config.DeploymentConfig{Mode: types.ModeLocal},
		Server:     config.ServerConfig{Address: ":0"},
		Logging:    config.LoggingConfig{Level: types.LogLevelDebug},
		Postgres: config.PostgresConfig{
			Host: "localhost", Port: 5432, User: "test", DBName: "test",
		},
		Payment: config.PaymentConfig{
			MaxAttempts:    3,
			BackoffInitial: time.Millisecond,
			BackoffMax:     5 * time.Millisecond,
			StaleAfter:     time.Minute,
			SweepInterval:  10 * time.Millisecond,
			SweepBatch:     100,
			InflightWait:   50 * time.Millisecond,
			InflightPoll:   5 * time.Millisecond,
		},
	}
}
