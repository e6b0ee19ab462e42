package service

import (
	"github.com/flexprice/payflow/internal/config"
	"github.com/flexprice/payflow/internal/domain/ledger"
	"github.com/flexprice/payflow/internal/domain/payment"
	"github.com/flexprice/payflow/internal/idempotency"
	"github.com/flexprice/payflow/internal/logger"
	"github.com/flexprice/payflow/internal/postgres"
	"github.com/flexprice/payflow/internal/pubsub"
)

// ServiceParams holds common dependencies for services
type ServiceParams struct {
	Logger *logger.Logger
	Config *config.Configuration
	DB     postgres.IClient

	// Repositories
	PaymentRepo payment.Repository
	LedgerRepo  ledger.Repository

	// Collaborators
	Gateway      payment.Gateway
	JobPublisher pubsub.Publisher
	Fingerprints *idempotency.Generator
}
