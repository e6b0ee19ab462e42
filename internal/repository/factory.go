package repository

import (
	"github.com/flexprice/payflow/internal/domain/ledger"
	"github.com/flexprice/payflow/internal/domain/payment"
	"github.com/flexprice/payflow/internal/logger"
	"github.com/flexprice/payflow/internal/postgres"
	postgresRepo "github.com/flexprice/payflow/internal/repository/postgres"
)

func NewPaymentRepository(db *postgres.DB, logger *logger.Logger) payment.Repository {
	return postgresRepo.NewPaymentRepository(db, logger)
}

func NewLedgerRepository(db *postgres.DB, logger *logger.Logger) ledger.Repository {
	return postgresRepo.NewLedgerRepository(db, logger)
}
