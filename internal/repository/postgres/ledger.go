package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/flexprice/payflow/internal/domain/ledger"
	ierr "github.com/flexprice/payflow/internal/errors"
	"github.com/flexprice/payflow/internal/logger"
	"github.com/flexprice/payflow/internal/postgres"
	"github.com/flexprice/payflow/internal/types"
)

type ledgerRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

// NewLedgerRepository creates an idempotency ledger repository backed by postgres
func NewLedgerRepository(db *postgres.DB, logger *logger.Logger) ledger.Repository {
	return &ledgerRepository{db: db, logger: logger}
}

// Insert races concurrent callers on the primary key. The loser gets an
// error marked ErrAlreadyExists and must read the winner's record.
func (r *ledgerRepository) Insert(ctx context.Context, record *ledger.Record) error {
	if err := record.Validate(); err != nil {
		return err
	}

	q := r.db.GetQuerier(ctx)
	_, err := q.ExecContext(ctx, `
		INSERT INTO idempotency_keys (
			key, fingerprint, payment_id, response_snapshot, status, created_at, resolved_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		record.Key, record.Fingerprint, record.PaymentID, record.ResponseSnapshot,
		record.Status, record.CreatedAt, record.ResolvedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ierr.WithError(err).
				WithHint("An idempotency record for this key already exists").
				Mark(ierr.ErrAlreadyExists)
		}
		return ierr.WithError(err).
			WithHint("Failed to create idempotency record").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *ledgerRepository) Get(ctx context.Context, key string) (*ledger.Record, error) {
	q := r.db.GetQuerier(ctx)
	var record ledger.Record
	err := q.GetContext(ctx, &record, `
		SELECT key, fingerprint, payment_id, response_snapshot, status, created_at, resolved_at
		FROM idempotency_keys WHERE key = $1`, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.NewError("idempotency record not found").
				WithHint("No record exists for this idempotency key").
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get idempotency record").
			Mark(ierr.ErrDatabase)
	}
	return &record, nil
}

// Resolve conditionally moves an in-flight record to its resolved status.
// Resolving an already-resolved record is a no-op so that a crash between
// resolving and acking cannot wedge the key.
func (r *ledgerRepository) Resolve(ctx context.Context, key string, status types.IdempotencyStatus, paymentID *string, snapshot []byte) error {
	if !status.IsResolved() {
		return ierr.NewError("cannot resolve to a non-terminal status").
			WithHintf("Status %s is not a resolution", status).
			Mark(ierr.ErrInvalidOperation)
	}

	q := r.db.GetQuerier(ctx)
	res, err := q.ExecContext(ctx, `
		UPDATE idempotency_keys
		SET status = $1, payment_id = $2, response_snapshot = $3, resolved_at = $4
		WHERE key = $5 AND status = $6`,
		status, paymentID, snapshot, time.Now().UTC(), key, types.IdempotencyStatusInFlight,
	)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to resolve idempotency record").
			Mark(ierr.ErrDatabase)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to resolve idempotency record").
			Mark(ierr.ErrDatabase)
	}
	if affected > 0 {
		return nil
	}

	// Zero rows: the record is either missing or already resolved.
	existing, getErr := r.Get(ctx, key)
	if getErr != nil {
		return getErr
	}
	if existing.Status.IsResolved() {
		r.logger.Debugw("idempotency record already resolved", "key", key, "status", existing.Status)
		return nil
	}
	return ierr.NewError("failed to resolve idempotency record").
		WithHint("Record is not in flight").
		Mark(ierr.ErrInvalidOperation)
}
