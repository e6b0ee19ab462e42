package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/flexprice/payflow/internal/domain/payment"
	ierr "github.com/flexprice/payflow/internal/errors"
	"github.com/flexprice/payflow/internal/logger"
	"github.com/flexprice/payflow/internal/postgres"
	"github.com/flexprice/payflow/internal/types"
)

type paymentRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

// NewPaymentRepository creates a payment repository backed by postgres
func NewPaymentRepository(db *postgres.DB, logger *logger.Logger) payment.Repository {
	return &paymentRepository{db: db, logger: logger}
}

func (r *paymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	if err := p.Validate(); err != nil {
		return err
	}

	q := r.db.GetQuerier(ctx)
	_, err := q.ExecContext(ctx, `
		INSERT INTO payments (
			id, idempotency_key, amount, currency, payment_status, version,
			attempt_count, last_transition_reason, error_message,
			succeeded_at, failed_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		p.ID, p.IdempotencyKey, p.Amount, p.Currency, p.PaymentStatus, p.Version,
		p.AttemptCount, p.LastTransitionReason, p.ErrorMessage,
		p.SucceededAt, p.FailedAt, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ierr.WithError(err).
				WithHint("A payment with this id already exists").
				Mark(ierr.ErrAlreadyExists)
		}
		return ierr.WithError(err).
			WithHint("Failed to create payment").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *paymentRepository) Get(ctx context.Context, id string) (*payment.Payment, error) {
	q := r.db.GetQuerier(ctx)
	var p payment.Payment
	err := q.GetContext(ctx, &p, `
		SELECT id, idempotency_key, amount, currency, payment_status, version,
		       attempt_count, last_transition_reason, error_message,
		       succeeded_at, failed_at, created_at, updated_at
		FROM payments WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.NewError("payment not found").
				WithHintf("Payment %s does not exist", id).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get payment").
			Mark(ierr.ErrDatabase)
	}
	return &p, nil
}

func (r *paymentRepository) GetByIdempotencyKey(ctx context.Context, key string) (*payment.Payment, error) {
	q := r.db.GetQuerier(ctx)
	var p payment.Payment
	err := q.GetContext(ctx, &p, `
		SELECT id, idempotency_key, amount, currency, payment_status, version,
		       attempt_count, last_transition_reason, error_message,
		       succeeded_at, failed_at, created_at, updated_at
		FROM payments WHERE idempotency_key = $1`, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.NewError("payment not found").
				WithHint("No payment exists for this idempotency key").
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get payment").
			Mark(ierr.ErrDatabase)
	}
	return &p, nil
}

// TransitionStatus is the optimistic path: a single conditional update that
// commits only if the row still holds the expected status. Exactly one of
// any set of concurrent attempts wins; losers observe zero rows and get an
// ErrStaleUpdate carrying the now-current state.
func (r *paymentRepository) TransitionStatus(ctx context.Context, id string, expected, target types.PaymentStatus, reason types.TransitionReason, errMsg *string) (int64, error) {
	if err := payment.ValidateTransition(expected, target); err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	var succeededAt, failedAt *time.Time
	switch target {
	case types.PaymentStatusSucceeded:
		succeededAt = &now
	case types.PaymentStatusFailed:
		failedAt = &now
	}

	q := r.db.GetQuerier(ctx)
	var newVersion int64
	err := q.QueryRowContext(ctx, `
		UPDATE payments
		SET payment_status = $1,
		    version = version + 1,
		    last_transition_reason = $2,
		    error_message = COALESCE($3, error_message),
		    succeeded_at = COALESCE($4, succeeded_at),
		    failed_at = COALESCE($5, failed_at),
		    updated_at = $6
		WHERE id = $7 AND payment_status = $8
		RETURNING version`,
		target, reason, errMsg, succeededAt, failedAt, now, id, expected,
	).Scan(&newVersion)
	if err == nil {
		r.logger.Debugw("payment transitioned",
			"payment_id", id,
			"from", expected,
			"to", target,
			"version", newVersion,
			"reason", reason,
		)
		return newVersion, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, ierr.WithError(err).
			WithHint("Failed to transition payment").
			Mark(ierr.ErrDatabase)
	}

	// Zero rows affected: either the payment is gone or another transition
	// already advanced it. Re-read to tell the two apart.
	current, getErr := r.Get(ctx, id)
	if getErr != nil {
		return 0, getErr
	}
	return 0, ierr.NewError("payment already advanced by a concurrent transition").
		WithHintf("Payment is now %s, expected %s", current.PaymentStatus, expected).
		WithReportableDetails(map[string]any{
			"payment_id":    id,
			"current_state": current.PaymentStatus.String(),
			"expected":      expected.String(),
			"target":        target.String(),
		}).
		Mark(ierr.ErrStaleUpdate)
}

// GetForUpdate is the pessimistic path, used only where a multi-step
// read-decide-write cannot be expressed as one conditional update.
func (r *paymentRepository) GetForUpdate(ctx context.Context, id string) (*payment.Payment, error) {
	if _, ok := postgres.GetTx(ctx); !ok {
		return nil, ierr.NewError("row lock requires a transaction").
			WithHint("GetForUpdate must run inside WithTx").
			Mark(ierr.ErrInvalidOperation)
	}

	q := r.db.GetQuerier(ctx)
	var p payment.Payment
	err := q.GetContext(ctx, &p, `
		SELECT id, idempotency_key, amount, currency, payment_status, version,
		       attempt_count, last_transition_reason, error_message,
		       succeeded_at, failed_at, created_at, updated_at
		FROM payments WHERE id = $1
		FOR UPDATE`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.NewError("payment not found").
				WithHintf("Payment %s does not exist", id).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to lock payment").
			Mark(ierr.ErrDatabase)
	}
	return &p, nil
}

func (r *paymentRepository) IncrementAttempts(ctx context.Context, id string) (int, error) {
	q := r.db.GetQuerier(ctx)
	var count int
	err := q.QueryRowContext(ctx, `
		UPDATE payments
		SET attempt_count = attempt_count + 1, updated_at = $1
		WHERE id = $2
		RETURNING attempt_count`,
		time.Now().UTC(), id,
	).Scan(&count)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ierr.NewError("payment not found").
				WithHintf("Payment %s does not exist", id).
				Mark(ierr.ErrNotFound)
		}
		return 0, ierr.WithError(err).
			WithHint("Failed to increment attempts").
			Mark(ierr.ErrDatabase)
	}
	return count, nil
}

func (r *paymentRepository) ListStuck(ctx context.Context, status types.PaymentStatus, olderThan time.Time, limit int) ([]*payment.Payment, error) {
	q := r.db.GetQuerier(ctx)
	payments := make([]*payment.Payment, 0, limit)
	err := q.SelectContext(ctx, &payments, `
		SELECT id, idempotency_key, amount, currency, payment_status, version,
		       attempt_count, last_transition_reason, error_message,
		       succeeded_at, failed_at, created_at, updated_at
		FROM payments
		WHERE payment_status = $1 AND updated_at < $2
		ORDER BY updated_at ASC
		LIMIT $3`,
		status, olderThan, limit)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list stuck payments").
			Mark(ierr.ErrDatabase)
	}
	return payments, nil
}
