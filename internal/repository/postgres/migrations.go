package postgres

import (
	"context"

	ierr "github.com/flexprice/payflow/internal/errors"
	"github.com/flexprice/payflow/internal/postgres"
)

// schema is applied on startup when postgres.automigrate is enabled. The
// uniqueness of idempotency_keys.key and the version column on payments are
// load-bearing: the admission race and the optimistic transition path both
// depend on them.
const schema = `
CREATE TABLE IF NOT EXISTS payments (
	id                     TEXT PRIMARY KEY,
	idempotency_key        TEXT NOT NULL,
	amount                 NUMERIC(20, 8) NOT NULL,
	currency               CHAR(3) NOT NULL,
	payment_status         TEXT NOT NULL,
	version                BIGINT NOT NULL DEFAULT 1,
	attempt_count          INT NOT NULL DEFAULT 0,
	last_transition_reason TEXT NOT NULL,
	error_message          TEXT,
	succeeded_at           TIMESTAMPTZ,
	failed_at              TIMESTAMPTZ,
	created_at             TIMESTAMPTZ NOT NULL,
	updated_at             TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_payments_status_updated_at
	ON payments (payment_status, updated_at);

CREATE TABLE IF NOT EXISTS idempotency_keys (
	key               TEXT PRIMARY KEY,
	fingerprint       TEXT NOT NULL,
	payment_id        TEXT,
	response_snapshot BYTEA,
	status            TEXT NOT NULL,
	created_at        TIMESTAMPTZ NOT NULL,
	resolved_at       TIMESTAMPTZ
);
`

// Migrate applies the schema
func Migrate(ctx context.Context, db *postgres.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to apply database schema").
			Mark(ierr.ErrDatabase)
	}
	return nil
}
