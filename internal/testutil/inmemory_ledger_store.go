package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/flexprice/payflow/internal/domain/ledger"
	ierr "github.com/flexprice/payflow/internal/errors"
	"github.com/flexprice/payflow/internal/types"
)

// InMemoryLedgerStore implements ledger.Repository with first-writer-wins
// insert semantics matching the postgres uniqueness constraint.
type InMemoryLedgerStore struct {
	mu      sync.Mutex
	records map[string]*ledger.Record
}

// NewInMemoryLedgerStore creates a new in-memory idempotency ledger
func NewInMemoryLedgerStore() *InMemoryLedgerStore {
	return &InMemoryLedgerStore{
		records: make(map[string]*ledger.Record),
	}
}

// Clear resets all stored data
func (m *InMemoryLedgerStore) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = make(map[string]*ledger.Record)
}

func (m *InMemoryLedgerStore) Insert(ctx context.Context, record *ledger.Record) error {
	if err := record.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[record.Key]; ok {
		return ierr.NewError("idempotency record already exists").
			WithHint("An idempotency record for this key already exists").
			Mark(ierr.ErrAlreadyExists)
	}
	m.records[record.Key] = copyRecord(record)
	return nil
}

func (m *InMemoryLedgerStore) Get(ctx context.Context, key string) (*ledger.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, ok := m.records[key]
	if !ok {
		return nil, ierr.NewError("idempotency record not found").
			WithHint("No record exists for this idempotency key").
			Mark(ierr.ErrNotFound)
	}
	return copyRecord(record), nil
}

func (m *InMemoryLedgerStore) Resolve(ctx context.Context, key string, status types.IdempotencyStatus, paymentID *string, snapshot []byte) error {
	if !status.IsResolved() {
		return ierr.NewError("cannot resolve to a non-terminal status").
			WithHintf("Status %s is not a resolution", status).
			Mark(ierr.ErrInvalidOperation)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	record, ok := m.records[key]
	if !ok {
		return ierr.NewError("idempotency record not found").
			WithHint("No record exists for this idempotency key").
			Mark(ierr.ErrNotFound)
	}
	if record.Status.IsResolved() {
		// Idempotent resolve.
		return nil
	}

	now := time.Now().UTC()
	record.Status = status
	record.PaymentID = paymentID
	record.ResponseSnapshot = snapshot
	record.ResolvedAt = &now
	return nil
}

func copyRecord(r *ledger.Record) *ledger.Record {
	clone := *r
	if r.ResponseSnapshot != nil {
		clone.ResponseSnapshot = append([]byte(nil), r.ResponseSnapshot...)
	}
	return &clone
}
