package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/flexprice/payflow/internal/domain/payment"
	ierr "github.com/flexprice/payflow/internal/errors"
	"github.com/flexprice/payflow/internal/types"
)

// InMemoryPaymentStore implements payment.Repository with the same
// concurrency semantics as the postgres implementation: transitions are
// conditional on the current status and exactly one concurrent attempt
// wins.
type InMemoryPaymentStore struct {
	mu       sync.Mutex
	payments map[string]*payment.Payment
}

// NewInMemoryPaymentStore creates a new in-memory payment repository
func NewInMemoryPaymentStore() *InMemoryPaymentStore {
	return &InMemoryPaymentStore{
		payments: make(map[string]*payment.Payment),
	}
}

// Clear resets all stored data
func (m *InMemoryPaymentStore) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments = make(map[string]*payment.Payment)
}

func (m *InMemoryPaymentStore) Create(ctx context.Context, p *payment.Payment) error {
	if err := p.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.payments[p.ID]; ok {
		return ierr.NewError("payment already exists").
			WithHint("A payment with this id already exists").
			Mark(ierr.ErrAlreadyExists)
	}
	m.payments[p.ID] = copyPayment(p)
	return nil
}

func (m *InMemoryPaymentStore) Get(ctx context.Context, id string) (*payment.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getLocked(id)
}

func (m *InMemoryPaymentStore) GetByIdempotencyKey(ctx context.Context, key string) (*payment.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range m.payments {
		if p.IdempotencyKey == key {
			return copyPayment(p), nil
		}
	}
	return nil, ierr.NewError("payment not found").
		WithHint("No payment exists for this idempotency key").
		Mark(ierr.ErrNotFound)
}

func (m *InMemoryPaymentStore) TransitionStatus(ctx context.Context, id string, expected, target types.PaymentStatus, reason types.TransitionReason, errMsg *string) (int64, error) {
	if err := payment.ValidateTransition(expected, target); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.payments[id]
	if !ok {
		return 0, ierr.NewError("payment not found").
			WithHintf("Payment %s does not exist", id).
			Mark(ierr.ErrNotFound)
	}
	if p.PaymentStatus != expected {
		return 0, ierr.NewError("payment already advanced by a concurrent transition").
			WithHintf("Payment is now %s, expected %s", p.PaymentStatus, expected).
			Mark(ierr.ErrStaleUpdate)
	}

	now := time.Now().UTC()
	p.PaymentStatus = target
	p.Version++
	p.LastTransitionReason = reason
	if errMsg != nil {
		p.ErrorMessage = errMsg
	}
	switch target {
	case types.PaymentStatusSucceeded:
		p.SucceededAt = &now
	case types.PaymentStatusFailed:
		p.FailedAt = &now
	}
	p.UpdatedAt = now
	return p.Version, nil
}

func (m *InMemoryPaymentStore) GetForUpdate(ctx context.Context, id string) (*payment.Payment, error) {
	// The in-memory store serializes everything on one mutex, so a plain
	// read stands in for the row lock.
	return m.Get(ctx, id)
}

func (m *InMemoryPaymentStore) IncrementAttempts(ctx context.Context, id string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.payments[id]
	if !ok {
		return 0, ierr.NewError("payment not found").
			WithHintf("Payment %s does not exist", id).
			Mark(ierr.ErrNotFound)
	}
	p.AttemptCount++
	p.UpdatedAt = time.Now().UTC()
	return p.AttemptCount, nil
}

func (m *InMemoryPaymentStore) ListStuck(ctx context.Context, status types.PaymentStatus, olderThan time.Time, limit int) ([]*payment.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stuck := make([]*payment.Payment, 0)
	for _, p := range m.payments {
		if p.PaymentStatus == status && p.UpdatedAt.Before(olderThan) {
			stuck = append(stuck, copyPayment(p))
		}
	}
	sort.Slice(stuck, func(i, j int) bool {
		return stuck[i].UpdatedAt.Before(stuck[j].UpdatedAt)
	})
	if len(stuck) > limit {
		stuck = stuck[:limit]
	}
	return stuck, nil
}

// ForceState rewrites status and updated_at directly, bypassing the
// transition rules. Test-only hook for staging stuck payments.
func (m *InMemoryPaymentStore) ForceState(id string, status types.PaymentStatus, updatedAt time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.payments[id]; ok {
		p.PaymentStatus = status
		p.UpdatedAt = updatedAt
	}
}

// Count returns the number of stored payments
func (m *InMemoryPaymentStore) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.payments)
}

func (m *InMemoryPaymentStore) getLocked(id string) (*payment.Payment, error) {
	p, ok := m.payments[id]
	if !ok {
		return nil, ierr.NewError("payment not found").
			WithHintf("Payment %s does not exist", id).
			Mark(ierr.ErrNotFound)
	}
	return copyPayment(p), nil
}

func copyPayment(p *payment.Payment) *payment.Payment {
	clone := *p
	return &clone
}
