package testutil

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/flexprice/payflow/internal/domain/payment"
	ierr "github.com/flexprice/payflow/internal/errors"
)

// FakeGateway implements payment.Gateway with scripted outcomes. Charge
// consumes the script for the payment id one entry per call and falls back
// to the default outcome when the script runs dry; every call is recorded.
type FakeGateway struct {
	mu             sync.Mutex
	scripts        map[string][]*payment.ChargeResult
	lookups        map[string]*payment.ChargeResult
	defaultResult  *payment.ChargeResult
	chargeCalls    map[string]int
	lookupCalls    map[string]int
	unreachable    bool
	totalChargeCnt int
}

// NewFakeGateway creates a fake gateway that succeeds by default
func NewFakeGateway() *FakeGateway {
	return &FakeGateway{
		scripts:       make(map[string][]*payment.ChargeResult),
		lookups:       make(map[string]*payment.ChargeResult),
		defaultResult: &payment.ChargeResult{Outcome: payment.ChargeOutcomeSuccess},
		chargeCalls:   make(map[string]int),
		lookupCalls:   make(map[string]int),
	}
}

// Script queues outcomes for a payment id, consumed in order by Charge
func (g *FakeGateway) Script(paymentID string, results ...*payment.ChargeResult) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.scripts[paymentID] = append(g.scripts[paymentID], results...)
}

// SetDefault changes the fallback outcome
func (g *FakeGateway) SetDefault(result *payment.ChargeResult) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.defaultResult = result
}

// SetLookup fixes the authoritative record returned by Lookup
func (g *FakeGateway) SetLookup(paymentID string, result *payment.ChargeResult) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lookups[paymentID] = result
}

// SetUnreachable makes every call fail with a transport error
func (g *FakeGateway) SetUnreachable(unreachable bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.unreachable = unreachable
}

// ChargeCalls returns how many times Charge was invoked for the payment
func (g *FakeGateway) ChargeCalls(paymentID string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.chargeCalls[paymentID]
}

// TotalChargeCalls returns how many times Charge was invoked overall
func (g *FakeGateway) TotalChargeCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.totalChargeCnt
}

// LookupCalls returns how many times Lookup was invoked for the payment
func (g *FakeGateway) LookupCalls(paymentID string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lookupCalls[paymentID]
}

func (g *FakeGateway) Charge(ctx context.Context, paymentID string, amount decimal.Decimal, currency string) (*payment.ChargeResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.chargeCalls[paymentID]++
	g.totalChargeCnt++

	if g.unreachable {
		return nil, ierr.NewError("gateway unreachable").
			WithHint("Simulated transport failure").
			Mark(ierr.ErrRetryable)
	}

	if script := g.scripts[paymentID]; len(script) > 0 {
		result := script[0]
		g.scripts[paymentID] = script[1:]
		return result, nil
	}
	return g.defaultResult, nil
}

func (g *FakeGateway) Lookup(ctx context.Context, paymentID string) (*payment.ChargeResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.lookupCalls[paymentID]++

	if g.unreachable {
		return nil, ierr.NewError("gateway unreachable").
			WithHint("Simulated transport failure").
			Mark(ierr.ErrRetryable)
	}

	if result, ok := g.lookups[paymentID]; ok {
		return result, nil
	}
	return &payment.ChargeResult{Outcome: payment.ChargeOutcomeRetryable}, nil
}
