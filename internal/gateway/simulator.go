package gateway

import (
	"context"
	"math/rand"
	"sync"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/flexprice/payflow/internal/domain/payment"
	"github.com/flexprice/payflow/internal/logger"
	"github.com/flexprice/payflow/internal/types"
)

// Simulator is a stand-in payment processor honoring the gateway contract:
// it deduplicates on payment id, so repeated Charge calls for a payment
// that already settled return the recorded result instead of charging
// twice. Outcomes are drawn once per payment and remembered.
type Simulator struct {
	mu      sync.Mutex
	settled map[string]*payment.ChargeResult
	logger  *logger.Logger

	// tunable failure odds, out of 100
	retryablePct int
	fatalPct     int
}

// NewSimulator creates a simulated gateway with default failure odds
func NewSimulator(logger *logger.Logger) payment.Gateway {
	return &Simulator{
		settled:      make(map[string]*payment.ChargeResult),
		logger:       logger,
		retryablePct: 20,
		fatalPct:     10,
	}
}

func (g *Simulator) Charge(ctx context.Context, paymentID string, amount decimal.Decimal, currency string) (*payment.ChargeResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	// Dedup: a settled payment is never charged again.
	if result, ok := g.settled[paymentID]; ok && result.Outcome != payment.ChargeOutcomeRetryable {
		g.logger.Debugw("duplicate charge deduplicated", "payment_id", paymentID)
		return result, nil
	}

	result := g.draw(paymentID)
	g.settled[paymentID] = result
	return result, nil
}

func (g *Simulator) Lookup(ctx context.Context, paymentID string) (*payment.ChargeResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if result, ok := g.settled[paymentID]; ok {
		return result, nil
	}
	// Never seen: report no settled record so the caller re-attempts.
	return &payment.ChargeResult{Outcome: payment.ChargeOutcomeRetryable}, nil
}

func (g *Simulator) draw(paymentID string) *payment.ChargeResult {
	roll := rand.Intn(100)
	switch {
	case roll < g.retryablePct:
		return &payment.ChargeResult{
			Outcome:      payment.ChargeOutcomeRetryable,
			ErrorMessage: lo.ToPtr("simulated gateway timeout"),
		}
	case roll < g.retryablePct+g.fatalPct:
		return &payment.ChargeResult{
			Outcome:      payment.ChargeOutcomeFatal,
			ErrorMessage: lo.ToPtr("simulated card decline"),
		}
	default:
		return &payment.ChargeResult{
			Outcome:          payment.ChargeOutcomeSuccess,
			GatewayReference: lo.ToPtr(types.GenerateUUIDWithPrefix("gw")),
		}
	}
}
