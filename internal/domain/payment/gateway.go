package payment

import (
	"context"

	"github.com/shopspring/decimal"
)

// ChargeOutcome classifies a gateway response
type ChargeOutcome string

const (
	// ChargeOutcomeSuccess means the charge settled
	ChargeOutcomeSuccess ChargeOutcome = "SUCCESS"
	// ChargeOutcomeRetryable means a transient failure (timeout, 5xx); the
	// orchestrator backs off and retries
	ChargeOutcomeRetryable ChargeOutcome = "RETRYABLE_FAILURE"
	// ChargeOutcomeFatal means a business rejection (declined, invalid); the
	// payment is failed immediately
	ChargeOutcomeFatal ChargeOutcome = "FATAL_FAILURE"
)

// ChargeResult is the gateway's answer for a payment
type ChargeResult struct {
	Outcome ChargeOutcome `json:"outcome"`
	// GatewayReference is the processor side transaction id, if any
	GatewayReference *string `json:"gateway_reference,omitempty"`
	// ErrorMessage carries the decline or failure detail, if any
	ErrorMessage *string `json:"error_message,omitempty"`
}

// Gateway is the external payment processor. The contract requires the
// gateway to deduplicate on payment id: repeated Charge calls for the same
// payment from retries or reconciliation must not double-charge.
type Gateway interface {
	// Charge submits the payment for settlement
	Charge(ctx context.Context, paymentID string, amount decimal.Decimal, currency string) (*ChargeResult, error)

	// Lookup returns the gateway's authoritative record for a payment it has
	// seen before. Used by reconciliation; an error means the gateway is
	// unreachable and the caller must leave the payment untouched.
	Lookup(ctx context.Context, paymentID string) (*ChargeResult, error)
}
