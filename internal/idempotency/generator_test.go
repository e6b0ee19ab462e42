package idempotency

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprint(t *testing.T) {
	g := NewGenerator()

	t.Run("deterministic across param order", func(t *testing.T) {
		a := g.Fingerprint(ScopePayment, map[string]interface{}{
			"amount":   "100.5",
			"currency": "USD",
		})
		b := g.Fingerprint(ScopePayment, map[string]interface{}{
			"currency": "USD",
			"amount":   "100.5",
		})
		assert.Equal(t, a, b)
	})

	t.Run("different params produce different fingerprints", func(t *testing.T) {
		a := g.Fingerprint(ScopePayment, map[string]interface{}{
			"amount":   "100.5",
			"currency": "USD",
		})
		b := g.Fingerprint(ScopePayment, map[string]interface{}{
			"amount":   "100.5",
			"currency": "EUR",
		})
		assert.NotEqual(t, a, b)
	})

	t.Run("scope is part of the fingerprint", func(t *testing.T) {
		params := map[string]interface{}{"amount": "10"}
		a := g.Fingerprint(ScopePayment, params)
		b := g.Fingerprint(Scope("refund"), params)
		assert.NotEqual(t, a, b)
	})

	t.Run("sha256 hex encoded", func(t *testing.T) {
		fp := g.Fingerprint(ScopePayment, map[string]interface{}{"amount": "10"})
		assert.Len(t, fp, 64)
	})
}

func TestMatches(t *testing.T) {
	g := NewGenerator()
	params := map[string]interface{}{
		"amount":   "42",
		"currency": "GBP",
	}
	fp := g.Fingerprint(ScopePayment, params)

	assert.True(t, g.Matches(ScopePayment, params, fp))
	assert.False(t, g.Matches(ScopePayment, map[string]interface{}{
		"amount":   "43",
		"currency": "GBP",
	}, fp))
}
