package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Scope represents the scope of idempotency
type Scope string

const (
	ScopePayment Scope = "payment"
)

// Generator derives deterministic request fingerprints. Two requests with
// the same scope and normalized params always produce the same fingerprint,
// which is how key reuse with a different payload is detected.
type Generator struct{}

// NewGenerator creates a new fingerprint generator
func NewGenerator() *Generator {
	return &Generator{}
}

// Fingerprint generates a fingerprint from a scope and parameters
func (g *Generator) Fingerprint(scope Scope, params map[string]interface{}) string {
	// Sort params for consistent hashing
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	// Build hash input
	var b strings.Builder
	b.WriteString(string(scope))
	for _, k := range keys {
		b.WriteString(fmt.Sprintf(":%s=%v", k, params[k]))
	}

	// SHA-256, hex encoded
	hash := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(hash[:])
}

// Matches validates whether a fingerprint corresponds to the given parameters
func (g *Generator) Matches(scope Scope, params map[string]interface{}, fingerprint string) bool {
	return g.Fingerprint(scope, params) == fingerprint
}
