package variable

import (
	"strings"
	"time"
)

// tierKey is the context key consumed by the CUSTOMER_TIER variable.
const tierKey = "customer_tier"

// defaultTier is emitted when the context carries no tier.
const defaultTier = "STD"

// CustomerTier resolves a short customer-tier code from the generation context.
// The context key is optional; absent tiers resolve to the STD default.
type CustomerTier struct {
	codes map[string]string
}

// NewCustomerTier creates the CUSTOMER_TIER variable.
func NewCustomerTier() *CustomerTier {
	return &CustomerTier{
		codes: map[string]string{
			"PLATINUM": "PLT",
			"GOLD":     "GLD",
			"SILVER":   "SLV",
			"BRONZE":   "BRZ",
		},
	}
}

// Name implements CustomVariable.
func (t *CustomerTier) Name() string { return "CUSTOMER_TIER" }

// Resolve implements CustomVariable.
func (t *CustomerTier) Resolve(ctx Context, _ time.Time) (string, error) {
	raw, ok := ctx.Lookup(tierKey)
	raw = strings.TrimSpace(raw)
	if !ok || raw == "" {
		return defaultTier, nil
	}
	upper := strings.ToUpper(raw)
	if code, found := t.codes[upper]; found {
		return code, nil
	}
	return upper, nil
}

// Validate implements CustomVariable. The tier key is optional, so any
// context is valid.
func (t *CustomerTier) Validate(Context) ValidationResult {
	return OK()
}

var _ CustomVariable = (*CustomerTier)(nil)
