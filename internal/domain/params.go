package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

const (
	OrderTypeMarket = "MARKET"
	OrderTypeLimit  = "LIMIT"
)

// FeeTier is a closed enumeration of exchange fee tiers.
type FeeTier int

const (
	FeeTierVIP0 FeeTier = iota // base tier, also the fallback
	FeeTierVIP1
	FeeTierVIP2
)

// String returns the string representation of the fee tier
func (t FeeTier) String() string {
	switch t {
	case FeeTierVIP0:
		return "VIP0"
	case FeeTierVIP1:
		return "VIP1"
	case FeeTierVIP2:
		return "VIP2"
	default:
		return "UNKNOWN"
	}
}

// ParseFeeTier maps a tier name to the enumeration. An unrecognized name
// falls back to the base tier explicitly; a silent zero-fee fallback would
// understate cost.
func ParseFeeTier(s string) FeeTier {
	switch s {
	case "VIP1":
		return FeeTierVIP1
	case "VIP2":
		return FeeTierVIP2
	default:
		return FeeTierVIP0
	}
}

// Volatility parameter bounds (percent). Mirrors the range the input form
// allows, enforced again here because the core cannot trust its callers.
var (
	MinVolatilityPct = decimal.NewFromFloat(0.1)
	MaxVolatilityPct = decimal.NewFromInt(10)
)

// SimulationParameters is the user-controlled input to a cost estimate.
// Quantity is denominated in the quote currency; models that need
// base-currency units convert via the best price.
type SimulationParameters struct {
	Exchange   string          `json:"exchange"`
	Asset      string          `json:"asset"`
	OrderType  string          `json:"order_type"` // "MARKET", "LIMIT"
	Quantity   decimal.Decimal `json:"quantity"`   // quote currency
	Volatility decimal.Decimal `json:"volatility"` // percent
	FeeTier    FeeTier         `json:"fee_tier"`
}

// Validate checks parameter validity
func (p *SimulationParameters) Validate() error {
	if p.Asset == "" {
		return fmt.Errorf("%w: empty asset", ErrInvalidParameters)
	}
	if p.OrderType != OrderTypeMarket && p.OrderType != OrderTypeLimit {
		return fmt.Errorf("%w: unknown order type %q", ErrInvalidParameters, p.OrderType)
	}
	if !p.Quantity.IsPositive() {
		return fmt.Errorf("%w: quantity must be positive, got %s", ErrInvalidParameters, p.Quantity)
	}
	if p.Volatility.LessThan(MinVolatilityPct) || p.Volatility.GreaterThan(MaxVolatilityPct) {
		return fmt.Errorf("%w: volatility %s outside [%s, %s]",
			ErrInvalidParameters, p.Volatility, MinVolatilityPct, MaxVolatilityPct)
	}
	return nil
}
