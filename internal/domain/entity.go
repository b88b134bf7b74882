package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ParameterPreset is a persisted, named set of simulation parameters.
// Decimal fields are stored as strings to keep exact values across runs.
type ParameterPreset struct {
	Name       string    `gorm:"primaryKey" json:"name"`
	Exchange   string    `json:"exchange"`
	Asset      string    `json:"asset"`
	OrderType  string    `json:"order_type"`
	Quantity   string    `json:"quantity"`
	Volatility string    `json:"volatility"`
	FeeTier    string    `json:"fee_tier"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// AppSetting represents user-specific configuration (Key-Value)
type AppSetting struct {
	Key       string    `gorm:"primaryKey" json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewParameterPreset converts parameters into their persisted form.
func NewParameterPreset(name string, p SimulationParameters) *ParameterPreset {
	return &ParameterPreset{
		Name:       name,
		Exchange:   p.Exchange,
		Asset:      p.Asset,
		OrderType:  p.OrderType,
		Quantity:   p.Quantity.String(),
		Volatility: p.Volatility.String(),
		FeeTier:    p.FeeTier.String(),
	}
}

// Parameters reconstructs simulation parameters from the persisted form.
// Malformed stored decimals surface as an error rather than a zero value.
func (pp *ParameterPreset) Parameters() (SimulationParameters, error) {
	qty, err := decimal.NewFromString(pp.Quantity)
	if err != nil {
		return SimulationParameters{}, err
	}
	vol, err := decimal.NewFromString(pp.Volatility)
	if err != nil {
		return SimulationParameters{}, err
	}
	return SimulationParameters{
		Exchange:   pp.Exchange,
		Asset:      pp.Asset,
		OrderType:  pp.OrderType,
		Quantity:   qty,
		Volatility: vol,
		FeeTier:    ParseFeeTier(pp.FeeTier),
	}, nil
}
