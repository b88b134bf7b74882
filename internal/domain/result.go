package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MarketMetrics holds microstructure values derived from one snapshot.
// They are transient: recomputed on every snapshot, owned by the call that
// produced them, never cached.
type MarketMetrics struct {
	Spread          decimal.Decimal `json:"spread"`
	MidPrice        decimal.Decimal `json:"mid_price"`
	Depth           decimal.Decimal `json:"depth"`      // size within the ±2% band around mid
	Imbalance       decimal.Decimal `json:"imbalance"`  // (bidDepth-askDepth)/(bidDepth+askDepth), in [-1, 1]
	VolatilityProxy decimal.Decimal `json:"volatility"` // (spread/mid)*100; liquidity proxy, not a statistical estimate
}

// SimulationResult is one full cost estimate. Immutable after creation.
type SimulationResult struct {
	ExpectedSlippagePct     decimal.Decimal `json:"expected_slippage_pct"`
	ExpectedFeesAbs         decimal.Decimal `json:"expected_fees_abs"`
	ExpectedMarketImpactPct decimal.Decimal `json:"expected_market_impact_pct"`
	NetCostAbs              decimal.Decimal `json:"net_cost_abs"`
	MakerTakerProportion    decimal.Decimal `json:"maker_taker_proportion"` // in [0, 1]
	ComputeLatencyMs        float64         `json:"compute_latency_ms"`     // diagnostic only
}

// TimeSeriesPoint captures one snapshot-driven recomputation for the
// bounded history ring. Never mutated after append.
type TimeSeriesPoint struct {
	Timestamp               time.Time       `json:"timestamp"`
	ExpectedSlippagePct     decimal.Decimal `json:"expected_slippage_pct"`
	ExpectedFeesAbs         decimal.Decimal `json:"expected_fees_abs"`
	ExpectedMarketImpactPct decimal.Decimal `json:"expected_market_impact_pct"`
	NetCostAbs              decimal.Decimal `json:"net_cost_abs"`
	MakerTakerProportion    decimal.Decimal `json:"maker_taker_proportion"`
	BestAsk                 decimal.Decimal `json:"best_ask"`
	BestBid                 decimal.Decimal `json:"best_bid"`
}
