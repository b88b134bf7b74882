package model

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"tradesim/internal/domain"
)

// feeRates is the fixed fee table keyed by tier, initialized once.
// Rates are taker-side fractions of quote notional.
var feeRates = map[domain.FeeTier]decimal.Decimal{
	domain.FeeTierVIP0: decimal.NewFromFloat(0.0010),
	domain.FeeTierVIP1: decimal.NewFromFloat(0.0008),
	domain.FeeTierVIP2: decimal.NewFromFloat(0.0006),
}

// FeeRate returns the fee rate for a tier. An unknown tier falls back to
// the base tier, never to a silent zero.
func FeeRate(tier domain.FeeTier) decimal.Decimal {
	if rate, ok := feeRates[tier]; ok {
		return rate
	}
	return feeRates[domain.FeeTierVIP0]
}

// CostEngine combines a snapshot, its derived metrics and user parameters
// into one cost estimate. One synchronous pass, no external I/O.
//
// Eta and Gamma are the Almgren-Chriss permanent/temporary impact
// coefficients. They are calibration knobs with conventional defaults,
// not values derived from data.
type CostEngine struct {
	Eta   float64
	Gamma float64
}

// NewCostEngine creates an engine with default calibration.
func NewCostEngine() *CostEngine {
	return &CostEngine{
		Eta:   0.01,
		Gamma: 0.1,
	}
}

// Estimate produces one SimulationResult. The book must have both best
// levels; the orchestrator guarantees this by skipping degenerate
// snapshots.
//
// Book-walk accumulation stays in exact decimals (see PriceImpact); the
// impact scaling and the logistic estimator use float64, which is fine for
// model-space math where the coefficients themselves are approximate.
func (e *CostEngine) Estimate(
	book *domain.OrderBookSnapshot,
	metrics domain.MarketMetrics,
	params domain.SimulationParameters,
) domain.SimulationResult {
	start := time.Now()

	bestAsk, ok := book.BestAsk()
	if !ok || bestAsk.Price.IsZero() {
		return domain.SimulationResult{}
	}

	// Quantity is quote-denominated; the walk needs base units.
	qtyBase := params.Quantity.Div(bestAsk.Price)

	slippagePct := e.slippage(book, metrics, qtyBase)
	fees := params.Quantity.Mul(FeeRate(params.FeeTier))
	impactPct := e.marketImpact(metrics, qtyBase, params.Volatility)
	makerTaker := e.makerTakerProportion(bestAsk, metrics, qtyBase)

	netCost := params.Quantity.Mul(slippagePct).Div(hundred).
		Add(fees).
		Add(params.Quantity.Mul(impactPct).Div(hundred))

	return domain.SimulationResult{
		ExpectedSlippagePct:     slippagePct,
		ExpectedFeesAbs:         fees,
		ExpectedMarketImpactPct: impactPct,
		NetCostAbs:              netCost,
		MakerTakerProportion:    makerTaker,
		ComputeLatencyMs:        float64(time.Since(start).Microseconds()) / 1000.0,
	}
}

// slippage scales the raw book-walk impact by imbalance pressure and by
// thinness of the depth band. Floored at zero.
func (e *CostEngine) slippage(
	book *domain.OrderBookSnapshot,
	metrics domain.MarketMetrics,
	qtyBase decimal.Decimal,
) decimal.Decimal {
	walk := PriceImpact(book.SortedAsks(), qtyBase).InexactFloat64()
	imbalance := metrics.Imbalance.InexactFloat64()
	depth := metrics.Depth.InexactFloat64()

	slip := walk * (1 + 0.5*math.Abs(imbalance)) * (1 + 100/(depth+1))
	if slip < 0 {
		slip = 0
	}
	return decimal.NewFromFloat(slip)
}

// marketImpact is the Almgren-Chriss-style two-term model: linear permanent
// impact plus quadratic volatility-scaled temporary impact, both amplified
// on thin books. Floored at zero.
func (e *CostEngine) marketImpact(
	metrics domain.MarketMetrics,
	qtyBase decimal.Decimal,
	volatilityPct decimal.Decimal,
) decimal.Decimal {
	qb := qtyBase.InexactFloat64()
	vol := volatilityPct.InexactFloat64() / 100.0
	depth := metrics.Depth.InexactFloat64()

	permanent := e.Eta * qb
	temporary := (e.Gamma / 2) * qb * qb * vol

	// Thin-book amplification: 1/sqrt(depth) grows as the band empties.
	// Sub-unit depth is routine (a BTC band holds fractions of a base unit),
	// so the true scale applies for any positive depth. Only an empty band
	// is guarded, with the unit-depth scale, to keep net cost finite.
	scale := 2.0
	if depth > 0 {
		scale = 1 + 1/math.Sqrt(depth)
	}
	impact := (permanent + temporary) * scale
	if impact < 0 {
		impact = 0
	}
	return decimal.NewFromFloat(impact)
}

// makerTakerProportion estimates the maker share of the order via a
// logistic over order size, spread, depth and imbalance. Larger and more
// urgent orders cross the spread; small orders on deep books rest.
func (e *CostEngine) makerTakerProportion(
	bestAsk domain.PriceLevel,
	metrics domain.MarketMetrics,
	qtyBase decimal.Decimal,
) decimal.Decimal {
	depth := metrics.Depth.InexactFloat64()
	spread := metrics.Spread.InexactFloat64()
	imbalance := metrics.Imbalance.InexactFloat64()

	relSize := 1.0
	if top := bestAsk.Size.InexactFloat64(); top > 0 {
		relSize = qtyBase.InexactFloat64() / top
	}
	spreadToDepth := spread / (depth + 1)

	z := 2.0 -
		1.5*relSize -
		0.5*spreadToDepth +
		0.3*math.Log1p(depth) -
		1.0*math.Abs(imbalance)

	p := 1 / (1 + math.Exp(-z))
	if p < 0 {
		p = 0
	} else if p > 1 {
		p = 1
	}
	return decimal.NewFromFloat(p)
}
