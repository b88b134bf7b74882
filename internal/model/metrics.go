package model

import (
	"github.com/shopspring/decimal"

	"tradesim/internal/domain"
)

var (
	// depthBand is the symmetric band around mid used for depth: levels
	// priced within mid*0.02 of mid count toward depth.
	depthBand = decimal.NewFromFloat(0.02)

	// maxImpactPct is the insufficient-liquidity sentinel. A fixed 100%
	// keeps downstream arithmetic (net cost) finite; an unbounded value
	// would poison every aggregate it feeds.
	maxImpactPct = decimal.NewFromInt(100)

	two     = decimal.NewFromInt(2)
	hundred = decimal.NewFromInt(100)
)

// ComputeMetrics derives market microstructure metrics from one snapshot.
// Pure: no mutation, no I/O. If either side's best level is absent it
// returns neutral zero metrics so callers can proceed with a "no data yet"
// state instead of failing.
func ComputeMetrics(book *domain.OrderBookSnapshot) domain.MarketMetrics {
	bestAsk, okAsk := book.BestAsk()
	bestBid, okBid := book.BestBid()
	if !okAsk || !okBid {
		return domain.MarketMetrics{}
	}

	// Spread may be <= 0 on a crossed book. That is valid-but-anomalous
	// input; consumers treat non-positive spread as a data-quality signal.
	spread := bestAsk.Price.Sub(bestBid.Price)
	mid := bestAsk.Price.Add(bestBid.Price).Div(two)

	band := mid.Mul(depthBand)
	bidDepth := sizeWithinBand(book.Bids, mid, band)
	askDepth := sizeWithinBand(book.Asks, mid, band)
	depth := bidDepth.Add(askDepth)

	// Divide-by-zero guard: an empty band yields zero imbalance, not NaN.
	imbalance := decimal.Zero
	if !depth.IsZero() {
		imbalance = bidDepth.Sub(askDepth).Div(depth)
	}

	// Liquidity-based proxy over the current spread, not a statistical
	// volatility estimate. Any future refinement should keep the two apart.
	volProxy := decimal.Zero
	if !mid.IsZero() {
		volProxy = spread.Div(mid).Mul(hundred)
	}

	return domain.MarketMetrics{
		Spread:          spread,
		MidPrice:        mid,
		Depth:           depth,
		Imbalance:       imbalance,
		VolatilityProxy: volProxy,
	}
}

func sizeWithinBand(levels []domain.PriceLevel, mid, band decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, lvl := range levels {
		if lvl.Price.Sub(mid).Abs().LessThanOrEqual(band) {
			total = total.Add(lvl.Size)
		}
	}
	return total
}

// VWAP returns the size-weighted average price over one side, zero if the
// side is empty or carries no size.
func VWAP(levels []domain.PriceLevel) decimal.Decimal {
	notional := decimal.Zero
	size := decimal.Zero
	for _, lvl := range levels {
		notional = notional.Add(lvl.Price.Mul(lvl.Size))
		size = size.Add(lvl.Size)
	}
	if size.IsZero() {
		return decimal.Zero
	}
	return notional.Div(size)
}

// PriceImpact walks price levels from the best outward, accumulating size
// until qtyBase is filled, and returns the percentage gap between the
// average fill price and the best price. Levels must be ordered best-first
// (SortedAsks for a buy, SortedBids for a sell); the walk does not trust
// raw wire order.
//
// If total available size is less than qtyBase, liquidity is insufficient
// and the fixed 100% sentinel is returned.
func PriceImpact(levels []domain.PriceLevel, qtyBase decimal.Decimal) decimal.Decimal {
	if !qtyBase.IsPositive() || len(levels) == 0 {
		return decimal.Zero
	}

	best := levels[0].Price
	if best.IsZero() {
		return decimal.Zero
	}

	remaining := qtyBase
	notional := decimal.Zero
	for _, lvl := range levels {
		fill := lvl.Size
		if fill.GreaterThan(remaining) {
			fill = remaining
		}
		notional = notional.Add(lvl.Price.Mul(fill))
		remaining = remaining.Sub(fill)
		if remaining.IsZero() {
			break
		}
	}

	if remaining.IsPositive() {
		return maxImpactPct
	}

	avg := notional.Div(qtyBase)
	return avg.Sub(best).Abs().Div(best).Mul(hundred)
}
