package domain

import (
	"sort"

	"github.com/shopspring/decimal"
)

// PriceLevel is one resting level of an order book side.
type PriceLevel struct {
	Price decimal.Decimal `json:"price"`
	Size  decimal.Decimal `json:"size"`
}

// OrderBookSnapshot represents one complete order-book state for a single
// instrument, delivered as a single feed event. Prices and sizes are exact
// decimals; repeated multiply/sum over binary floats would accumulate error.
type OrderBookSnapshot struct {
	Timestamp string       `json:"timestamp"`
	Exchange  string       `json:"exchange"`
	Symbol    string       `json:"symbol"`
	Asks      []PriceLevel `json:"asks"`
	Bids      []PriceLevel `json:"bids"`
}

// BestAsk returns the lowest-priced ask level. The wire gives no ordering
// guarantee, so this scans instead of trusting index 0.
func (s *OrderBookSnapshot) BestAsk() (PriceLevel, bool) {
	if len(s.Asks) == 0 {
		return PriceLevel{}, false
	}
	best := s.Asks[0]
	for _, lvl := range s.Asks[1:] {
		if lvl.Price.LessThan(best.Price) {
			best = lvl
		}
	}
	return best, true
}

// BestBid returns the highest-priced bid level.
func (s *OrderBookSnapshot) BestBid() (PriceLevel, bool) {
	if len(s.Bids) == 0 {
		return PriceLevel{}, false
	}
	best := s.Bids[0]
	for _, lvl := range s.Bids[1:] {
		if lvl.Price.GreaterThan(best.Price) {
			best = lvl
		}
	}
	return best, true
}

// HasBothSides reports whether both sides have at least one level.
// A snapshot failing this check is degenerate and must not drive a
// recomputation.
func (s *OrderBookSnapshot) HasBothSides() bool {
	return len(s.Asks) > 0 && len(s.Bids) > 0
}

// SortedAsks returns the ask levels ordered ascending by price.
// The receiver is not mutated.
func (s *OrderBookSnapshot) SortedAsks() []PriceLevel {
	out := make([]PriceLevel, len(s.Asks))
	copy(out, s.Asks)
	sort.Slice(out, func(i, j int) bool {
		return out[i].Price.LessThan(out[j].Price)
	})
	return out
}

// SortedBids returns the bid levels ordered descending by price.
// The receiver is not mutated.
func (s *OrderBookSnapshot) SortedBids() []PriceLevel {
	out := make([]PriceLevel, len(s.Bids))
	copy(out, s.Bids)
	sort.Slice(out, func(i, j int) bool {
		return out[i].Price.GreaterThan(out[j].Price)
	})
	return out
}
