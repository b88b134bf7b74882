package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func level(price, size string) PriceLevel {
	p, _ := decimal.NewFromString(price)
	s, _ := decimal.NewFromString(size)
	return PriceLevel{Price: p, Size: s}
}

func TestBestLevels_ScanUnsortedInput(t *testing.T) {
	// The wire gives no ordering guarantee; best levels must be found by
	// scan, not by trusting index 0.
	book := &OrderBookSnapshot{
		Asks: []PriceLevel{level("102", "1"), level("100", "2"), level("101", "3")},
		Bids: []PriceLevel{level("97", "1"), level("99", "5"), level("98", "2")},
	}

	ask, ok := book.BestAsk()
	if !ok || !ask.Price.Equal(decimal.NewFromInt(100)) {
		t.Errorf("best ask = %+v, want price 100", ask)
	}
	bid, ok := book.BestBid()
	if !ok || !bid.Price.Equal(decimal.NewFromInt(99)) {
		t.Errorf("best bid = %+v, want price 99", bid)
	}
}

func TestBestLevels_EmptySides(t *testing.T) {
	book := &OrderBookSnapshot{}
	if _, ok := book.BestAsk(); ok {
		t.Error("empty ask side must report no best")
	}
	if _, ok := book.BestBid(); ok {
		t.Error("empty bid side must report no best")
	}
	if book.HasBothSides() {
		t.Error("empty book must not report both sides")
	}
}

func TestSortedSides(t *testing.T) {
	book := &OrderBookSnapshot{
		Asks: []PriceLevel{level("102", "1"), level("100", "2"), level("101", "3")},
		Bids: []PriceLevel{level("97", "1"), level("99", "5"), level("98", "2")},
	}

	asks := book.SortedAsks()
	for i := 1; i < len(asks); i++ {
		if asks[i].Price.LessThan(asks[i-1].Price) {
			t.Fatalf("asks not ascending at %d: %s < %s", i, asks[i].Price, asks[i-1].Price)
		}
	}
	bids := book.SortedBids()
	for i := 1; i < len(bids); i++ {
		if bids[i].Price.GreaterThan(bids[i-1].Price) {
			t.Fatalf("bids not descending at %d: %s > %s", i, bids[i].Price, bids[i-1].Price)
		}
	}

	// Originals untouched
	if !book.Asks[0].Price.Equal(decimal.NewFromInt(102)) {
		t.Error("SortedAsks must not mutate the snapshot")
	}
}
