package feed

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"tradesim/internal/domain"
)

// wireBook is the inbound frame format: one JSON object per frame, levels
// as [priceString, sizeString] pairs. No ordering guarantee is assumed.
type wireBook struct {
	Timestamp string     `json:"timestamp"`
	Exchange  string     `json:"exchange"`
	Symbol    string     `json:"symbol"`
	Asks      [][]string `json:"asks"`
	Bids      [][]string `json:"bids"`
}

// decodeSnapshot parses one frame into a snapshot. Any failure is a
// domain.ParseError: non-fatal for the connection, the previous snapshot
// stays authoritative.
func decodeSnapshot(data []byte) (*domain.OrderBookSnapshot, error) {
	var w wireBook
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, &domain.ParseError{Reason: "malformed frame", Err: err}
	}

	asks, err := parseLevels("ask", w.Asks)
	if err != nil {
		return nil, err
	}
	bids, err := parseLevels("bid", w.Bids)
	if err != nil {
		return nil, err
	}

	return &domain.OrderBookSnapshot{
		Timestamp: w.Timestamp,
		Exchange:  w.Exchange,
		Symbol:    w.Symbol,
		Asks:      asks,
		Bids:      bids,
	}, nil
}

func parseLevels(side string, raw [][]string) ([]domain.PriceLevel, error) {
	levels := make([]domain.PriceLevel, 0, len(raw))
	for i, pair := range raw {
		if len(pair) < 2 {
			return nil, &domain.ParseError{
				Reason: fmt.Sprintf("%s level %d: want [price, size], got %d fields", side, i, len(pair)),
			}
		}
		price, err := decimal.NewFromString(pair[0])
		if err != nil {
			return nil, &domain.ParseError{Reason: fmt.Sprintf("%s level %d price %q", side, i, pair[0]), Err: err}
		}
		size, err := decimal.NewFromString(pair[1])
		if err != nil {
			return nil, &domain.ParseError{Reason: fmt.Sprintf("%s level %d size %q", side, i, pair[1]), Err: err}
		}
		levels = append(levels, domain.PriceLevel{Price: price, Size: size})
	}
	return levels, nil
}
