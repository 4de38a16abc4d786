package domain

import "time"

// PriceLevel holds a single price/size pair on one side of the book.
type PriceLevel struct {
	Price float64
	Size  float64
}

// OrderBookSnapshot represents captured Level 2 depth at a specific moment.
// Snapshots are immutable once captured; the monitor retains only the most
// recent few per symbol for cross-snapshot indicators.
type OrderBookSnapshot struct {
	Symbol    string
	Timestamp time.Time
	Bids      []PriceLevel // ordered best (highest) bid first
	Asks      []PriceLevel // ordered best (lowest) ask first
}

// BestBid returns the top bid level, or a zero level if the bid side is empty.
func (s *OrderBookSnapshot) BestBid() PriceLevel {
	if len(s.Bids) == 0 {
		return PriceLevel{}
	}
	return s.Bids[0]
}

// BestAsk returns the top ask level, or a zero level if the ask side is empty.
func (s *OrderBookSnapshot) BestAsk() PriceLevel {
	if len(s.Asks) == 0 {
		return PriceLevel{}
	}
	return s.Asks[0]
}

// BidVolume sums bid sizes over the top `depth` levels.
func (s *OrderBookSnapshot) BidVolume(depth int) float64 {
	return sumLevels(s.Bids, depth)
}

// AskVolume sums ask sizes over the top `depth` levels.
func (s *OrderBookSnapshot) AskVolume(depth int) float64 {
	return sumLevels(s.Asks, depth)
}

// DepthAtAsk returns the resting size at an exact ask price, 0 if absent.
func (s *OrderBookSnapshot) DepthAtAsk(price float64) float64 {
	for _, l := range s.Asks {
		if l.Price == price {
			return l.Size
		}
	}
	return 0
}

func sumLevels(levels []PriceLevel, depth int) float64 {
	if depth <= 0 || depth > len(levels) {
		depth = len(levels)
	}
	var total float64
	for _, l := range levels[:depth] {
		total += l.Size
	}
	return total
}

// TradeTapeEntry represents a single print on the trade tape. Entries are
// time-ordered and consumed as a sliding window (last K prints).
type TradeTapeEntry struct {
	Timestamp time.Time
	Price     float64
	Size      float64
	Side      TradeSide
}
