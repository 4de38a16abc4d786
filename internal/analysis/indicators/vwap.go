package indicators

import (
	"fmt"

	"aetherquant/internal/domain"
	"aetherquant/internal/ports"
)

// VWAP computes the volume-weighted average price over a trade-tape window:
// sum(price_i * size_i) / sum(size_i).
// A window with zero total size is degenerate and yields ErrInsufficientData;
// the caller must supply a non-empty tape.
func VWAP(tape []domain.TradeTapeEntry) (float64, error) {
	var notional, volume float64
	for _, t := range tape {
		notional += t.Price * t.Size
		volume += t.Size
	}
	if volume == 0 {
		return 0, fmt.Errorf("VWAP over %d trades with zero total size: %w", len(tape), ports.ErrInsufficientData)
	}
	return notional / volume, nil
}
