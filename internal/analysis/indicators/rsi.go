package indicators

import (
	"fmt"

	"aetherquant/internal/ports"
)

// RSI implements the Relative Strength Index over a close-price series.
// Average gain and loss use Wilder's smoothing: the first `period` moves seed
// a simple average, every later move is folded in with weight 1/period.
type RSI struct {
	period int
}

// NewRSI creates a new RSI indicator instance.
func NewRSI(period int) (*RSI, error) {
	if period <= 0 {
		return nil, fmt.Errorf("RSI period must be positive, got %d", period)
	}
	return &RSI{period: period}, nil
}

// RequiredDataPoints returns the minimum number of closes needed.
func (r *RSI) RequiredDataPoints() int {
	return r.period + 1
}

// Calculate computes the RSI value in [0, 100] for the given close series.
func (r *RSI) Calculate(closes []float64) (float64, error) {
	if len(closes) < r.period+1 {
		return 0, fmt.Errorf("RSI needs %d closes, got %d: %w", r.period+1, len(closes), ports.ErrInsufficientData)
	}

	changes := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		changes = append(changes, closes[i]-closes[i-1])
	}

	// Seed averages over the first full period
	var avgGain, avgLoss float64
	for i := 0; i < r.period; i++ {
		if changes[i] > 0 {
			avgGain += changes[i]
		} else {
			avgLoss -= changes[i]
		}
	}
	avgGain /= float64(r.period)
	avgLoss /= float64(r.period)

	// Wilder's smoothing over the remainder of the series
	for i := r.period; i < len(changes); i++ {
		if changes[i] > 0 {
			avgGain = (avgGain*float64(r.period-1) + changes[i]) / float64(r.period)
			avgLoss = (avgLoss * float64(r.period-1)) / float64(r.period)
		} else {
			avgGain = (avgGain * float64(r.period-1)) / float64(r.period)
			avgLoss = (avgLoss*float64(r.period-1) - changes[i]) / float64(r.period)
		}
	}

	if avgLoss == 0 {
		if avgGain == 0 {
			return 50, nil // Flat series: neutral
		}
		return 100, nil
	}
	if avgGain == 0 {
		return 0, nil
	}

	rs := avgGain / avgLoss
	rsi := 100 - (100 / (1 + rs))

	if rsi > 100 {
		rsi = 100
	} else if rsi < 0 {
		rsi = 0
	}
	return rsi, nil
}
