package domain

import "time"

// Kline represents a single candlestick data point. The engine only consumes
// close prices (as the RSI input series), but the full candle is kept so the
// adapter stays a faithful translation of the exchange payload.
type Kline struct {
	OpenTime  time.Time // Start time of the interval
	CloseTime time.Time // End time of the interval
	Symbol    string    // Trading symbol
	Interval  string    // Kline interval (e.g., "1m", "1h")
	Open      float64   // Opening price
	High      float64   // Highest price
	Low       float64   // Lowest price
	Close     float64   // Closing price
	Volume    float64   // Trading volume
}

// ClosePrices extracts the ordered close series from a kline window.
func ClosePrices(klines []*Kline) []float64 {
	closes := make([]float64, 0, len(klines))
	for _, k := range klines {
		closes = append(closes, k.Close)
	}
	return closes
}
