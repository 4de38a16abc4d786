package domain

import "time"

// IndicatorResult is the immutable value object produced by one engine
// computation. It is derived solely from the snapshots and windows passed in,
// so identical inputs always yield an identical result.
type IndicatorResult struct {
	Symbol string
	Price  float64 // last trade price from the tape window

	// VWAP is the volume-weighted average price over the tape window.
	VWAP float64
	// RSI is the Wilder-smoothed relative strength index in [0, 100].
	RSI float64
	// ImbalanceRatio is askVolume/bidVolume over the configured top-N depth
	// levels. Above the alert threshold means sell pressure, below the
	// reciprocal means buy pressure. This is the metric the monitor compares.
	ImbalanceRatio float64
	// DepthImbalance is (bidVol-askVol)/(bidVol+askVol) over the same levels,
	// bounded to [-1, 1]. Positive means bid-heavy.
	DepthImbalance float64
	// OFI is the delta order-flow imbalance against the previous snapshot:
	// (bidVol_t - bidVol_t-1) - (askVol_t - askVol_t-1). Zero without history.
	OFI float64

	Classification Classification
	ComputedAt     time.Time
}
