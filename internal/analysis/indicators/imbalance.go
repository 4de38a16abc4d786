package indicators

import (
	"fmt"

	"aetherquant/internal/domain"
	"aetherquant/internal/ports"
)

// MaxImbalanceRatio caps the ask/bid ratio when the bid side is empty but the
// ask side is not. A finite cap keeps the alert comparison well-defined.
const MaxImbalanceRatio = 999.0

// ImbalanceRatio computes askVolume/bidVolume over the top `depth` levels.
// A ratio above the alert threshold reads as sell pressure (sell wall), a
// ratio below the reciprocal reads as buy pressure (buy wall).
// Both sides empty is degenerate and yields ErrInsufficientData.
func ImbalanceRatio(snap *domain.OrderBookSnapshot, depth int) (float64, error) {
	bidVol := snap.BidVolume(depth)
	askVol := snap.AskVolume(depth)
	if bidVol == 0 && askVol == 0 {
		return 0, fmt.Errorf("imbalance ratio for %s with empty book: %w", snap.Symbol, ports.ErrInsufficientData)
	}
	if bidVol == 0 {
		return MaxImbalanceRatio, nil
	}
	return askVol / bidVol, nil
}

// DepthImbalance computes the normalized difference
// (bidVolume-askVolume)/(bidVolume+askVolume) over the top `depth` levels.
// The result is bounded to [-1, 1]; positive means a bid-heavy book.
// Zero total depth yields ErrInsufficientData.
func DepthImbalance(snap *domain.OrderBookSnapshot, depth int) (float64, error) {
	bidVol := snap.BidVolume(depth)
	askVol := snap.AskVolume(depth)
	total := bidVol + askVol
	if total == 0 {
		return 0, fmt.Errorf("depth imbalance for %s with zero total depth: %w", snap.Symbol, ports.ErrInsufficientData)
	}
	return (bidVol - askVol) / total, nil
}

// DeltaOFI computes the order-flow imbalance delta between two consecutive
// snapshots over the top `depth` levels:
//
//	(bidVol_t - bidVol_t-1) - (askVol_t - askVol_t-1)
//
// A positive delta means bid-side depth grew relative to ask-side depth.
// Returns 0 when there is no prior snapshot.
func DeltaOFI(current, previous *domain.OrderBookSnapshot, depth int) float64 {
	if current == nil || previous == nil {
		return 0
	}
	deltaBid := current.BidVolume(depth) - previous.BidVolume(depth)
	deltaAsk := current.AskVolume(depth) - previous.AskVolume(depth)
	return deltaBid - deltaAsk
}
