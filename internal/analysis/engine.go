package analysis

import (
	"context"
	"fmt"

	"aetherquant/internal/analysis/indicators"
	"aetherquant/internal/domain"
	"aetherquant/internal/ports"
)

// Config holds the tunables of the indicator engine.
type Config struct {
	RSIPeriod   int
	DepthLevels int // Top-N levels for the imbalance ratio and normalized difference
	OFIDepth    int // Top-N levels for delta-OFI

	// AlertThreshold is the ask/bid ratio above which the book classifies as
	// a sell wall; its reciprocal is the buy-side trigger. The monitor must
	// compare against the same value so engine output and alerting agree.
	AlertThreshold float64

	// Buy-wall detection: the largest bid level within BandPct of the best
	// bid must carry at least Concentration of the top-N bid depth.
	BuyWallConcentration float64
	BuyWallBandPct       float64

	// Sell-iceberg detection across consecutive snapshots: at least
	// MinExecuted size traded at the previous best ask while the level
	// retained DepleteRatio of its resting depth.
	IcebergMinExecuted  float64
	IcebergDepleteRatio float64
}

// Engine computes indicator results from market snapshots. It is stateless
// and deterministic: everything derives from the inputs of a single Compute
// call, so identical inputs produce identical results.
type Engine struct {
	cfg    Config
	rsi    *indicators.RSI
	logger ports.Logger
}

// New creates a new indicator engine.
func New(cfg Config, logger ports.Logger) (*Engine, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for indicator engine")
	}
	if cfg.DepthLevels <= 0 {
		return nil, fmt.Errorf("DepthLevels must be positive, got %d", cfg.DepthLevels)
	}
	if cfg.OFIDepth <= 0 {
		return nil, fmt.Errorf("OFIDepth must be positive, got %d", cfg.OFIDepth)
	}
	if cfg.AlertThreshold <= 1.0 {
		return nil, fmt.Errorf("AlertThreshold must exceed 1.0, got %f", cfg.AlertThreshold)
	}
	rsi, err := indicators.NewRSI(cfg.RSIPeriod)
	if err != nil {
		return nil, fmt.Errorf("failed to construct RSI indicator: %w", err)
	}
	return &Engine{cfg: cfg, rsi: rsi, logger: logger}, nil
}

// RequiredCloses returns the minimum length of the prior-close series.
func (e *Engine) RequiredCloses() int {
	return e.rsi.RequiredDataPoints()
}

// Compute derives an IndicatorResult from the current order book, the bounded
// snapshot history (most recent last), the trade-tape window and the
// prior-close series. It has no side effects and reads no state beyond its
// arguments; ComputedAt is taken from the snapshot timestamp so the result is
// reproducible.
func (e *Engine) Compute(
	ctx context.Context,
	snap *domain.OrderBookSnapshot,
	history []*domain.OrderBookSnapshot,
	tape []domain.TradeTapeEntry,
	priorCloses []float64,
) (*domain.IndicatorResult, error) {
	if snap == nil {
		return nil, fmt.Errorf("nil order book snapshot: %w", ports.ErrInvalidRequest)
	}

	ratio, err := indicators.ImbalanceRatio(snap, e.cfg.DepthLevels)
	if err != nil {
		return nil, err
	}
	depthImb, err := indicators.DepthImbalance(snap, e.cfg.DepthLevels)
	if err != nil {
		return nil, err
	}

	vwap, err := indicators.VWAP(tape)
	if err != nil {
		return nil, err
	}

	rsi, err := e.rsi.Calculate(priorCloses)
	if err != nil {
		return nil, err
	}

	var prev *domain.OrderBookSnapshot
	if len(history) > 0 {
		prev = history[len(history)-1]
	}
	ofi := indicators.DeltaOFI(snap, prev, e.cfg.OFIDepth)

	result := &domain.IndicatorResult{
		Symbol:         snap.Symbol,
		Price:          tape[len(tape)-1].Price,
		VWAP:           vwap,
		RSI:            rsi,
		ImbalanceRatio: ratio,
		DepthImbalance: depthImb,
		OFI:            ofi,
		Classification: e.classify(snap, prev, tape, ratio),
		ComputedAt:     snap.Timestamp,
	}

	e.logger.Debug(ctx, "Indicators computed", map[string]interface{}{
		"symbol":         result.Symbol,
		"vwap":           result.VWAP,
		"rsi":            result.RSI,
		"imbalanceRatio": result.ImbalanceRatio,
		"ofi":            result.OFI,
		"classification": result.Classification,
	})
	return result, nil
}

// classify maps the book shape onto the closed Classification set. Iceberg
// detection needs a prior snapshot; wall detection works on a single one.
// Precedence: a replenishing ask level outranks static wall shapes.
func (e *Engine) classify(
	snap, prev *domain.OrderBookSnapshot,
	tape []domain.TradeTapeEntry,
	ratio float64,
) domain.Classification {
	if prev != nil && e.isSellIceberg(snap, prev, tape) {
		return domain.ClassificationSellIceberg
	}
	if e.isBuyWall(snap) || ratio < 1/e.cfg.AlertThreshold {
		return domain.ClassificationBuyWall
	}
	if ratio > e.cfg.AlertThreshold {
		return domain.ClassificationSellWall
	}
	return domain.ClassificationNeutral
}

// isBuyWall reports whether a single bid level within a narrow band of the
// best bid concentrates a configured share of the top-N bid depth.
func (e *Engine) isBuyWall(snap *domain.OrderBookSnapshot) bool {
	best := snap.BestBid()
	if best.Price == 0 {
		return false
	}
	totalBid := snap.BidVolume(e.cfg.DepthLevels)
	if totalBid == 0 {
		return false
	}
	floor := best.Price * (1 - e.cfg.BuyWallBandPct)
	var largest float64
	for _, l := range snap.Bids {
		if l.Price < floor {
			break // bids are ordered best first
		}
		if l.Size > largest {
			largest = l.Size
		}
	}
	return largest/totalBid >= e.cfg.BuyWallConcentration
}

// isSellIceberg reports whether the previous best-ask level absorbed
// executions without depleting: enough taker-buy size printed at that price
// while the level still holds most of its prior depth in the new snapshot.
func (e *Engine) isSellIceberg(snap, prev *domain.OrderBookSnapshot, tape []domain.TradeTapeEntry) bool {
	level := prev.BestAsk()
	if level.Price == 0 || level.Size == 0 {
		return false
	}
	var executed float64
	for _, t := range tape {
		if t.Side == domain.Buy && t.Price == level.Price && !t.Timestamp.Before(prev.Timestamp) {
			executed += t.Size
		}
	}
	if executed < e.cfg.IcebergMinExecuted {
		return false
	}
	remaining := snap.DepthAtAsk(level.Price)
	return remaining >= level.Size*e.cfg.IcebergDepleteRatio
}
