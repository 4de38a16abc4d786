package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"aetherquant/internal/analysis"
	"aetherquant/internal/domain"
	"aetherquant/internal/ports"
	"aetherquant/internal/report"
)

// Config holds the alert monitor tunables.
type Config struct {
	Interval               time.Duration // Cycle period while a session is enabled
	FirstDelay             time.Duration // Delay before the first cycle after enabling
	Threshold              float64       // Ask/bid ratio; reciprocal triggers the buy side
	Cooldown               time.Duration // Minimum gap between alerts per chat/symbol
	MaxConsecutiveFailures int           // Fetch failures before the degraded notice
	DepthLevels            int           // Order book depth per side requested per cycle
	TradeWindow            int           // Tape entries requested per cycle
	KlineInterval          string        // Interval for the prior-close series
	BookHistorySize        int           // Snapshots retained per session
}

// session is the per-chat monitoring state. All fields after construction are
// touched only by the session's own cycle goroutine; the map of sessions is
// what the mutex protects.
type session struct {
	chatID int64
	symbol string
	cancel context.CancelFunc

	lastFired           time.Time
	consecutiveFailures int
	degradedNotified    bool
	history             []*domain.OrderBookSnapshot
}

// Monitor runs the periodic fetch→compute→compare loop per enabled chat and
// fires imbalance alerts with cooldown-based duplicate suppression.
type Monitor struct {
	cfg       Config
	logger    ports.Logger
	market    ports.MarketDataSource
	engine    *analysis.Engine
	formatter *report.Formatter
	notifier  ports.Notifier
	alertRepo ports.AlertRepository

	mu       sync.Mutex
	sessions map[int64]*session
	wg       sync.WaitGroup
}

// New creates a new alert monitor.
func New(
	cfg Config,
	logger ports.Logger,
	market ports.MarketDataSource,
	engine *analysis.Engine,
	formatter *report.Formatter,
	notifier ports.Notifier,
	alertRepo ports.AlertRepository,
) (*Monitor, error) {
	if logger == nil || market == nil || engine == nil || formatter == nil || notifier == nil {
		return nil, fmt.Errorf("missing required dependencies for Monitor")
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("monitor Interval must be positive")
	}
	if cfg.Threshold <= 1.0 {
		return nil, fmt.Errorf("monitor Threshold must exceed 1.0")
	}
	if cfg.MaxConsecutiveFailures <= 0 {
		return nil, fmt.Errorf("monitor MaxConsecutiveFailures must be positive")
	}
	if cfg.BookHistorySize < 2 {
		return nil, fmt.Errorf("monitor BookHistorySize must be at least 2")
	}
	if cfg.FirstDelay <= 0 {
		cfg.FirstDelay = 10 * time.Second
	}
	return &Monitor{
		cfg:       cfg,
		logger:    logger,
		market:    market,
		engine:    engine,
		formatter: formatter,
		notifier:  notifier,
		alertRepo: alertRepo,
		sessions:  make(map[int64]*session),
	}, nil
}

// Toggle flips monitoring for a chat between Disabled and Enabled and returns
// the new state. Enabling starts the cycle goroutine; disabling cancels it,
// which takes effect no later than the start of the next cycle; an in-flight
// fetch completes but its result is discarded.
func (m *Monitor) Toggle(ctx context.Context, chatID int64, symbol string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, enabled := m.sessions[chatID]; enabled {
		s.cancel()
		delete(m.sessions, chatID)
		m.logger.Info(ctx, "Monitoring disabled", map[string]interface{}{"chatID": chatID, "symbol": s.symbol})
		return false
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s := &session{chatID: chatID, symbol: symbol, cancel: cancel}

	// Seed the cooldown from persisted alert history so a restart does not
	// re-fire immediately.
	if m.alertRepo != nil {
		if last, err := m.alertRepo.LastFiredAt(ctx, chatID, symbol); err != nil {
			m.logger.Warn(ctx, "Failed to load last alert time; cooldown starts fresh", map[string]interface{}{"chatID": chatID, "error": err.Error()})
		} else {
			s.lastFired = last
		}
	}

	m.sessions[chatID] = s
	m.wg.Add(1)
	go m.run(runCtx, s)

	m.logger.Info(ctx, "Monitoring enabled", map[string]interface{}{"chatID": chatID, "symbol": symbol, "interval": m.cfg.Interval.String()})
	return true
}

// IsEnabled reports whether monitoring is active for a chat.
func (m *Monitor) IsEnabled(chatID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[chatID]
	return ok
}

// Shutdown disables every session and waits for cycle goroutines to exit.
func (m *Monitor) Shutdown() {
	m.mu.Lock()
	for chatID, s := range m.sessions {
		s.cancel()
		delete(m.sessions, chatID)
	}
	m.mu.Unlock()
	m.wg.Wait()
}

// run drives the periodic cycles for one session until its context is
// cancelled. Cycles are strictly sequential: a new one cannot start before
// the previous compare step finished.
func (m *Monitor) run(ctx context.Context, s *session) {
	defer m.wg.Done()

	first := time.NewTimer(m.cfg.FirstDelay)
	defer first.Stop()
	select {
	case <-ctx.Done():
		return
	case <-first.C:
	}
	m.runCycle(ctx, s)

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			m.logger.Debug(ctx, "Monitoring loop stopped", map[string]interface{}{"chatID": s.chatID})
			return
		case <-ticker.C:
			m.runCycle(ctx, s)
		}
	}
}

// runCycle performs one fetch→compute→compare pass. Errors are absorbed: a
// failed cycle logs, bumps the failure counter and leaves the loop running.
func (m *Monitor) runCycle(ctx context.Context, s *session) {
	// Cancellation is checked at cycle start so a toggle-off never waits for
	// the full interval plus a cycle.
	if ctx.Err() != nil {
		return
	}

	res, snap, err := m.observe(ctx, s)
	if err != nil {
		m.handleCycleFailure(ctx, s, err)
		return
	}

	// The fetch may have been in flight while the session was toggled off;
	// a flipped state discards the result before the compare step.
	if ctx.Err() != nil {
		m.logger.Debug(context.Background(), "Cycle result discarded after toggle-off", map[string]interface{}{"chatID": s.chatID})
		return
	}

	if s.consecutiveFailures > 0 {
		m.logger.Info(ctx, "Monitoring recovered", map[string]interface{}{"chatID": s.chatID, "failures": s.consecutiveFailures})
	}
	s.consecutiveFailures = 0
	s.degradedNotified = false

	s.history = append(s.history, snap)
	if len(s.history) > m.cfg.BookHistorySize {
		s.history = s.history[len(s.history)-m.cfg.BookHistorySize:]
	}

	m.compare(ctx, s, res)
}

// observe fetches fresh market data and computes indicators against the
// session's snapshot history.
func (m *Monitor) observe(ctx context.Context, s *session) (*domain.IndicatorResult, *domain.OrderBookSnapshot, error) {
	snap, err := m.market.GetOrderBook(ctx, s.symbol, m.cfg.DepthLevels)
	if err != nil {
		return nil, nil, fmt.Errorf("order book fetch: %w", err)
	}
	tape, err := m.market.GetRecentTrades(ctx, s.symbol, m.cfg.TradeWindow)
	if err != nil {
		return nil, nil, fmt.Errorf("trade tape fetch: %w", err)
	}
	klines, err := m.market.GetKlines(ctx, s.symbol, m.cfg.KlineInterval, m.engine.RequiredCloses())
	if err != nil {
		return nil, nil, fmt.Errorf("kline fetch: %w", err)
	}

	res, err := m.engine.Compute(ctx, snap, s.history, tape, domain.ClosePrices(klines))
	if err != nil {
		return nil, nil, fmt.Errorf("indicator computation: %w", err)
	}
	return res, snap, nil
}

// compare applies the threshold and cooldown rules and fires at most one alert.
func (m *Monitor) compare(ctx context.Context, s *session, res *domain.IndicatorResult) {
	breach := res.ImbalanceRatio > m.cfg.Threshold || res.ImbalanceRatio < 1/m.cfg.Threshold
	if !breach {
		m.logger.Debug(ctx, "No threshold breach this cycle", map[string]interface{}{"chatID": s.chatID, "ratio": res.ImbalanceRatio})
		return
	}

	now := time.Now()
	if !s.lastFired.IsZero() && now.Sub(s.lastFired) < m.cfg.Cooldown {
		m.logger.Debug(ctx, "Alert suppressed by cooldown", map[string]interface{}{
			"chatID": s.chatID, "ratio": res.ImbalanceRatio, "sinceLast": now.Sub(s.lastFired).String(),
		})
		return
	}

	text := m.formatter.AlertMessage(res)
	if err := m.notifier.Notify(ctx, s.chatID, text); err != nil {
		m.logger.Error(ctx, err, "Failed to deliver alert; will retry next breach", map[string]interface{}{"chatID": s.chatID})
		return
	}
	s.lastFired = now

	m.logger.Info(ctx, "Alert fired", map[string]interface{}{
		"chatID": s.chatID, "symbol": s.symbol, "ratio": res.ImbalanceRatio, "classification": res.Classification,
	})

	if m.alertRepo != nil {
		alert := &domain.Alert{
			ChatID:         s.chatID,
			Symbol:         s.symbol,
			Ratio:          res.ImbalanceRatio,
			Classification: res.Classification,
			FiredAt:        now,
		}
		if _, err := m.alertRepo.CreateAlert(ctx, alert); err != nil {
			m.logger.Warn(ctx, "Failed to persist alert", map[string]interface{}{"chatID": s.chatID, "error": err.Error()})
		}
	}
}

// handleCycleFailure counts consecutive fetch failures and escalates exactly
// once per degradation episode. The loop itself always keeps retrying.
func (m *Monitor) handleCycleFailure(ctx context.Context, s *session, err error) {
	// A cancelled fetch during toggle-off is not a data failure.
	if ctx.Err() != nil {
		return
	}

	s.consecutiveFailures++
	m.logger.Warn(ctx, "Monitoring cycle failed", map[string]interface{}{
		"chatID": s.chatID, "symbol": s.symbol, "consecutiveFailures": s.consecutiveFailures, "error": err.Error(),
	})

	if s.consecutiveFailures >= m.cfg.MaxConsecutiveFailures && !s.degradedNotified {
		text := m.formatter.DegradedMessage(s.symbol, s.consecutiveFailures)
		if notifyErr := m.notifier.Notify(ctx, s.chatID, text); notifyErr != nil {
			m.logger.Error(ctx, notifyErr, "Failed to deliver degraded notice", map[string]interface{}{"chatID": s.chatID})
			return
		}
		s.degradedNotified = true
	}
}
