package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"aetherquant/config"
	"aetherquant/internal/analysis"
	"aetherquant/internal/bot"
	"aetherquant/internal/domain"
	"aetherquant/internal/monitor"
	"aetherquant/internal/ports"
	"aetherquant/internal/report"
)

// deepDivePause separates the two order book snapshots a deep dive takes so
// cross-snapshot detection (iceberg replenishment, delta order flow) has a
// real interval to observe.
const deepDivePause = 3 * time.Second

// Service is the application core. It orchestrates the one-shot analysis
// flow, owns the alert monitor and the Telegram bot, and handles shutdown.
type Service struct {
	cfg       *config.Config
	logger    ports.Logger
	market    ports.MarketDataSource
	engine    *analysis.Engine
	formatter *report.Formatter
	llm       ports.ReportGenerator

	alertRepo  ports.AlertRepository
	reportRepo ports.ReportRepository

	bot     *bot.Bot
	monitor *monitor.Monitor
}

// NewService wires the application together. The bot is constructed first
// and handed to the monitor as its notifier, then attached back to this
// service for command dispatch.
func NewService(
	cfg *config.Config,
	logger ports.Logger,
	market ports.MarketDataSource,
	engine *analysis.Engine,
	formatter *report.Formatter,
	llm ports.ReportGenerator,
	alertRepo ports.AlertRepository,
	reportRepo ports.ReportRepository,
) (*Service, error) {
	if cfg == nil || logger == nil || market == nil || engine == nil || formatter == nil || llm == nil {
		return nil, fmt.Errorf("missing required dependencies for Service")
	}

	b, err := bot.New(bot.Config{
		Token:          cfg.TelegramBotToken,
		DefaultSymbol:  cfg.Symbol,
		AllowedUserIDs: cfg.AllowedUserIDs,
		Logger:         logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Telegram bot: %w", err)
	}

	mon, err := monitor.New(monitor.Config{
		Interval:               cfg.MonitorInterval,
		Threshold:              cfg.AlertThreshold,
		Cooldown:               cfg.AlertCooldown,
		MaxConsecutiveFailures: cfg.MaxConsecutiveFailures,
		DepthLevels:            cfg.DepthLevels,
		TradeWindow:            cfg.TradeWindow,
		KlineInterval:          cfg.KlineInterval,
		BookHistorySize:        cfg.BookHistorySize,
	}, logger, market, engine, formatter, b, alertRepo)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize alert monitor: %w", err)
	}

	s := &Service{
		cfg:        cfg,
		logger:     logger,
		market:     market,
		engine:     engine,
		formatter:  formatter,
		llm:        llm,
		alertRepo:  alertRepo,
		reportRepo: reportRepo,
		bot:        b,
		monitor:    mon,
	}
	b.AttachService(s)
	return s, nil
}

// Start runs the bot update loop until the context is cancelled, then stops
// all monitoring sessions before returning.
func (s *Service) Start(ctx context.Context) error {
	s.logger.Info(ctx, "Starting Aether-Quant service", map[string]interface{}{
		"symbol":          s.cfg.Symbol,
		"monitorInterval": s.cfg.MonitorInterval.String(),
		"alertThreshold":  s.cfg.AlertThreshold,
	})

	err := s.bot.Run(ctx)

	s.logger.Info(context.Background(), "Shutting down, stopping monitoring sessions")
	s.monitor.Shutdown()
	return err
}

// AnalyzeSymbol runs the one-shot analysis flow: fetch market data, compute
// indicators, build the prompt and ask the language model for a narrative.
// A deep dive takes a second snapshot after a pause so replenishment at the
// ask can be observed. LLM failure degrades to the deterministic fallback
// report instead of failing the command.
func (s *Service) AnalyzeSymbol(ctx context.Context, chatID int64, symbol string, kind domain.ReportKind) (string, error) {
	snap, err := s.market.GetOrderBook(ctx, symbol, s.cfg.DepthLevels)
	if err != nil {
		return "", fmt.Errorf("order book fetch for %s failed: %w", symbol, err)
	}

	var history []*domain.OrderBookSnapshot
	if kind == domain.ReportDeepDive {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(deepDivePause):
		}
		second, err := s.market.GetOrderBook(ctx, symbol, s.cfg.DepthLevels)
		if err != nil {
			return "", fmt.Errorf("order book refetch for %s failed: %w", symbol, err)
		}
		history = []*domain.OrderBookSnapshot{snap}
		snap = second
	}

	tape, err := s.market.GetRecentTrades(ctx, symbol, s.cfg.TradeWindow)
	if err != nil {
		return "", fmt.Errorf("trade tape fetch for %s failed: %w", symbol, err)
	}
	klines, err := s.market.GetKlines(ctx, symbol, s.cfg.KlineInterval, s.engine.RequiredCloses())
	if err != nil {
		return "", fmt.Errorf("kline fetch for %s failed: %w", symbol, err)
	}

	res, err := s.engine.Compute(ctx, snap, history, tape, domain.ClosePrices(klines))
	if err != nil {
		return "", fmt.Errorf("indicator computation for %s failed: %w", symbol, err)
	}

	prompt := s.formatter.BuildPrompt(res, kind)
	text, err := s.llm.GenerateReport(ctx, prompt)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return "", err
		}
		s.logger.Warn(ctx, "LLM report failed, serving fallback", map[string]interface{}{
			"symbol": symbol, "chatID": chatID, "error": err.Error(),
		})
		text = s.formatter.FallbackReport(res)
	}

	s.persistReport(ctx, chatID, symbol, kind, text)
	return text, nil
}

// ToggleMonitor flips monitoring for a chat and reports the new state.
func (s *Service) ToggleMonitor(ctx context.Context, chatID int64, symbol string) bool {
	return s.monitor.Toggle(ctx, chatID, symbol)
}

// MonitorEnabled reports whether a chat has monitoring enabled.
func (s *Service) MonitorEnabled(chatID int64) bool {
	return s.monitor.IsEnabled(chatID)
}

// RecentAlerts returns the latest persisted alerts for a chat, newest first.
func (s *Service) RecentAlerts(ctx context.Context, chatID int64, limit int) ([]*domain.Alert, error) {
	if s.alertRepo == nil {
		return nil, nil
	}
	alerts, err := s.alertRepo.FindRecentAlerts(ctx, chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("RecentAlerts failed: %w", err)
	}
	return alerts, nil
}

// AlertHistory returns the rendered recent-alert block for a chat, shown on
// every monitor enable so the user sees what fired before.
func (s *Service) AlertHistory(ctx context.Context, chatID int64, limit int) (string, error) {
	alerts, err := s.RecentAlerts(ctx, chatID, limit)
	if err != nil {
		return "", err
	}
	return s.formatter.AlertHistory(alerts), nil
}

// persistReport records the delivered report. Persistence failure only logs;
// the user already has the text.
func (s *Service) persistReport(ctx context.Context, chatID int64, symbol string, kind domain.ReportKind, text string) {
	if s.reportRepo == nil {
		return
	}
	rec := &domain.Report{
		ChatID:    chatID,
		Symbol:    symbol,
		Kind:      kind,
		Text:      text,
		CreatedAt: time.Now(),
	}
	if _, err := s.reportRepo.CreateReport(ctx, rec); err != nil {
		s.logger.Warn(ctx, "Failed to persist report", map[string]interface{}{
			"chatID": chatID, "symbol": symbol, "error": err.Error(),
		})
	}
}
