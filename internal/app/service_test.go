package app

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"aetherquant/config"
	"aetherquant/internal/analysis"
	"aetherquant/internal/domain"
	"aetherquant/internal/ports"
	"aetherquant/internal/report"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

// fakeMarket serves one fixed book, tape and kline series.
type fakeMarket struct {
	bookErr error
}

func (f *fakeMarket) GetOrderBook(ctx context.Context, symbol string, limit int) (*domain.OrderBookSnapshot, error) {
	if f.bookErr != nil {
		return nil, f.bookErr
	}
	return &domain.OrderBookSnapshot{
		Symbol:    symbol,
		Timestamp: time.Unix(1700000000, 0),
		Bids:      []domain.PriceLevel{{Price: 100, Size: 10}},
		Asks:      []domain.PriceLevel{{Price: 101, Size: 12}},
	}, nil
}

func (f *fakeMarket) GetRecentTrades(ctx context.Context, symbol string, limit int) ([]domain.TradeTapeEntry, error) {
	return []domain.TradeTapeEntry{
		{Timestamp: time.Unix(1700000000, 0), Price: 100.5, Size: 2, Side: domain.Buy},
	}, nil
}

func (f *fakeMarket) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]*domain.Kline, error) {
	klines := make([]*domain.Kline, limit)
	for i := range klines {
		klines[i] = &domain.Kline{Symbol: symbol, Interval: interval, Close: 100 + float64(i%2)}
	}
	return klines, nil
}

func (f *fakeMarket) GetTickerPrice(ctx context.Context, symbol string) (float64, error) {
	return 100.5, nil
}

func (f *fakeMarket) Ping(ctx context.Context) error { return nil }

func (f *fakeMarket) GetServerTime(ctx context.Context) (time.Time, error) {
	return time.Unix(1700000000, 0), nil
}

// fakeLLM returns a canned narrative or a canned error.
type fakeLLM struct {
	text    string
	err     error
	prompts []string
}

func (f *fakeLLM) GenerateReport(ctx context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

// fakeReportRepo records persisted reports.
type fakeReportRepo struct {
	saved []*domain.Report
}

func (f *fakeReportRepo) CreateReport(ctx context.Context, r *domain.Report) (int64, error) {
	f.saved = append(f.saved, r)
	return int64(len(f.saved)), nil
}

func (f *fakeReportRepo) CountTodayByChat(ctx context.Context, chatID int64) (int, error) {
	return len(f.saved), nil
}

// fakeAlertRepo serves a canned alert list.
type fakeAlertRepo struct {
	alerts []*domain.Alert
	err    error
}

func (f *fakeAlertRepo) CreateAlert(ctx context.Context, a *domain.Alert) (int64, error) {
	f.alerts = append(f.alerts, a)
	return int64(len(f.alerts)), nil
}

func (f *fakeAlertRepo) FindRecentAlerts(ctx context.Context, chatID int64, limit int) ([]*domain.Alert, error) {
	if f.err != nil {
		return nil, f.err
	}
	if limit > len(f.alerts) {
		limit = len(f.alerts)
	}
	return f.alerts[:limit], nil
}

func (f *fakeAlertRepo) LastFiredAt(ctx context.Context, chatID int64, symbol string) (time.Time, error) {
	return time.Time{}, nil
}

func newTestService(t *testing.T, market ports.MarketDataSource, llm ports.ReportGenerator, repo ports.ReportRepository) *Service {
	t.Helper()
	engine, err := analysis.New(analysis.Config{
		RSIPeriod:            2,
		DepthLevels:          10,
		OFIDepth:             5,
		AlertThreshold:       3.0,
		BuyWallConcentration: 0.99,
		BuyWallBandPct:       0.001,
		IcebergMinExecuted:   1000,
		IcebergDepleteRatio:  0.8,
	}, &mockLogger{})
	require.NoError(t, err)

	return &Service{
		cfg: &config.Config{
			Symbol:        "BTC/USDT",
			DepthLevels:   10,
			OFIDepth:      5,
			TradeWindow:   10,
			KlineInterval: "1m",
		},
		logger:     &mockLogger{},
		market:     market,
		engine:     engine,
		formatter:  report.New(),
		llm:        llm,
		reportRepo: repo,
	}
}

func TestAnalyzeSymbolDeliversNarrative(t *testing.T) {
	llm := &fakeLLM{text: "<b>BTC/USDT</b> Detected balanced flow."}
	repo := &fakeReportRepo{}
	s := newTestService(t, &fakeMarket{}, llm, repo)

	text, err := s.AnalyzeSymbol(context.Background(), 7, "BTC/USDT", domain.ReportQuick)
	require.NoError(t, err)
	assert.Equal(t, llm.text, text)

	require.Len(t, llm.prompts, 1)
	assert.Contains(t, llm.prompts[0], "Market facts")
	assert.Contains(t, llm.prompts[0], "symbol: BTC/USDT")

	require.Len(t, repo.saved, 1)
	assert.Equal(t, int64(7), repo.saved[0].ChatID)
	assert.Equal(t, domain.ReportQuick, repo.saved[0].Kind)
	assert.Equal(t, llm.text, repo.saved[0].Text)
}

func TestAnalyzeSymbolFallsBackOnLLMFailure(t *testing.T) {
	llm := &fakeLLM{err: fmt.Errorf("quota: %w", ports.ErrReportGeneration)}
	repo := &fakeReportRepo{}
	s := newTestService(t, &fakeMarket{}, llm, repo)

	text, err := s.AnalyzeSymbol(context.Background(), 7, "BTC/USDT", domain.ReportQuick)
	require.NoError(t, err, "an LLM outage must not fail the command")
	assert.Contains(t, text, "Flow Snapshot", "fallback report carries the facts")
	require.Len(t, repo.saved, 1, "the fallback still gets persisted")
}

func TestAnalyzeSymbolPropagatesFetchErrors(t *testing.T) {
	market := &fakeMarket{bookErr: fmt.Errorf("bad symbol: %w", ports.ErrSymbolNotFound)}
	s := newTestService(t, market, &fakeLLM{text: "unused"}, &fakeReportRepo{})

	_, err := s.AnalyzeSymbol(context.Background(), 7, "NOPE/USDT", domain.ReportQuick)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ports.ErrSymbolNotFound))
}

func TestAlertHistoryRendersPersistedAlerts(t *testing.T) {
	s := newTestService(t, &fakeMarket{}, &fakeLLM{}, nil)
	s.alertRepo = &fakeAlertRepo{alerts: []*domain.Alert{
		{ChatID: 7, Symbol: "BTC/USDT", Ratio: 4.2, Classification: domain.ClassificationSellWall, FiredAt: time.Date(2026, 8, 27, 14, 30, 0, 0, time.UTC)},
		{ChatID: 7, Symbol: "ETH/USDT", Ratio: 0.21, Classification: domain.ClassificationBuyWall, FiredAt: time.Date(2026, 8, 26, 9, 5, 0, 0, time.UTC)},
	}}

	text, err := s.AlertHistory(context.Background(), 7, 5)
	require.NoError(t, err)
	assert.Contains(t, text, "Recent alerts")
	assert.Contains(t, text, "BTC/USDT")
	assert.Contains(t, text, "4.20")
	assert.Contains(t, text, "ETH/USDT")
}

func TestAlertHistoryWithoutRepoOrAlerts(t *testing.T) {
	s := newTestService(t, &fakeMarket{}, &fakeLLM{}, nil)

	text, err := s.AlertHistory(context.Background(), 7, 5)
	require.NoError(t, err, "a nil repository reads as an empty history")
	assert.Contains(t, text, "No alerts fired yet")

	s.alertRepo = &fakeAlertRepo{}
	text, err = s.AlertHistory(context.Background(), 7, 5)
	require.NoError(t, err)
	assert.Contains(t, text, "No alerts fired yet")
}

func TestAlertHistoryPropagatesRepositoryErrors(t *testing.T) {
	s := newTestService(t, &fakeMarket{}, &fakeLLM{}, nil)
	s.alertRepo = &fakeAlertRepo{err: fmt.Errorf("scan: %w", ports.ErrQueryFailed)}

	_, err := s.AlertHistory(context.Background(), 7, 5)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ports.ErrQueryFailed))
}

func TestAnalyzeSymbolDeepDiveTakesSecondSnapshot(t *testing.T) {
	llm := &fakeLLM{text: "report"}
	s := newTestService(t, &fakeMarket{}, llm, nil)

	_, err := s.AnalyzeSymbol(context.Background(), 7, "BTC/USDT", domain.ReportDeepDive)
	require.NoError(t, err)
	require.Len(t, llm.prompts, 1)
	assert.Contains(t, llm.prompts[0], "deep institutional-flow analysis")
}
