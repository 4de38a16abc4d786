package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"aetherquant/internal/domain"

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

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewRepository(Config{
		DBPath: filepath.Join(t.TempDir(), "test.db"),
		Logger: &mockLogger{},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestNewRepository(t *testing.T) {
	t.Run("creates schema on fresh database", func(t *testing.T) {
		repo := newTestRepo(t)
		alerts, err := repo.FindRecentAlerts(context.Background(), 1, 10)
		require.NoError(t, err)
		assert.Empty(t, alerts)
	})

	t.Run("nil logger is rejected", func(t *testing.T) {
		_, err := NewRepository(Config{DBPath: filepath.Join(t.TempDir(), "test.db")})
		assert.Error(t, err)
	})
}

func TestAlertRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	firedAt := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	alert := &domain.Alert{
		ChatID:         42,
		Symbol:         "BTC/USDT",
		Ratio:          3.7,
		Classification: domain.ClassificationSellWall,
		FiredAt:        firedAt,
	}

	id, err := repo.CreateAlert(ctx, alert)
	require.NoError(t, err)
	assert.Positive(t, id)
	assert.Equal(t, id, alert.ID)

	alerts, err := repo.FindRecentAlerts(ctx, 42, 10)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	got := alerts[0]
	assert.Equal(t, int64(42), got.ChatID)
	assert.Equal(t, "BTC/USDT", got.Symbol)
	assert.InDelta(t, 3.7, got.Ratio, 1e-9)
	assert.Equal(t, domain.ClassificationSellWall, got.Classification)
	assert.True(t, got.FiredAt.Equal(firedAt))
}

func TestFindRecentAlertsOrderAndLimit(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		_, err := repo.CreateAlert(ctx, &domain.Alert{
			ChatID:         42,
			Symbol:         "BTC/USDT",
			Ratio:          3.0 + float64(i),
			Classification: domain.ClassificationSellWall,
			FiredAt:        base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}
	// Other chats must not leak in.
	_, err := repo.CreateAlert(ctx, &domain.Alert{
		ChatID: 99, Symbol: "BTC/USDT", Ratio: 5,
		Classification: domain.ClassificationSellWall, FiredAt: base,
	})
	require.NoError(t, err)

	alerts, err := repo.FindRecentAlerts(ctx, 42, 3)
	require.NoError(t, err)
	require.Len(t, alerts, 3)
	assert.InDelta(t, 7.0, alerts[0].Ratio, 1e-9, "newest alert first")
	assert.True(t, alerts[0].FiredAt.After(alerts[1].FiredAt))
}

func TestLastFiredAt(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	t.Run("zero time when no alert fired", func(t *testing.T) {
		last, err := repo.LastFiredAt(ctx, 42, "BTC/USDT")
		require.NoError(t, err)
		assert.True(t, last.IsZero())
	})

	t.Run("latest per chat and symbol", func(t *testing.T) {
		early := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
		late := early.Add(2 * time.Hour)
		for _, firedAt := range []time.Time{early, late} {
			_, err := repo.CreateAlert(ctx, &domain.Alert{
				ChatID: 42, Symbol: "BTC/USDT", Ratio: 4,
				Classification: domain.ClassificationSellWall, FiredAt: firedAt,
			})
			require.NoError(t, err)
		}
		_, err := repo.CreateAlert(ctx, &domain.Alert{
			ChatID: 42, Symbol: "XAU/USDT", Ratio: 4,
			Classification: domain.ClassificationSellWall, FiredAt: late.Add(time.Hour),
		})
		require.NoError(t, err)

		last, err := repo.LastFiredAt(ctx, 42, "BTC/USDT")
		require.NoError(t, err)
		assert.True(t, last.Equal(late), "expected %v, got %v", late, last)
	})
}

func TestReportPersistence(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	rec := &domain.Report{
		ChatID:    42,
		Symbol:    "BTC/USDT",
		Kind:      domain.ReportDeepDive,
		Text:      "<b>BTC/USDT</b> Detected heavy ask-side pressure.",
		CreatedAt: time.Now().UTC(),
	}
	id, err := repo.CreateReport(ctx, rec)
	require.NoError(t, err)
	assert.Positive(t, id)

	count, err := repo.CountTodayByChat(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = repo.CountTodayByChat(ctx, 99)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestCountTodayExcludesOlderReports(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.CreateReport(ctx, &domain.Report{
		ChatID: 42, Symbol: "BTC/USDT", Kind: domain.ReportQuick,
		Text: "old", CreatedAt: time.Now().UTC().Add(-48 * time.Hour),
	})
	require.NoError(t, err)
	_, err = repo.CreateReport(ctx, &domain.Report{
		ChatID: 42, Symbol: "BTC/USDT", Kind: domain.ReportQuick,
		Text: "fresh", CreatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	count, err := repo.CountTodayByChat(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
