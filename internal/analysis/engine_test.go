package analysis

import (
	"context"
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

func testConfig() Config {
	return Config{
		RSIPeriod:            2,
		DepthLevels:          10,
		OFIDepth:             5,
		AlertThreshold:       3.0,
		BuyWallConcentration: 0.4,
		BuyWallBandPct:       0.001,
		IcebergMinExecuted:   1.0,
		IcebergDepleteRatio:  0.8,
	}
}

func snapshotAt(ts time.Time, bids, asks []domain.PriceLevel) *domain.OrderBookSnapshot {
	return &domain.OrderBookSnapshot{
		Symbol:    "BTC/USDT",
		Timestamp: ts,
		Bids:      bids,
		Asks:      asks,
	}
}

func buyTape(ts time.Time, price, size float64) []domain.TradeTapeEntry {
	return []domain.TradeTapeEntry{{Timestamp: ts, Price: price, Size: size, Side: domain.Buy}}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		nilLog  bool
		wantErr bool
	}{
		{name: "valid config", mutate: func(c *Config) {}},
		{name: "nil logger", mutate: func(c *Config) {}, nilLog: true, wantErr: true},
		{name: "zero depth levels", mutate: func(c *Config) { c.DepthLevels = 0 }, wantErr: true},
		{name: "zero ofi depth", mutate: func(c *Config) { c.OFIDepth = 0 }, wantErr: true},
		{name: "threshold at one", mutate: func(c *Config) { c.AlertThreshold = 1.0 }, wantErr: true},
		{name: "bad rsi period", mutate: func(c *Config) { c.RSIPeriod = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			var log *mockLogger
			if !tt.nilLog {
				log = &mockLogger{}
			}
			e, err := New(cfg, log)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, e)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, cfg.RSIPeriod+1, e.RequiredCloses())
		})
	}
}

// Identical inputs must produce identical results: nothing in Compute may
// depend on wall-clock time or hidden state.
func TestComputeDeterministic(t *testing.T) {
	e, err := New(testConfig(), &mockLogger{})
	require.NoError(t, err)

	ts := time.Unix(1700000000, 0)
	snap := snapshotAt(ts,
		[]domain.PriceLevel{{Price: 100, Size: 10}, {Price: 99.5, Size: 5}},
		[]domain.PriceLevel{{Price: 100.5, Size: 8}, {Price: 101, Size: 6}},
	)
	prev := snapshotAt(ts.Add(-time.Minute),
		[]domain.PriceLevel{{Price: 100, Size: 9}},
		[]domain.PriceLevel{{Price: 100.5, Size: 10}},
	)
	tape := buyTape(ts, 100.25, 2)
	closes := []float64{100, 101, 100.5}

	first, err := e.Compute(context.Background(), snap, []*domain.OrderBookSnapshot{prev}, tape, closes)
	require.NoError(t, err)
	second, err := e.Compute(context.Background(), snap, []*domain.OrderBookSnapshot{prev}, tape, closes)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, ts, first.ComputedAt, "result timestamp must come from the snapshot")
	assert.Equal(t, 100.25, first.Price, "price is the last tape print")
}

func TestComputeClassification(t *testing.T) {
	ts := time.Unix(1700000000, 0)
	closes := []float64{100, 101, 100.5}

	// Five evenly sized bid levels keep wall concentration below the trigger.
	spreadBids := []domain.PriceLevel{
		{Price: 100, Size: 2}, {Price: 99.99, Size: 2}, {Price: 99.98, Size: 2},
		{Price: 99.97, Size: 2}, {Price: 99.96, Size: 2},
	}

	tests := []struct {
		name    string
		snap    *domain.OrderBookSnapshot
		history []*domain.OrderBookSnapshot
		tape    []domain.TradeTapeEntry
		want    domain.Classification
	}{
		{
			name: "balanced book is neutral",
			snap: snapshotAt(ts, spreadBids,
				[]domain.PriceLevel{{Price: 100.5, Size: 10}}),
			tape: buyTape(ts, 100.25, 2),
			want: domain.ClassificationNeutral,
		},
		{
			name: "ask heavy book is a sell wall",
			snap: snapshotAt(ts, spreadBids,
				[]domain.PriceLevel{{Price: 100.5, Size: 40}}),
			tape: buyTape(ts, 100.25, 2),
			want: domain.ClassificationSellWall,
		},
		{
			name: "bid heavy book is a buy wall",
			snap: snapshotAt(ts,
				[]domain.PriceLevel{{Price: 100, Size: 40}},
				[]domain.PriceLevel{{Price: 100.5, Size: 10}}),
			tape: buyTape(ts, 100.25, 2),
			want: domain.ClassificationBuyWall,
		},
		{
			// Ratio stays near one; the single dominant level at the best bid
			// is what trips the wall test.
			name: "concentrated best bid is a buy wall",
			snap: snapshotAt(ts,
				[]domain.PriceLevel{{Price: 100, Size: 8}, {Price: 99, Size: 2}},
				[]domain.PriceLevel{{Price: 100.5, Size: 10}}),
			tape: buyTape(ts, 100.25, 2),
			want: domain.ClassificationBuyWall,
		},
		{
			// Taker buys printed at the previous best ask while the level kept
			// its depth in the next snapshot.
			name: "replenishing ask is a sell iceberg",
			snap: snapshotAt(ts, spreadBids,
				[]domain.PriceLevel{{Price: 100.5, Size: 9.5}}),
			history: []*domain.OrderBookSnapshot{
				snapshotAt(ts.Add(-time.Minute), spreadBids,
					[]domain.PriceLevel{{Price: 100.5, Size: 10}}),
			},
			tape: buyTape(ts.Add(-30*time.Second), 100.5, 3),
			want: domain.ClassificationSellIceberg,
		},
		{
			// Same prints but the level drained: a normal fill, not an iceberg.
			name: "depleted ask is not an iceberg",
			snap: snapshotAt(ts, spreadBids,
				[]domain.PriceLevel{{Price: 100.5, Size: 1}, {Price: 101, Size: 9}}),
			history: []*domain.OrderBookSnapshot{
				snapshotAt(ts.Add(-time.Minute), spreadBids,
					[]domain.PriceLevel{{Price: 100.5, Size: 10}}),
			},
			tape: buyTape(ts.Add(-30*time.Second), 100.5, 3),
			want: domain.ClassificationNeutral,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := New(testConfig(), &mockLogger{})
			require.NoError(t, err)

			res, err := e.Compute(context.Background(), tt.snap, tt.history, tt.tape, closes)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Classification)
		})
	}
}

func TestComputeErrors(t *testing.T) {
	e, err := New(testConfig(), &mockLogger{})
	require.NoError(t, err)
	ts := time.Unix(1700000000, 0)

	t.Run("nil snapshot", func(t *testing.T) {
		_, err := e.Compute(context.Background(), nil, nil, buyTape(ts, 100, 1), []float64{100, 101, 100.5})
		assert.Error(t, err)
	})

	t.Run("empty tape", func(t *testing.T) {
		snap := snapshotAt(ts,
			[]domain.PriceLevel{{Price: 100, Size: 1}},
			[]domain.PriceLevel{{Price: 101, Size: 1}})
		_, err := e.Compute(context.Background(), snap, nil, nil, []float64{100, 101, 100.5})
		assert.Error(t, err)
	})

	t.Run("short close series", func(t *testing.T) {
		snap := snapshotAt(ts,
			[]domain.PriceLevel{{Price: 100, Size: 1}},
			[]domain.PriceLevel{{Price: 101, Size: 1}})
		_, err := e.Compute(context.Background(), snap, nil, buyTape(ts, 100, 1), []float64{100})
		assert.Error(t, err)
	})
}
