package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setRequiredEnv provides the minimum environment for a successful load.
func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("TELEGRAM_BOT_TOKEN", "123456:test-token")
	t.Setenv("GEMINI_API_KEY", "test-gemini-key")
}

func TestLoadConfigDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "BTC/USDT", cfg.Symbol)
	assert.Equal(t, "gemini-2.0-flash", cfg.GeminiModel)
	assert.Equal(t, 10, cfg.DepthLevels)
	assert.Equal(t, 5, cfg.OFIDepth)
	assert.Equal(t, 100, cfg.TradeWindow)
	assert.Equal(t, "1m", cfg.KlineInterval)
	assert.Equal(t, 14, cfg.RSIPeriod)
	assert.Equal(t, 300*time.Second, cfg.MonitorInterval)
	assert.InDelta(t, 3.0, cfg.AlertThreshold, 1e-9)
	assert.Equal(t, 5*time.Minute, cfg.AlertCooldown)
	assert.Equal(t, 3, cfg.MaxConsecutiveFailures)
	assert.Empty(t, cfg.AllowedUserIDs)
}

func TestLoadConfigMissingRequired(t *testing.T) {
	tests := []struct {
		name  string
		unset string
	}{
		{name: "missing telegram token", unset: "TELEGRAM_BOT_TOKEN"},
		{name: "missing gemini key", unset: "GEMINI_API_KEY"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(tt.unset, "")

			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("TRADING_SYMBOL", "XAU/USDT")
	t.Setenv("MONITOR_INTERVAL_SECONDS", "60")
	t.Setenv("ALERT_THRESHOLD", "4.5")
	t.Setenv("ALERT_COOLDOWN_MINUTES", "10")
	t.Setenv("ALLOWED_USER_IDS", "111, 222,notanumber,333")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "XAU/USDT", cfg.Symbol)
	assert.Equal(t, time.Minute, cfg.MonitorInterval)
	assert.InDelta(t, 4.5, cfg.AlertThreshold, 1e-9)
	assert.Equal(t, 10*time.Minute, cfg.AlertCooldown)
	assert.Equal(t, []int64{111, 222, 333}, cfg.AllowedUserIDs)
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "threshold at one", key: "ALERT_THRESHOLD", value: "1.0"},
		{name: "threshold below one", key: "ALERT_THRESHOLD", value: "0.5"},
		{name: "zero monitor interval", key: "MONITOR_INTERVAL_SECONDS", value: "0"},
		{name: "zero depth levels", key: "DEPTH_LEVELS", value: "0"},
		{name: "history too small", key: "BOOK_HISTORY_SIZE", value: "1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}

func TestParseIDList(t *testing.T) {
	assert.Nil(t, parseIDList(""))
	assert.Nil(t, parseIDList("   "))
	assert.Equal(t, []int64{7}, parseIDList("7"))
	assert.Equal(t, []int64{1, 2}, parseIDList("1,junk,2"))
}
