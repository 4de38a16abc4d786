package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"aetherquant/internal/adapters/logger" // Import the logger package for LogLevel
)

// Config holds all application configuration.
type Config struct {
	// Telegram
	TelegramBotToken string
	AllowedUserIDs   []int64 // Empty list means the bot is open to everyone

	// Gemini (LLM)
	GeminiAPIKey string
	GeminiModel  string

	// Binance API (optional, public market-data endpoints work without keys)
	BinanceAPIKey    string
	BinanceAPISecret string

	// Market Data Parameters
	Symbol        string // Default symbol in display form, e.g. "BTC/USDT"
	DepthLevels   int    // Top-N depth levels for the imbalance ratio
	OFIDepth      int    // Top-N depth levels for delta-OFI
	TradeWindow   int    // Tape window size (number of recent trades)
	KlineInterval string // Interval used for the prior-close series

	// Indicator Parameters
	RSIPeriod            int
	BuyWallConcentration float64 // Largest-bid-level share of top-N bid depth
	BuyWallBandPct       float64 // Price band around best bid, as a fraction
	IcebergMinExecuted   float64 // Min executed size at best ask to consider iceberg
	IcebergDepleteRatio  float64 // Depth must retain at least this share to count as replenished

	// Alerting
	MonitorInterval        time.Duration
	AlertThreshold         float64 // Imbalance ratio threshold (sell side); buy side is its reciprocal
	AlertCooldown          time.Duration
	MaxConsecutiveFailures int
	BookHistorySize        int

	// Database
	DBPath string

	// Logging
	LogLevel logger.LogLevel
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var errs []string // Collect validation errors

	// Telegram
	cfg.TelegramBotToken = getEnv("TELEGRAM_BOT_TOKEN", "")
	if cfg.TelegramBotToken == "" {
		errs = append(errs, "TELEGRAM_BOT_TOKEN must be set")
	}
	cfg.AllowedUserIDs = parseIDList(getEnv("ALLOWED_USER_IDS", ""))

	// Gemini
	cfg.GeminiAPIKey = getEnv("GEMINI_API_KEY", "")
	if cfg.GeminiAPIKey == "" {
		errs = append(errs, "GEMINI_API_KEY must be set")
	}
	cfg.GeminiModel = getEnv("GEMINI_MODEL", "gemini-2.0-flash")

	// Binance
	cfg.BinanceAPIKey = getEnv("BINANCE_API_KEY", "")
	cfg.BinanceAPISecret = getEnv("BINANCE_API_SECRET", "")

	// Market Data Parameters
	cfg.Symbol = getEnv("TRADING_SYMBOL", "BTC/USDT")
	if cfg.Symbol == "" {
		errs = append(errs, "TRADING_SYMBOL must be set")
	}
	cfg.DepthLevels = getEnvAsInt("DEPTH_LEVELS", 10)
	cfg.OFIDepth = getEnvAsInt("OFI_DEPTH_LEVELS", 5)
	cfg.TradeWindow = getEnvAsInt("TRADE_WINDOW", 100)
	cfg.KlineInterval = getEnv("KLINE_INTERVAL", "1m")
	if cfg.DepthLevels <= 0 || cfg.OFIDepth <= 0 || cfg.TradeWindow <= 0 {
		errs = append(errs, "DEPTH_LEVELS, OFI_DEPTH_LEVELS and TRADE_WINDOW must be positive")
	}

	// Indicator Parameters
	cfg.RSIPeriod = getEnvAsInt("RSI_PERIOD", 14)
	if cfg.RSIPeriod <= 0 {
		errs = append(errs, "RSI_PERIOD must be positive")
	}
	cfg.BuyWallConcentration = getEnvAsFloat("BUY_WALL_CONCENTRATION", 0.4)
	if cfg.BuyWallConcentration <= 0 || cfg.BuyWallConcentration > 1 {
		errs = append(errs, "BUY_WALL_CONCENTRATION must be between 0.0 and 1.0")
	}
	cfg.BuyWallBandPct = getEnvAsFloat("BUY_WALL_BAND_PCT", 0.001)
	cfg.IcebergMinExecuted = getEnvAsFloat("ICEBERG_MIN_EXECUTED", 1.0)
	cfg.IcebergDepleteRatio = getEnvAsFloat("ICEBERG_DEPLETE_RATIO", 0.8)
	if cfg.IcebergDepleteRatio <= 0 || cfg.IcebergDepleteRatio > 1 {
		errs = append(errs, "ICEBERG_DEPLETE_RATIO must be between 0.0 and 1.0")
	}

	// Alerting
	intervalSeconds := getEnvAsInt("MONITOR_INTERVAL_SECONDS", 300)
	if intervalSeconds <= 0 {
		errs = append(errs, "MONITOR_INTERVAL_SECONDS must be positive")
	}
	cfg.MonitorInterval = time.Duration(intervalSeconds) * time.Second

	cfg.AlertThreshold = getEnvAsFloat("ALERT_THRESHOLD", 3.0)
	if cfg.AlertThreshold <= 1.0 {
		errs = append(errs, "ALERT_THRESHOLD must be greater than 1.0 (it is an ask/bid volume ratio)")
	}

	cooldownMinutes := getEnvAsInt("ALERT_COOLDOWN_MINUTES", 5)
	if cooldownMinutes < 0 {
		errs = append(errs, "ALERT_COOLDOWN_MINUTES cannot be negative")
	}
	cfg.AlertCooldown = time.Duration(cooldownMinutes) * time.Minute

	cfg.MaxConsecutiveFailures = getEnvAsInt("MAX_CONSECUTIVE_FAILURES", 3)
	if cfg.MaxConsecutiveFailures <= 0 {
		errs = append(errs, "MAX_CONSECUTIVE_FAILURES must be positive")
	}

	cfg.BookHistorySize = getEnvAsInt("BOOK_HISTORY_SIZE", 10)
	if cfg.BookHistorySize < 2 {
		errs = append(errs, "BOOK_HISTORY_SIZE must be at least 2 (cross-snapshot indicators need a prior book)")
	}

	// Database
	cfg.DBPath = getEnv("DB_PATH", "./data/aetherquant.db")
	if cfg.DBPath == "" {
		errs = append(errs, "DB_PATH must be set")
	}

	// Logging
	logLevelStr := getEnv("LOG_LEVEL", "INFO")
	cfg.LogLevel = logger.ParseLevel(logLevelStr) // Use the parser from the logger package

	// Combine validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// parseIDList parses a comma-separated list of numeric user IDs, skipping
// anything that does not parse.
func parseIDList(raw string) []int64 {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}
