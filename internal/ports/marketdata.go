package ports

import (
	"context"
	"time"

	"aetherquant/internal/domain"
)

// MarketDataSource defines the interface for fetching order-book and trade
// tape data from an exchange. This abstraction decouples the indicator and
// monitoring core from any specific exchange implementation.
type MarketDataSource interface {
	// GetOrderBook retrieves current Level 2 depth for a symbol, limited to
	// `limit` levels per side.
	GetOrderBook(ctx context.Context, symbol string, limit int) (*domain.OrderBookSnapshot, error)

	// GetRecentTrades retrieves the most recent executed trades (the tape),
	// ordered oldest first, up to `limit` entries.
	GetRecentTrades(ctx context.Context, symbol string, limit int) ([]domain.TradeTapeEntry, error)

	// GetKlines retrieves historical klines for the given symbol, ordered
	// oldest first. Used to build the prior-close series for RSI.
	GetKlines(ctx context.Context, symbol string, interval string, limit int) ([]*domain.Kline, error)

	// GetTickerPrice retrieves the last ticker price for a given symbol.
	GetTickerPrice(ctx context.Context, symbol string) (float64, error)

	// Ping checks the connectivity to the exchange API.
	Ping(ctx context.Context) error

	// GetServerTime retrieves the current server time from the exchange.
	GetServerTime(ctx context.Context) (time.Time, error)
}
