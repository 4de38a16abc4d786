package binanceclient

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"aetherquant/internal/domain"
	"aetherquant/internal/ports"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
)

// Client implements the ports.MarketDataSource interface using the go-binance
// spot client. Only public market-data endpoints are used, so API keys are
// optional.
type Client struct {
	spotClient *binance.Client
	logger     ports.Logger
}

// Config holds configuration specific to the Binance client adapter.
type Config struct {
	APIKey    string
	SecretKey string
	Logger    ports.Logger
}

// New creates a new Binance client adapter.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Binance client")
	}
	if cfg.APIKey == "" || cfg.SecretKey == "" {
		cfg.Logger.Debug(context.Background(), "No Binance API keys configured; using public endpoints only")
	}

	client := binance.NewClient(cfg.APIKey, cfg.SecretKey)
	cfg.Logger.Info(context.Background(), "Binance spot client configured", map[string]interface{}{"baseURL": client.BaseURL})

	return &Client{
		spotClient: client,
		logger:     cfg.Logger,
	}, nil
}

// exchangeSymbol converts a display symbol ("BTC/USDT") into the exchange
// form ("BTCUSDT").
func exchangeSymbol(symbol string) string {
	return strings.ReplaceAll(strings.ToUpper(symbol), "/", "")
}

// handleError translates common Binance API errors into standardized ports errors.
func (c *Client) handleError(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}

	fields := map[string]interface{}{"operation": operation, "originalError": err.Error()}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		fields["apiErrorCode"] = apiErr.Code
		fields["apiErrorMessage"] = apiErr.Message

		var mappedErr error
		switch apiErr.Code {
		case -1003: // Too many requests
			mappedErr = ports.ErrRateLimited
		case -1021: // Timestamp outside of recvWindow
			mappedErr = ports.ErrTimeout
		case -1022: // Invalid signature
			mappedErr = ports.ErrAuthenticationFailed
		case -1121: // Invalid symbol
			mappedErr = ports.ErrSymbolNotFound
		case -1100, -1101, -1102, -1103, -1104, -1105, -1106, -1111, -1130: // Parameter/Request format errors
			mappedErr = ports.ErrInvalidRequest
		case -2014, -2015: // API-key format invalid / invalid key, IP, permissions
			mappedErr = ports.ErrAuthenticationFailed
		default:
			mappedErr = ports.ErrExchangeUnavailable
		}
		finalErr := fmt.Errorf("%s failed: %w: %w", operation, mappedErr, err)
		c.logger.Error(ctx, err, fmt.Sprintf("%s failed with API error", operation), fields)
		return finalErr
	}

	// Handle non-API errors (network, context cancellation, etc.)
	var finalErr error
	if errors.Is(err, context.DeadlineExceeded) {
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrTimeout, err)
	} else if errors.Is(err, context.Canceled) {
		finalErr = fmt.Errorf("%s operation canceled: %w: %w", operation, ports.ErrContextCanceled, err)
	} else if strings.Contains(err.Error(), "use of closed network connection") ||
		strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "connection reset by peer") {
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrConnectionFailed, err)
	} else {
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrExchangeUnavailable, err)
	}

	c.logger.Error(ctx, err, fmt.Sprintf("%s failed", operation), fields)
	return finalErr
}

// GetOrderBook retrieves current Level 2 depth for the given symbol.
func (c *Client) GetOrderBook(ctx context.Context, symbol string, limit int) (*domain.OrderBookSnapshot, error) {
	op := "GetOrderBook"
	res, err := c.spotClient.NewDepthService().Symbol(exchangeSymbol(symbol)).Limit(limit).Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}

	snap := &domain.OrderBookSnapshot{
		Symbol:    symbol,
		Timestamp: time.Now(),
		Bids:      make([]domain.PriceLevel, 0, len(res.Bids)),
		Asks:      make([]domain.PriceLevel, 0, len(res.Asks)),
	}
	for _, b := range res.Bids {
		level, err := translatePriceLevel(b.Price, b.Quantity)
		if err != nil {
			return nil, c.handleError(ctx, fmt.Errorf("failed to translate bid level: %w", err), op)
		}
		snap.Bids = append(snap.Bids, level)
	}
	for _, a := range res.Asks {
		level, err := translatePriceLevel(a.Price, a.Quantity)
		if err != nil {
			return nil, c.handleError(ctx, fmt.Errorf("failed to translate ask level: %w", err), op)
		}
		snap.Asks = append(snap.Asks, level)
	}

	c.logger.Debug(ctx, op+" successful", map[string]interface{}{"symbol": symbol, "bids": len(snap.Bids), "asks": len(snap.Asks)})
	return snap, nil
}

// GetRecentTrades retrieves the most recent executed trades for the symbol,
// ordered oldest first.
func (c *Client) GetRecentTrades(ctx context.Context, symbol string, limit int) ([]domain.TradeTapeEntry, error) {
	op := "GetRecentTrades"
	trades, err := c.spotClient.NewRecentTradesService().Symbol(exchangeSymbol(symbol)).Limit(limit).Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}

	tape := make([]domain.TradeTapeEntry, 0, len(trades))
	for _, t := range trades {
		entry, err := translateTrade(t)
		if err != nil {
			return nil, c.handleError(ctx, fmt.Errorf("failed to translate trade: %w", err), op)
		}
		tape = append(tape, entry)
	}

	c.logger.Debug(ctx, op+" successful", map[string]interface{}{"symbol": symbol, "count": len(tape)})
	return tape, nil
}

// GetKlines retrieves historical klines/candlestick data for the given symbol.
func (c *Client) GetKlines(ctx context.Context, symbol string, interval string, limit int) ([]*domain.Kline, error) {
	op := "GetKlines"
	binanceKlines, err := c.spotClient.NewKlinesService().
		Symbol(exchangeSymbol(symbol)).
		Interval(interval).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}

	domainKlines := make([]*domain.Kline, 0, len(binanceKlines))
	for _, bk := range binanceKlines {
		dk, err := translateKline(bk, symbol, interval)
		if err != nil {
			return nil, c.handleError(ctx, fmt.Errorf("failed to translate historical kline: %w", err), op)
		}
		domainKlines = append(domainKlines, dk)
	}

	return domainKlines, nil
}

// GetTickerPrice retrieves the last ticker price for a given symbol.
func (c *Client) GetTickerPrice(ctx context.Context, symbol string) (float64, error) {
	op := "GetTickerPrice"
	prices, err := c.spotClient.NewListPricesService().Symbol(exchangeSymbol(symbol)).Do(ctx)
	if err != nil {
		return 0, c.handleError(ctx, err, op)
	}
	if len(prices) == 0 {
		err := fmt.Errorf("no price data returned for symbol %s", symbol)
		return 0, c.handleError(ctx, err, op)
	}

	price, err := strconv.ParseFloat(prices[0].Price, 64)
	if err != nil {
		parseErr := fmt.Errorf("could not parse price '%s': %w", prices[0].Price, err)
		return 0, c.handleError(ctx, parseErr, op)
	}
	return price, nil
}

// Ping checks the connectivity to the exchange API.
func (c *Client) Ping(ctx context.Context) error {
	op := "Ping"
	if err := c.spotClient.NewPingService().Do(ctx); err != nil {
		return c.handleError(ctx, fmt.Errorf("ping failed: %w", err), op)
	}
	c.logger.Debug(ctx, op+" successful")
	return nil
}

// GetServerTime retrieves the current server time from the exchange.
func (c *Client) GetServerTime(ctx context.Context) (time.Time, error) {
	op := "GetServerTime"
	serverTimeMs, err := c.spotClient.NewServerTimeService().Do(ctx)
	if err != nil {
		return time.Time{}, c.handleError(ctx, err, op)
	}
	return time.UnixMilli(serverTimeMs), nil
}

// --- Translation Helpers ---

func translatePriceLevel(priceStr, qtyStr string) (domain.PriceLevel, error) {
	price, err := strconv.ParseFloat(priceStr, 64)
	if err != nil {
		return domain.PriceLevel{}, fmt.Errorf("parsing level price '%s': %w", priceStr, err)
	}
	qty, err := strconv.ParseFloat(qtyStr, 64)
	if err != nil {
		return domain.PriceLevel{}, fmt.Errorf("parsing level quantity '%s': %w", qtyStr, err)
	}
	return domain.PriceLevel{Price: price, Size: qty}, nil
}

func translateTrade(t *binance.Trade) (domain.TradeTapeEntry, error) {
	if t == nil {
		return domain.TradeTapeEntry{}, errors.New("received nil trade")
	}
	price, err := strconv.ParseFloat(t.Price, 64)
	if err != nil {
		return domain.TradeTapeEntry{}, fmt.Errorf("parsing trade price '%s': %w", t.Price, err)
	}
	qty, err := strconv.ParseFloat(t.Quantity, 64)
	if err != nil {
		return domain.TradeTapeEntry{}, fmt.Errorf("parsing trade quantity '%s': %w", t.Quantity, err)
	}

	// When the buyer is the maker the aggressor was a seller, so the print
	// counts as a SELL on the tape, and vice versa.
	side := domain.Buy
	if t.IsBuyerMaker {
		side = domain.Sell
	}

	return domain.TradeTapeEntry{
		Timestamp: time.UnixMilli(t.Time),
		Price:     price,
		Size:      qty,
		Side:      side,
	}, nil
}

func translateKline(bk *binance.Kline, symbol, interval string) (*domain.Kline, error) {
	if bk == nil {
		return nil, errors.New("received nil historical kline")
	}
	open, err := strconv.ParseFloat(bk.Open, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing open price '%s': %w", bk.Open, err)
	}
	high, err := strconv.ParseFloat(bk.High, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing high price '%s': %w", bk.High, err)
	}
	low, err := strconv.ParseFloat(bk.Low, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing low price '%s': %w", bk.Low, err)
	}
	cls, err := strconv.ParseFloat(bk.Close, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing close price '%s': %w", bk.Close, err)
	}
	vol, err := strconv.ParseFloat(bk.Volume, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing volume '%s': %w", bk.Volume, err)
	}

	return &domain.Kline{
		OpenTime:  time.UnixMilli(bk.OpenTime),
		CloseTime: time.UnixMilli(bk.CloseTime),
		Symbol:    symbol,
		Interval:  interval,
		Open:      open,
		High:      high,
		Low:       low,
		Close:     cls,
		Volume:    vol,
	}, nil
}
