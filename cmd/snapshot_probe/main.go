package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"aetherquant/config"
	"aetherquant/internal/adapters/binanceclient"
	"aetherquant/internal/adapters/logger"
	"aetherquant/internal/analysis"
	"aetherquant/internal/domain"
)

// snapshot_probe fetches one round of market data for a symbol, runs the
// indicator engine over it and prints the result. Useful for eyeballing
// thresholds before pointing the bot at a new market.
func main() {
	symbolFlag := flag.String("symbol", "", "symbol to probe, e.g. BTC/USDT (defaults to TRADING_SYMBOL)")
	flag.Parse()

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	appLogger := logger.NewStdLogger(cfg.LogLevel)

	// 3. Initialize Exchange Client (Binance Adapter)
	binanceClient, err := binanceclient.New(binanceclient.Config{
		APIKey:    cfg.BinanceAPIKey,
		SecretKey: cfg.BinanceAPISecret,
		Logger:    appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize Binance client")
		log.Fatalf("FATAL: Failed to initialize Binance client: %v", err)
	}

	// 4. Initialize Indicator Engine
	engine, err := analysis.New(analysis.Config{
		RSIPeriod:            cfg.RSIPeriod,
		DepthLevels:          cfg.DepthLevels,
		OFIDepth:             cfg.OFIDepth,
		AlertThreshold:       cfg.AlertThreshold,
		BuyWallConcentration: cfg.BuyWallConcentration,
		BuyWallBandPct:       cfg.BuyWallBandPct,
		IcebergMinExecuted:   cfg.IcebergMinExecuted,
		IcebergDepleteRatio:  cfg.IcebergDepleteRatio,
	}, appLogger)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize indicator engine")
		log.Fatalf("FATAL: Failed to initialize indicator engine: %v", err)
	}

	symbol := *symbolFlag
	if symbol == "" {
		symbol = cfg.Symbol
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Connectivity check before any data fetch; a clock skew warning here
	// saves puzzling over stale-looking snapshots later.
	if err := binanceClient.Ping(ctx); err != nil {
		log.Fatalf("Exchange unreachable: %v", err)
	}
	serverTime, err := binanceClient.GetServerTime(ctx)
	if err != nil {
		log.Fatalf("Error fetching server time: %v", err)
	}
	if drift := time.Since(serverTime); drift > 5*time.Second || drift < -5*time.Second {
		fmt.Printf("WARNING: local clock drifts %s from exchange time\n", drift.Round(time.Millisecond))
	}

	fmt.Printf("Probing %s (depth %d, tape %d, %s klines)...\n", symbol, cfg.DepthLevels, cfg.TradeWindow, cfg.KlineInterval)

	ticker, err := binanceClient.GetTickerPrice(ctx, symbol)
	if err != nil {
		log.Fatalf("Error fetching ticker price: %v", err)
	}

	snap, err := binanceClient.GetOrderBook(ctx, symbol, cfg.DepthLevels)
	if err != nil {
		log.Fatalf("Error fetching order book: %v", err)
	}
	tape, err := binanceClient.GetRecentTrades(ctx, symbol, cfg.TradeWindow)
	if err != nil {
		log.Fatalf("Error fetching trade tape: %v", err)
	}
	klines, err := binanceClient.GetKlines(ctx, symbol, cfg.KlineInterval, engine.RequiredCloses())
	if err != nil {
		log.Fatalf("Error fetching klines: %v", err)
	}

	res, err := engine.Compute(ctx, snap, nil, tape, domain.ClosePrices(klines))
	if err != nil {
		log.Fatalf("Error computing indicators: %v", err)
	}

	fmt.Printf("\n%s @ %s\n", res.Symbol, res.ComputedAt.Format(time.RFC3339))
	fmt.Printf("  ticker:           %.4f\n", ticker)
	fmt.Printf("  price:            %.4f\n", res.Price)
	fmt.Printf("  vwap:             %.4f\n", res.VWAP)
	fmt.Printf("  rsi(%d):          %.2f\n", cfg.RSIPeriod, res.RSI)
	fmt.Printf("  imbalance ratio:  %.3f (ask/bid, top %d)\n", res.ImbalanceRatio, cfg.DepthLevels)
	fmt.Printf("  depth imbalance:  %+.3f\n", res.DepthImbalance)
	fmt.Printf("  delta OFI:        %+.3f (top %d)\n", res.OFI, cfg.OFIDepth)
	fmt.Printf("  classification:   %s\n", res.Classification)
	fmt.Printf("  best bid/ask:     %.4f / %.4f\n", snap.BestBid().Price, snap.BestAsk().Price)
}
