package main

import (
	"context"
	"log" // Use standard log only for initial fatal errors before logger is set up
	"os/signal"
	"syscall"
	"time"

	"aetherquant/config"
	"aetherquant/internal/adapters/binanceclient"
	"aetherquant/internal/adapters/geminiclient"
	"aetherquant/internal/adapters/logger"
	"aetherquant/internal/adapters/sqlite"
	"aetherquant/internal/analysis"
	"aetherquant/internal/app"
	"aetherquant/internal/report"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	appLogger := logger.NewStdLogger(cfg.LogLevel)
	appLogger.Info(context.Background(), "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String()})

	// 3. Initialize Repository (Database Adapter)
	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath: cfg.DBPath,
		Logger: appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize database repository")
		log.Fatalf("FATAL: Failed to initialize database repository: %v", err) // Also log to stderr
	}
	defer func() {
		if err := repo.Close(); err != nil {
			appLogger.Error(context.Background(), err, "Error closing database repository")
		}
	}()
	appLogger.Info(context.Background(), "Database repository initialized")

	// 4. Initialize Exchange Client (Binance Adapter)
	binanceClient, err := binanceclient.New(binanceclient.Config{
		APIKey:    cfg.BinanceAPIKey,
		SecretKey: cfg.BinanceAPISecret,
		Logger:    appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize Binance client")
		log.Fatalf("FATAL: Failed to initialize Binance client: %v", err)
	}
	appLogger.Info(context.Background(), "Binance client initialized")

	// 5. Initialize Indicator Engine
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
	appLogger.Info(context.Background(), "Indicator engine initialized")

	// 6. Initialize Gemini Client (LLM Adapter)
	geminiClient, err := geminiclient.New(geminiclient.Config{
		APIKey:            cfg.GeminiAPIKey,
		Model:             cfg.GeminiModel,
		SystemInstruction: report.SystemInstruction,
		Temperature:       0.7,
		Timeout:           30 * time.Second,
		Logger:            appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize Gemini client")
		log.Fatalf("FATAL: Failed to initialize Gemini client: %v", err)
	}
	appLogger.Info(context.Background(), "Gemini client initialized")

	// 7. Initialize Application Service
	service, err := app.NewService(
		cfg,
		appLogger,
		binanceClient, // Pass the concrete implementation, service expects the interface
		engine,
		report.New(),
		geminiClient, // Pass the concrete implementation, service expects the interface
		repo,
		repo,
	)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize application service")
		log.Fatalf("FATAL: Failed to initialize application service: %v", err)
	}
	appLogger.Info(context.Background(), "Application service initialized")

	// 8. Start the Service, stopping on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := service.Start(ctx); err != nil {
		appLogger.Error(context.Background(), err, "Service exited with error")
		log.Fatalf("FATAL: Service exited with error: %v", err)
	}

	appLogger.Info(context.Background(), "Application finished gracefully.")
}
