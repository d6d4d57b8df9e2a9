package main

import (
	"context"
	"errors"
	"log" // Use standard log only for initial fatal errors before logger is set up
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"forexBot/config"
	"forexBot/internal/adapters/auth"
	"forexBot/internal/adapters/binanceclient"
	"forexBot/internal/adapters/logger"
	"forexBot/internal/adapters/prediction"
	"forexBot/internal/adapters/sqlite"
	"forexBot/internal/adapters/twelvedata"
	"forexBot/internal/app"
	"forexBot/internal/ports"
	"forexBot/internal/ratelimit"
	"forexBot/internal/risk"
	"forexBot/internal/server"
	"forexBot/internal/strategy"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	appLogger := logger.New(cfg.LogFormat, cfg.LogLevel)
	if zl, ok := appLogger.(*logger.ZapLogger); ok {
		defer zl.Sync()
	}
	ctx := context.Background()
	appLogger.Info(ctx, "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String(), "format": cfg.LogFormat})

	if err := run(ctx, cfg, appLogger); err != nil {
		appLogger.Error(ctx, err, "Application exited with error")
		os.Exit(1)
	}
	appLogger.Info(ctx, "Application finished gracefully.")
}

func run(ctx context.Context, cfg *config.Config, appLogger ports.Logger) error {
	// 3. Initialize Repository (Database Adapter)
	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath: cfg.DBPath,
		Logger: appLogger,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := repo.Close(); err != nil {
			appLogger.Error(ctx, err, "Error closing database repository")
		}
	}()
	appLogger.Info(ctx, "Database repository initialized")

	// 4. Initialize Market Data Client (one process-wide request slot)
	limiter := ratelimit.New(cfg.MinRequestInterval)
	retry := ratelimit.RetryPolicy{Backoff: cfg.RateLimitBackoff, MaxAttempts: cfg.RateLimitMaxAttempt}

	var market ports.MarketDataClient
	switch cfg.MarketDataProvider {
	case config.ProviderBinance:
		market, err = binanceclient.New(binanceclient.Config{
			UseTestnet: cfg.BinanceUseTestnet,
			Interval:   cfg.MarketInterval,
			Limiter:    limiter,
			Retry:      retry,
			Logger:     appLogger,
		})
	default:
		market, err = twelvedata.New(twelvedata.Config{
			BaseURL:  cfg.TwelveDataBaseURL,
			APIKey:   cfg.TwelveDataAPIKey,
			Interval: cfg.MarketInterval,
			Timeout:  cfg.HTTPTimeout,
			Limiter:  limiter,
			Retry:    retry,
			Logger:   appLogger,
		})
	}
	if err != nil {
		return err
	}
	appLogger.Info(ctx, "Market data client initialized", map[string]interface{}{"provider": cfg.MarketDataProvider, "minInterval": cfg.MinRequestInterval.String()})

	// 5. Initialize Prediction Client and Strategy
	predictor, err := prediction.New(prediction.Config{
		BaseURL: cfg.PredictionURL,
		Timeout: cfg.HTTPTimeout,
		Logger:  appLogger,
	})
	if err != nil {
		return err
	}
	divisor, err := strategy.ParseDivisorMode(cfg.PredictionDivisor)
	if err != nil {
		return err
	}
	strat, err := strategy.New(strategy.Config{Divisor: divisor})
	if err != nil {
		return err
	}

	// 6. Initialize Risk Manager, Settler and Engine
	riskManager := risk.NewRiskManager(risk.RiskConfig{
		MaxTradesPerWindow: cfg.MaxTradesPerWindow,
		ThrottleWindow:     cfg.ThrottleWindow,
		MaxOpenPositions:   cfg.MaxOpenPositions,
		RiskFraction:       cfg.RiskFraction,
	})
	locks := app.NewUserLocks()

	settler, err := app.NewSettler(app.SettlerConfig{MinDelay: cfg.SettleMinDelay, MaxDelay: cfg.SettleMaxDelay},
		appLogger, market, repo, repo, repo, locks)
	if err != nil {
		return err
	}
	defer settler.Close()
	if _, err := settler.Recover(ctx); err != nil {
		return err
	}

	engine, err := app.NewEngine(app.EngineConfig{Symbol: cfg.Symbol, HistorySize: cfg.HistorySize},
		appLogger, market, predictor, strat, repo, repo, riskManager, settler, locks)
	if err != nil {
		return err
	}

	// 7. Initialize Bot Registry and Account Service
	registry, err := app.NewRegistry(app.RegistryConfig{CycleInterval: cfg.CycleInterval, ThrottleWindow: cfg.ThrottleWindow},
		engine, riskManager, appLogger)
	if err != nil {
		return err
	}
	defer registry.StopAll(context.Background())

	accounts, err := app.NewAccountService(app.AccountConfig{
		Symbol:              cfg.Symbol,
		HistorySize:         cfg.HistorySize,
		MinPredictionPoints: cfg.MinPredictionPoints,
	}, appLogger, repo, repo, market, predictor, locks)
	if err != nil {
		return err
	}

	// 8. Initialize HTTP Server
	tokens, err := auth.ParseTokens(cfg.APITokens)
	if err != nil {
		return err
	}
	if tokens.Len() == 0 {
		appLogger.Warn(ctx, "API_TOKENS is empty, every authenticated route will answer 401")
	}
	srv, err := server.New(server.Config{Addr: cfg.HTTPAddr}, registry, accounts, tokens, appLogger)
	if err != nil {
		return err
	}

	// 9. Serve until a signal arrives. Deferred calls then stop the bots,
	// the settler and the database in that order.
	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(sigCtx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		appLogger.Info(ctx, "Shutdown requested")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
