package main

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"forexBot/config"
	"forexBot/internal/adapters/binanceclient"
	"forexBot/internal/adapters/logger"
	"forexBot/internal/adapters/twelvedata"
	"forexBot/internal/ports"
	"forexBot/internal/ratelimit"
	"forexBot/internal/utils"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	appLogger := logger.New(cfg.LogFormat, cfg.LogLevel)
	ctx := context.Background()

	// 3. Initialize Market Data Client
	limiter := ratelimit.New(cfg.MinRequestInterval)
	retry := ratelimit.RetryPolicy{Backoff: cfg.RateLimitBackoff, MaxAttempts: cfg.RateLimitMaxAttempt}
	var market ports.MarketDataClient
	if cfg.MarketDataProvider == config.ProviderBinance {
		market, err = binanceclient.New(binanceclient.Config{UseTestnet: cfg.BinanceUseTestnet, Interval: cfg.MarketInterval, Limiter: limiter, Retry: retry, Logger: appLogger})
	} else {
		market, err = twelvedata.New(twelvedata.Config{BaseURL: cfg.TwelveDataBaseURL, APIKey: cfg.TwelveDataAPIKey, Interval: cfg.MarketInterval, Timeout: cfg.HTTPTimeout, Limiter: limiter, Retry: retry, Logger: appLogger})
	}
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize market data client: %v", err)
	}

	fmt.Printf("Fetching %d %s candles for %s from %s...\n", cfg.HistorySize, cfg.MarketInterval, cfg.Symbol, cfg.MarketDataProvider)
	series, err := market.FetchSeries(ctx, cfg.Symbol, cfg.HistorySize)
	if err != nil {
		appLogger.Error(ctx, err, "Error fetching series")
		log.Fatalf("Error fetching series: %v", err)
	}
	appLogger.Info(ctx, "Fetched series", map[string]interface{}{"count": len(series.Values)})

	pair := strings.ReplaceAll(cfg.Symbol, "/", "")
	filename := fmt.Sprintf("data/%s_%s_%s.csv", pair, cfg.MarketInterval, time.Now().UTC().Format("20060102T150405"))
	if err := utils.WriteSeriesToCSV(series, filename); err != nil {
		appLogger.Error(ctx, err, "Error writing CSV")
		log.Fatalf("Error writing CSV: %v", err)
	}
	appLogger.Info(ctx, "Saved to", map[string]interface{}{"filename": filename})
}
