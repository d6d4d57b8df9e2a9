package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"forexBot/internal/adapters/logger" // Import the logger package for LogLevel
)

// Market data providers.
const (
	ProviderTwelveData = "twelvedata"
	ProviderBinance    = "binance"
)

// Config holds all application configuration.
type Config struct {
	// HTTP surface
	HTTPAddr  string
	APITokens string // "token:userID,token:userID"

	// Database
	DBPath string

	// Logging
	LogLevel  logger.LogLevel
	LogFormat string // text or json

	// Market data
	MarketDataProvider  string
	TwelveDataBaseURL   string
	TwelveDataAPIKey    string
	BinanceUseTestnet   bool
	Symbol              string
	MarketInterval      string
	HistorySize         int
	MinRequestInterval  time.Duration // Global spacing between market-data requests
	RateLimitBackoff    time.Duration // First wait after a 429
	RateLimitMaxAttempt int
	HTTPTimeout         time.Duration

	// Prediction
	PredictionURL       string
	MinPredictionPoints int
	PredictionDivisor   string

	// Bot
	CycleInterval      time.Duration
	MaxTradesPerWindow int
	ThrottleWindow     time.Duration
	MaxOpenPositions   int
	RiskFraction       float64
	SettleMinDelay     time.Duration
	SettleMaxDelay     time.Duration

	// Seed account
	SeedAccountID   string
	SeedBalance     float64
	AccountCurrency string
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()
	return load()
}

func load() (*Config, error) {
	cfg := &Config{}
	var err error
	var errs []string // Collect validation errors

	// HTTP surface
	cfg.HTTPAddr = getEnv("HTTP_ADDR", ":3000")
	cfg.APITokens = getEnv("API_TOKENS", "")

	// Database
	cfg.DBPath = getEnv("DB_PATH", "./data/forex_bot.db")

	// Logging
	cfg.LogLevel = logger.ParseLevel(getEnv("LOG_LEVEL", "INFO"))
	cfg.LogFormat = strings.ToLower(getEnv("LOG_FORMAT", "text"))
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		errs = append(errs, "LOG_FORMAT must be text or json")
	}

	// Market data
	cfg.MarketDataProvider = strings.ToLower(getEnv("MARKET_DATA_PROVIDER", ProviderTwelveData))
	cfg.TwelveDataBaseURL = getEnv("TWELVEDATA_BASE_URL", "https://api.twelvedata.com")
	cfg.TwelveDataAPIKey = getEnv("TWELVEDATA_API_KEY", "")
	cfg.BinanceUseTestnet = getEnvAsBool("BINANCE_USE_TESTNET", false)
	switch cfg.MarketDataProvider {
	case ProviderTwelveData:
		if cfg.TwelveDataAPIKey == "" {
			errs = append(errs, "TWELVEDATA_API_KEY must be set when MARKET_DATA_PROVIDER=twelvedata")
		}
	case ProviderBinance:
	default:
		errs = append(errs, fmt.Sprintf("MARKET_DATA_PROVIDER must be %s or %s", ProviderTwelveData, ProviderBinance))
	}

	cfg.Symbol = getEnv("SYMBOL", "EUR/USD")
	cfg.MarketInterval = getEnv("MARKET_INTERVAL", "1min")

	cfg.HistorySize, err = getEnvAsIntRequired("HISTORY_SIZE", 100)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid HISTORY_SIZE: %v", err))
	} else if cfg.HistorySize <= 0 {
		errs = append(errs, "HISTORY_SIZE must be positive")
	}

	minIntervalMs, err := getEnvAsIntRequired("MIN_REQUEST_INTERVAL_MS", 8000)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MIN_REQUEST_INTERVAL_MS: %v", err))
	} else if minIntervalMs < 0 {
		errs = append(errs, "MIN_REQUEST_INTERVAL_MS cannot be negative")
	}
	cfg.MinRequestInterval = time.Duration(minIntervalMs) * time.Millisecond

	backoffSeconds := getEnvAsInt("RATE_LIMIT_BACKOFF_SECONDS", 60)
	if backoffSeconds <= 0 {
		errs = append(errs, "RATE_LIMIT_BACKOFF_SECONDS must be positive")
	}
	cfg.RateLimitBackoff = time.Duration(backoffSeconds) * time.Second

	cfg.RateLimitMaxAttempt = getEnvAsInt("RATE_LIMIT_MAX_ATTEMPTS", 5)
	if cfg.RateLimitMaxAttempt <= 0 {
		errs = append(errs, "RATE_LIMIT_MAX_ATTEMPTS must be positive")
	}

	timeoutSeconds := getEnvAsInt("HTTP_TIMEOUT_SECONDS", 30)
	if timeoutSeconds <= 0 {
		errs = append(errs, "HTTP_TIMEOUT_SECONDS must be positive")
	}
	cfg.HTTPTimeout = time.Duration(timeoutSeconds) * time.Second

	// Prediction
	cfg.PredictionURL = getEnv("PREDICTION_URL", "")
	if cfg.PredictionURL == "" {
		errs = append(errs, "PREDICTION_URL must be set")
	}
	cfg.MinPredictionPoints = getEnvAsInt("MIN_PREDICTION_POINTS", 100)
	if cfg.MinPredictionPoints <= 0 {
		errs = append(errs, "MIN_PREDICTION_POINTS must be positive")
	}
	cfg.PredictionDivisor = getEnv("PREDICTION_DIVISOR", "predicted_count")

	// Bot
	cycleMs, err := getEnvAsIntRequired("CYCLE_INTERVAL_MS", 8000)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid CYCLE_INTERVAL_MS: %v", err))
	} else if cycleMs <= 0 {
		errs = append(errs, "CYCLE_INTERVAL_MS must be positive")
	}
	cfg.CycleInterval = time.Duration(cycleMs) * time.Millisecond

	cfg.MaxTradesPerWindow, err = getEnvAsIntRequired("MAX_TRADES_PER_MINUTE", 3)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MAX_TRADES_PER_MINUTE: %v", err))
	} else if cfg.MaxTradesPerWindow < 0 {
		errs = append(errs, "MAX_TRADES_PER_MINUTE cannot be negative")
	}

	windowSeconds := getEnvAsInt("THROTTLE_WINDOW_SECONDS", 60)
	if windowSeconds <= 0 {
		errs = append(errs, "THROTTLE_WINDOW_SECONDS must be positive")
	}
	cfg.ThrottleWindow = time.Duration(windowSeconds) * time.Second

	cfg.MaxOpenPositions, err = getEnvAsIntRequired("MAX_OPEN_POSITIONS", 10)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MAX_OPEN_POSITIONS: %v", err))
	} else if cfg.MaxOpenPositions <= 0 {
		errs = append(errs, "MAX_OPEN_POSITIONS must be positive")
	}

	cfg.RiskFraction, err = getEnvAsFloatRequired("RISK_FRACTION", 0.1)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid RISK_FRACTION: %v", err))
	} else if cfg.RiskFraction <= 0 || cfg.RiskFraction > 1.0 {
		errs = append(errs, "RISK_FRACTION must be in (0, 1]")
	}

	minDelay := getEnvAsInt("SETTLE_MIN_DELAY_SECONDS", 5)
	maxDelay := getEnvAsInt("SETTLE_MAX_DELAY_SECONDS", 30)
	if minDelay < 0 || maxDelay < minDelay {
		errs = append(errs, "SETTLE_MIN_DELAY_SECONDS must be non-negative and not above SETTLE_MAX_DELAY_SECONDS")
	}
	cfg.SettleMinDelay = time.Duration(minDelay) * time.Second
	cfg.SettleMaxDelay = time.Duration(maxDelay) * time.Second

	// Seed account
	cfg.SeedAccountID = getEnv("SEED_ACCOUNT_ID", "admin")
	cfg.AccountCurrency = getEnv("ACCOUNT_CURRENCY", "USD")
	cfg.SeedBalance, err = getEnvAsFloatRequired("SEED_BALANCE", 100000)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid SEED_BALANCE: %v", err))
	} else if cfg.SeedBalance < 0 {
		errs = append(errs, "SEED_BALANCE cannot be negative")
	}

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

func getEnvAsIntRequired(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		// Use default if env var is not set at all
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		// Return error if env var is set but invalid
		return 0, fmt.Errorf("invalid integer value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsFloatRequired(key string, defaultValue float64) (float64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
