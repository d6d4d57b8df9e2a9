package binanceclient

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"forexBot/internal/domain"
	"forexBot/internal/ports"
	"forexBot/internal/ratelimit"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
)

const (
	// Base URLs
	baseURLProduction = "https://fapi.binance.com"
	baseURLTestnet    = "https://testnet.binancefuture.com"
)

// Client implements ports.MarketDataClient on top of the public Binance futures kline endpoint.
// It is the alternate price source, selected with MARKET_DATA_PROVIDER=binance.
type Client struct {
	futuresClient *futures.Client
	interval      string
	limiter       ports.RateLimiter
	retry         ratelimit.RetryPolicy
	logger        ports.Logger
}

var _ ports.MarketDataClient = (*Client)(nil)

// Config holds configuration specific to the Binance client adapter.
type Config struct {
	UseTestnet bool
	BaseURL    string // Overrides the production/testnet URL when set
	Interval   string // Provider-neutral interval, e.g. "1min"
	Limiter    ports.RateLimiter
	Retry      ratelimit.RetryPolicy
	Logger     ports.Logger
}

// New creates a new Binance client adapter. Only public endpoints are used, so no keys are needed.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Binance client")
	}
	if cfg.Limiter == nil {
		return nil, fmt.Errorf("rate limiter is required for Binance client")
	}
	interval, err := toBinanceInterval(cfg.Interval)
	if err != nil {
		return nil, err
	}

	client := futures.NewClient("", "")
	switch {
	case cfg.BaseURL != "":
		client.BaseURL = cfg.BaseURL
	case cfg.UseTestnet:
		client.BaseURL = baseURLTestnet
	default:
		client.BaseURL = baseURLProduction
	}
	cfg.Logger.Info(context.Background(), "Binance market data client configured", map[string]interface{}{"baseURL": client.BaseURL, "interval": interval})

	return &Client{
		futuresClient: client,
		interval:      interval,
		limiter:       cfg.Limiter,
		retry:         cfg.Retry,
		logger:        cfg.Logger,
	}, nil
}

// handleError translates Binance API errors into standardized ports errors.
func (c *Client) handleError(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		var mappedErr error
		switch apiErr.Code {
		case -1003: // Too many requests
			mappedErr = ports.ErrRateLimited
		case -1100, -1101, -1102, -1103, -1120, -1121: // Parameter/symbol errors
			mappedErr = ports.ErrValidation
		default:
			mappedErr = ports.ErrNetwork
		}
		c.logger.Debug(ctx, operation+" returned API error", map[string]interface{}{"apiErrorCode": apiErr.Code, "apiErrorMessage": apiErr.Message})
		return fmt.Errorf("%s failed: %w: %w", operation, mappedErr, err)
	}

	if errors.Is(err, ports.ErrDataFormat) {
		return fmt.Errorf("%s failed: %w", operation, err)
	}
	return fmt.Errorf("%s failed: %w: %w", operation, ports.ErrNetwork, err)
}

// FetchSeries retrieves up to count klines, oldest first.
func (c *Client) FetchSeries(ctx context.Context, symbol string, count int) (*domain.PriceSeries, error) {
	op := "FetchSeries"
	binanceSymbol := toBinanceSymbol(symbol)

	var klines []*futures.Kline
	err := ratelimit.Do(ctx, c.limiter, c.retry, c.logger, op, func(ctx context.Context) error {
		res, err := c.futuresClient.NewKlinesService().Symbol(binanceSymbol).Interval(c.interval).Limit(count).Do(ctx)
		if err != nil {
			return c.handleError(ctx, err, op)
		}
		klines = res
		return nil
	})
	if err != nil {
		c.logger.Error(ctx, err, op+" failed", map[string]interface{}{"symbol": binanceSymbol})
		return nil, err
	}

	base, quote := splitPair(symbol)
	series := &domain.PriceSeries{
		Meta: domain.SeriesMeta{
			Symbol:        symbol,
			Interval:      c.interval,
			CurrencyBase:  base,
			CurrencyQuote: quote,
			Type:          "Perpetual Future",
		},
		Values: make([]domain.Candle, 0, len(klines)),
	}
	for _, bk := range klines {
		candle, err := translateBinanceKline(bk)
		if err != nil {
			return nil, c.handleError(ctx, fmt.Errorf("failed to translate kline: %w", err), op)
		}
		series.Values = append(series.Values, candle)
	}
	return series, nil
}

// FetchRecentCloses retrieves up to count close prices; the last one is the current price.
func (c *Client) FetchRecentCloses(ctx context.Context, symbol string, count int) ([]float64, error) {
	series, err := c.FetchSeries(ctx, symbol, count)
	if err != nil {
		return nil, err
	}
	return series.Closes(), nil
}

// FetchLatestClose retrieves the close of the most recent kline.
func (c *Client) FetchLatestClose(ctx context.Context, symbol string) (float64, error) {
	series, err := c.FetchSeries(ctx, symbol, 1)
	if err != nil {
		return 0, err
	}
	if len(series.Values) == 0 {
		return 0, fmt.Errorf("FetchLatestClose: %w: no klines for %s", ports.ErrDataFormat, symbol)
	}
	return series.Values[len(series.Values)-1].Close, nil
}

// toBinanceSymbol turns "EUR/USD" into "EURUSDT"; Binance quotes dollar pairs in USDT.
func toBinanceSymbol(symbol string) string {
	s := strings.ToUpper(strings.ReplaceAll(symbol, "/", ""))
	if strings.HasSuffix(s, "USD") {
		s += "T"
	}
	return s
}

func splitPair(symbol string) (string, string) {
	parts := strings.SplitN(symbol, "/", 2)
	if len(parts) != 2 {
		return symbol, ""
	}
	return parts[0], parts[1]
}

var intervals = map[string]string{
	"1min":  "1m",
	"5min":  "5m",
	"15min": "15m",
	"30min": "30m",
	"1h":    "1h",
	"4h":    "4h",
	"1day":  "1d",
}

func toBinanceInterval(interval string) (string, error) {
	if interval == "" {
		return "1m", nil
	}
	if v, ok := intervals[interval]; ok {
		return v, nil
	}
	for _, v := range intervals {
		if v == interval {
			return v, nil
		}
	}
	return "", fmt.Errorf("%w: unsupported interval %q for Binance", ports.ErrConfigurationError, interval)
}

func translateBinanceKline(bk *futures.Kline) (domain.Candle, error) {
	if bk == nil {
		return domain.Candle{}, fmt.Errorf("%w: received nil kline", ports.ErrDataFormat)
	}
	open, err := strconv.ParseFloat(bk.Open, 64)
	if err != nil {
		return domain.Candle{}, fmt.Errorf("%w: parsing open price '%s': %w", ports.ErrDataFormat, bk.Open, err)
	}
	high, err := strconv.ParseFloat(bk.High, 64)
	if err != nil {
		return domain.Candle{}, fmt.Errorf("%w: parsing high price '%s': %w", ports.ErrDataFormat, bk.High, err)
	}
	low, err := strconv.ParseFloat(bk.Low, 64)
	if err != nil {
		return domain.Candle{}, fmt.Errorf("%w: parsing low price '%s': %w", ports.ErrDataFormat, bk.Low, err)
	}
	cls, err := strconv.ParseFloat(bk.Close, 64)
	if err != nil {
		return domain.Candle{}, fmt.Errorf("%w: parsing close price '%s': %w", ports.ErrDataFormat, bk.Close, err)
	}

	return domain.Candle{
		Datetime: time.UnixMilli(bk.OpenTime).UTC().Format("2006-01-02 15:04:05"),
		Open:     open,
		High:     high,
		Low:      low,
		Close:    cls,
	}, nil
}
