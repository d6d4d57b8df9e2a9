// Package twelvedata implements ports.MarketDataClient against the Twelve Data
// time_series endpoint.
package twelvedata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"forexBot/internal/domain"
	"forexBot/internal/ports"
	"forexBot/internal/ratelimit"
)

// DefaultBaseURL is the public Twelve Data REST endpoint.
const DefaultBaseURL = "https://api.twelvedata.com"

// Config holds configuration for the Twelve Data client.
type Config struct {
	BaseURL    string
	APIKey     string
	Interval   string // e.g. "1min"
	Timeout    time.Duration
	HTTPClient *http.Client
	Limiter    ports.RateLimiter
	Retry      ratelimit.RetryPolicy
	Logger     ports.Logger
}

// Client fetches candles from Twelve Data.
type Client struct {
	baseURL    string
	apiKey     string
	interval   string
	httpClient *http.Client
	limiter    ports.RateLimiter
	retry      ratelimit.RetryPolicy
	logger     ports.Logger
}

var _ ports.MarketDataClient = (*Client)(nil)

// New creates a Twelve Data client.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Twelve Data client")
	}
	if cfg.Limiter == nil {
		return nil, fmt.Errorf("rate limiter is required for Twelve Data client")
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	interval := cfg.Interval
	if interval == "" {
		interval = "1min"
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	if cfg.APIKey == "" {
		cfg.Logger.Warn(context.Background(), "Twelve Data API key is empty, requests will likely be rejected")
	}

	return &Client{
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		interval:   interval,
		httpClient: httpClient,
		limiter:    cfg.Limiter,
		retry:      cfg.Retry,
		logger:     cfg.Logger,
	}, nil
}

type seriesMeta struct {
	Symbol        string `json:"symbol"`
	Interval      string `json:"interval"`
	CurrencyBase  string `json:"currency_base"`
	CurrencyQuote string `json:"currency_quote"`
	Type          string `json:"type"`
}

type seriesValue struct {
	Datetime string  `json:"datetime"`
	Open     string  `json:"open"`
	High     string  `json:"high"`
	Low      string  `json:"low"`
	Close    *string `json:"close"`
}

type seriesResponse struct {
	Code    int            `json:"code"`
	Status  string         `json:"status"`
	Message string         `json:"message"`
	Meta    seriesMeta     `json:"meta"`
	Values  *[]seriesValue `json:"values"`
}

// FetchSeries retrieves up to count candles, oldest first.
func (c *Client) FetchSeries(ctx context.Context, symbol string, count int) (*domain.PriceSeries, error) {
	op := "FetchSeries"
	var series *domain.PriceSeries
	err := ratelimit.Do(ctx, c.limiter, c.retry, c.logger, op, func(ctx context.Context) error {
		var err error
		series, err = c.fetchOnce(ctx, symbol, count)
		return err
	})
	if err != nil {
		c.logger.Error(ctx, err, op+" failed", map[string]interface{}{"symbol": symbol, "count": count})
		return nil, err
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

// FetchLatestClose retrieves the most recent close price.
func (c *Client) FetchLatestClose(ctx context.Context, symbol string) (float64, error) {
	series, err := c.FetchSeries(ctx, symbol, 1)
	if err != nil {
		return 0, err
	}
	if len(series.Values) == 0 {
		return 0, fmt.Errorf("FetchLatestClose: %w: empty values for %s", ports.ErrDataFormat, symbol)
	}
	return series.Values[len(series.Values)-1].Close, nil
}

func (c *Client) fetchOnce(ctx context.Context, symbol string, count int) (*domain.PriceSeries, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", c.interval)
	params.Set("outputsize", strconv.Itoa(count))
	params.Set("order", "ASC")
	params.Set("apikey", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/time_series?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w: %w", ports.ErrNetwork, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w: %w", ports.ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w: %w", ports.ErrNetwork, err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("HTTP 429: %w", ports.ErrRateLimited)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("API error %d: %s: %w", resp.StatusCode, truncate(body), ports.ErrNetwork)
	}

	var payload seriesResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decoding response: %w: %w", ports.ErrDataFormat, err)
	}
	if payload.Code == http.StatusTooManyRequests {
		return nil, fmt.Errorf("provider code 429 (%s): %w", payload.Message, ports.ErrRateLimited)
	}
	if payload.Values == nil {
		msg := payload.Message
		if msg == "" {
			msg = "response has no values array"
		}
		return nil, fmt.Errorf("%w: %s", ports.ErrDataFormat, msg)
	}

	return toSeries(payload)
}

func toSeries(payload seriesResponse) (*domain.PriceSeries, error) {
	values := *payload.Values
	series := &domain.PriceSeries{
		Meta: domain.SeriesMeta{
			Symbol:        payload.Meta.Symbol,
			Interval:      payload.Meta.Interval,
			CurrencyBase:  payload.Meta.CurrencyBase,
			CurrencyQuote: payload.Meta.CurrencyQuote,
			Type:          payload.Meta.Type,
		},
		Values: make([]domain.Candle, 0, len(values)),
	}

	for i, v := range values {
		if v.Close == nil {
			return nil, fmt.Errorf("%w: value %d has no close field", ports.ErrDataFormat, i)
		}
		closePrice, err := strconv.ParseFloat(*v.Close, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: value %d close %q: %w", ports.ErrDataFormat, i, *v.Close, err)
		}
		series.Values = append(series.Values, domain.Candle{
			Datetime: v.Datetime,
			Open:     parseOptional(v.Open),
			High:     parseOptional(v.High),
			Low:      parseOptional(v.Low),
			Close:    closePrice,
		})
	}
	return series, nil
}

// parseOptional parses a price the bot never trades on; malformed values become 0.
func parseOptional(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

func truncate(body []byte) string {
	const max = 200
	s := strings.TrimSpace(string(body))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}

