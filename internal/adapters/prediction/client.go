// Package prediction implements ports.PredictionClient against the remote
// forecasting model's /predict endpoint.
package prediction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"forexBot/internal/domain"
	"forexBot/internal/ports"
)

// Config holds configuration for the prediction client.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     ports.Logger
}

// Client calls the prediction service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     ports.Logger
}

var _ ports.PredictionClient = (*Client)(nil)

// New creates a prediction client.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for prediction client")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: prediction base URL is required", ports.ErrConfigurationError)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: httpClient,
		logger:     cfg.Logger,
	}, nil
}

type predictRequest struct {
	Prices []float64 `json:"prices"`
}

// Predict posts closes to /predict and returns the forecast.
// Any transport failure, non-2xx status or undecodable body is an ErrPredictionService.
func (c *Client) Predict(ctx context.Context, closes []float64) (*domain.Prediction, error) {
	op := "Predict"

	payload, err := json.Marshal(predictRequest{Prices: closes})
	if err != nil {
		return nil, fmt.Errorf("%s: encoding request: %w: %w", op, ports.ErrPredictionService, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%s: creating request: %w: %w", op, ports.ErrPredictionService, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: executing request: %w: %w", op, ports.ErrPredictionService, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: reading response: %w: %w", op, ports.ErrPredictionService, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%s: status %d: %s: %w", op, resp.StatusCode, strings.TrimSpace(string(body)), ports.ErrPredictionService)
	}

	// Decode twice: once generically to count top-level fields, once for the prices.
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("%s: decoding response: %w: %w", op, ports.ErrPredictionService, err)
	}
	raw, ok := fields["predicted_prices"]
	if !ok {
		return nil, fmt.Errorf("%s: response has no predicted_prices: %w", op, ports.ErrPredictionService)
	}
	var predicted []float64
	if err := json.Unmarshal(raw, &predicted); err != nil {
		return nil, fmt.Errorf("%s: decoding predicted_prices: %w: %w", op, ports.ErrPredictionService, err)
	}

	c.logger.Debug(ctx, "Prediction received", map[string]interface{}{"inputPoints": len(closes), "predictedPoints": len(predicted)})
	return &domain.Prediction{PredictedPrices: predicted, FieldCount: len(fields)}, nil
}
