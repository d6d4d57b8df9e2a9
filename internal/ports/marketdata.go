package ports

import (
	"context"

	"forexBot/internal/domain"
)

// MarketDataClient defines the interface for the external price provider.
// Implementations must wait on the shared RateLimiter before every request.
type MarketDataClient interface {
	// FetchSeries retrieves up to count candles for symbol in provider order.
	FetchSeries(ctx context.Context, symbol string, count int) (*domain.PriceSeries, error)
	// FetchRecentCloses retrieves up to count close prices; the last element is the current price.
	FetchRecentCloses(ctx context.Context, symbol string, count int) ([]float64, error)
	// FetchLatestClose retrieves the single most recent close price (the mark price).
	FetchLatestClose(ctx context.Context, symbol string) (float64, error)
}

// PredictionClient defines the interface for the external forecasting service.
type PredictionClient interface {
	// Predict returns the predicted price path for the given history.
	Predict(ctx context.Context, closes []float64) (*domain.Prediction, error)
}

// RateLimiter serializes outbound market-data requests.
type RateLimiter interface {
	// Acquire blocks until the caller may issue a request or ctx is done.
	Acquire(ctx context.Context) error
}

// TokenVerifier resolves bearer tokens to user IDs.
type TokenVerifier interface {
	// Verify returns the user ID bound to token, or an ErrUnauthorized-wrapped error.
	Verify(ctx context.Context, token string) (string, error)
}
