package strategy

import (
	"fmt"
	"strings"

	"forexBot/internal/domain"
	"forexBot/internal/ports"
)

// DivisorMode selects what the predicted-price sum is divided by.
type DivisorMode string

const (
	// DivisorPredictedCount divides by the number of predicted prices (a plain mean).
	DivisorPredictedCount DivisorMode = "predicted_count"
	// DivisorResponseFields divides by the number of top-level fields in the prediction response.
	DivisorResponseFields DivisorMode = "response_fields"
)

// ParseDivisorMode converts a config string to a DivisorMode.
func ParseDivisorMode(s string) (DivisorMode, error) {
	switch DivisorMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", DivisorPredictedCount:
		return DivisorPredictedCount, nil
	case DivisorResponseFields:
		return DivisorResponseFields, nil
	}
	return "", fmt.Errorf("%w: unknown prediction divisor %q", ports.ErrConfigurationError, s)
}

// Config holds parameters for the trading strategy.
type Config struct {
	Divisor DivisorMode
}

// Strategy implements the prediction-versus-price decision.
type Strategy struct {
	cfg Config
}

// New creates a new Strategy instance.
func New(cfg Config) (*Strategy, error) {
	if cfg.Divisor == "" {
		cfg.Divisor = DivisorPredictedCount
	}
	if cfg.Divisor != DivisorPredictedCount && cfg.Divisor != DivisorResponseFields {
		return nil, fmt.Errorf("%w: unknown prediction divisor %q", ports.ErrConfigurationError, cfg.Divisor)
	}
	return &Strategy{cfg: cfg}, nil
}

// AveragePrediction sums the predicted prices and divides by the configured divisor.
func (s *Strategy) AveragePrediction(p *domain.Prediction) (float64, error) {
	if p == nil || len(p.PredictedPrices) == 0 {
		return 0, fmt.Errorf("%w: empty predicted_prices", ports.ErrPredictionService)
	}

	sum := 0.0
	for _, v := range p.PredictedPrices {
		sum += v
	}

	divisor := len(p.PredictedPrices)
	if s.cfg.Divisor == DivisorResponseFields {
		divisor = p.FieldCount
	}
	if divisor <= 0 {
		return 0, fmt.Errorf("%w: divisor %s is zero", ports.ErrPredictionService, s.cfg.Divisor)
	}
	return sum / float64(divisor), nil
}

// Decide returns SELL when the current price is above the average prediction and BUY otherwise.
func (s *Strategy) Decide(currentPrice float64, p *domain.Prediction) (domain.OrderSide, float64, error) {
	avg, err := s.AveragePrediction(p)
	if err != nil {
		return "", 0, err
	}
	if currentPrice > avg {
		return domain.Sell, avg, nil
	}
	return domain.Buy, avg, nil
}
