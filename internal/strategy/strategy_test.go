package strategy

import (
	"testing"

	"forexBot/internal/domain"
	"forexBot/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		want    DivisorMode
		wantErr bool
	}{
		{name: "default divisor", cfg: Config{}, want: DivisorPredictedCount},
		{name: "response fields", cfg: Config{Divisor: DivisorResponseFields}, want: DivisorResponseFields},
		{name: "unknown divisor", cfg: Config{Divisor: "median"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(tt.cfg)
			if tt.wantErr {
				assert.ErrorIs(t, err, ports.ErrConfigurationError)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, s.cfg.Divisor)
		})
	}
}

func TestParseDivisorMode(t *testing.T) {
	mode, err := ParseDivisorMode(" Response_Fields ")
	require.NoError(t, err)
	assert.Equal(t, DivisorResponseFields, mode)

	mode, err = ParseDivisorMode("")
	require.NoError(t, err)
	assert.Equal(t, DivisorPredictedCount, mode)

	_, err = ParseDivisorMode("bogus")
	assert.Error(t, err)
}

func TestAveragePrediction(t *testing.T) {
	prediction := &domain.Prediction{PredictedPrices: []float64{1.0, 2.0, 3.0, 6.0}, FieldCount: 2}

	tests := []struct {
		name    string
		divisor DivisorMode
		want    float64
	}{
		{name: "mean of predicted prices", divisor: DivisorPredictedCount, want: 3.0},
		{name: "divided by response fields", divisor: DivisorResponseFields, want: 6.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(Config{Divisor: tt.divisor})
			require.NoError(t, err)
			got, err := s.AveragePrediction(prediction)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestAveragePrediction_Errors(t *testing.T) {
	s, err := New(Config{})
	require.NoError(t, err)

	_, err = s.AveragePrediction(&domain.Prediction{})
	assert.ErrorIs(t, err, ports.ErrPredictionService)

	_, err = s.AveragePrediction(nil)
	assert.ErrorIs(t, err, ports.ErrPredictionService)

	fields, err := New(Config{Divisor: DivisorResponseFields})
	require.NoError(t, err)
	_, err = fields.AveragePrediction(&domain.Prediction{PredictedPrices: []float64{1}, FieldCount: 0})
	assert.ErrorIs(t, err, ports.ErrPredictionService)
}

func TestDecide(t *testing.T) {
	s, err := New(Config{})
	require.NoError(t, err)
	prediction := &domain.Prediction{PredictedPrices: []float64{1.0, 2.0}, FieldCount: 1}

	tests := []struct {
		name    string
		current float64
		want    domain.OrderSide
	}{
		{name: "price above forecast sells", current: 2.0, want: domain.Sell},
		{name: "price below forecast buys", current: 1.0, want: domain.Buy},
		{name: "price equal to forecast buys", current: 1.5, want: domain.Buy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			side, avg, err := s.Decide(tt.current, prediction)
			require.NoError(t, err)
			assert.Equal(t, tt.want, side)
			assert.Equal(t, 1.5, avg)
		})
	}
}
