package domain

import "time"

// Candle is one OHLC bar returned by the market data provider.
type Candle struct {
	Datetime string
	Open     float64
	High     float64
	Low      float64
	Close    float64
}

// SeriesMeta describes a price series.
type SeriesMeta struct {
	Symbol        string
	Interval      string
	CurrencyBase  string
	CurrencyQuote string
	Type          string
}

// PriceSeries is a sequence of candles in the order the provider returned them.
type PriceSeries struct {
	Meta   SeriesMeta
	Values []Candle
}

// Closes returns the close prices of the series, preserving order.
func (s *PriceSeries) Closes() []float64 {
	closes := make([]float64, 0, len(s.Values))
	for _, v := range s.Values {
		closes = append(closes, v.Close)
	}
	return closes
}

// Prediction is the forecast returned by the prediction provider.
type Prediction struct {
	PredictedPrices []float64
	// FieldCount is the number of top-level fields in the provider's response object.
	FieldCount int
}

// PendingSettlement is a persisted reminder that a position must be settled at DueAt.
type PendingSettlement struct {
	PositionID string
	UserID     string
	DueAt      time.Time
	CreatedAt  time.Time
}
