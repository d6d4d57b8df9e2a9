package server

import (
	"time"

	"forexBot/internal/app"
	"forexBot/internal/domain"

	"github.com/shopspring/decimal"
)

type botStatusView struct {
	UserID    string     `json:"userId"`
	IsRunning bool       `json:"isRunning"`
	RunID     string     `json:"runId,omitempty"`
	StartedAt *time.Time `json:"startedAt,omitempty"`
	Cycles    int        `json:"cycles"`
}

func toBotStatusView(s app.BotStatus) botStatusView {
	v := botStatusView{UserID: s.UserID, IsRunning: s.IsRunning, RunID: s.RunID, Cycles: s.Cycles}
	if !s.StartedAt.IsZero() {
		startedAt := s.StartedAt
		v.StartedAt = &startedAt
	}
	return v
}

type accountView struct {
	ID       string          `json:"id"`
	Username string          `json:"username"`
	Balance  decimal.Decimal `json:"balance"`
	Currency string          `json:"currency"`
}

type positionView struct {
	ID           string     `json:"id"`
	Pair         string     `json:"pair"`
	Side         string     `json:"side"`
	Type         string     `json:"type"`
	Amount       float64    `json:"amount"`
	Price        *float64   `json:"price"`
	Total        *float64   `json:"total"`
	Leverage     *float64   `json:"leverage,omitempty"`
	StopPrice    *float64   `json:"stopPrice,omitempty"`
	TimeInForce  string     `json:"timeInForce"`
	PositionSide string     `json:"positionSide"`
	OrderID      string     `json:"orderId,omitempty"`
	Status       string     `json:"status"`
	IsOpen       bool       `json:"isOpen"`
	Profit       *float64   `json:"profit"`
	OpenedAt     time.Time  `json:"openedAt"`
	ClosedAt     *time.Time `json:"closedAt"`
	Duration     *int64     `json:"duration"`
}

func toPositionView(p *domain.Position) positionView {
	return positionView{
		ID:           p.ID,
		Pair:         p.Pair,
		Side:         string(p.Side),
		Type:         string(p.Type),
		Amount:       p.Amount,
		Price:        p.Price,
		Total:        p.Total,
		Leverage:     p.Leverage,
		StopPrice:    p.StopPrice,
		TimeInForce:  string(p.TimeInForce),
		PositionSide: string(p.PositionSide),
		OrderID:      p.OrderID,
		Status:       string(p.Status),
		IsOpen:       p.IsOpen,
		Profit:       p.Profit,
		OpenedAt:     p.OpenedAt,
		ClosedAt:     p.ClosedAt,
		Duration:     p.Duration,
	}
}

func toPositionViews(ps []*domain.Position) []positionView {
	out := make([]positionView, 0, len(ps))
	for _, p := range ps {
		out = append(out, toPositionView(p))
	}
	return out
}

type candleView struct {
	Datetime string  `json:"datetime"`
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
}

type seriesView struct {
	Symbol        string       `json:"symbol"`
	Interval      string       `json:"interval"`
	CurrencyBase  string       `json:"currencyBase"`
	CurrencyQuote string       `json:"currencyQuote"`
	Type          string       `json:"type"`
	Values        []candleView `json:"values"`
}

func toSeriesView(s *domain.PriceSeries) seriesView {
	v := seriesView{
		Symbol:        s.Meta.Symbol,
		Interval:      s.Meta.Interval,
		CurrencyBase:  s.Meta.CurrencyBase,
		CurrencyQuote: s.Meta.CurrencyQuote,
		Type:          s.Meta.Type,
		Values:        make([]candleView, 0, len(s.Values)),
	}
	for _, c := range s.Values {
		v.Values = append(v.Values, candleView(c))
	}
	return v
}

type openPositionBody struct {
	Pair         string   `json:"pair"`
	Side         string   `json:"side"`
	Type         string   `json:"type"`
	Amount       float64  `json:"amount"`
	Price        *float64 `json:"price"`
	Leverage     *float64 `json:"leverage"`
	StopPrice    *float64 `json:"stopPrice"`
	TimeInForce  string   `json:"timeInForce"`
	PositionSide string   `json:"positionSide"`
	OrderID      string   `json:"orderId"`
}

func (b openPositionBody) toRequest() app.OpenPositionRequest {
	return app.OpenPositionRequest{
		Pair:         b.Pair,
		Side:         domain.OrderSide(b.Side),
		Type:         domain.OrderType(b.Type),
		Amount:       b.Amount,
		Price:        b.Price,
		Leverage:     b.Leverage,
		StopPrice:    b.StopPrice,
		TimeInForce:  domain.TimeInForce(b.TimeInForce),
		PositionSide: domain.PositionSide(b.PositionSide),
		OrderID:      b.OrderID,
	}
}

type closePositionBody struct {
	PositionID string `json:"positionId"`
}

type predictBody struct {
	Prices []float64 `json:"prices"`
}

type predictionView struct {
	PredictedPrices []float64 `json:"predictedPrices"`
}
