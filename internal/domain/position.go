package domain

import (
	"errors"
	"time"
)

// ErrAlreadyClosed is returned when a close is attempted on a position that is no longer open.
var ErrAlreadyClosed = errors.New("position already closed")

// Position represents a simulated trade record, opened by the bot or manually.
type Position struct {
	ID           string       // Unique identifier (uuid)
	UserID       string       // Owner of the position
	Pair         string       // Currency pair, e.g. "EUR/USD"
	Side         OrderSide    // BUY or SELL
	Type         OrderType    // MARKET, LIMIT, STOP, STOP_LIMIT
	Amount       float64      // Size of the position in account currency
	Price        *float64     // Entry price (nil until filled)
	Total        *float64     // Price * Amount when price is known
	Leverage     *float64     // Optional leverage (manual positions only)
	StopPrice    *float64     // Optional stop price (manual positions only)
	TimeInForce  TimeInForce  // GTC by default
	PositionSide PositionSide // BOTH by default
	OrderID      string       // Optional external order reference
	Status       OrderStatus
	IsOpen       bool
	OpenedAt     time.Time
	ClosedAt     *time.Time // Set exactly once on close
	Duration     *int64     // Seconds between OpenedAt and ClosedAt, set with ClosedAt
	Profit       *float64   // Realized profit, set on settlement
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewMarketPosition builds an open MARKET position filled at entryPrice.
func NewMarketPosition(userID, pair string, side OrderSide, amount, entryPrice float64, now time.Time) *Position {
	price := entryPrice
	total := entryPrice * amount
	return &Position{
		UserID:       userID,
		Pair:         pair,
		Side:         side,
		Type:         TypeMarket,
		Amount:       amount,
		Price:        &price,
		Total:        &total,
		TimeInForce:  GoodTillCancel,
		PositionSide: PositionBoth,
		Status:       StatusNew,
		IsOpen:       true,
		OpenedAt:     now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// EntryPrice returns the entry price, or 0 if none was recorded.
func (p *Position) EntryPrice() float64 {
	if p.Price == nil {
		return 0
	}
	return *p.Price
}

// ProfitAt computes the signed profit of the position valued at mark.
func (p *Position) ProfitAt(mark float64) float64 {
	entry := p.EntryPrice()
	if p.Side == Sell {
		return (entry - mark) * p.Amount
	}
	return (mark - entry) * p.Amount
}

// Close flips the position to closed with a terminal status. closedAt and
// duration are stamped once; a second call returns ErrAlreadyClosed and leaves
// the record untouched.
func (p *Position) Close(status OrderStatus, now time.Time) error {
	if !p.IsOpen || p.ClosedAt != nil {
		return ErrAlreadyClosed
	}
	if status.IsOpenStatus() {
		return errors.New("close status must be terminal")
	}
	closedAt := now
	duration := int64(closedAt.Sub(p.OpenedAt) / time.Second)
	p.IsOpen = false
	p.Status = status
	p.ClosedAt = &closedAt
	p.Duration = &duration
	p.UpdatedAt = now
	return nil
}

// Settle closes the position as CANCELED and records the realized profit at mark.
// The bot always closes with CANCELED, never FILLED.
func (p *Position) Settle(mark float64, now time.Time) (float64, error) {
	profit := p.ProfitAt(mark)
	if err := p.Close(StatusCanceled, now); err != nil {
		return 0, err
	}
	p.Profit = &profit
	return profit, nil
}
