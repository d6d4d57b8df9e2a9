package ports

import "forexBot/internal/domain"

// Strategy decides the side of the next trade.
type Strategy interface {
	// Decide compares the current price against the forecast and picks a side.
	Decide(currentPrice float64, prediction *domain.Prediction) (domain.OrderSide, float64, error)
}
