package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is the simulated user balance record mutated by settlements.
type Account struct {
	ID        string
	Username  string
	Balance   decimal.Decimal
	Currency  string
	CreatedAt time.Time
	UpdatedAt time.Time
}
