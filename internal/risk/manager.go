package risk

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// RiskConfig holds configuration for trade throttling and sizing
type RiskConfig struct {
	MaxTradesPerWindow int           // Trades allowed per user per throttle window
	ThrottleWindow     time.Duration // Length of the fixed throttle window
	MaxOpenPositions   int           // Cap on simultaneously open positions per user
	RiskFraction       float64       // Fraction of the balance committed per trade
}

// RiskManager implements the per-user trade throttle and position sizing.
// Counters use fixed-window semantics: they are zeroed by Reset, which the
// registry calls every ThrottleWindow for each running bot.
type RiskManager struct {
	config RiskConfig

	mu     sync.Mutex
	trades map[string]*RiskStats
}

// RiskStats holds per-user throttle statistics
type RiskStats struct {
	WindowTrades  int
	LastResetTime int64
}

// NewRiskManager creates a new risk manager instance
func NewRiskManager(config RiskConfig) *RiskManager {
	return &RiskManager{
		config: config,
		trades: make(map[string]*RiskStats),
	}
}

// Config returns the configuration the manager was created with.
func (r *RiskManager) Config() RiskConfig {
	return r.config
}

// TryConsume takes one trade slot for userID. It returns false without side
// effects once the window quota is spent.
func (r *RiskManager) TryConsume(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats, ok := r.trades[userID]
	if !ok {
		stats = &RiskStats{LastResetTime: time.Now().Unix()}
		r.trades[userID] = stats
	}
	if stats.WindowTrades >= r.config.MaxTradesPerWindow {
		return false
	}
	stats.WindowTrades++
	return true
}

// Reset zeroes the trade counter of userID.
func (r *RiskManager) Reset(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trades[userID] = &RiskStats{LastResetTime: time.Now().Unix()}
}

// Remove drops all throttle state for userID.
func (r *RiskManager) Remove(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.trades, userID)
}

// GetStats returns a copy of the throttle statistics of userID.
func (r *RiskManager) GetStats(userID string) RiskStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	if stats, ok := r.trades[userID]; ok {
		return *stats
	}
	return RiskStats{}
}

// ValidateOpenCount checks the open-position cap
func (r *RiskManager) ValidateOpenCount(ctx context.Context, openPositions int) error {
	if openPositions >= r.config.MaxOpenPositions {
		return fmt.Errorf("number of open positions %d reached maximum allowed %d", openPositions, r.config.MaxOpenPositions)
	}
	return nil
}

// GetPositionSize calculates the trade amount as a fraction of the balance
func (r *RiskManager) GetPositionSize(ctx context.Context, accountBalance decimal.Decimal) decimal.Decimal {
	return accountBalance.Mul(decimal.NewFromFloat(r.config.RiskFraction))
}
