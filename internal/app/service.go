package app

import (
	"context"
	"fmt"
	"time"

	"forexBot/internal/domain"
	"forexBot/internal/ports"
	"forexBot/internal/risk"

	"github.com/shopspring/decimal"
)

// SettlementScheduler arranges the deferred close of a freshly opened position.
type SettlementScheduler interface {
	Schedule(ctx context.Context, pos *domain.Position) error
}

// EngineConfig holds the per-cycle trading parameters.
type EngineConfig struct {
	Symbol      string // Pair traded by every bot, e.g. "EUR/USD"
	HistorySize int    // Closes fetched per cycle
}

// Engine runs one decision cycle of a user's bot: fetch closes, predict,
// decide, size and open a position, then hand it to the settler.
type Engine struct {
	cfg       EngineConfig
	logger    ports.Logger
	market    ports.MarketDataClient
	predictor ports.PredictionClient
	strategy  ports.Strategy
	ledger    ports.PositionLedger
	accounts  ports.AccountStore
	risk      *risk.RiskManager
	settler   SettlementScheduler
	locks     *UserLocks
	now       func() time.Time
}

// NewEngine creates a new bot engine.
func NewEngine(
	cfg EngineConfig,
	logger ports.Logger,
	market ports.MarketDataClient,
	predictor ports.PredictionClient,
	strat ports.Strategy,
	ledger ports.PositionLedger,
	accounts ports.AccountStore,
	riskManager *risk.RiskManager,
	settler SettlementScheduler,
	locks *UserLocks,
) (*Engine, error) {
	if logger == nil || market == nil || predictor == nil || strat == nil || ledger == nil ||
		accounts == nil || riskManager == nil || settler == nil || locks == nil {
		return nil, fmt.Errorf("missing required dependencies for Engine")
	}
	if cfg.Symbol == "" {
		return nil, fmt.Errorf("configuration Symbol must be set")
	}
	if cfg.HistorySize <= 0 {
		return nil, fmt.Errorf("configuration HistorySize must be positive")
	}

	return &Engine{
		cfg:       cfg,
		logger:    logger,
		market:    market,
		predictor: predictor,
		strategy:  strat,
		ledger:    ledger,
		accounts:  accounts,
		risk:      riskManager,
		settler:   settler,
		locks:     locks,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// RunCycle executes one bot cycle for userID. It returns the opened position,
// or nil when the cycle decided not to trade. ctx is the bot's run context:
// once it is canceled the cycle's result is discarded.
func (e *Engine) RunCycle(ctx context.Context, userID string) (*domain.Position, error) {
	op := "RunCycle"
	fields := map[string]interface{}{"userID": userID}

	// 1. Market data (waits on the shared rate limiter)
	closes, err := e.market.FetchRecentCloses(ctx, e.cfg.Symbol, e.cfg.HistorySize)
	if err != nil {
		return nil, fmt.Errorf("%s: fetching closes: %w", op, err)
	}
	if len(closes) == 0 {
		return nil, fmt.Errorf("%s: %w: provider returned no closes", op, ports.ErrDataFormat)
	}
	currentPrice := closes[len(closes)-1]

	// 2. Forecast
	prediction, err := e.predictor.Predict(ctx, closes)
	if err != nil {
		return nil, fmt.Errorf("%s: requesting prediction: %w", op, err)
	}
	side, avgPrediction, err := e.strategy.Decide(currentPrice, prediction)
	if err != nil {
		return nil, fmt.Errorf("%s: deciding side: %w", op, err)
	}
	fields["currentPrice"] = currentPrice
	fields["avgPrediction"] = avgPrediction

	// 3. Open position cap
	openCount, err := e.ledger.CountOpenByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: counting open positions: %w", op, err)
	}
	if err := e.risk.ValidateOpenCount(ctx, openCount); err != nil {
		fields["openPositions"] = openCount
		e.logger.Info(ctx, op+": open position cap reached, skipping trade", fields)
		return nil, nil
	}

	// A stopped bot discards whatever it fetched.
	if ctx.Err() != nil {
		e.logger.Debug(ctx, op+": bot stopped during cycle, discarding result", fields)
		return nil, nil
	}

	// 4. Trade throttle
	if !e.risk.TryConsume(userID) {
		e.logger.Info(ctx, op+": trade throttle exhausted, skipping trade", fields)
		return nil, nil
	}

	// The trade is committed from here on; bot cancellation must not half-apply it.
	writeCtx := context.WithoutCancel(ctx)
	pos, err := e.openPosition(writeCtx, userID, side, currentPrice)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if pos == nil {
		e.logger.Info(ctx, op+": trade amount not positive, skipping trade", fields)
		return nil, nil
	}

	fields["positionID"] = pos.ID
	fields["side"] = pos.Side
	fields["amount"] = pos.Amount
	e.logger.Info(ctx, op+": position opened", fields)

	// 5. Deferred settlement
	if err := e.settler.Schedule(writeCtx, pos); err != nil {
		// The position stays open; it shows up in the open-positions list and can be closed manually.
		e.logger.Error(ctx, err, op+": failed to schedule settlement", fields)
	}
	return pos, nil
}

// openPosition debits the trade amount and records the position under the user's lock.
// It returns nil, nil when the sized amount is not positive.
func (e *Engine) openPosition(ctx context.Context, userID string, side domain.OrderSide, price float64) (*domain.Position, error) {
	unlock := e.locks.Lock(userID)
	defer unlock()

	account, err := e.accounts.FindAccount(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("reading balance: %w", err)
	}
	if account == nil {
		return nil, fmt.Errorf("account %s: %w", userID, ports.ErrNotFound)
	}

	amount := e.risk.GetPositionSize(ctx, account.Balance)
	if !amount.IsPositive() {
		return nil, nil
	}

	if _, err := e.accounts.AdjustBalance(ctx, userID, amount.Neg()); err != nil {
		return nil, fmt.Errorf("debiting trade amount: %w", err)
	}

	pos := domain.NewMarketPosition(userID, e.cfg.Symbol, side, amount.InexactFloat64(), price, e.now())
	if err := e.ledger.Create(ctx, pos); err != nil {
		if _, refundErr := e.accounts.AdjustBalance(ctx, userID, amount); refundErr != nil {
			e.logger.Error(ctx, refundErr, "Failed to refund debit after position create failure",
				map[string]interface{}{"userID": userID, "amount": amount.String()})
		}
		return nil, fmt.Errorf("recording position: %w", err)
	}
	return pos, nil
}

// profitDelta converts a realized float profit into a balance delta.
func profitDelta(profit float64) decimal.Decimal {
	return decimal.NewFromFloat(profit)
}
