package app

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"forexBot/internal/domain"
	"forexBot/internal/ports"
)

// SettlerConfig holds the settlement timing parameters.
type SettlerConfig struct {
	MinDelay time.Duration // Inclusive lower bound of the settlement delay
	MaxDelay time.Duration // Inclusive upper bound of the settlement delay
}

// Settler closes positions after a random delay, books the realized profit
// onto the owner's balance, and persists due-times so pending settlements
// survive a restart. Settlements run on the settler's own context: stopping
// a bot does not cancel them.
type Settler struct {
	cfg      SettlerConfig
	logger   ports.Logger
	market   ports.MarketDataClient
	ledger   ports.PositionLedger
	accounts ports.AccountStore
	store    ports.SettlementStore
	locks    *UserLocks
	now      func() time.Time
	delay    func() time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	timers map[string]*time.Timer
	closed bool
	wg     sync.WaitGroup
}

// NewSettler creates a settler.
func NewSettler(
	cfg SettlerConfig,
	logger ports.Logger,
	market ports.MarketDataClient,
	ledger ports.PositionLedger,
	accounts ports.AccountStore,
	store ports.SettlementStore,
	locks *UserLocks,
) (*Settler, error) {
	if logger == nil || market == nil || ledger == nil || accounts == nil || store == nil || locks == nil {
		return nil, fmt.Errorf("missing required dependencies for Settler")
	}
	if cfg.MinDelay < 0 || cfg.MaxDelay < cfg.MinDelay {
		return nil, fmt.Errorf("invalid settlement delay range [%s, %s]", cfg.MinDelay, cfg.MaxDelay)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Settler{
		cfg:      cfg,
		logger:   logger,
		market:   market,
		ledger:   ledger,
		accounts: accounts,
		store:    store,
		locks:    locks,
		now:      func() time.Time { return time.Now().UTC() },
		ctx:      ctx,
		cancel:   cancel,
		timers:   make(map[string]*time.Timer),
	}
	s.delay = s.randomDelay
	return s, nil
}

// randomDelay picks a uniform delay in [MinDelay, MaxDelay] in whole seconds.
// Ranges narrower than a second collapse to MinDelay.
func (s *Settler) randomDelay() time.Duration {
	steps := int64((s.cfg.MaxDelay - s.cfg.MinDelay) / time.Second)
	if steps <= 0 {
		return s.cfg.MinDelay
	}
	return s.cfg.MinDelay + time.Duration(rand.Int63n(steps+1))*time.Second
}

// Schedule persists the due-time of pos and arms its settlement timer.
func (s *Settler) Schedule(ctx context.Context, pos *domain.Position) error {
	d := s.delay()
	pending := &domain.PendingSettlement{
		PositionID: pos.ID,
		UserID:     pos.UserID,
		DueAt:      s.now().Add(d),
	}
	if err := s.store.SavePendingSettlement(ctx, pending); err != nil {
		return fmt.Errorf("persisting settlement of %s: %w", pos.ID, err)
	}
	s.arm(pos.ID, d)
	s.logger.Debug(ctx, "Settlement scheduled", map[string]interface{}{"positionID": pos.ID, "userID": pos.UserID, "dueAt": pending.DueAt})
	return nil
}

// Recover re-arms every persisted settlement. Overdue ones fire immediately.
func (s *Settler) Recover(ctx context.Context) (int, error) {
	pending, err := s.store.ListPendingSettlements(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing pending settlements: %w", err)
	}
	now := s.now()
	for _, p := range pending {
		d := p.DueAt.Sub(now)
		if d < 0 {
			d = 0
		}
		s.arm(p.PositionID, d)
	}
	if len(pending) > 0 {
		s.logger.Info(ctx, "Recovered pending settlements", map[string]interface{}{"count": len(pending)})
	}
	return len(pending), nil
}

func (s *Settler) arm(positionID string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if old, ok := s.timers[positionID]; ok && old.Stop() {
		s.wg.Done()
	}

	s.wg.Add(1)
	s.timers[positionID] = time.AfterFunc(d, func() {
		defer s.wg.Done()
		s.mu.Lock()
		delete(s.timers, positionID)
		s.mu.Unlock()

		if err := s.Settle(s.ctx, positionID); err != nil {
			s.logger.Error(s.ctx, err, "Settlement failed, position left open", map[string]interface{}{"positionID": positionID})
		}
	})
}

// Pending returns the number of armed settlement timers.
func (s *Settler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Settle closes positionID at the current mark price and credits the profit.
// A position that is already closed is skipped. On failure the persisted
// record is kept so a restart retries it.
func (s *Settler) Settle(ctx context.Context, positionID string) error {
	op := "Settle"

	pos, err := s.ledger.FindByID(ctx, positionID)
	if err != nil {
		return fmt.Errorf("%s: loading position %s: %w", op, positionID, err)
	}
	if pos == nil {
		s.forget(ctx, positionID)
		return fmt.Errorf("%s: position %s: %w", op, positionID, ports.ErrNotFound)
	}
	if !pos.IsOpen {
		s.forget(ctx, positionID)
		return nil
	}

	// The price fetch waits on the rate limiter, so it happens outside the user lock.
	mark, err := s.market.FetchLatestClose(ctx, pos.Pair)
	if err != nil {
		return fmt.Errorf("%s: fetching mark price for %s: %w", op, positionID, err)
	}

	// Past this point the close and the credit must both land.
	ctx = context.WithoutCancel(ctx)

	unlock := s.locks.Lock(pos.UserID)
	defer unlock()

	// Reload: a manual close may have happened while the price was fetched.
	pos, err = s.ledger.FindByID(ctx, positionID)
	if err != nil {
		return fmt.Errorf("%s: reloading position %s: %w", op, positionID, err)
	}
	if pos == nil || !pos.IsOpen {
		s.forget(ctx, positionID)
		return nil
	}

	profit, err := pos.Settle(mark, s.now())
	if err != nil {
		return fmt.Errorf("%s: closing position %s: %w", op, positionID, err)
	}
	if err := s.ledger.Update(ctx, pos); err != nil {
		return fmt.Errorf("%s: saving position %s: %w", op, positionID, err)
	}

	fields := map[string]interface{}{
		"positionID": pos.ID,
		"userID":     pos.UserID,
		"side":       pos.Side,
		"entry":      pos.EntryPrice(),
		"mark":       mark,
		"profit":     profit,
	}
	balance, err := s.accounts.AdjustBalance(ctx, pos.UserID, profitDelta(profit))
	if err != nil {
		// The position is already closed; a retry would skip it, so drop the record and surface loudly.
		s.forget(ctx, positionID)
		s.logger.Error(ctx, err, "Position closed but profit was not credited", fields)
		return fmt.Errorf("%s: crediting profit of %s: %w", op, positionID, err)
	}
	s.forget(ctx, positionID)

	fields["balance"] = balance.String()
	s.logger.Info(ctx, "Position settled", fields)
	return nil
}

func (s *Settler) forget(ctx context.Context, positionID string) {
	if err := s.store.DeletePendingSettlement(ctx, positionID); err != nil {
		s.logger.Warn(ctx, "Failed to delete pending settlement record", map[string]interface{}{"positionID": positionID, "error": err.Error()})
	}
}

// Close stops all armed timers, aborts settlements still waiting on the
// market and waits for the rest. Persisted records remain for the next Recover.
func (s *Settler) Close() {
	s.mu.Lock()
	s.closed = true
	for id, t := range s.timers {
		if t.Stop() {
			s.wg.Done()
		}
		delete(s.timers, id)
	}
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}
