package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"forexBot/internal/domain"
	"forexBot/internal/ports"
	"forexBot/internal/risk"

	"github.com/google/uuid"
)

// CycleRunner runs one bot cycle for a user.
type CycleRunner interface {
	RunCycle(ctx context.Context, userID string) (*domain.Position, error)
}

// RegistryConfig holds the bot scheduling parameters.
type RegistryConfig struct {
	CycleInterval  time.Duration // Delay between the end of one cycle and the start of the next
	ThrottleWindow time.Duration // Period of the trade-counter reset
}

// BotStatus describes a user's bot.
type BotStatus struct {
	UserID    string
	IsRunning bool
	RunID     string
	StartedAt time.Time
	Cycles    int
}

type botHandle struct {
	userID    string
	runID     string
	startedAt time.Time
	ctx       context.Context
	cancel    context.CancelFunc
	timer     *time.Timer // next cycle, nil while a cycle runs
	cycles    int
}

// Registry owns the running bots. A user's bot is running iff a handle for
// the user is present. Each bot is a repeating task: a cycle runs, and only
// after it returns is the next one armed, so cycles of one user never overlap.
type Registry struct {
	cfg    RegistryConfig
	runner CycleRunner
	risk   *risk.RiskManager
	logger ports.Logger

	mu   sync.Mutex
	bots map[string]*botHandle
	wg   sync.WaitGroup
}

// NewRegistry creates an empty bot registry.
func NewRegistry(cfg RegistryConfig, runner CycleRunner, riskManager *risk.RiskManager, logger ports.Logger) (*Registry, error) {
	if runner == nil || riskManager == nil || logger == nil {
		return nil, fmt.Errorf("missing required dependencies for Registry")
	}
	if cfg.CycleInterval <= 0 || cfg.ThrottleWindow <= 0 {
		return nil, fmt.Errorf("registry intervals must be positive")
	}
	return &Registry{
		cfg:    cfg,
		runner: runner,
		risk:   riskManager,
		logger: logger,
		bots:   make(map[string]*botHandle),
	}, nil
}

// Start launches the bot of userID. The first cycle runs immediately.
func (r *Registry) Start(ctx context.Context, userID string) (BotStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.bots[userID]; ok {
		return BotStatus{}, fmt.Errorf("start bot for %s: %w", userID, ports.ErrAlreadyRunning)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	h := &botHandle{
		userID:    userID,
		runID:     uuid.NewString(),
		startedAt: time.Now().UTC(),
		ctx:       runCtx,
		cancel:    cancel,
	}
	r.bots[userID] = h
	r.risk.Reset(userID)

	r.wg.Add(2)
	go r.resetLoop(h)
	go r.runCycle(h)

	r.logger.Info(ctx, "Bot started", map[string]interface{}{"userID": userID, "runID": h.runID})
	return h.status(), nil
}

// Stop halts the bot of userID. Settlements already scheduled still run.
func (r *Registry) Stop(ctx context.Context, userID string) error {
	r.mu.Lock()
	h, ok := r.bots[userID]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("stop bot for %s: %w", userID, ports.ErrNotRunning)
	}
	r.remove(h)
	cycles := h.cycles
	r.mu.Unlock()

	r.logger.Info(ctx, "Bot stopped", map[string]interface{}{"userID": userID, "runID": h.runID, "cycles": cycles})
	return nil
}

// remove detaches h. Callers hold r.mu.
func (r *Registry) remove(h *botHandle) {
	delete(r.bots, h.userID)
	if h.timer != nil && h.timer.Stop() {
		r.wg.Done()
	}
	h.cancel()
	r.risk.Remove(h.userID)
}

// Status reports whether the bot of userID is running.
func (r *Registry) Status(userID string) BotStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.bots[userID]; ok {
		return h.status()
	}
	return BotStatus{UserID: userID}
}

// Running returns the IDs of users with a running bot.
func (r *Registry) Running() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.bots))
	for id := range r.bots {
		ids = append(ids, id)
	}
	return ids
}

// StopAll stops every bot and waits for in-flight cycles to return.
func (r *Registry) StopAll(ctx context.Context) {
	r.mu.Lock()
	stopped := len(r.bots)
	for _, h := range r.bots {
		r.remove(h)
	}
	r.mu.Unlock()

	r.wg.Wait()
	if stopped > 0 {
		r.logger.Info(ctx, "All bots stopped", map[string]interface{}{"count": stopped})
	}
}

func (h *botHandle) status() BotStatus {
	return BotStatus{
		UserID:    h.userID,
		IsRunning: true,
		RunID:     h.runID,
		StartedAt: h.startedAt,
		Cycles:    h.cycles,
	}
}

func (r *Registry) owns(h *botHandle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bots[h.userID] == h
}

// runCycle runs one cycle and re-arms the next while h is still registered.
// Each armed cycle holds one wg slot.
func (r *Registry) runCycle(h *botHandle) {
	defer r.wg.Done()

	if !r.owns(h) {
		return
	}

	fields := map[string]interface{}{"userID": h.userID, "runID": h.runID}
	pos, err := r.runner.RunCycle(h.ctx, h.userID)
	switch {
	case err != nil && h.ctx.Err() != nil:
		r.logger.Debug(h.ctx, "Bot cycle aborted by stop", fields)
	case err != nil:
		r.logger.Error(h.ctx, err, "Bot cycle failed, retrying next interval", fields)
	case pos == nil:
		r.logger.Debug(h.ctx, "Bot cycle finished without trade", fields)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	h.cycles++
	if r.bots[h.userID] != h {
		return
	}
	r.wg.Add(1)
	h.timer = time.AfterFunc(r.cfg.CycleInterval, func() { r.runCycle(h) })
}

// resetLoop zeroes the user's trade counter every throttle window until the bot is gone.
func (r *Registry) resetLoop(h *botHandle) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.cfg.ThrottleWindow)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return
		case <-ticker.C:
			if !r.owns(h) {
				return
			}
			r.risk.Reset(h.userID)
			r.logger.Debug(h.ctx, "Trade throttle window reset", map[string]interface{}{"userID": h.userID})
		}
	}
}
