package app

import (
	"context"
	"errors"
	"sort"
	"sync"

	"forexBot/internal/domain"
	"forexBot/internal/ports"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct {
	mu        sync.Mutex
	infoMsgs  []string
	errorMsgs []string
}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}

func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infoMsgs = append(m.infoMsgs, msg)
}

func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {}

func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorMsgs = append(m.errorMsgs, msg)
}

func (m *mockLogger) errors() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.errorMsgs...)
}

// memLedger is an in-memory ports.PositionLedger.
type memLedger struct {
	mu        sync.Mutex
	positions map[string]*domain.Position
	order     []string
	createErr error
}

func newMemLedger() *memLedger {
	return &memLedger{positions: make(map[string]*domain.Position)}
}

func clonePosition(p *domain.Position) *domain.Position {
	c := *p
	return &c
}

func (m *memLedger) Create(ctx context.Context, pos *domain.Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	if pos.ID == "" {
		pos.ID = uuid.NewString()
	}
	m.positions[pos.ID] = clonePosition(pos)
	m.order = append(m.order, pos.ID)
	return nil
}

func (m *memLedger) Update(ctx context.Context, pos *domain.Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.positions[pos.ID]; !ok {
		return ports.ErrNotFound
	}
	m.positions[pos.ID] = clonePosition(pos)
	return nil
}

func (m *memLedger) FindByID(ctx context.Context, id string) (*domain.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.positions[id]; ok {
		return clonePosition(p), nil
	}
	return nil, nil
}

func (m *memLedger) filter(userID string, openOnly bool) []*domain.Position {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Position
	for i := len(m.order) - 1; i >= 0; i-- {
		p := m.positions[m.order[i]]
		if p.UserID != userID || (openOnly && !(p.IsOpen && p.Status.IsOpenStatus())) {
			continue
		}
		out = append(out, clonePosition(p))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].OpenedAt.After(out[j].OpenedAt) })
	return out
}

func (m *memLedger) FindByUser(ctx context.Context, userID string) ([]*domain.Position, error) {
	return m.filter(userID, false), nil
}

func (m *memLedger) FindOpenByUser(ctx context.Context, userID string) ([]*domain.Position, error) {
	return m.filter(userID, true), nil
}

func (m *memLedger) CountOpenByUser(ctx context.Context, userID string) (int, error) {
	return len(m.filter(userID, true)), nil
}

// memAccounts is an in-memory ports.AccountStore.
type memAccounts struct {
	mu        sync.Mutex
	balances  map[string]decimal.Decimal
	adjustErr error
}

func newMemAccounts(balances map[string]int64) *memAccounts {
	m := &memAccounts{balances: make(map[string]decimal.Decimal)}
	for id, b := range balances {
		m.balances[id] = decimal.NewFromInt(b)
	}
	return m
}

func (m *memAccounts) CreateAccount(ctx context.Context, acc *domain.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.balances[acc.ID]; ok {
		return ports.ErrDuplicateEntry
	}
	m.balances[acc.ID] = acc.Balance
	return nil
}

func (m *memAccounts) FindAccount(ctx context.Context, id string) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.balances[id]
	if !ok {
		return nil, nil
	}
	return &domain.Account{ID: id, Username: id, Balance: b, Currency: "USD"}, nil
}

func (m *memAccounts) AdjustBalance(ctx context.Context, id string, delta decimal.Decimal) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.adjustErr != nil {
		return decimal.Zero, m.adjustErr
	}
	b, ok := m.balances[id]
	if !ok {
		return decimal.Zero, ports.ErrNotFound
	}
	m.balances[id] = b.Add(delta)
	return m.balances[id], nil
}

func (m *memAccounts) balance(id string) decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[id]
}

// memSettlements is an in-memory ports.SettlementStore.
type memSettlements struct {
	mu      sync.Mutex
	pending map[string]*domain.PendingSettlement
	saveErr error
}

func newMemSettlements() *memSettlements {
	return &memSettlements{pending: make(map[string]*domain.PendingSettlement)}
}

func (m *memSettlements) SavePendingSettlement(ctx context.Context, s *domain.PendingSettlement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	c := *s
	m.pending[s.PositionID] = &c
	return nil
}

func (m *memSettlements) DeletePendingSettlement(ctx context.Context, positionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, positionID)
	return nil
}

func (m *memSettlements) ListPendingSettlements(ctx context.Context) ([]*domain.PendingSettlement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.PendingSettlement, 0, len(m.pending))
	for _, p := range m.pending {
		c := *p
		out = append(out, &c)
	}
	return out, nil
}

func (m *memSettlements) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// mockMarket is a scripted ports.MarketDataClient.
type mockMarket struct {
	mu        sync.Mutex
	closes    []float64
	closesErr error
	latest    float64
	latestErr error
	calls     int
}

func (m *mockMarket) FetchSeries(ctx context.Context, symbol string, count int) (*domain.PriceSeries, error) {
	closes, err := m.FetchRecentCloses(ctx, symbol, count)
	if err != nil {
		return nil, err
	}
	series := &domain.PriceSeries{Meta: domain.SeriesMeta{Symbol: symbol, Interval: "1min"}}
	for _, c := range closes {
		series.Values = append(series.Values, domain.Candle{Close: c})
	}
	return series, nil
}

func (m *mockMarket) FetchRecentCloses(ctx context.Context, symbol string, count int) ([]float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.closesErr != nil {
		return nil, m.closesErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]float64(nil), m.closes...), nil
}

func (m *mockMarket) FetchLatestClose(ctx context.Context, symbol string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.latestErr != nil {
		return 0, m.latestErr
	}
	return m.latest, nil
}

func (m *mockMarket) setLatest(price float64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latest, m.latestErr = price, err
}

// mockPredictor returns a fixed forecast.
type mockPredictor struct {
	prediction *domain.Prediction
	err        error
	lastInput  []float64
}

func (m *mockPredictor) Predict(ctx context.Context, closes []float64) (*domain.Prediction, error) {
	m.lastInput = closes
	if m.err != nil {
		return nil, m.err
	}
	return m.prediction, nil
}

// recordingScheduler captures scheduled positions without arming timers.
type recordingScheduler struct {
	mu        sync.Mutex
	scheduled []string
	err       error
}

func (r *recordingScheduler) Schedule(ctx context.Context, pos *domain.Position) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.scheduled = append(r.scheduled, pos.ID)
	return nil
}

var errBoom = errors.New("boom")
