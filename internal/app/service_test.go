package app

import (
	"context"
	"fmt"
	"testing"
	"time"

	"forexBot/internal/domain"
	"forexBot/internal/ports"
	"forexBot/internal/risk"
	"forexBot/internal/strategy"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type engineFixture struct {
	engine    *Engine
	market    *mockMarket
	predictor *mockPredictor
	ledger    *memLedger
	accounts  *memAccounts
	risk      *risk.RiskManager
	scheduler *recordingScheduler
	logger    *mockLogger
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	f := &engineFixture{
		market:    &mockMarket{closes: []float64{1.0990, 1.1000}},
		predictor: &mockPredictor{prediction: &domain.Prediction{PredictedPrices: []float64{1.1010, 1.1030}, FieldCount: 1}},
		ledger:    newMemLedger(),
		accounts:  newMemAccounts(map[string]int64{"alice": 100000}),
		risk: risk.NewRiskManager(risk.RiskConfig{
			MaxTradesPerWindow: 3,
			ThrottleWindow:     time.Minute,
			MaxOpenPositions:   10,
			RiskFraction:       0.1,
		}),
		scheduler: &recordingScheduler{},
		logger:    &mockLogger{},
	}
	strat, err := strategy.New(strategy.Config{})
	require.NoError(t, err)

	f.engine, err = NewEngine(
		EngineConfig{Symbol: "EUR/USD", HistorySize: 100},
		f.logger, f.market, f.predictor, strat, f.ledger, f.accounts, f.risk, f.scheduler, NewUserLocks(),
	)
	require.NoError(t, err)
	return f
}

func TestNewEngine_Validation(t *testing.T) {
	_, err := NewEngine(EngineConfig{Symbol: "EUR/USD", HistorySize: 100}, nil, nil, nil, nil, nil, nil, nil, nil, nil)
	assert.Error(t, err)

	f := newEngineFixture(t)
	_, err = NewEngine(EngineConfig{HistorySize: 100}, f.logger, f.market, f.predictor, f.engine.strategy, f.ledger, f.accounts, f.risk, f.scheduler, NewUserLocks())
	assert.Error(t, err)
}

func TestRunCycle_OpensPosition(t *testing.T) {
	f := newEngineFixture(t)

	pos, err := f.engine.RunCycle(context.Background(), "alice")
	require.NoError(t, err)
	require.NotNil(t, pos)

	// Current 1.1000 is below the 1.1020 forecast
	assert.Equal(t, domain.Buy, pos.Side)
	assert.Equal(t, domain.TypeMarket, pos.Type)
	assert.Equal(t, domain.StatusNew, pos.Status)
	assert.True(t, pos.IsOpen)
	assert.Equal(t, 10000.0, pos.Amount)
	assert.Equal(t, 1.1000, pos.EntryPrice())
	assert.Equal(t, []float64{1.0990, 1.1000}, f.predictor.lastInput)

	assert.Equal(t, "90000", f.accounts.balance("alice").String(), "amount is debited at open")
	assert.Equal(t, []string{pos.ID}, f.scheduler.scheduled)
	assert.Equal(t, 1, f.risk.GetStats("alice").WindowTrades)

	stored, err := f.ledger.FindByID(context.Background(), pos.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
}

func TestRunCycle_SellsAboveForecast(t *testing.T) {
	f := newEngineFixture(t)
	f.market.closes = []float64{1.2000}

	pos, err := f.engine.RunCycle(context.Background(), "alice")
	require.NoError(t, err)
	require.NotNil(t, pos)
	assert.Equal(t, domain.Sell, pos.Side)
}

func TestRunCycle_SkipsAtOpenPositionCap(t *testing.T) {
	f := newEngineFixture(t)
	for i := 0; i < 10; i++ {
		require.NoError(t, f.ledger.Create(context.Background(), domain.NewMarketPosition("alice", "EUR/USD", domain.Buy, 1, 1.1, time.Now())))
	}

	pos, err := f.engine.RunCycle(context.Background(), "alice")
	require.NoError(t, err)
	assert.Nil(t, pos)
	assert.Equal(t, "100000", f.accounts.balance("alice").String())
	assert.Equal(t, 0, f.risk.GetStats("alice").WindowTrades, "throttle untouched when capped")
}

func TestRunCycle_ThrottleCapsTradesPerWindow(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	opened := 0
	for i := 0; i < 5; i++ {
		pos, err := f.engine.RunCycle(ctx, "alice")
		require.NoError(t, err)
		if pos != nil {
			opened++
		}
	}
	assert.Equal(t, 3, opened)

	f.risk.Reset("alice")
	pos, err := f.engine.RunCycle(ctx, "alice")
	require.NoError(t, err)
	assert.NotNil(t, pos)
}

func TestRunCycle_ZeroBalanceSkipsWithoutRollback(t *testing.T) {
	f := newEngineFixture(t)
	f.accounts = newMemAccounts(map[string]int64{"alice": 0})
	f.engine.accounts = f.accounts

	pos, err := f.engine.RunCycle(context.Background(), "alice")
	require.NoError(t, err)
	assert.Nil(t, pos)
	assert.Equal(t, 1, f.risk.GetStats("alice").WindowTrades)
	assert.Empty(t, f.scheduler.scheduled)
}

func TestRunCycle_Failures(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(f *engineFixture)
		wantErr error
	}{
		{
			name:    "market data network error",
			setup:   func(f *engineFixture) { f.market.closesErr = fmt.Errorf("dial: %w", ports.ErrNetwork) },
			wantErr: ports.ErrNetwork,
		},
		{
			name:    "empty closes",
			setup:   func(f *engineFixture) { f.market.closes = nil },
			wantErr: ports.ErrDataFormat,
		},
		{
			name:    "prediction failure",
			setup:   func(f *engineFixture) { f.predictor.err = ports.ErrPredictionService },
			wantErr: ports.ErrPredictionService,
		},
		{
			name:    "unknown account",
			setup:   func(f *engineFixture) { f.accounts = newMemAccounts(nil); f.engine.accounts = f.accounts },
			wantErr: ports.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newEngineFixture(t)
			tt.setup(f)

			pos, err := f.engine.RunCycle(context.Background(), "alice")
			assert.Nil(t, pos)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, f.scheduler.scheduled)
		})
	}
}

func TestRunCycle_CreateFailureRefundsDebit(t *testing.T) {
	f := newEngineFixture(t)
	f.ledger.createErr = ports.ErrQueryFailed

	pos, err := f.engine.RunCycle(context.Background(), "alice")
	assert.Nil(t, pos)
	assert.ErrorIs(t, err, ports.ErrQueryFailed)
	assert.True(t, f.accounts.balance("alice").Equal(decimal.NewFromInt(100000)))
}

func TestRunCycle_StoppedBotDiscardsResult(t *testing.T) {
	f := newEngineFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	// Cancel once the prediction has been fetched
	f.predictor.prediction = &domain.Prediction{PredictedPrices: []float64{1.2}, FieldCount: 1}
	cancelingPredictor := &cancelOnPredict{inner: f.predictor, cancel: cancel}
	f.engine.predictor = cancelingPredictor

	pos, err := f.engine.RunCycle(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, pos)
	assert.Equal(t, "100000", f.accounts.balance("alice").String())
	assert.Equal(t, 0, f.risk.GetStats("alice").WindowTrades)
}

type cancelOnPredict struct {
	inner  ports.PredictionClient
	cancel context.CancelFunc
}

func (c *cancelOnPredict) Predict(ctx context.Context, closes []float64) (*domain.Prediction, error) {
	p, err := c.inner.Predict(ctx, closes)
	c.cancel()
	return p, err
}

func TestRunCycle_ScheduleFailureKeepsPosition(t *testing.T) {
	f := newEngineFixture(t)
	f.scheduler.err = errBoom

	pos, err := f.engine.RunCycle(context.Background(), "alice")
	require.NoError(t, err)
	require.NotNil(t, pos)
	assert.Contains(t, f.logger.errors(), "RunCycle: failed to schedule settlement")
}
