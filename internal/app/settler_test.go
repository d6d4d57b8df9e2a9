package app

import (
	"context"
	"testing"
	"time"

	"forexBot/internal/domain"
	"forexBot/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type settlerFixture struct {
	settler  *Settler
	market   *mockMarket
	ledger   *memLedger
	accounts *memAccounts
	store    *memSettlements
	logger   *mockLogger
}

func newSettlerFixture(t *testing.T) *settlerFixture {
	t.Helper()
	f := &settlerFixture{
		market:   &mockMarket{latest: 1.2},
		ledger:   newMemLedger(),
		accounts: newMemAccounts(map[string]int64{"alice": 90000}),
		store:    newMemSettlements(),
		logger:   &mockLogger{},
	}
	var err error
	f.settler, err = NewSettler(SettlerConfig{MinDelay: 5 * time.Second, MaxDelay: 30 * time.Second},
		f.logger, f.market, f.ledger, f.accounts, f.store, NewUserLocks())
	require.NoError(t, err)
	f.settler.delay = func() time.Duration { return 10 * time.Millisecond }
	t.Cleanup(f.settler.Close)
	return f
}

func (f *settlerFixture) open(t *testing.T, side domain.OrderSide, amount, entry float64) *domain.Position {
	t.Helper()
	pos := domain.NewMarketPosition("alice", "EUR/USD", side, amount, entry, time.Now().Add(-7*time.Second))
	require.NoError(t, f.ledger.Create(context.Background(), pos))
	return pos
}

func TestNewSettler_RejectsInvertedRange(t *testing.T) {
	_, err := NewSettler(SettlerConfig{MinDelay: 30 * time.Second, MaxDelay: 5 * time.Second},
		&mockLogger{}, &mockMarket{}, newMemLedger(), newMemAccounts(nil), newMemSettlements(), NewUserLocks())
	assert.Error(t, err)
}

func TestSettler_RandomDelayWithinRange(t *testing.T) {
	f := newSettlerFixture(t)
	for i := 0; i < 200; i++ {
		d := f.settler.randomDelay()
		assert.GreaterOrEqual(t, d, 5*time.Second)
		assert.LessOrEqual(t, d, 30*time.Second)
		assert.Zero(t, d%time.Second, "delay is whole seconds")
	}

	f.settler.cfg = SettlerConfig{MinDelay: time.Second, MaxDelay: time.Second}
	assert.Equal(t, time.Second, f.settler.randomDelay())
}

func TestSettler_SettleCreditsProfit(t *testing.T) {
	tests := []struct {
		name        string
		side        domain.OrderSide
		mark        float64
		wantProfit  float64
		wantBalance string
	}{
		{name: "buy gains when price rises", side: domain.Buy, mark: 1.2, wantProfit: 0.1, wantBalance: "90000.1"},
		{name: "sell loses when price rises", side: domain.Sell, mark: 1.2, wantProfit: -0.1, wantBalance: "89999.9"},
		{name: "sell gains when price falls", side: domain.Sell, mark: 1.0, wantProfit: 0.1, wantBalance: "90000.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newSettlerFixture(t)
			f.market.setLatest(tt.mark, nil)
			pos := f.open(t, tt.side, 1, 1.1)

			require.NoError(t, f.settler.Settle(context.Background(), pos.ID))

			stored, err := f.ledger.FindByID(context.Background(), pos.ID)
			require.NoError(t, err)
			assert.False(t, stored.IsOpen)
			assert.Equal(t, domain.StatusCanceled, stored.Status)
			require.NotNil(t, stored.Profit)
			assert.InDelta(t, tt.wantProfit, *stored.Profit, 1e-9)
			require.NotNil(t, stored.ClosedAt)
			require.NotNil(t, stored.Duration)
			assert.GreaterOrEqual(t, *stored.Duration, int64(7))

			assert.Equal(t, tt.wantBalance, f.accounts.balance("alice").StringFixed(1))
		})
	}
}

func TestSettler_SkipsClosedPosition(t *testing.T) {
	f := newSettlerFixture(t)
	pos := f.open(t, domain.Buy, 1, 1.1)
	require.NoError(t, pos.Close(domain.StatusCanceled, time.Now()))
	require.NoError(t, f.ledger.Update(context.Background(), pos))
	require.NoError(t, f.store.SavePendingSettlement(context.Background(), &domain.PendingSettlement{PositionID: pos.ID, UserID: "alice"}))

	require.NoError(t, f.settler.Settle(context.Background(), pos.ID))

	stored, _ := f.ledger.FindByID(context.Background(), pos.ID)
	assert.Nil(t, stored.Profit, "manual close is not overwritten")
	assert.Equal(t, "90000", f.accounts.balance("alice").String())
	assert.Zero(t, f.store.count())
}

func TestSettler_MissingPosition(t *testing.T) {
	f := newSettlerFixture(t)
	err := f.settler.Settle(context.Background(), "nope")
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestSettler_MarketFailureKeepsRecord(t *testing.T) {
	f := newSettlerFixture(t)
	f.market.setLatest(0, ports.ErrNetwork)
	pos := f.open(t, domain.Buy, 1, 1.1)
	require.NoError(t, f.store.SavePendingSettlement(context.Background(), &domain.PendingSettlement{PositionID: pos.ID, UserID: "alice"}))

	err := f.settler.Settle(context.Background(), pos.ID)
	assert.ErrorIs(t, err, ports.ErrNetwork)

	stored, _ := f.ledger.FindByID(context.Background(), pos.ID)
	assert.True(t, stored.IsOpen)
	assert.Equal(t, 1, f.store.count())
}

func TestSettler_CreditFailureAfterClose(t *testing.T) {
	f := newSettlerFixture(t)
	pos := f.open(t, domain.Buy, 1, 1.1)
	f.accounts.adjustErr = ports.ErrUpdateFailed

	err := f.settler.Settle(context.Background(), pos.ID)
	assert.ErrorIs(t, err, ports.ErrUpdateFailed)

	stored, _ := f.ledger.FindByID(context.Background(), pos.ID)
	assert.False(t, stored.IsOpen)
	assert.Zero(t, f.store.count())
	assert.Contains(t, f.logger.errors(), "Position closed but profit was not credited")
}

func TestSettler_ScheduleFiresAfterDelay(t *testing.T) {
	f := newSettlerFixture(t)
	pos := f.open(t, domain.Buy, 1, 1.1)

	require.NoError(t, f.settler.Schedule(context.Background(), pos))
	assert.Equal(t, 1, f.store.count())

	assert.Eventually(t, func() bool {
		stored, _ := f.ledger.FindByID(context.Background(), pos.ID)
		return stored != nil && !stored.IsOpen
	}, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return f.store.count() == 0 && f.settler.Pending() == 0 }, time.Second, 5*time.Millisecond)
}

func TestSettler_ScheduleFailsWhenNotPersisted(t *testing.T) {
	f := newSettlerFixture(t)
	f.store.saveErr = ports.ErrQueryFailed
	pos := f.open(t, domain.Buy, 1, 1.1)

	err := f.settler.Schedule(context.Background(), pos)
	assert.ErrorIs(t, err, ports.ErrQueryFailed)
	assert.Zero(t, f.settler.Pending())
}

func TestSettler_RecoverRearmsPersistedRecords(t *testing.T) {
	f := newSettlerFixture(t)
	overdue := f.open(t, domain.Buy, 1, 1.1)
	later := f.open(t, domain.Sell, 1, 1.1)

	ctx := context.Background()
	require.NoError(t, f.store.SavePendingSettlement(ctx, &domain.PendingSettlement{PositionID: overdue.ID, UserID: "alice", DueAt: time.Now().Add(-time.Minute)}))
	require.NoError(t, f.store.SavePendingSettlement(ctx, &domain.PendingSettlement{PositionID: later.ID, UserID: "alice", DueAt: time.Now().Add(time.Hour)}))

	n, err := f.settler.Recover(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.Eventually(t, func() bool {
		stored, _ := f.ledger.FindByID(ctx, overdue.ID)
		return !stored.IsOpen
	}, time.Second, 5*time.Millisecond)

	stored, _ := f.ledger.FindByID(ctx, later.ID)
	assert.True(t, stored.IsOpen)
	assert.Equal(t, 1, f.settler.Pending())
}

func TestSettler_CloseKeepsPendingRecords(t *testing.T) {
	f := newSettlerFixture(t)
	f.settler.delay = func() time.Duration { return time.Hour }
	pos := f.open(t, domain.Buy, 1, 1.1)

	require.NoError(t, f.settler.Schedule(context.Background(), pos))
	assert.Equal(t, 1, f.settler.Pending())

	f.settler.Close()
	assert.Zero(t, f.settler.Pending())
	assert.Equal(t, 1, f.store.count())

	// Closed settlers arm nothing
	require.NoError(t, f.settler.Schedule(context.Background(), pos))
	assert.Zero(t, f.settler.Pending())
}
