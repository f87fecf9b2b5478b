package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quotex-trader/internal/models"
)

func newTestJournal(t *testing.T) *SQLiteJournal {
	t.Helper()
	j, err := NewSQLiteJournal(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func sampleOrder(id, asset string) *models.Order {
	return &models.Order{
		RequestID:  1700000000,
		ID:         id,
		Asset:      asset,
		Amount:     5,
		Direction:  models.DirectionCall,
		Duration:   60,
		Expiration: 1700000060,
		OpenPrice:  1.0654,
		Status:     models.OrderAccepted,
		PlacedAt:   time.Now().UTC().Truncate(time.Second),
	}
}

func TestLogAndListOrders(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	require.NoError(t, j.LogOrder(ctx, sampleOrder("o1", "EURUSD_otc"), true))
	require.NoError(t, j.LogOrder(ctx, sampleOrder("o2", "AUDCAD_otc"), false))

	orders, err := j.ListOrders(ctx, OrderFilter{})
	require.NoError(t, err)
	assert.Len(t, orders, 2)

	orders, err = j.ListOrders(ctx, OrderFilter{Asset: "EURUSD_otc"})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "o1", orders[0].ID)
	assert.Equal(t, models.DirectionCall, orders[0].Direction)
	assert.Equal(t, models.OrderAccepted, orders[0].Status)

	demo := true
	orders, err = j.ListOrders(ctx, OrderFilter{Demo: &demo})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "o1", orders[0].ID)
}

func TestSettleOrder(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	require.NoError(t, j.LogOrder(ctx, sampleOrder("o1", "EURUSD_otc"), true))
	require.NoError(t, j.SettleOrder(ctx, models.TradeResult{
		OrderID: "o1",
		Outcome: models.OutcomeWin,
		Profit:  4.25,
	}))

	orders, err := j.ListOrders(ctx, OrderFilter{Status: models.OrderSettled})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, 4.25, orders[0].Profit)
}

func TestSettleUnknownOrder(t *testing.T) {
	j := newTestJournal(t)
	err := j.SettleOrder(context.Background(), models.TradeResult{OrderID: "missing"})
	assert.Error(t, err)
}

func TestGetStats(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	results := []models.TradeResult{
		{OrderID: "w1", Outcome: models.OutcomeWin, Profit: 4},
		{OrderID: "w2", Outcome: models.OutcomeWin, Profit: 4},
		{OrderID: "l1", Outcome: models.OutcomeLoss, Profit: -5},
		{OrderID: "d1", Outcome: models.OutcomeDoji, Profit: 0},
	}
	for _, r := range results {
		require.NoError(t, j.LogOrder(ctx, sampleOrder(r.OrderID, "EURUSD_otc"), true))
		require.NoError(t, j.SettleOrder(ctx, r))
	}
	// A still-open order stays out of the stats.
	require.NoError(t, j.LogOrder(ctx, sampleOrder("open1", "EURUSD_otc"), true))

	stats, err := j.GetStats(ctx, OrderFilter{})
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 2, stats.Wins)
	assert.Equal(t, 1, stats.Losses)
	assert.Equal(t, 1, stats.Dojis)
	assert.InDelta(t, 66.66, stats.WinRate, 0.01)
	assert.Equal(t, 3.0, stats.Profit)
}

func TestCandleCacheRoundTrip(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	in := []models.Candle{
		{Time: 1700000000, Open: 1.0, High: 1.2, Low: 0.9, Close: 1.1, Ticks: 12},
		{Time: 1700000060, Open: 1.1, High: 1.3, Low: 1.0, Close: 1.2, Ticks: 8},
	}
	require.NoError(t, j.SaveCandles(ctx, "EURUSD_otc", 60, in))

	out, err := j.GetCandles(ctx, "EURUSD_otc", 60, 1700000000, 1700000060)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	// Replaying the same window upserts rather than duplicating.
	require.NoError(t, j.SaveCandles(ctx, "EURUSD_otc", 60, in[:1]))
	out, err = j.GetCandles(ctx, "EURUSD_otc", 60, 1700000000, 1700000060)
	require.NoError(t, err)
	assert.Len(t, out, 2)

	// A different period is a separate series.
	out, err = j.GetCandles(ctx, "EURUSD_otc", 300, 0, 1800000000)
	require.NoError(t, err)
	assert.Empty(t, out)
}
