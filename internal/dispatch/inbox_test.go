package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "quotex-trader/internal/errors"
	"quotex-trader/internal/models"
	"quotex-trader/internal/protocol"
)

func newTestInbox() *Inbox {
	return NewInbox(zerolog.Nop())
}

func floatPtr(v float64) *float64 { return &v }

func shortCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestWaitBalanceObservesEarlierUpdate(t *testing.T) {
	in := newTestInbox()
	in.Apply(protocol.EventBalance{Demo: floatPtr(10000)})

	got, err := in.WaitBalance(shortCtx(t), models.ModeDemo)
	require.NoError(t, err)
	assert.Equal(t, 10000.0, got)
}

func TestWaitBalanceWakesOnLaterUpdate(t *testing.T) {
	in := newTestInbox()

	done := make(chan float64, 1)
	go func() {
		v, err := in.WaitBalance(shortCtx(t), models.ModeLive)
		if err == nil {
			done <- v
		}
	}()

	// A demo-only update must not satisfy a live-mode waiter.
	in.Apply(protocol.EventBalance{Demo: floatPtr(50)})
	select {
	case v := <-done:
		t.Fatalf("live waiter woke on demo update: %v", v)
	case <-time.After(50 * time.Millisecond):
	}

	in.Apply(protocol.EventBalance{Live: floatPtr(123.45)})
	select {
	case v := <-done:
		assert.Equal(t, 123.45, v)
	case <-time.After(2 * time.Second):
		t.Fatal("live waiter never woke")
	}
}

func TestWaitBalanceContextCancel(t *testing.T) {
	in := newTestInbox()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := in.WaitBalance(ctx, models.ModeLive)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBalanceSnapshot(t *testing.T) {
	in := newTestInbox()

	_, ok := in.Balance()
	assert.False(t, ok)

	in.Apply(protocol.EventBalance{Live: floatPtr(7), Demo: floatPtr(9)})
	bal, ok := in.Balance()
	require.True(t, ok)
	assert.Equal(t, 7.0, bal.Live)
	assert.Equal(t, 9.0, bal.Demo)
}

func TestWaitAuth(t *testing.T) {
	in := newTestInbox()
	in.Apply(protocol.EventAuthAccepted{})

	res, err := in.WaitAuth(shortCtx(t))
	require.NoError(t, err)
	assert.Equal(t, AuthAccepted, res)

	in.ResetAuth()
	in.Apply(protocol.EventAuthRejected{})
	res, err = in.WaitAuth(shortCtx(t))
	require.NoError(t, err)
	assert.Equal(t, AuthRejected, res)
}

func TestWaitBuyAckPerRequestIsolation(t *testing.T) {
	in := newTestInbox()

	wrong := make(chan struct{})
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()
		_, err := in.WaitBuyAck(ctx, 999)
		if errors.Is(err, context.DeadlineExceeded) {
			close(wrong)
		}
	}()

	in.Apply(protocol.EventBuyAck{ID: "abc", RequestID: 42, Asset: "EURUSD_otc", Amount: 5})

	ack, err := in.WaitBuyAck(shortCtx(t), 42)
	require.NoError(t, err)
	assert.Equal(t, "abc", ack.ID)
	assert.Equal(t, "EURUSD_otc", ack.Asset)

	select {
	case <-wrong:
	case <-time.After(2 * time.Second):
		t.Fatal("waiter for a different request id was satisfied or stuck")
	}
}

func TestWaitBuyAckSurfacesProtocolError(t *testing.T) {
	in := newTestInbox()

	done := make(chan error, 1)
	go func() {
		_, err := in.WaitBuyAck(shortCtx(t), 7)
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)

	in.Apply(protocol.EventError{Reason: "not_money"})

	select {
	case err := <-done:
		require.Error(t, err)
		assert.ErrorIs(t, err, apperrors.ErrInsufficientFunds)
		var perr *apperrors.ProtocolError
		assert.ErrorAs(t, err, &perr)
	case <-time.After(2 * time.Second):
		t.Fatal("buy waiter never woke on error frame")
	}
}

func TestWaitSettlementConsumedOnce(t *testing.T) {
	in := newTestInbox()
	in.Apply(protocol.EventDeals{
		Profit: 1.84,
		Deals:  []protocol.Deal{{ID: "d1", Profit: 1.84}},
	})

	res, err := in.WaitSettlement(shortCtx(t), "d1")
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeWin, res.Outcome)
	assert.Equal(t, 1.84, res.Profit)
	assert.True(t, res.Win())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = in.WaitSettlement(ctx, "d1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSettlementOutcomes(t *testing.T) {
	in := newTestInbox()
	in.Apply(protocol.EventDeals{Deals: []protocol.Deal{
		{ID: "w", Profit: 3},
		{ID: "l", Profit: -5},
		{ID: "d", Profit: 0},
	}})

	ctx := shortCtx(t)
	win, err := in.WaitSettlement(ctx, "w")
	require.NoError(t, err)
	loss, err := in.WaitSettlement(ctx, "l")
	require.NoError(t, err)
	doji, err := in.WaitSettlement(ctx, "d")
	require.NoError(t, err)

	assert.Equal(t, models.OutcomeWin, win.Outcome)
	assert.Equal(t, models.OutcomeLoss, loss.Outcome)
	assert.Equal(t, models.OutcomeDoji, doji.Outcome)
}

func TestWaitFirstTickAndSnapshot(t *testing.T) {
	in := newTestInbox()
	in.Apply(protocol.EventTicks{Ticks: []models.Tick{
		{Symbol: "EURUSD_otc", Time: 100, Price: 1.1},
		{Symbol: "EURUSD_otc", Time: 101, Price: 1.2},
	}})

	last, err := in.WaitFirstTick(shortCtx(t), "EURUSD_otc")
	require.NoError(t, err)
	assert.Equal(t, 1.2, last.Price)

	buf := in.Ticks("EURUSD_otc")
	require.Len(t, buf, 2)
	assert.Equal(t, 1.1, buf[0].Price)

	// Snapshot is a copy.
	buf[0].Price = 0
	assert.Equal(t, 1.1, in.Ticks("EURUSD_otc")[0].Price)
}

func TestTickBufferBounded(t *testing.T) {
	in := newTestInbox()
	ticks := make([]models.Tick, tickBufferCap+50)
	for i := range ticks {
		ticks[i] = models.Tick{Symbol: "AUDCAD", Time: float64(i), Price: float64(i)}
	}
	in.Apply(protocol.EventTicks{Ticks: ticks})

	buf := in.Ticks("AUDCAD")
	require.Len(t, buf, tickBufferCap)
	assert.Equal(t, float64(50), buf[0].Time)
}

func TestSubscribeTicksFanOutAndCancel(t *testing.T) {
	in := newTestInbox()
	ch, cancel := in.SubscribeTicks("GBPUSD")

	in.Apply(protocol.EventTicks{Ticks: []models.Tick{{Symbol: "GBPUSD", Time: 1, Price: 2.5}}})
	select {
	case tick := <-ch:
		assert.Equal(t, 2.5, tick.Price)
	default:
		t.Fatal("subscriber did not receive tick")
	}

	// Other assets never reach this subscriber.
	in.Apply(protocol.EventTicks{Ticks: []models.Tick{{Symbol: "USDJPY", Time: 2, Price: 150}}})
	select {
	case tick := <-ch:
		t.Fatalf("received tick for unsubscribed asset: %+v", tick)
	default:
	}

	cancel()
	in.Apply(protocol.EventTicks{Ticks: []models.Tick{{Symbol: "GBPUSD", Time: 3, Price: 2.6}}})
	select {
	case tick, ok := <-ch:
		if ok {
			t.Fatalf("received tick after cancel: %+v", tick)
		}
	default:
	}
}

func TestWaitSentiment(t *testing.T) {
	in := newTestInbox()
	in.Apply(protocol.EventSentiment{Sentiment: map[string]models.Sentiment{
		"EURUSD_otc": {Buy: 70, Sell: 30},
	}})

	s, err := in.WaitSentiment(shortCtx(t), "EURUSD_otc")
	require.NoError(t, err)
	assert.Equal(t, 70, s.Buy)
	assert.Equal(t, 30, s.Sell)
}

func TestSubscribeSignals(t *testing.T) {
	in := newTestInbox()
	ch, cancel := in.SubscribeSignals()
	defer cancel()

	in.Apply(protocol.EventSignals{Signals: []models.Signal{
		{Asset: "EURUSD", Direction: "call", Duration: 60},
	}})

	select {
	case sig := <-ch:
		assert.Equal(t, "EURUSD", sig.Asset)
		assert.Equal(t, "call", sig.Direction)
	default:
		t.Fatal("signal subscriber did not receive signal")
	}
}

func TestWaitInstruments(t *testing.T) {
	in := newTestInbox()
	assert.Nil(t, in.Catalog())

	in.Apply(protocol.EventInstruments{Instruments: []models.Instrument{
		{ID: 1, Symbol: "EURUSD_otc", Name: "EUR/USD (OTC)", Open: true, Payout: 85},
	}})

	cat, err := in.WaitInstruments(shortCtx(t))
	require.NoError(t, err)
	inst, ok := cat.Lookup("EURUSD_otc")
	require.True(t, ok)
	assert.Equal(t, 85, inst.Payout)
}

func TestWaitHistoryConsumed(t *testing.T) {
	in := newTestInbox()
	in.Apply(protocol.EventHistoryLoad{
		Asset:          "EURUSD_otc",
		History:        []models.Tick{{Symbol: "EURUSD_otc", Time: 10, Price: 1.0}},
		CloseTimestamp: 1700000000,
	})

	ticks, prebuilt, err := in.WaitHistory(shortCtx(t), "EURUSD_otc")
	require.NoError(t, err)
	require.Len(t, ticks, 1)
	assert.Nil(t, prebuilt)
	assert.Equal(t, int64(1700000000), in.ServerTime())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, _, err = in.WaitHistory(ctx, "EURUSD_otc")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWaitHistoryV2Candles(t *testing.T) {
	in := newTestInbox()
	in.Apply(protocol.EventHistoryV2{
		Asset:   "AUDCAD_otc",
		Period:  60,
		History: []models.Tick{{Symbol: "AUDCAD_otc", Time: 5, Price: 0.9}},
		Candles: []models.Candle{{Time: 0, Open: 0.9, High: 0.95, Low: 0.88, Close: 0.91}},
	})

	ticks, candles, err := in.WaitHistory(shortCtx(t), "AUDCAD_otc")
	require.NoError(t, err)
	require.Len(t, ticks, 1)
	require.Len(t, candles, 1)
	assert.Equal(t, 0.91, candles[0].Close)
}

func TestWaitSellAndPendingAck(t *testing.T) {
	in := newTestInbox()
	in.Apply(protocol.EventSellAck{Ticket: "t-1"})
	in.Apply(protocol.EventPendingAck{Ticket: "p-1"})

	ctx := shortCtx(t)
	sell, err := in.WaitSellAck(ctx)
	require.NoError(t, err)
	assert.Equal(t, "t-1", sell.Ticket)

	pending, err := in.WaitPendingAck(ctx)
	require.NoError(t, err)
	assert.Equal(t, "p-1", pending.Ticket)
}

func TestWaitBalanceEdited(t *testing.T) {
	in := newTestInbox()
	in.Apply(protocol.EventBalanceEdited{IsDemo: 1, Balance: 50000})

	ack, err := in.WaitBalanceEdited(shortCtx(t))
	require.NoError(t, err)
	assert.Equal(t, 50000.0, ack.Balance)
}

func TestProfitTracksLatestDeal(t *testing.T) {
	in := newTestInbox()
	assert.Equal(t, 0.0, in.Profit())

	in.Apply(protocol.EventDeals{Deals: []protocol.Deal{{ID: "a", Profit: 2.5}}})
	assert.Equal(t, 2.5, in.Profit())

	in.Apply(protocol.EventDeals{Deals: []protocol.Deal{{ID: "b", Profit: -1}}})
	assert.Equal(t, -1.0, in.Profit())
}

func TestApplyIdempotentBalance(t *testing.T) {
	in := newTestInbox()
	ev := protocol.EventBalance{Live: floatPtr(42)}
	in.Apply(ev)
	in.Apply(ev)

	bal, ok := in.Balance()
	require.True(t, ok)
	assert.Equal(t, 42.0, bal.Live)
}
