// Package integration provides end-to-end tests for the trading stack:
// outgoing frames pass through the real codec, server replies are decoded
// and dispatched, and the journal records the round trip.
package integration

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quotex-trader/internal/client"
	"quotex-trader/internal/config"
	"quotex-trader/internal/dispatch"
	apperrors "quotex-trader/internal/errors"
	"quotex-trader/internal/models"
	"quotex-trader/internal/protocol"
	"quotex-trader/internal/store"
	"quotex-trader/internal/ws"
)

// scriptedConn stands in for the websocket layer. Outgoing frames are
// encoded with the production codec; scripted replies are raw server
// payloads decoded with the production decoder and applied to the
// inbox, the same path a live socket follows.
type scriptedConn struct {
	t       *testing.T
	inbox   *dispatch.Inbox
	decoder *protocol.Decoder

	mu     sync.Mutex
	frames []string
	// replies maps an outgoing event name to a responder that scripts
	// the server payloads played back for it.
	replies map[string]func(payload any) []string
}

func newScriptedConn(t *testing.T, inbox *dispatch.Inbox) *scriptedConn {
	return &scriptedConn{
		t:       t,
		inbox:   inbox,
		decoder: protocol.NewDecoder(),
		replies: make(map[string]func(payload any) []string),
	}
}

func (s *scriptedConn) replyTo(event string, responder func(payload any) []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies[event] = responder
}

func (s *scriptedConn) Connect(ctx context.Context) error { return nil }
func (s *scriptedConn) Close() error                      { return nil }
func (s *scriptedConn) State() ws.State                   { return ws.StateReady }
func (s *scriptedConn) Mode() models.AccountMode          { return models.ModeDemo }

func (s *scriptedConn) Send(event string, payload any) error {
	frame, err := protocol.Encode(event, payload)
	require.NoError(s.t, err)

	s.mu.Lock()
	s.frames = append(s.frames, string(frame))
	responder := s.replies[event]
	s.mu.Unlock()

	if responder != nil {
		for _, raw := range responder(payload) {
			s.apply(raw)
		}
	}
	return nil
}

// apply decodes a raw server payload and feeds it to the inbox.
func (s *scriptedConn) apply(raw string) {
	ev, err := s.decoder.Decode([]byte(raw))
	require.NoError(s.t, err)
	require.NotNil(s.t, ev)
	s.inbox.Apply(ev)
}

func (s *scriptedConn) SubscribeCandles(asset string, period int64) error {
	if err := s.Send(protocol.ChannelInstrumentsUpdate, protocol.SubscribePayload{Asset: asset, Period: period}); err != nil {
		return err
	}
	return s.Send(protocol.ChannelDepthFollow, asset)
}

func (s *scriptedConn) UnsubscribeCandles(asset string, period int64) error {
	return s.Send(protocol.ChannelDepthUnfollow, asset)
}

func (s *scriptedConn) ChangeAccount(mode models.AccountMode) error {
	return s.Send(protocol.ChannelAccountChange, protocol.AccountChangePayload{Demo: int(mode)})
}

func newStack(t *testing.T) (*client.Client, *scriptedConn, store.Journal) {
	t.Helper()
	inbox := dispatch.NewInbox(zerolog.Nop())
	conn := newScriptedConn(t, inbox)
	journal, err := store.NewSQLiteJournal(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { journal.Close() })

	cfg := &config.Config{
		Connection: config.ConnectionConfig{SubscribeTimeout: 2 * time.Second},
	}
	c := client.New(cfg, conn, inbox, nil, journal, zerolog.Nop())
	return c, conn, journal
}

func TestBuySettleJournalRoundTrip(t *testing.T) {
	c, conn, journal := newStack(t)
	ctx := context.Background()

	// The catalog arrives as a server push before trading starts.
	conn.apply(`[[66,"EURUSD_otc","EUR/USD OTC","currency",0,85,80,90,0,0,0,0,0,0,true,0,0,0]]`)

	// The ack echoes whatever requestId the client generated.
	conn.replyTo(protocol.ChannelOrdersOpen, func(payload any) []string {
		order := payload.(protocol.OrderPayload)
		return []string{fmt.Sprintf(
			`{"id":"deal-100","requestId":%d,"asset":"EURUSD_otc","amount":10,"openPrice":1.0601,"closeTimestamp":%d}`,
			order.RequestID, order.Time)}
	})

	order, err := c.Buy(ctx, client.BuyRequest{
		Asset:     "EURUSD_otc",
		Amount:    10,
		Direction: models.DirectionCall,
		Duration:  60,
	})
	require.NoError(t, err)
	assert.Equal(t, "deal-100", order.ID)
	assert.Equal(t, 1.0601, order.OpenPrice)

	// The journal saw the open.
	orders, err := journal.ListOrders(ctx, store.OrderFilter{})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, models.OrderAccepted, orders[0].Status)

	// Settlement arrives as a deals push.
	conn.apply(`{"profit":8.5,"deals":[{"id":"deal-100","profit":8.5}]}`)

	result, err := c.CheckWin(ctx, order)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeWin, result.Outcome)

	// The journal saw the settlement.
	stats, err := journal.GetStats(ctx, store.OrderFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Wins)
	assert.Equal(t, 8.5, stats.Profit)
}

func TestCandlesFromHistoryFrame(t *testing.T) {
	c, conn, _ := newStack(t)

	conn.replyTo(protocol.ChannelHistoryLoad, func(payload any) []string {
		req := payload.(protocol.HistoryPayload)
		require.Equal(t, "EURUSD_otc", req.Asset)
		return []string{
			`{"index":1,"asset":"EURUSD_otc","history":[[120,1.10],[130,1.12],[185,1.11],[245,1.13]],"closeTimestamp":250}`,
		}
	})

	out, err := c.Candles(context.Background(), "EURUSD_otc", 250, 150, 60)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, int64(120), out[0].Time)
	assert.Equal(t, 1.10, out[0].Open)
	assert.Equal(t, 1.12, out[0].Close)
	assert.Equal(t, int64(180), out[1].Time)
}

func TestBalanceFromPushFrames(t *testing.T) {
	c, conn, _ := newStack(t)

	conn.apply(`{"liveBalance":55.5,"demoBalance":10000.456}`)
	conn.apply(`{"profit":1.318,"deals":[{"id":"d1","profit":1.318}]}`)

	bal, err := c.Balance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10001.77, bal)
}

func TestInsufficientFundsSurfacesThroughStack(t *testing.T) {
	c, conn, journal := newStack(t)

	conn.apply(`[[66,"EURUSD_otc","EUR/USD OTC","currency",0,85,80,90,0,0,0,0,0,0,true,0,0,0]]`)
	conn.replyTo(protocol.ChannelOrdersOpen, func(any) []string {
		return []string{`{"error":"not_money"}`}
	})

	_, err := c.Buy(context.Background(), client.BuyRequest{
		Asset:     "EURUSD_otc",
		Amount:    1e9,
		Direction: models.DirectionPut,
		Duration:  60,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInsufficientFunds)

	// A rejected open never reaches the journal.
	orders, err := journal.ListOrders(context.Background(), store.OrderFilter{})
	require.NoError(t, err)
	assert.Empty(t, orders)
}
