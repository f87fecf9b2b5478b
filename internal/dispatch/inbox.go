// Package dispatch demultiplexes decoded inbound events into per-feature
// state slots and wakes the operations waiting on them.
package dispatch

import (
	"context"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	apperrors "quotex-trader/internal/errors"
	"quotex-trader/internal/models"
	"quotex-trader/internal/protocol"
)

// tickBufferCap bounds the per-asset realtime tick buffer.
const tickBufferCap = 10000

// subscriberBufferSize is the channel buffer handed to stream consumers.
// Slow consumers drop samples rather than stalling the receive loop.
const subscriberBufferSize = 100

// Inbox is the sole writer of shared connection state. Apply mutates state
// slots under one mutex and wakes per-key waiters; it never blocks. All
// Wait* methods suspend cooperatively until their predicate holds or the
// context ends.
type Inbox struct {
	log zerolog.Logger

	mu      sync.Mutex
	waiters map[string]chan struct{}

	authState    int // 0 pending, 1 accepted, -1 rejected
	balance      models.Balance
	haveLive     bool
	haveDemo     bool
	catalog      *models.Catalog
	ticks        map[string][]models.Tick
	sentiment    map[string]models.Sentiment
	buyAcks      map[int64]protocol.EventBuyAck
	sellAck      *protocol.EventSellAck
	pendingAck   *protocol.EventPendingAck
	settlements  map[string]models.TradeResult
	history      map[string][]models.Tick
	historyV2    map[string]protocol.EventHistoryV2
	balanceEdit  *protocol.EventBalanceEdited
	lastErr      *apperrors.ProtocolError
	serverTime   int64
	profit       float64
	profitLoaded bool

	tickSubs      map[string][]chan models.Tick
	sentimentSubs map[string][]chan models.Sentiment
	signalSubs    []chan models.Signal
}

// NewInbox creates an empty inbox.
func NewInbox(log zerolog.Logger) *Inbox {
	return &Inbox{
		log:           log.With().Str("component", "dispatch").Logger(),
		waiters:       make(map[string]chan struct{}),
		ticks:         make(map[string][]models.Tick),
		sentiment:     make(map[string]models.Sentiment),
		buyAcks:       make(map[int64]protocol.EventBuyAck),
		settlements:   make(map[string]models.TradeResult),
		history:       make(map[string][]models.Tick),
		historyV2:     make(map[string]protocol.EventHistoryV2),
		tickSubs:      make(map[string][]chan models.Tick),
		sentimentSubs: make(map[string][]chan models.Sentiment),
	}
}

// Waiter keys. Per-resource keys keep unrelated operations from waking
// each other.
func keyTick(asset string) string      { return "tick:" + asset }
func keySentiment(asset string) string { return "sentiment:" + asset }
func keyBuy(requestID int64) string    { return "buy:" + strconv.FormatInt(requestID, 10) }
func keySettle(orderID string) string  { return "settle:" + orderID }
func keyHistory(asset string) string   { return "history:" + asset }

const (
	keyAuth        = "auth"
	keyBalance     = "balance"
	keyInstruments = "instruments"
	keySell        = "sell"
	keyPending     = "pending"
	keyRefill      = "refill"
)

// Apply folds one decoded event into the shared state. It runs on the
// receive loop goroutine: updates from frame N are visible to waiters
// before frame N+1 is processed.
func (in *Inbox) Apply(ev protocol.Event) {
	in.mu.Lock()
	defer in.mu.Unlock()

	switch e := ev.(type) {
	case protocol.EventAuthAccepted:
		in.authState = 1
		in.notify(keyAuth)

	case protocol.EventAuthRejected:
		in.authState = -1
		in.notify(keyAuth)

	case protocol.EventBalance:
		if e.Live != nil {
			in.balance.Live = *e.Live
			in.haveLive = true
		}
		if e.Demo != nil {
			in.balance.Demo = *e.Demo
			in.haveDemo = true
		}
		in.notify(keyBalance)

	case protocol.EventInstruments:
		// Replace-whole snapshot, never a partial merge.
		in.catalog = models.NewCatalog(e.Instruments)
		in.notify(keyInstruments)

	case protocol.EventTicks:
		for _, t := range e.Ticks {
			buf := append(in.ticks[t.Symbol], t)
			if len(buf) > tickBufferCap {
				buf = buf[len(buf)-tickBufferCap:]
			}
			in.ticks[t.Symbol] = buf
			for _, ch := range in.tickSubs[t.Symbol] {
				select {
				case ch <- t:
				default:
				}
			}
			in.notify(keyTick(t.Symbol))
		}

	case protocol.EventSentiment:
		for sym, s := range e.Sentiment {
			in.sentiment[sym] = s
			for _, ch := range in.sentimentSubs[sym] {
				select {
				case ch <- s:
				default:
				}
			}
			in.notify(keySentiment(sym))
		}

	case protocol.EventSignals:
		for _, sig := range e.Signals {
			for _, ch := range in.signalSubs {
				select {
				case ch <- sig:
				default:
				}
			}
		}

	case protocol.EventBuyAck:
		in.buyAcks[e.RequestID] = e
		if e.CloseTimestamp > 0 {
			in.serverTime = e.CloseTimestamp
		}
		in.notify(keyBuy(e.RequestID))

	case protocol.EventSellAck:
		ack := e
		in.sellAck = &ack
		in.notify(keySell)

	case protocol.EventPendingAck:
		ack := e
		in.pendingAck = &ack
		in.notify(keyPending)

	case protocol.EventDeals:
		for _, deal := range e.Deals {
			outcome := models.OutcomeDoji
			switch {
			case deal.Profit > 0:
				outcome = models.OutcomeWin
			case deal.Profit < 0:
				outcome = models.OutcomeLoss
			}
			in.settlements[deal.ID] = models.TradeResult{
				OrderID: deal.ID,
				Outcome: outcome,
				Profit:  deal.Profit,
			}
			in.profit = deal.Profit
			in.profitLoaded = true
			in.notify(keySettle(deal.ID))
		}

	case protocol.EventBalanceEdited:
		ack := e
		in.balanceEdit = &ack
		in.notify(keyRefill)

	case protocol.EventHistoryLoad:
		if e.CloseTimestamp > 0 {
			in.serverTime = e.CloseTimestamp
		}
		if e.Asset != "" {
			in.history[e.Asset] = e.History
			in.notify(keyHistory(e.Asset))
		}

	case protocol.EventHistoryV2:
		in.historyV2[e.Asset] = e
		in.history[e.Asset] = e.History
		in.notify(keyHistory(e.Asset))

	case protocol.EventError:
		in.log.Warn().Str("reason", e.Reason).Msg("protocol error frame")
		in.lastErr = &apperrors.ProtocolError{Reason: e.Reason}
		// An error frame may be the answer to any in-flight request;
		// wake everything so budgeted waits can surface it.
		in.notifyAll()

	case protocol.EventRaw, protocol.EventPlaceholder, protocol.EventPing,
		protocol.EventPong, protocol.EventOpen, protocol.EventConnected,
		protocol.EventDisconnect, protocol.EventSettingsList:
		// Handled by the connection layer or intentionally ignored.
	}
}

// notify wakes every waiter parked on key. Must hold mu.
func (in *Inbox) notify(key string) {
	if ch, ok := in.waiters[key]; ok {
		close(ch)
		delete(in.waiters, key)
	}
}

func (in *Inbox) notifyAll() {
	for key, ch := range in.waiters {
		close(ch)
		delete(in.waiters, key)
	}
}

// signal returns the broadcast channel for key, creating it if needed.
// Must hold mu.
func (in *Inbox) signal(key string) chan struct{} {
	ch, ok := in.waiters[key]
	if !ok {
		ch = make(chan struct{})
		in.waiters[key] = ch
	}
	return ch
}

// await suspends until ready() (evaluated under the inbox lock) returns
// true or the context ends. A state update completed before await is called
// is observed on the first predicate check, never missed.
func (in *Inbox) await(ctx context.Context, key string, ready func() bool) error {
	in.mu.Lock()
	for {
		if ready() {
			in.mu.Unlock()
			return nil
		}
		ch := in.signal(key)
		in.mu.Unlock()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
		}
		in.mu.Lock()
	}
}

// takeErr consumes a pending protocol error. Must hold mu.
func (in *Inbox) takeErr() *apperrors.ProtocolError {
	err := in.lastErr
	in.lastErr = nil
	return err
}
