package dispatch

import (
	"context"

	apperrors "quotex-trader/internal/errors"
	"quotex-trader/internal/models"
	"quotex-trader/internal/protocol"
)

// AuthResult is the outcome of the socket authorization exchange.
type AuthResult int

const (
	AuthPending AuthResult = iota
	AuthAccepted
	AuthRejected
)

// ResetAuth clears the authorization outcome ahead of a (re)connect.
func (in *Inbox) ResetAuth() {
	in.mu.Lock()
	in.authState = 0
	in.mu.Unlock()
}

// WaitAuth blocks until the server accepts or rejects the authorization
// frame.
func (in *Inbox) WaitAuth(ctx context.Context) (AuthResult, error) {
	var state int
	err := in.await(ctx, keyAuth, func() bool {
		state = in.authState
		return state != 0
	})
	if err != nil {
		return AuthPending, err
	}
	if state == 1 {
		return AuthAccepted, nil
	}
	return AuthRejected, nil
}

// WaitBalance blocks until a balance for the given mode is known and
// returns it.
func (in *Inbox) WaitBalance(ctx context.Context, mode models.AccountMode) (float64, error) {
	var out float64
	err := in.await(ctx, keyBalance, func() bool {
		if mode == models.ModeLive && in.haveLive {
			out = in.balance.Live
			return true
		}
		if mode == models.ModeDemo && in.haveDemo {
			out = in.balance.Demo
			return true
		}
		return false
	})
	return out, err
}

// Balance returns the current balance snapshot without waiting.
func (in *Inbox) Balance() (models.Balance, bool) {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.balance, in.haveLive || in.haveDemo
}

// Profit returns the profit of the most recently settled operation.
func (in *Inbox) Profit() float64 {
	in.mu.Lock()
	defer in.mu.Unlock()
	if !in.profitLoaded {
		return 0
	}
	return in.profit
}

// WaitInstruments blocks until a catalog snapshot exists and returns it.
func (in *Inbox) WaitInstruments(ctx context.Context) (*models.Catalog, error) {
	var cat *models.Catalog
	err := in.await(ctx, keyInstruments, func() bool {
		cat = in.catalog
		return cat != nil
	})
	return cat, err
}

// Catalog returns the current instrument snapshot, which may be nil before
// the first push.
func (in *Inbox) Catalog() *models.Catalog {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.catalog
}

// WaitBuyAck blocks until the ack bearing requestID arrives. A protocol
// error frame received while waiting fails the wait instead.
func (in *Inbox) WaitBuyAck(ctx context.Context, requestID int64) (protocol.EventBuyAck, error) {
	var ack protocol.EventBuyAck
	var perr *apperrors.ProtocolError
	err := in.await(ctx, keyBuy(requestID), func() bool {
		if a, ok := in.buyAcks[requestID]; ok {
			ack = a
			return true
		}
		if perr = in.takeErr(); perr != nil {
			return true
		}
		return false
	})
	if err != nil {
		return protocol.EventBuyAck{}, err
	}
	if perr != nil {
		return protocol.EventBuyAck{}, perr
	}
	return ack, nil
}

// WaitSellAck blocks until an orders/cancel acknowledgement arrives.
func (in *Inbox) WaitSellAck(ctx context.Context) (protocol.EventSellAck, error) {
	var ack protocol.EventSellAck
	var perr *apperrors.ProtocolError
	err := in.await(ctx, keySell, func() bool {
		if in.sellAck != nil {
			ack = *in.sellAck
			in.sellAck = nil
			return true
		}
		if perr = in.takeErr(); perr != nil {
			return true
		}
		return false
	})
	if err != nil {
		return protocol.EventSellAck{}, err
	}
	if perr != nil {
		return protocol.EventSellAck{}, perr
	}
	return ack, nil
}

// WaitPendingAck blocks until a pending/create acknowledgement arrives.
func (in *Inbox) WaitPendingAck(ctx context.Context) (protocol.EventPendingAck, error) {
	var ack protocol.EventPendingAck
	var perr *apperrors.ProtocolError
	err := in.await(ctx, keyPending, func() bool {
		if in.pendingAck != nil {
			ack = *in.pendingAck
			in.pendingAck = nil
			return true
		}
		if perr = in.takeErr(); perr != nil {
			return true
		}
		return false
	})
	if err != nil {
		return protocol.EventPendingAck{}, err
	}
	if perr != nil {
		return protocol.EventPendingAck{}, perr
	}
	return ack, nil
}

// WaitSettlement blocks until the settlement for orderID is observed. The
// caller bounds the wait with its context; settlement has no inherent
// timeout beyond the trade's own lifetime.
func (in *Inbox) WaitSettlement(ctx context.Context, orderID string) (models.TradeResult, error) {
	var res models.TradeResult
	err := in.await(ctx, keySettle(orderID), func() bool {
		r, ok := in.settlements[orderID]
		if ok {
			res = r
		}
		return ok
	})
	if err != nil {
		return models.TradeResult{}, err
	}
	// At most one consumer waits per order id; drop the slot once read.
	in.mu.Lock()
	delete(in.settlements, orderID)
	in.mu.Unlock()
	return res, nil
}

// WaitHistory blocks until a historical payload for asset arrives and
// returns its raw ticks plus any pre-built candles.
func (in *Inbox) WaitHistory(ctx context.Context, asset string) ([]models.Tick, []models.Candle, error) {
	var ticks []models.Tick
	var prebuilt []models.Candle
	err := in.await(ctx, keyHistory(asset), func() bool {
		h, ok := in.history[asset]
		if !ok {
			return false
		}
		ticks = h
		if v2, ok := in.historyV2[asset]; ok {
			prebuilt = v2.Candles
		}
		return true
	})
	if err != nil {
		return nil, nil, err
	}
	in.mu.Lock()
	delete(in.history, asset)
	delete(in.historyV2, asset)
	in.mu.Unlock()
	return ticks, prebuilt, nil
}

// WaitFirstTick blocks until at least one realtime sample for asset has
// been observed.
func (in *Inbox) WaitFirstTick(ctx context.Context, asset string) (models.Tick, error) {
	var t models.Tick
	err := in.await(ctx, keyTick(asset), func() bool {
		buf := in.ticks[asset]
		if len(buf) == 0 {
			return false
		}
		t = buf[len(buf)-1]
		return true
	})
	return t, err
}

// WaitSentiment blocks until a sentiment sample for asset is known.
func (in *Inbox) WaitSentiment(ctx context.Context, asset string) (models.Sentiment, error) {
	var s models.Sentiment
	err := in.await(ctx, keySentiment(asset), func() bool {
		v, ok := in.sentiment[asset]
		if ok {
			s = v
		}
		return ok
	})
	return s, err
}

// WaitBalanceEdited blocks until a demo/refill acknowledgement arrives.
func (in *Inbox) WaitBalanceEdited(ctx context.Context) (protocol.EventBalanceEdited, error) {
	var ack protocol.EventBalanceEdited
	var perr *apperrors.ProtocolError
	err := in.await(ctx, keyRefill, func() bool {
		if in.balanceEdit != nil {
			ack = *in.balanceEdit
			in.balanceEdit = nil
			return true
		}
		if perr = in.takeErr(); perr != nil {
			return true
		}
		return false
	})
	if err != nil {
		return protocol.EventBalanceEdited{}, err
	}
	if perr != nil {
		return protocol.EventBalanceEdited{}, perr
	}
	return ack, nil
}

// Ticks returns a copy of the buffered realtime samples for asset.
func (in *Inbox) Ticks(asset string) []models.Tick {
	in.mu.Lock()
	defer in.mu.Unlock()
	buf := in.ticks[asset]
	out := make([]models.Tick, len(buf))
	copy(out, buf)
	return out
}

// Sentiment returns the latest sentiment sample for asset.
func (in *Inbox) Sentiment(asset string) (models.Sentiment, bool) {
	in.mu.Lock()
	defer in.mu.Unlock()
	s, ok := in.sentiment[asset]
	return s, ok
}

// ServerTime returns the last server timestamp observed on the stream.
func (in *Inbox) ServerTime() int64 {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.serverTime
}

// SubscribeTicks registers a stream consumer for an asset. The returned
// cancel function must be called when the consumer is done.
func (in *Inbox) SubscribeTicks(asset string) (<-chan models.Tick, func()) {
	ch := make(chan models.Tick, subscriberBufferSize)
	in.mu.Lock()
	in.tickSubs[asset] = append(in.tickSubs[asset], ch)
	in.mu.Unlock()

	cancel := func() {
		in.mu.Lock()
		subs := in.tickSubs[asset]
		for i, c := range subs {
			if c == ch {
				in.tickSubs[asset] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		in.mu.Unlock()
	}
	return ch, cancel
}

// SubscribeSentiment registers a sentiment stream consumer for an asset.
func (in *Inbox) SubscribeSentiment(asset string) (<-chan models.Sentiment, func()) {
	ch := make(chan models.Sentiment, subscriberBufferSize)
	in.mu.Lock()
	in.sentimentSubs[asset] = append(in.sentimentSubs[asset], ch)
	in.mu.Unlock()

	cancel := func() {
		in.mu.Lock()
		subs := in.sentimentSubs[asset]
		for i, c := range subs {
			if c == ch {
				in.sentimentSubs[asset] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		in.mu.Unlock()
	}
	return ch, cancel
}

// SubscribeSignals registers a consumer for the platform signal feed.
func (in *Inbox) SubscribeSignals() (<-chan models.Signal, func()) {
	ch := make(chan models.Signal, subscriberBufferSize)
	in.mu.Lock()
	in.signalSubs = append(in.signalSubs, ch)
	in.mu.Unlock()

	cancel := func() {
		in.mu.Lock()
		for i, c := range in.signalSubs {
			if c == ch {
				in.signalSubs = append(in.signalSubs[:i], in.signalSubs[i+1:]...)
				break
			}
		}
		in.mu.Unlock()
	}
	return ch, cancel
}
