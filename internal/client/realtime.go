package client

import (
	"context"
	"fmt"

	"quotex-trader/internal/models"
	"quotex-trader/internal/protocol"
)

// PriceStream delivers live ticks for one asset until Stop is called.
type PriceStream struct {
	Asset string
	Ticks <-chan models.Tick
	stop  func()
}

// Stop unsubscribes the asset and releases the channel.
func (s *PriceStream) Stop() { s.stop() }

// StartRealtimePrice subscribes to an asset's tick stream and blocks
// until the first sample arrives, so callers never read a dry channel.
func (c *Client) StartRealtimePrice(ctx context.Context, asset string, period int64) (*PriceStream, error) {
	// Register the fan-out channel first so no tick between the follow
	// frame and the registration is lost.
	ch, cancel := c.inbox.SubscribeTicks(asset)
	if err := c.conn.SubscribeCandles(asset, period); err != nil {
		cancel()
		return nil, err
	}

	waitCtx, cancelWait := context.WithTimeout(ctx, c.cfg.Connection.SubscribeTimeout)
	defer cancelWait()
	if _, err := c.inbox.WaitFirstTick(waitCtx, asset); err != nil {
		cancel()
		return nil, fmt.Errorf("%w: first tick for %s", wrapWait(err), asset)
	}

	return &PriceStream{
		Asset: asset,
		Ticks: ch,
		stop: func() {
			cancel()
			if err := c.conn.UnsubscribeCandles(asset, period); err != nil {
				c.log.Warn().Err(err).Str("asset", asset).Msg("unfollow failed")
			}
		},
	}, nil
}

// SentimentStream delivers live buyer/seller ratios for one asset.
type SentimentStream struct {
	Asset     string
	Sentiment <-chan models.Sentiment
	stop      func()
}

// Stop unsubscribes the asset and releases the channel.
func (s *SentimentStream) Stop() { s.stop() }

// StartRealtimeSentiment subscribes to an asset's sentiment stream and
// blocks until the first ratio arrives.
func (c *Client) StartRealtimeSentiment(ctx context.Context, asset string, period int64) (*SentimentStream, error) {
	ch, cancel := c.inbox.SubscribeSentiment(asset)
	if err := c.conn.SubscribeCandles(asset, period); err != nil {
		cancel()
		return nil, err
	}

	waitCtx, cancelWait := context.WithTimeout(ctx, c.cfg.Connection.SubscribeTimeout)
	defer cancelWait()
	if _, err := c.inbox.WaitSentiment(waitCtx, asset); err != nil {
		cancel()
		return nil, fmt.Errorf("%w: sentiment for %s", wrapWait(err), asset)
	}

	return &SentimentStream{
		Asset:     asset,
		Sentiment: ch,
		stop: func() {
			cancel()
			if err := c.conn.UnsubscribeCandles(asset, period); err != nil {
				c.log.Warn().Err(err).Str("asset", asset).Msg("unfollow failed")
			}
		},
	}, nil
}

// CandleStream delivers sealed candles aggregated from the live tick
// feed. A candle is emitted once a tick crosses its period boundary.
type CandleStream struct {
	Asset   string
	Period  int64
	Candles <-chan models.Candle
	stop    func()
}

// Stop unsubscribes the asset and shuts the aggregator down.
func (s *CandleStream) Stop() { s.stop() }

// StartRealtimeCandles aggregates the live tick stream into fixed-period
// candles. The current bucket is sealed and emitted when the first tick
// of the next bucket arrives.
func (c *Client) StartRealtimeCandles(ctx context.Context, asset string, period int64) (*CandleStream, error) {
	if period <= 0 {
		return nil, fmt.Errorf("period must be positive, got %d", period)
	}
	prices, err := c.StartRealtimePrice(ctx, asset, period)
	if err != nil {
		return nil, err
	}

	out := make(chan models.Candle, 16)
	done := make(chan struct{})
	go func() {
		defer close(out)
		var cur models.Candle
		building := false
		for {
			select {
			case <-done:
				return
			case tick, ok := <-prices.Ticks:
				if !ok {
					return
				}
				ts := int64(tick.Time)
				start := ts - ts%period
				if building && start != cur.Time {
					select {
					case out <- cur:
					case <-done:
						return
					}
					building = false
				}
				if !building {
					cur = models.Candle{
						Time:  start,
						Open:  tick.Price,
						High:  tick.Price,
						Low:   tick.Price,
						Close: tick.Price,
						Ticks: 1,
					}
					building = true
					continue
				}
				cur.Close = tick.Price
				if tick.Price > cur.High {
					cur.High = tick.Price
				}
				if tick.Price < cur.Low {
					cur.Low = tick.Price
				}
				cur.Ticks++
			}
		}
	}()

	return &CandleStream{
		Asset:   asset,
		Period:  period,
		Candles: out,
		stop: func() {
			close(done)
			prices.Stop()
		},
	}, nil
}

// SignalStream delivers platform-issued trade signals.
type SignalStream struct {
	Signals <-chan models.Signal
	stop    func()
}

// Stop releases the channel. The platform has no unsubscribe frame for
// signals; the subscription lives as long as the socket.
func (s *SignalStream) Stop() { s.stop() }

// SubscribeSignals asks the platform to push trade signals.
func (c *Client) SubscribeSignals() (*SignalStream, error) {
	if err := c.conn.Send(protocol.ChannelSignalSubscribe, nil); err != nil {
		return nil, err
	}
	ch, cancel := c.inbox.SubscribeSignals()
	return &SignalStream{Signals: ch, stop: cancel}, nil
}

// Payments returns the payout percentages per open asset.
func (c *Client) Payments(ctx context.Context) (map[string]int, error) {
	cat, err := c.Instruments(ctx)
	if err != nil {
		return nil, err
	}
	payouts := make(map[string]int, cat.Len())
	for _, inst := range cat.All() {
		payouts[inst.Symbol] = inst.Payout
	}
	return payouts, nil
}
