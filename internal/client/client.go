// Package client is the trading facade: it ties the HTTP session, the
// websocket connection and the event inbox into blocking operations.
package client

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"quotex-trader/internal/auth"
	"quotex-trader/internal/candles"
	"quotex-trader/internal/config"
	"quotex-trader/internal/dispatch"
	apperrors "quotex-trader/internal/errors"
	"quotex-trader/internal/expiry"
	"quotex-trader/internal/models"
	"quotex-trader/internal/protocol"
	"quotex-trader/internal/session"
	"quotex-trader/internal/store"
	"quotex-trader/internal/ws"
	"quotex-trader/pkg/utils"
)

// settleGrace extends the settlement wait past the option's expiration;
// the deals frame trails the strike by a few seconds.
const settleGrace = 30 * time.Second

// Connection is the websocket surface the facade drives.
type Connection interface {
	Connect(ctx context.Context) error
	Close() error
	State() ws.State
	Mode() models.AccountMode
	Send(event string, payload any) error
	SubscribeCandles(asset string, period int64) error
	UnsubscribeCandles(asset string, period int64) error
	ChangeAccount(mode models.AccountMode) error
}

// Cabinet is the authenticated HTTP surface the facade delegates to.
type Cabinet interface {
	Profile(ctx context.Context) (models.Profile, error)
	TradeHistory(ctx context.Context, mode models.AccountMode, page int) ([]auth.TradeRecord, error)
	SetTimeOffset(ctx context.Context, offset int) (models.Profile, error)
	Logout(ctx context.Context) error
}

// Client is the high-level trading API.
type Client struct {
	cfg     *config.Config
	conn    Connection
	inbox   *dispatch.Inbox
	cabinet Cabinet
	journal store.Journal
	log     zerolog.Logger

	reqSeq atomic.Int64
}

// New wires a facade from its parts. journal may be nil to disable the
// local trade log.
func New(cfg *config.Config, conn Connection, inbox *dispatch.Inbox, cabinet Cabinet, journal store.Journal, log zerolog.Logger) *Client {
	return &Client{
		cfg:     cfg,
		conn:    conn,
		inbox:   inbox,
		cabinet: cabinet,
		journal: journal,
		log:     log.With().Str("component", "client").Logger(),
	}
}

// Build assembles a production facade from configuration alone.
func Build(cfg *config.Config, log zerolog.Logger) (*Client, error) {
	mode := models.ModeLive
	if cfg.Platform.Demo {
		mode = models.ModeDemo
	}

	sessions := session.NewStore(cfg.Platform.SessionPath)
	var pin auth.PINSource
	if cfg.Credentials.EmailPass != "" {
		pin = &auth.MailPIN{
			Host:     cfg.Credentials.IMAPHost,
			Email:    cfg.Credentials.Email,
			Password: cfg.Credentials.EmailPass,
			Log:      log,
		}
	} else {
		pin = &auth.PromptPIN{In: os.Stdin, Out: os.Stderr}
	}
	authClient := auth.New(cfg.Platform.Host, cfg.Credentials.Lang, cfg.Credentials.Email, cfg.Credentials.Password, pin, sessions, log)

	inbox := dispatch.NewInbox(log)
	conn := ws.New(cfg.Platform.Host, cfg.Connection, mode, authClient, inbox, log)

	var journal store.Journal
	if cfg.Platform.JournalPath != "" {
		j, err := store.NewSQLiteJournal(cfg.Platform.JournalPath)
		if err != nil {
			return nil, fmt.Errorf("opening journal: %w", err)
		}
		journal = j
	}

	return New(cfg, conn, inbox, authClient, journal, log), nil
}

// Connect establishes the websocket session.
func (c *Client) Connect(ctx context.Context) error {
	return c.conn.Connect(ctx)
}

// Close shuts everything down.
func (c *Client) Close() error {
	err := c.conn.Close()
	if c.journal != nil {
		if jerr := c.journal.Close(); err == nil {
			err = jerr
		}
	}
	return err
}

// Connected reports whether the socket is ready for trading.
func (c *Client) Connected() bool {
	return c.conn.State() == ws.StateReady
}

// Mode returns the active account mode.
func (c *Client) Mode() models.AccountMode {
	return c.conn.Mode()
}

// Balance returns the active account's balance adjusted by the profit
// of the most recent settlement, truncated to cents.
func (c *Client) Balance(ctx context.Context) (float64, error) {
	bal, err := c.inbox.WaitBalance(ctx, c.conn.Mode())
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return 0, fmt.Errorf("%w: no snapshot for %s account", apperrors.ErrNoBalance, c.conn.Mode())
		}
		return 0, fmt.Errorf("%w: balance", wrapWait(err))
	}
	return utils.Truncate(bal+c.inbox.Profit(), 2), nil
}

// ChangeAccount switches between the demo and live balances.
func (c *Client) ChangeAccount(mode models.AccountMode) error {
	return c.conn.ChangeAccount(mode)
}

// EditPracticeBalance resets the demo balance to the given amount.
func (c *Client) EditPracticeBalance(ctx context.Context, amount float64) (float64, error) {
	if err := c.conn.Send(protocol.ChannelDemoRefill, amount); err != nil {
		return 0, err
	}
	waitCtx, cancel := context.WithTimeout(ctx, c.cfg.Connection.SubscribeTimeout)
	defer cancel()
	ack, err := c.inbox.WaitBalanceEdited(waitCtx)
	if err != nil {
		return 0, fmt.Errorf("%w: demo refill", wrapWait(err))
	}
	return ack.Balance, nil
}

// BuyRequest describes one binary option order.
type BuyRequest struct {
	Asset     string
	Amount    float64
	Direction models.Direction
	Duration  int64 // seconds
	// Timer schedules the raw duration instead of a fast-option
	// expiration boundary.
	Timer bool
}

// Buy opens a binary option and blocks until the server acknowledges
// it. The wait is bounded by the option duration.
func (c *Client) Buy(ctx context.Context, req BuyRequest) (*models.Order, error) {
	if !req.Direction.Valid() {
		return nil, fmt.Errorf("%w: direction %q", apperrors.ErrInvalidOrder, req.Direction)
	}
	if req.Amount <= 0 || req.Duration <= 0 {
		return nil, fmt.Errorf("%w: amount and duration must be positive", apperrors.ErrInvalidOrder)
	}
	if cat := c.inbox.Catalog(); cat != nil {
		inst, ok := cat.Lookup(req.Asset)
		if !ok {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrAssetNotFound, req.Asset)
		}
		if !inst.Open {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrAssetClosed, req.Asset)
		}
	}

	if err := c.conn.SubscribeCandles(req.Asset, req.Duration); err != nil {
		return nil, err
	}

	base := c.inbox.ServerTime()
	if base == 0 {
		base = time.Now().Unix()
	}
	expiration := expiry.NextUnix(base, req.Duration)

	fast := !req.Timer
	optionType := protocol.OptionTypeTimed
	wireTime := expiration
	if models.IsOTC(req.Asset) && !fast {
		// Turbo orders carry the raw duration, timed orders the
		// expiration timestamp.
		optionType = protocol.OptionTypeTurbo
		wireTime = req.Duration
	}
	chartExpiration := expiration
	if !fast {
		chartExpiration = base
	}
	if err := c.conn.Send(protocol.ChannelSettingsStore, protocol.NewChartSettings(req.Asset, wireTime, chartExpiration, fast)); err != nil {
		return nil, err
	}

	requestID := c.nextRequestID()
	if err := c.conn.Send(protocol.ChannelTick, nil); err != nil {
		return nil, err
	}
	payload := protocol.OrderPayload{
		Asset:      req.Asset,
		Amount:     req.Amount,
		Time:       wireTime,
		Action:     string(req.Direction),
		IsDemo:     int(c.conn.Mode()),
		RequestID:  requestID,
		OptionType: optionType,
	}
	if err := c.conn.Send(protocol.ChannelOrdersOpen, payload); err != nil {
		return nil, err
	}
	c.log.Info().
		Str("asset", req.Asset).
		Float64("amount", req.Amount).
		Str("direction", string(req.Direction)).
		Int64("duration", req.Duration).
		Int64("expiration", expiration).
		Msg("order sent")

	waitCtx, cancel := context.WithTimeout(ctx, time.Duration(req.Duration)*time.Second)
	defer cancel()
	ack, err := c.inbox.WaitBuyAck(waitCtx, requestID)
	if err != nil {
		var perr *apperrors.ProtocolError
		if errors.As(err, &perr) && !errors.Is(err, apperrors.ErrInsufficientFunds) {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrOrderRejected, perr.Reason)
		}
		return nil, fmt.Errorf("%w: order not acknowledged", wrapWait(err))
	}

	order := &models.Order{
		RequestID:  requestID,
		ID:         ack.ID,
		Asset:      req.Asset,
		Amount:     req.Amount,
		Direction:  req.Direction,
		Duration:   req.Duration,
		Expiration: expiration,
		OpenPrice:  ack.OpenPrice,
		Status:     models.OrderAccepted,
		PlacedAt:   time.Now().UTC(),
	}
	if ack.CloseTimestamp > 0 {
		order.Expiration = ack.CloseTimestamp
	}
	if c.journal != nil {
		if err := c.journal.LogOrder(ctx, order, c.conn.Mode() == models.ModeDemo); err != nil {
			c.log.Warn().Err(err).Str("order", order.ID).Msg("journal write failed")
		}
	}
	return order, nil
}

// CheckWin blocks until the order settles and returns its outcome. The
// wait is bounded by the order's expiration plus a small grace period.
func (c *Client) CheckWin(ctx context.Context, order *models.Order) (models.TradeResult, error) {
	deadline := time.Unix(order.Expiration, 0).Add(settleGrace)
	waitCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	result, err := c.inbox.WaitSettlement(waitCtx, order.ID)
	if err != nil {
		return models.TradeResult{}, fmt.Errorf("%w: settlement for %s", wrapWait(err), order.ID)
	}
	if c.journal != nil {
		if jerr := c.journal.SettleOrder(ctx, result); jerr != nil {
			c.log.Warn().Err(jerr).Str("order", order.ID).Msg("journal settle failed")
		}
	}
	c.log.Info().
		Str("order", order.ID).
		Str("outcome", string(result.Outcome)).
		Float64("profit", result.Profit).
		Msg("order settled")
	return result, nil
}

// SellOption sells an open option back before expiration.
func (c *Client) SellOption(ctx context.Context, ticket string) (string, error) {
	if err := c.conn.Send(protocol.ChannelOrdersCancel, protocol.CancelPayload{Ticket: ticket}); err != nil {
		return "", err
	}
	waitCtx, cancel := context.WithTimeout(ctx, c.cfg.Connection.SubscribeTimeout)
	defer cancel()
	ack, err := c.inbox.WaitSellAck(waitCtx)
	if err != nil {
		return "", fmt.Errorf("%w: sell %s", wrapWait(err), ticket)
	}
	return ack.Ticket, nil
}

// PendingRequest schedules a trade for a future open time.
type PendingRequest struct {
	Asset     string
	Amount    float64
	Direction models.Direction
	Duration  int64  // seconds
	OpenTime  string // wire format; next boundary when empty
}

// PendingCreate registers a pending order with the platform.
func (c *Client) PendingCreate(ctx context.Context, req PendingRequest) (string, error) {
	if !req.Direction.Valid() {
		return "", fmt.Errorf("%w: direction %q", apperrors.ErrInvalidOrder, req.Direction)
	}
	openTime := req.OpenTime
	if openTime == "" {
		openTime = utils.FormatOpenTime(utils.NextOpenTime(time.Now(), req.Duration))
	}
	payload := protocol.PendingPayload{
		OpenType:  0,
		Asset:     req.Asset,
		OpenTime:  openTime,
		Timeframe: req.Duration,
		Command:   string(req.Direction),
		Amount:    req.Amount,
	}
	if err := c.conn.Send(protocol.ChannelPendingCreate, payload); err != nil {
		return "", err
	}
	waitCtx, cancel := context.WithTimeout(ctx, c.cfg.Connection.SubscribeTimeout)
	defer cancel()
	ack, err := c.inbox.WaitPendingAck(waitCtx)
	if err != nil {
		return "", fmt.Errorf("%w: pending order", wrapWait(err))
	}
	c.followPending(ctx, req, openTime, ack.Ticket)
	return ack.Ticket, nil
}

// followPending registers the accepted pending order's instrument. The
// order is already booked, so a failed follow frame is only logged.
func (c *Client) followPending(ctx context.Context, req PendingRequest, openTime, ticket string) {
	follow := protocol.InstrumentsFollowPayload{
		Amount:    req.Amount,
		OpenTime:  openTime,
		Symbol:    req.Asset,
		Ticket:    ticket,
		Timeframe: req.Duration,
	}
	if req.Direction == models.DirectionPut {
		follow.Command = 1
	}
	if c.cabinet != nil {
		if profile, err := c.cabinet.Profile(ctx); err == nil {
			follow.Currency = profile.CurrencyCode
			follow.UID = profile.ID
		}
	}
	if err := c.conn.Send(protocol.ChannelInstrumentsFollow, follow); err != nil {
		c.log.Warn().Err(err).Str("ticket", ticket).Msg("instruments follow failed")
	}
}

// Candles loads historical candles ending at endTime, going back offset
// seconds, aggregated to the given period.
func (c *Client) Candles(ctx context.Context, asset string, endTime, offset, period int64) ([]models.Candle, error) {
	if endTime == 0 {
		endTime = time.Now().Unix()
	}
	if err := c.conn.SubscribeCandles(asset, period); err != nil {
		return nil, err
	}
	payload := protocol.HistoryPayload{
		Asset:  asset,
		Index:  time.Now().Unix(),
		Time:   endTime,
		Offset: offset,
		Period: period,
	}
	if err := c.conn.Send(protocol.ChannelHistoryLoad, payload); err != nil {
		return nil, err
	}

	waitCtx, cancel := context.WithTimeout(ctx, c.cfg.Connection.SubscribeTimeout)
	defer cancel()
	ticks, prebuilt, err := c.inbox.WaitHistory(waitCtx, asset)
	if err != nil {
		return nil, fmt.Errorf("%w: history for %s", wrapWait(err), asset)
	}

	merged := candles.Merge(prebuilt, candles.Bucket(ticks, period))
	if c.journal != nil && len(merged) > 0 {
		if err := c.journal.SaveCandles(ctx, asset, period, merged); err != nil {
			c.log.Warn().Err(err).Str("asset", asset).Msg("candle cache write failed")
		}
	}
	return merged, nil
}

// Instruments blocks until the instrument catalog is known.
func (c *Client) Instruments(ctx context.Context) (*models.Catalog, error) {
	waitCtx, cancel := context.WithTimeout(ctx, c.cfg.Connection.SubscribeTimeout)
	defer cancel()
	cat, err := c.inbox.WaitInstruments(waitCtx)
	if err != nil {
		return nil, fmt.Errorf("%w: instruments", wrapWait(err))
	}
	return cat, nil
}

// AssetStatus reports whether an asset is currently tradable.
func (c *Client) AssetStatus(ctx context.Context, asset string) (models.Instrument, error) {
	cat, err := c.Instruments(ctx)
	if err != nil {
		return models.Instrument{}, err
	}
	inst, ok := cat.Lookup(asset)
	if !ok {
		return models.Instrument{}, fmt.Errorf("%w: %s", apperrors.ErrAssetNotFound, asset)
	}
	return inst, nil
}

// Profile fetches the account profile over HTTP.
func (c *Client) Profile(ctx context.Context) (models.Profile, error) {
	return c.cabinet.Profile(ctx)
}

// TradeHistory fetches one page of settled trades over HTTP.
func (c *Client) TradeHistory(ctx context.Context, page int) ([]auth.TradeRecord, error) {
	return c.cabinet.TradeHistory(ctx, c.conn.Mode(), page)
}

// SetTimeOffset pushes the local timezone offset to the platform.
func (c *Client) SetTimeOffset(ctx context.Context, offset int) (models.Profile, error) {
	return c.cabinet.SetTimeOffset(ctx, offset)
}

// Logout invalidates the HTTP session after closing the socket.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.conn.Close(); err != nil {
		return err
	}
	return c.cabinet.Logout(ctx)
}

// Journal exposes the local trade log, nil when disabled.
func (c *Client) Journal() store.Journal {
	return c.journal
}

// nextRequestID produces a strictly increasing correlation id so two
// orders in the same second cannot collide.
func (c *Client) nextRequestID() int64 {
	now := time.Now().Unix()
	for {
		last := c.reqSeq.Load()
		next := now
		if next <= last {
			next = last + 1
		}
		if c.reqSeq.CompareAndSwap(last, next) {
			return next
		}
	}
}

// wrapWait maps a context expiry to the timeout sentinel so callers can
// match on it.
func wrapWait(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.ErrTimeout
	}
	return err
}
