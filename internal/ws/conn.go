// Package ws maintains the platform websocket: dialing, the heartbeat,
// socket authorization, subscription replay and bounded reconnection.
package ws

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"quotex-trader/internal/config"
	"quotex-trader/internal/dispatch"
	apperrors "quotex-trader/internal/errors"
	"quotex-trader/internal/models"
	"quotex-trader/internal/protocol"
)

// State is the connection lifecycle phase.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateAuthenticating
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// SessionSource supplies the HTTP session used for socket authorization.
// Renew discards the persisted session and performs a fresh login.
type SessionSource interface {
	Current(ctx context.Context) (models.Session, error)
	Renew(ctx context.Context) (models.Session, error)
}

// subKey identifies one realtime candle subscription.
type subKey struct {
	asset  string
	period int64
}

// Conn manages one logical connection to the platform websocket. It
// survives transport drops by redialing, reauthorizing and replaying
// tracked subscriptions before reporting ready again.
type Conn struct {
	host     string
	dialURL  string // overrides the derived endpoint when set
	cfg      config.ConnectionConfig
	sessions SessionSource
	inbox    *dispatch.Inbox
	log      zerolog.Logger

	mu      sync.Mutex
	state   State
	sock    *websocket.Conn
	subs    map[subKey]struct{}
	isDemo  int
	closed  bool
	readGen int

	writeMu sync.Mutex

	failed chan struct{}
}

// New creates a connection manager for the given platform host. The
// account mode chooses which balance the authorization frame binds to.
func New(host string, cfg config.ConnectionConfig, mode models.AccountMode, sessions SessionSource, inbox *dispatch.Inbox, log zerolog.Logger) *Conn {
	return &Conn{
		host:     host,
		cfg:      cfg,
		sessions: sessions,
		inbox:    inbox,
		log:      log.With().Str("component", "ws").Logger(),
		subs:     make(map[subKey]struct{}),
		isDemo:   int(mode),
		failed:   make(chan struct{}),
	}
}

// State returns the current lifecycle phase.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Failed is closed once reconnection attempts are exhausted.
func (c *Conn) Failed() <-chan struct{} {
	return c.failed
}

// Connect dials the websocket and completes socket authorization. A
// rejected session is renewed through the session source once; a second
// rejection is terminal.
func (c *Conn) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateReady {
		c.mu.Unlock()
		return nil
	}
	c.state = StateConnecting
	c.mu.Unlock()

	if err := c.establish(ctx); err != nil {
		c.setState(StateFailed)
		return err
	}
	return nil
}

// establish performs one full connect-authorize-resubscribe sequence,
// renewing the session once if the server rejects it.
func (c *Conn) establish(ctx context.Context) error {
	sess, err := c.sessions.Current(ctx)
	if err != nil {
		return fmt.Errorf("obtaining session: %w", err)
	}

	accepted, err := c.attempt(ctx, sess)
	if err != nil {
		return err
	}
	if !accepted {
		c.log.Warn().Msg("session rejected by socket, renewing")
		sess, err = c.sessions.Renew(ctx)
		if err != nil {
			return fmt.Errorf("renewing session: %w", err)
		}
		accepted, err = c.attempt(ctx, sess)
		if err != nil {
			return err
		}
		if !accepted {
			return apperrors.ErrSessionRejected
		}
	}

	if err := c.resubscribe(); err != nil {
		return err
	}
	c.setState(StateReady)
	c.log.Info().Msg("connection ready")
	return nil
}

// attempt dials once and drives authorization to a verdict. It returns
// false without error when the server rejects the session.
func (c *Conn) attempt(ctx context.Context, sess models.Session) (bool, error) {
	url := c.dialURL
	if url == "" {
		url = fmt.Sprintf("wss://ws2.%s/socket.io/?EIO=3&transport=websocket", c.host)
	}
	header := http.Header{}
	header.Set("Origin", "https://"+c.host)
	header.Set("User-Agent", sess.UserAgent)

	dialer := &websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	sock, _, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		return false, fmt.Errorf("%w: dialing %s: %v", apperrors.ErrConnectionFailed, url, err)
	}

	c.inbox.ResetAuth()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		sock.Close()
		return false, apperrors.ErrConnectionClosed
	}
	if c.sock != nil {
		c.sock.Close()
	}
	c.sock = sock
	c.state = StateAuthenticating
	c.readGen++
	gen := c.readGen
	c.mu.Unlock()

	go c.readLoop(sock, gen, sess)
	go c.heartbeat(sock, gen)

	authCtx, cancel := context.WithTimeout(ctx, c.cfg.AuthTimeout)
	defer cancel()
	res, err := c.inbox.WaitAuth(authCtx)
	if err != nil {
		c.discard(sock)
		if authCtx.Err() != nil && ctx.Err() == nil {
			return false, fmt.Errorf("%w: authorization", apperrors.ErrTimeout)
		}
		return false, err
	}
	if res == dispatch.AuthRejected {
		c.discard(sock)
		return false, nil
	}
	return true, nil
}

// discard drops a socket that failed authorization without triggering
// the reconnect path.
func (c *Conn) discard(sock *websocket.Conn) {
	c.mu.Lock()
	if c.sock == sock {
		c.sock = nil
		c.readGen++
	}
	c.mu.Unlock()
	sock.Close()
}

// readLoop decodes every inbound frame. Control frames are answered
// here; everything else folds into the inbox. The generation guard keeps
// a superseded loop from triggering reconnection.
func (c *Conn) readLoop(sock *websocket.Conn, gen int, sess models.Session) {
	dec := protocol.NewDecoder()
	for {
		_, msg, err := sock.ReadMessage()
		if err != nil {
			c.onReadExit(sock, gen, err)
			return
		}
		ev, derr := dec.Decode(msg)
		if derr != nil {
			c.log.Debug().Err(derr).Msg("dropping undecodable frame")
			continue
		}
		switch ev.(type) {
		case protocol.EventOpen:
			payload := protocol.AuthorizationPayload{
				Session: sess.Token,
				IsDemo:  c.mode(),
			}
			if err := c.writeRaw(sock, protocol.MustEncode(protocol.ChannelAuthorization, payload)); err != nil {
				c.onReadExit(sock, gen, err)
				return
			}
		case protocol.EventPing:
			if err := c.writeRaw(sock, []byte(protocol.FramePong)); err != nil {
				c.onReadExit(sock, gen, err)
				return
			}
		case protocol.EventConnected, protocol.EventPong:
		case protocol.EventDisconnect:
			c.log.Warn().Msg("server sent disconnect")
			sock.Close()
			c.onReadExit(sock, gen, apperrors.ErrConnectionClosed)
			return
		default:
			c.inbox.Apply(ev)
		}
	}
}

// heartbeat sends the proactive keepalive the platform expects: the
// transport ping plus an application tick frame.
func (c *Conn) heartbeat(sock *websocket.Conn, gen int) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()
	for range ticker.C {
		if !c.isCurrent(sock, gen) {
			return
		}
		if err := c.writeRaw(sock, []byte(protocol.FramePing)); err != nil {
			return
		}
		if err := c.writeRaw(sock, protocol.MustEncode(protocol.ChannelTick, nil)); err != nil {
			return
		}
	}
}

func (c *Conn) isCurrent(sock *websocket.Conn, gen int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed && c.sock == sock && c.readGen == gen
}

// onReadExit decides whether a read loop exit starts reconnection.
func (c *Conn) onReadExit(sock *websocket.Conn, gen int, err error) {
	c.mu.Lock()
	if c.closed || c.sock != sock || c.readGen != gen {
		c.mu.Unlock()
		return
	}
	c.state = StateDisconnected
	c.sock = nil
	c.mu.Unlock()
	sock.Close()

	c.log.Warn().Err(err).Msg("connection lost, reconnecting")
	go c.reconnect()
}

// reconnect redials with a fixed delay between attempts. Exhausting the
// budget is terminal for this Conn.
func (c *Conn) reconnect() {
	for attempt := 1; attempt <= c.cfg.MaxReconnectAttempts; attempt++ {
		time.Sleep(c.cfg.ReconnectDelay)

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return
		}
		c.state = StateConnecting
		c.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.AuthTimeout+c.cfg.ReconnectDelay)
		err := c.establish(ctx)
		cancel()
		if err == nil {
			c.log.Info().Int("attempt", attempt).Msg("reconnected")
			return
		}
		c.log.Warn().Err(err).Int("attempt", attempt).Int("max", c.cfg.MaxReconnectAttempts).Msg("reconnect attempt failed")
	}

	c.mu.Lock()
	alreadyClosed := c.closed
	c.state = StateFailed
	c.mu.Unlock()
	if !alreadyClosed {
		c.log.Error().Msg("reconnect attempts exhausted")
		close(c.failed)
	}
}

// Send encodes and writes one application frame.
func (c *Conn) Send(event string, payload any) error {
	frame, err := protocol.Encode(event, payload)
	if err != nil {
		return err
	}
	return c.SendRaw(frame)
}

// SendRaw writes a pre-encoded frame to the current socket.
func (c *Conn) SendRaw(frame []byte) error {
	c.mu.Lock()
	sock := c.sock
	state := c.state
	c.mu.Unlock()
	if sock == nil || (state != StateReady && state != StateAuthenticating) {
		return apperrors.ErrNotConnected
	}
	return c.writeRaw(sock, frame)
}

func (c *Conn) writeRaw(sock *websocket.Conn, frame []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return sock.WriteMessage(websocket.TextMessage, frame)
}

// SubscribeCandles follows an asset's realtime feed and records the
// subscription for replay after reconnects.
func (c *Conn) SubscribeCandles(asset string, period int64) error {
	if err := c.Send(protocol.ChannelInstrumentsUpdate, protocol.SubscribePayload{Asset: asset, Period: period}); err != nil {
		return err
	}
	if err := c.Send(protocol.ChannelChartNotification, protocol.ChartNotificationPayload{Asset: asset, Version: "1.0.0"}); err != nil {
		return err
	}
	if err := c.Send(protocol.ChannelDepthFollow, asset); err != nil {
		return err
	}
	c.mu.Lock()
	c.subs[subKey{asset, period}] = struct{}{}
	c.mu.Unlock()
	return nil
}

// UnsubscribeCandles stops an asset's realtime feed.
func (c *Conn) UnsubscribeCandles(asset string, period int64) error {
	c.mu.Lock()
	delete(c.subs, subKey{asset, period})
	c.mu.Unlock()
	return c.Send(protocol.ChannelDepthUnfollow, asset)
}

// resubscribe replays every tracked subscription on a fresh transport.
func (c *Conn) resubscribe() error {
	c.mu.Lock()
	keys := make([]subKey, 0, len(c.subs))
	for k := range c.subs {
		keys = append(keys, k)
	}
	sock := c.sock
	c.mu.Unlock()
	if sock == nil {
		return apperrors.ErrNotConnected
	}

	for _, k := range keys {
		if err := c.writeRaw(sock, protocol.MustEncode(protocol.ChannelInstrumentsUpdate, protocol.SubscribePayload{Asset: k.asset, Period: k.period})); err != nil {
			return err
		}
		if err := c.writeRaw(sock, protocol.MustEncode(protocol.ChannelDepthFollow, k.asset)); err != nil {
			return err
		}
		c.log.Debug().Str("asset", k.asset).Int64("period", k.period).Msg("resubscribed")
	}
	return nil
}

// ChangeAccount switches the active balance between demo and live. The
// new mode also applies to authorization frames on later reconnects.
func (c *Conn) ChangeAccount(mode models.AccountMode) error {
	c.mu.Lock()
	c.isDemo = int(mode)
	c.mu.Unlock()
	return c.Send(protocol.ChannelAccountChange, protocol.AccountChangePayload{Demo: int(mode)})
}

// Mode returns the account mode the connection is authorized for.
func (c *Conn) Mode() models.AccountMode {
	return models.AccountMode(c.mode())
}

func (c *Conn) mode() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isDemo
}

func (c *Conn) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Close shuts the connection down permanently.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.state = StateDisconnected
	sock := c.sock
	c.sock = nil
	c.mu.Unlock()

	if sock != nil {
		c.writeMu.Lock()
		sock.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
		return sock.Close()
	}
	return nil
}
