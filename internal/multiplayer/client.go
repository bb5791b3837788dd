// Package multiplayer implements the position/flag synchronization client:
// one logical connection to the relay, a local peer table reconciled from
// inbound events, periodic publication of the local actor's state, and a
// bounded reconnect policy for transient network loss.
package multiplayer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/SamppaFIN/Klitoritari-sub004/internal/logger"
	"github.com/SamppaFIN/Klitoritari-sub004/internal/state"
)

const writeWait = 10 * time.Second

var (
	// ErrNotConnected is returned for sends attempted without a live socket.
	ErrNotConnected = errors.New("multiplayer: not connected")
	// ErrClosed is returned once Disconnect has been called.
	ErrClosed = errors.New("multiplayer: client closed")
)

// wsConn is the slice of *websocket.Conn the client needs. Tests substitute
// a scripted implementation.
type wsConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

type dialFunc func(ctx context.Context, endpoint string) (wsConn, error)

func gorillaDial(ctx context.Context, endpoint string) (wsConn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Client owns the relay connection and the local view of peer state.
type Client struct {
	opts   Options
	log    zerolog.Logger
	peerID string

	source PositionSource
	view   PeerView

	peers       *state.PeerTable
	decorations *state.DecorationStore

	mu            sync.Mutex
	connState     ConnectionState
	conn          wsConn
	connGen       uint64
	attempts      int
	joined        bool
	closed        bool
	retryTimer    *time.Timer
	announceTimer *time.Timer
	lastJoinNote  time.Time
	lastLeaveNote time.Time
	retry         backoff.BackOff

	writeMu sync.Mutex

	done     chan struct{}
	loopOnce sync.Once

	dial dialFunc
	now  func() time.Time
}

// New builds a client around a position source and a render sink. The peer
// id is session-scoped: a time component plus a random component, never
// reused within the process lifetime.
func New(opts Options, source PositionSource, view PeerView, log zerolog.Logger) (*Client, error) {
	if source == nil {
		return nil, errors.New("multiplayer: nil position source")
	}
	if view == nil {
		return nil, errors.New("multiplayer: nil peer view")
	}

	opts.applyDefaults()
	if opts.Endpoint == "" {
		if opts.Origin == "" {
			return nil, errors.New("multiplayer: no endpoint and no origin to resolve one from")
		}
		endpoint, err := EndpointFromOrigin(opts.Origin)
		if err != nil {
			return nil, err
		}
		opts.Endpoint = endpoint
	}

	now := time.Now()
	c := &Client{
		opts:        opts,
		peerID:      fmt.Sprintf("peer-%d-%s", now.UnixMilli(), uuid.NewString()[:8]),
		source:      source,
		view:        view,
		peers:       state.NewPeerTable(),
		decorations: state.NewDecorationStore(),
		connState:   StateDisconnected,
		retry:       newRetrySchedule(opts),
		done:        make(chan struct{}),
		dial:        gorillaDial,
		now:         time.Now,
	}
	c.log = logger.WithComponent(log, "multiplayer").With().Str("peerId", c.peerID).Logger()
	return c, nil
}

// newRetrySchedule builds the reconnect delay schedule: capped growth, no
// jitter, monotonically non-decreasing with attempt number.
func newRetrySchedule(opts Options) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = opts.ReconnectBaseDelay
	b.RandomizationFactor = 0
	b.Multiplier = 2
	b.MaxInterval = opts.MaxReconnectDelay
	b.MaxElapsedTime = 0 // bounded by the attempt cap instead
	b.Reset()
	return b
}

// PeerID returns the session-scoped id of the local actor.
func (c *Client) PeerID() string { return c.peerID }

// State returns the current connection state.
func (c *Client) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connState
}

// PeerCount returns the number of peers currently tracked.
func (c *Client) PeerCount() int { return c.peers.Len() }

// Peers returns a snapshot of the peer table.
func (c *Client) Peers() []state.PeerRecord { return c.peers.Snapshot() }

// Connect opens the relay socket. On failure the error is returned to the
// caller and the bounded reconnect policy takes over in the background.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.connState == StateConnected || c.connState == StateConnecting {
		c.mu.Unlock()
		return nil
	}
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
	c.connState = StateConnecting
	c.mu.Unlock()

	if err := c.connectOnce(ctx); err != nil {
		c.scheduleReconnect()
		return err
	}
	return nil
}

// connectOnce performs a single dial plus the post-open sequence: initial
// state snapshot, the once-per-process join announcement, and the delayed
// re-broadcast of owned decorations for peers that joined before us.
func (c *Client) connectOnce(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, c.opts.DialTimeout)
	defer cancel()

	conn, err := c.dial(dialCtx, c.opts.Endpoint)
	if err != nil {
		c.mu.Lock()
		if !c.closed {
			c.connState = StateDisconnected
		}
		c.mu.Unlock()
		return fmt.Errorf("multiplayer: dial %s: %w", c.opts.Endpoint, err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.Close()
		return ErrClosed
	}
	if c.conn != nil {
		c.conn.Close()
	}
	c.conn = conn
	c.connGen++
	gen := c.connGen
	c.connState = StateConnected
	c.attempts = 0
	c.retry.Reset()
	firstJoin := !c.joined
	c.joined = true
	c.mu.Unlock()

	c.log.Info().Str("endpoint", c.opts.Endpoint).Bool("firstJoin", firstJoin).Msg("connected to relay")

	c.publishState()
	if firstJoin {
		c.sendJoin()
	}
	c.scheduleAnnounce(gen)
	c.startLoops()
	go c.readLoop(conn, gen)
	return nil
}

// scheduleAnnounce re-broadcasts owned decorations after a short delay so
// the relay has registered the connection before the burst arrives.
func (c *Client) scheduleAnnounce(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if c.announceTimer != nil {
		c.announceTimer.Stop()
	}
	c.announceTimer = time.AfterFunc(c.opts.ReannounceDelay, func() {
		if c.staleGen(gen) {
			return
		}
		c.AnnounceOwnedDecorations()
		// Pull the other direction too: peers that connected earlier hold
		// flags we have never seen.
		if err := c.RequestFlags(); err != nil && !errors.Is(err, ErrNotConnected) {
			c.log.Warn().Err(err).Msg("failed to request peer decorations")
		}
	})
}

func (c *Client) startLoops() {
	c.loopOnce.Do(func() {
		go c.publishLoop()
		if c.opts.SweepInterval > 0 {
			go c.sweepLoop()
		}
	})
}

func (c *Client) publishLoop() {
	ticker := time.NewTicker(c.opts.PublishInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.publishState()
		}
	}
}

func (c *Client) sweepLoop() {
	ticker := time.NewTicker(c.opts.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.SweepStale()
		}
	}
}

// readLoop drains one socket instance. It is bound to the generation the
// socket was installed under, so a stray late message from a replaced socket
// is ignored instead of mutating current state.
func (c *Client) readLoop(conn wsConn, gen uint64) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			c.handleClosed(gen, err)
			return
		}
		if c.staleGen(gen) {
			return
		}
		c.handleRaw(raw)
	}
}

func (c *Client) staleGen(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed || gen != c.connGen
}

// handleClosed reacts to a socket-level close: transient, so the reconnect
// policy is invoked. Intentional teardown never reaches here because
// Disconnect bumps the generation first.
func (c *Client) handleClosed(gen uint64, cause error) {
	c.mu.Lock()
	if c.closed || gen != c.connGen {
		c.mu.Unlock()
		return
	}
	conn := c.conn
	c.conn = nil
	c.connState = StateDisconnected
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	c.log.Warn().Err(cause).Msg("relay connection lost")
	c.scheduleReconnect()
}

// scheduleReconnect arms the next retry, or gives up for the session once
// the attempt budget is spent.
func (c *Client) scheduleReconnect() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.attempts >= c.opts.MaxReconnectAttempts {
		c.connState = StateDisconnected
		attempts := c.attempts
		c.mu.Unlock()
		c.log.Error().Int("attempts", attempts).Msg("reconnect budget exhausted, staying offline")
		return
	}
	c.attempts++
	attempt := c.attempts
	delay := c.retry.NextBackOff()
	c.connState = StateReconnecting
	c.retryTimer = time.AfterFunc(delay, func() {
		c.mu.Lock()
		stopped := c.closed
		c.mu.Unlock()
		if stopped {
			return
		}
		c.log.Info().Int("attempt", attempt).Dur("delay", delay).Msg("reconnecting to relay")
		if err := c.connectOnce(context.Background()); err != nil {
			c.log.Warn().Err(err).Int("attempt", attempt).Msg("reconnect attempt failed")
			c.scheduleReconnect()
		}
	})
	c.mu.Unlock()
}

// Disconnect is the terminal, intentional teardown: it silences both timers,
// closes the socket, clears the peer table, and tells the view to drop every
// peer it was showing. It never triggers the reconnect policy.
func (c *Client) Disconnect() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.done)
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
	if c.announceTimer != nil {
		c.announceTimer.Stop()
		c.announceTimer = nil
	}
	conn := c.conn
	c.conn = nil
	c.connGen++ // invalidate in-flight read handlers
	c.connState = StateDisconnected
	c.mu.Unlock()

	if conn != nil {
		c.writeMu.Lock()
		conn.SetWriteDeadline(c.now().Add(time.Second))
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
		conn.Close()
	}

	for _, id := range c.peers.Clear() {
		c.view.RemovePeer(id)
	}
	c.decorations.Clear()
	c.log.Info().Msg("sync client stopped")
}

// sendJSON marshals and writes one message under the write lock with the
// usual deadline. Fails fast when no live socket exists.
func (c *Client) sendJSON(v any) error {
	c.mu.Lock()
	conn := c.conn
	connected := c.connState == StateConnected
	c.mu.Unlock()
	if conn == nil || !connected {
		return ErrNotConnected
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("multiplayer: encode message: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(c.now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("multiplayer: write message: %w", err)
	}
	return nil
}
