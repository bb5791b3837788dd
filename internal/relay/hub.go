// Package relay implements the development relay the sync clients talk to:
// a stateless fan-out hub over WebSocket. It forwards every message to all
// other subscribers, answers ping with pong, maintains the aggregate player
// count, and synthesizes leave events for vanished connections.
package relay

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/SamppaFIN/Klitoritari-sub004/internal/logger"
	"github.com/SamppaFIN/Klitoritari-sub004/internal/wire"
)

// Config tunes hub behavior. Zero values fall back to the defaults.
type Config struct {
	// HeartbeatWindow evicts subscribers silent for longer than this.
	HeartbeatWindow time.Duration
	WriteWait       time.Duration
	SweepInterval   time.Duration
}

func (c Config) withDefaults() Config {
	if c.HeartbeatWindow <= 0 {
		c.HeartbeatWindow = 30 * time.Second
	}
	if c.WriteWait <= 0 {
		c.WriteWait = 10 * time.Second
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = 5 * time.Second
	}
	return c
}

type subscriber struct {
	conn *websocket.Conn
	mu   sync.Mutex

	// guarded by the hub mutex
	playerID string
	lastSeen time.Time
}

// write sends one frame under the per-connection lock with a write deadline.
func (s *subscriber) write(data []byte, deadline time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(deadline))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// Hub owns all live subscribers.
type Hub struct {
	cfg Config
	log zerolog.Logger

	mu       sync.Mutex
	subs     map[*subscriber]struct{}
	byPlayer map[string]*subscriber
}

func NewHub(cfg Config, log zerolog.Logger) *Hub {
	return &Hub{
		cfg:      cfg.withDefaults(),
		log:      logger.WithComponent(log, "relay"),
		subs:     make(map[*subscriber]struct{}),
		byPlayer: make(map[string]*subscriber),
	}
}

// PlayerCount reports the number of registered players.
func (h *Hub) PlayerCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.byPlayer)
}

// serve drains one connection until it drops.
func (h *Hub) serve(conn *websocket.Conn) {
	sub := &subscriber{conn: conn, lastSeen: time.Now()}
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	defer h.drop(sub)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		h.dispatch(sub, raw)
	}
}

// dispatch registers the sender on its first identified message, answers
// pings locally, and fans everything else out to the other subscribers. The
// relay never echoes a message back to its sender.
func (h *Hub) dispatch(sub *subscriber, raw []byte) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		h.log.Debug().Err(err).Msg("discarding malformed frame")
		return
	}

	playerID := wire.PeerIDOf(raw)

	h.mu.Lock()
	sub.lastSeen = time.Now()
	registered := false
	if playerID != "" && sub.playerID == "" {
		if existing, ok := h.byPlayer[playerID]; ok && existing != sub {
			existing.conn.Close()
		}
		sub.playerID = playerID
		h.byPlayer[playerID] = sub
		registered = true
	}
	h.mu.Unlock()

	if registered {
		h.log.Info().Str("playerId", playerID).Msg("subscriber registered")
		h.broadcastCount()
	}

	if probe.Type == wire.TypePing {
		data, err := json.Marshal(map[string]any{"type": wire.TypePong, "timestamp": time.Now().UnixMilli()})
		if err == nil {
			if err := sub.write(data, h.cfg.WriteWait); err != nil {
				h.log.Debug().Err(err).Msg("failed to answer ping")
			}
		}
		return
	}

	h.broadcast(raw, sub)
}

// broadcast fans one frame out to every subscriber except the origin.
func (h *Hub) broadcast(data []byte, except *subscriber) {
	type target struct {
		sub      *subscriber
		playerID string
	}
	h.mu.Lock()
	targets := make([]target, 0, len(h.subs))
	for s := range h.subs {
		if s != except {
			targets = append(targets, target{sub: s, playerID: s.playerID})
		}
	}
	h.mu.Unlock()

	for _, t := range targets {
		if err := t.sub.write(data, h.cfg.WriteWait); err != nil {
			h.log.Warn().Err(err).Str("playerId", t.playerID).Msg("failed to deliver, dropping subscriber")
			h.drop(t.sub)
		}
	}
}

func (h *Hub) broadcastCount() {
	data, err := json.Marshal(map[string]any{"type": wire.TypePlayerCount, "count": h.PlayerCount()})
	if err != nil {
		return
	}
	h.broadcast(data, nil)
}

// drop removes a subscriber, closing its socket and synthesizing a leave
// announcement for the peer it represented. Idempotent.
func (h *Hub) drop(sub *subscriber) {
	h.mu.Lock()
	if _, ok := h.subs[sub]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.subs, sub)
	playerID := sub.playerID
	if playerID != "" && h.byPlayer[playerID] == sub {
		delete(h.byPlayer, playerID)
	}
	h.mu.Unlock()

	sub.conn.Close()

	if playerID != "" {
		h.log.Info().Str("playerId", playerID).Msg("subscriber dropped")
		leave, err := json.Marshal(map[string]any{"type": wire.TypePlayerLeave, "playerId": playerID})
		if err == nil {
			h.broadcast(leave, nil)
		}
		h.broadcastCount()
	}
}

// Run drives the staleness sweeper until the stop channel closes.
func (h *Hub) Run(stop <-chan struct{}) {
	ticker := time.NewTicker(h.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			for _, sub := range h.staleSince(now) {
				h.log.Info().Str("playerId", sub.playerID).Msg("disconnecting silent subscriber")
				h.drop(sub)
			}
		}
	}
}

func (h *Hub) staleSince(now time.Time) []*subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()

	var stale []*subscriber
	for sub := range h.subs {
		if now.Sub(sub.lastSeen) > h.cfg.HeartbeatWindow {
			stale = append(stale, sub)
		}
	}
	return stale
}

// DiagnosticsPeer is one entry in the diagnostics snapshot.
type DiagnosticsPeer struct {
	ID       string `json:"id"`
	LastSeen int64  `json:"lastSeen"`
	Addr     string `json:"addr"`
}

// DiagnosticsSnapshot exposes per-subscriber liveness for the diagnostics
// endpoint.
func (h *Hub) DiagnosticsSnapshot() []DiagnosticsPeer {
	h.mu.Lock()
	defer h.mu.Unlock()

	peers := make([]DiagnosticsPeer, 0, len(h.subs))
	for sub := range h.subs {
		peers = append(peers, DiagnosticsPeer{
			ID:       sub.playerID,
			LastSeen: sub.lastSeen.UnixMilli(),
			Addr:     sub.conn.RemoteAddr().String(),
		})
	}
	return peers
}
