package multiplayer

import (
	"errors"

	"github.com/SamppaFIN/Klitoritari-sub004/internal/geo"
	"github.com/SamppaFIN/Klitoritari-sub004/internal/state"
	"github.com/SamppaFIN/Klitoritari-sub004/internal/wire"
)

// handleRaw normalizes one inbound frame and dispatches it. Protocol
// anomalies are logged and dropped, never fatal.
func (c *Client) handleRaw(raw []byte) {
	ev, err := wire.Decode(raw)
	if err != nil {
		c.log.Warn().Err(err).Msg("dropping malformed message")
		return
	}
	if ev.Kind == wire.EventUnknown {
		c.log.Debug().Str("type", ev.RawType).Msg("dropping unrecognized message type")
		return
	}
	c.handleEvent(ev)
}

func (c *Client) handleEvent(ev wire.Event) {
	switch ev.Kind {
	case wire.EventPeerUpdate:
		if ev.PeerID == c.peerID {
			return // own echoed state is never rendered as a peer
		}
		c.upsertPeer(ev.PeerID, ev.Player, false)

	case wire.EventPeerJoin:
		if ev.PeerID == c.peerID {
			return
		}
		c.upsertPeer(ev.PeerID, ev.Player, true)

	case wire.EventPeerLeave:
		if c.peers.Remove(ev.PeerID) {
			c.view.RemovePeer(ev.PeerID)
			c.noteLeave(ev.PeerID)
			c.log.Debug().Str("peerId", ev.PeerID).Msg("peer left")
		}

	case wire.EventPeerCount:
		c.view.SetCount(ev.Count)

	case wire.EventSnapshot:
		for _, entry := range ev.Peers {
			if entry.PlayerID == c.peerID {
				continue
			}
			c.upsertPeer(entry.PlayerID, entry.PlayerData, false)
		}

	case wire.EventFlagUpdate:
		d := state.DecorationFromWire(ev.PeerID, ev.Flag)
		if c.decorations.Upsert(d) {
			c.view.UpsertDecoration(d)
		}
		if ev.PeerID != "" {
			c.peers.Touch(ev.PeerID, c.now())
		}

	case wire.EventFlagsRequest:
		if ev.Requester == c.peerID {
			return
		}
		c.log.Debug().Str("requesterId", ev.Requester).Msg("peer requested our decorations")
		c.AnnounceOwnedDecorations()

	case wire.EventPong:
		// Liveness only; nothing to update.
	}
}

// upsertPeer folds a state block into the peer table and the view. A join
// for an already-known peer is demoted to a plain update so reconnecting
// peers do not retrigger appearance feedback.
func (c *Client) upsertPeer(peerID string, data wire.PlayerData, joined bool) {
	rec, existed := c.peers.Upsert(peerID, data, c.now())
	c.view.UpsertPeer(peerID, c.renderState(rec))
	if joined && !existed {
		c.noteJoin(peerID)
		c.log.Debug().Str("peerId", peerID).Msg("peer appeared")
	}
}

// renderState attaches the advisory distance. The radius never filters the
// data model; it only informs the view.
func (c *Client) renderState(rec state.PeerRecord) PeerState {
	ps := PeerState{
		PeerID:         rec.PeerID,
		Position:       rec.Position,
		Profile:        rec.Profile,
		Steps:          rec.Steps,
		DistanceMeters: -1,
	}
	local := c.source.CurrentState()
	if local != nil && rec.Position != nil {
		ps.DistanceMeters = geo.DistanceMeters(
			local.Position.Lat, local.Position.Lng, rec.Position.Lat, rec.Position.Lng)
		ps.WithinRadius = ps.DistanceMeters <= c.opts.SyncRadiusMeters
	}
	return ps
}

// noteJoin fires one-shot join feedback, suppressed inside FeedbackWindow.
func (c *Client) noteJoin(peerID string) {
	fb, ok := c.view.(FeedbackSink)
	if !ok {
		return
	}
	c.mu.Lock()
	now := c.now()
	allowed := now.Sub(c.lastJoinNote) >= c.opts.FeedbackWindow
	if allowed {
		c.lastJoinNote = now
	}
	c.mu.Unlock()
	if allowed {
		fb.PeerJoined(peerID)
	}
}

func (c *Client) noteLeave(peerID string) {
	fb, ok := c.view.(FeedbackSink)
	if !ok {
		return
	}
	c.mu.Lock()
	now := c.now()
	allowed := now.Sub(c.lastLeaveNote) >= c.opts.FeedbackWindow
	if allowed {
		c.lastLeaveNote = now
	}
	c.mu.Unlock()
	if allowed {
		fb.PeerLeft(peerID)
	}
}

// publishState sends the local actor's current state unconditionally, so
// peers who joined mid-session converge without change detection. Skipped
// while offline or without a position fix.
func (c *Client) publishState() {
	if c.State() != StateConnected {
		return
	}
	local := c.source.CurrentState()
	if local == nil {
		c.log.Debug().Msg("no position fix, skipping publish")
		return
	}
	msg := wire.PlayerUpdate{
		Type:       wire.TypePlayerUpdate,
		PlayerID:   c.peerID,
		PlayerData: c.playerData(local),
	}
	if err := c.sendJSON(msg); err != nil && !errors.Is(err, ErrNotConnected) {
		c.log.Warn().Err(err).Msg("failed to publish state")
	}
}

// sendJoin emits the once-per-process join announcement.
func (c *Client) sendJoin() {
	local := c.source.CurrentState()
	msg := wire.PlayerJoin{Type: wire.TypePlayerJoin, PlayerID: c.peerID}
	if local != nil {
		msg.PlayerData = c.playerData(local)
	}
	if err := c.sendJSON(msg); err != nil {
		c.log.Warn().Err(err).Msg("failed to announce join")
	}
}

func (c *Client) playerData(local *LocalState) wire.PlayerData {
	pos := local.Position
	profile := local.Profile
	return wire.PlayerData{
		Position:     &pos,
		MarkerConfig: local.MarkerConfig,
		Steps:        local.Steps,
		Timestamp:    c.now().UnixMilli(),
		Profile:      &profile,
	}
}

// AnnounceOwnedDecorations re-broadcasts every decoration the local actor
// currently owns. Invoked after (re)connect and on a peer's request_flags;
// both paths share this one method. Returns the number sent.
func (c *Client) AnnounceOwnedDecorations() int {
	local := c.source.CurrentState()
	if local == nil {
		return 0
	}
	sent := 0
	for _, d := range local.Decorations {
		if d.OwnerID == "" {
			d.OwnerID = c.peerID
		}
		msg := wire.FlagUpdate{
			Type:     wire.TypeFlagUpdate,
			PlayerID: c.peerID,
			FlagID:   d.Key(),
			FlagData: d.WireData(),
		}
		if err := c.sendJSON(msg); err != nil {
			c.log.Warn().Err(err).Str("flagId", d.Key()).Msg("failed to announce decoration")
			break
		}
		sent++
	}
	if sent > 0 {
		c.log.Debug().Int("count", sent).Msg("announced owned decorations")
	}
	return sent
}

// RequestFlags asks every peer to re-broadcast their owned decorations.
func (c *Client) RequestFlags() error {
	return c.sendJSON(wire.RequestFlags{Type: wire.TypeRequestFlags, RequesterID: c.peerID})
}

// SweepStale evicts peers with no inbound activity past StaleAfter and
// removes each from the view exactly once. Safe to call from a caller-owned
// timer as well as the built-in sweep loop.
func (c *Client) SweepStale() int {
	evicted := c.peers.SweepStale(c.now(), c.opts.StaleAfter)
	for _, rec := range evicted {
		c.view.RemovePeer(rec.PeerID)
		c.log.Debug().Str("peerId", rec.PeerID).Time("lastSeen", rec.LastSeenAt).Msg("evicted stale peer")
	}
	return len(evicted)
}
