package main

import (
	"github.com/rs/zerolog"

	"github.com/SamppaFIN/Klitoritari-sub004/internal/logger"
	"github.com/SamppaFIN/Klitoritari-sub004/internal/multiplayer"
	"github.com/SamppaFIN/Klitoritari-sub004/internal/state"
)

// consoleView renders peer activity to the log: the terminal stand-in for
// the browser's map layer.
type consoleView struct {
	log zerolog.Logger
}

func newConsoleView(log zerolog.Logger) *consoleView {
	return &consoleView{log: logger.WithComponent(log, "view")}
}

func (v *consoleView) UpsertPeer(peerID string, peer multiplayer.PeerState) {
	ev := v.log.Info().Str("peerId", peerID).Int("steps", peer.Steps)
	if peer.Position != nil {
		ev = ev.Float64("lat", peer.Position.Lat).Float64("lng", peer.Position.Lng)
	}
	if peer.DistanceMeters >= 0 {
		ev = ev.Float64("distanceM", peer.DistanceMeters).Bool("inRadius", peer.WithinRadius)
	}
	if peer.Profile.Name != "" {
		ev = ev.Str("name", peer.Profile.Name)
	}
	ev.Msg("peer")
}

func (v *consoleView) RemovePeer(peerID string) {
	v.log.Info().Str("peerId", peerID).Msg("peer removed")
}

func (v *consoleView) UpsertDecoration(d state.Decoration) {
	v.log.Info().
		Str("flagId", d.Key()).
		Str("ownerId", d.OwnerID).
		Float64("lat", d.Lat).
		Float64("lng", d.Lng).
		Msg("decoration")
}

func (v *consoleView) SetCount(n int) {
	v.log.Info().Int("count", n).Msg("players online")
}

func (v *consoleView) PeerJoined(peerID string) {
	v.log.Info().Str("peerId", peerID).Msg("peer appeared")
}

func (v *consoleView) PeerLeft(peerID string) {
	v.log.Info().Str("peerId", peerID).Msg("peer departed")
}
