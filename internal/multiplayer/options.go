package multiplayer

import (
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/SamppaFIN/Klitoritari-sub004/internal/state"
	"github.com/SamppaFIN/Klitoritari-sub004/internal/wire"
)

// ConnectionState tracks the relay link lifecycle.
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

func (s ConnectionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "disconnected"
	}
}

// LocalState is the local actor's current state as reported by a
// PositionSource.
type LocalState struct {
	Position     wire.Position
	Decorations  []state.Decoration
	Steps        int
	Profile      wire.Profile
	MarkerConfig json.RawMessage
}

// PositionSource supplies the local actor's state on demand. A nil return
// means "no fix yet" and the client skips the dependent action for that
// cycle rather than publish a malformed update.
type PositionSource interface {
	CurrentState() *LocalState
}

// PeerState is the render payload handed to a PeerView on upsert.
type PeerState struct {
	PeerID   string
	Position *wire.Position
	Profile  wire.Profile
	Steps    int
	// DistanceMeters from the local actor, -1 when no local fix exists.
	DistanceMeters float64
	// WithinRadius marks peers inside the configured sync radius. Advisory:
	// peers outside the radius are still tracked and handed to the view,
	// which may choose to cull them. The client never drops them.
	WithinRadius bool
}

// PeerView is the render sink for peer add/update/remove. All calls are
// fire-and-forget; no return value is relied upon.
type PeerView interface {
	UpsertPeer(peerID string, peer PeerState)
	RemovePeer(peerID string)
	UpsertDecoration(d state.Decoration)
	SetCount(n int)
}

// FeedbackSink is an optional extension of PeerView for one-shot join/leave
// feedback (sound, toast). Calls are rate-limited by Options.FeedbackWindow
// so a burst of reconnecting peers does not spam the player.
type FeedbackSink interface {
	PeerJoined(peerID string)
	PeerLeft(peerID string)
}

// Options configures a Client. The zero value is unusable; call
// DefaultOptions or fill in at least Endpoint or Origin.
type Options struct {
	// Endpoint is the relay websocket URL. When empty it is resolved from
	// Origin with the matching scheme upgrade (https becomes wss).
	Endpoint string
	Origin   string

	SyncRadiusMeters float64
	PublishInterval  time.Duration
	StaleAfter       time.Duration
	// SweepInterval schedules the staleness sweep; zero leaves sweeping to
	// the caller via SweepStale.
	SweepInterval        time.Duration
	DialTimeout          time.Duration
	ReannounceDelay      time.Duration
	FeedbackWindow       time.Duration
	MaxReconnectAttempts int
	ReconnectBaseDelay   time.Duration
	MaxReconnectDelay    time.Duration
}

// DefaultOptions returns the reference defaults.
func DefaultOptions() Options {
	return Options{
		SyncRadiusMeters:     500,
		PublishInterval:      2 * time.Second,
		StaleAfter:           30 * time.Second,
		SweepInterval:        10 * time.Second,
		DialTimeout:          5 * time.Second,
		ReannounceDelay:      300 * time.Millisecond,
		FeedbackWindow:       3 * time.Second,
		MaxReconnectAttempts: 5,
		ReconnectBaseDelay:   time.Second,
		MaxReconnectDelay:    30 * time.Second,
	}
}

func (o *Options) applyDefaults() {
	defaults := DefaultOptions()
	if o.SyncRadiusMeters <= 0 {
		o.SyncRadiusMeters = defaults.SyncRadiusMeters
	}
	if o.PublishInterval <= 0 {
		o.PublishInterval = defaults.PublishInterval
	}
	if o.StaleAfter <= 0 {
		o.StaleAfter = defaults.StaleAfter
	}
	if o.DialTimeout <= 0 {
		o.DialTimeout = defaults.DialTimeout
	}
	if o.ReannounceDelay <= 0 {
		o.ReannounceDelay = defaults.ReannounceDelay
	}
	if o.FeedbackWindow <= 0 {
		o.FeedbackWindow = defaults.FeedbackWindow
	}
	if o.MaxReconnectAttempts <= 0 {
		o.MaxReconnectAttempts = defaults.MaxReconnectAttempts
	}
	if o.ReconnectBaseDelay <= 0 {
		o.ReconnectBaseDelay = defaults.ReconnectBaseDelay
	}
	if o.MaxReconnectDelay <= 0 {
		o.MaxReconnectDelay = defaults.MaxReconnectDelay
	}
}

// EndpointFromOrigin resolves the relay endpoint from a page origin,
// upgrading the scheme to match: https maps to wss, http to ws. The relay
// listens on /ws when the origin has no explicit path.
func EndpointFromOrigin(origin string) (string, error) {
	u, err := url.Parse(origin)
	if err != nil {
		return "", fmt.Errorf("multiplayer: parse origin %q: %w", origin, err)
	}

	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	case "http", "ws":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("multiplayer: origin %q has unsupported scheme %q", origin, u.Scheme)
	}

	if u.Host == "" {
		return "", fmt.Errorf("multiplayer: origin %q has no host", origin)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/ws"
	}
	return u.String(), nil
}
