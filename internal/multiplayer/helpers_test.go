package multiplayer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/SamppaFIN/Klitoritari-sub004/internal/state"
	"github.com/SamppaFIN/Klitoritari-sub004/internal/wire"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{t: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fakeSource struct {
	mu    sync.Mutex
	state *LocalState
}

func (s *fakeSource) CurrentState() *LocalState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == nil {
		return nil
	}
	cloned := *s.state
	return &cloned
}

func (s *fakeSource) set(state *LocalState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

type recordingView struct {
	mu          sync.Mutex
	upserts     []PeerState
	removed     []string
	decorations []state.Decoration
	counts      []int
	joins       []string
	leaves      []string
}

func (v *recordingView) UpsertPeer(peerID string, peer PeerState) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.upserts = append(v.upserts, peer)
}

func (v *recordingView) RemovePeer(peerID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.removed = append(v.removed, peerID)
}

func (v *recordingView) UpsertDecoration(d state.Decoration) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.decorations = append(v.decorations, d)
}

func (v *recordingView) SetCount(n int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.counts = append(v.counts, n)
}

func (v *recordingView) PeerJoined(peerID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.joins = append(v.joins, peerID)
}

func (v *recordingView) PeerLeft(peerID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.leaves = append(v.leaves, peerID)
}

func (v *recordingView) callCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.upserts) + len(v.removed) + len(v.decorations) + len(v.counts)
}

func (v *recordingView) lastUpsert() (PeerState, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.upserts) == 0 {
		return PeerState{}, false
	}
	return v.upserts[len(v.upserts)-1], true
}

func (v *recordingView) removedIDs() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.removed...)
}

var errFakeConnClosed = errors.New("fake conn closed")

// fakeConn is a scripted socket: the test feeds inbound frames and inspects
// outbound writes.
type fakeConn struct {
	mu        sync.Mutex
	writes    [][]byte
	inbound   chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound: make(chan []byte, 16),
		closed:  make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case msg := <-c.inbound:
		return 1, msg, nil
	case <-c.closed:
		return 0, nil, errFakeConnClosed
	}
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	select {
	case <-c.closed:
		return errFakeConnClosed
	default:
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	cloned := append([]byte(nil), data...)
	c.writes = append(c.writes, cloned)
	return nil
}

func (c *fakeConn) SetWriteDeadline(time.Time) error { return nil }

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

// writesOfType counts outbound frames carrying the given wire type.
func (c *fakeConn) writesOfType(t string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, raw := range c.writes {
		var probe struct {
			Type string `json:"type"`
		}
		if json.Unmarshal(raw, &probe) == nil && probe.Type == t {
			n++
		}
	}
	return n
}

func (c *fakeConn) writeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.writes)
}

// fakeDialer hands out fakeConns, optionally failing scripted calls.
type fakeDialer struct {
	mu    sync.Mutex
	conns []*fakeConn
	calls int
	// failCall reports whether the nth dial (1-based) should fail.
	failCall func(n int) bool
}

func (d *fakeDialer) dial(_ context.Context, _ string) (wsConn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if d.failCall != nil && d.failCall(d.calls) {
		return nil, errors.New("dial refused")
	}
	conn := newFakeConn()
	d.conns = append(d.conns, conn)
	return conn, nil
}

func (d *fakeDialer) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

func (d *fakeDialer) conn(i int) *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i >= len(d.conns) {
		return nil
	}
	return d.conns[i]
}

func (d *fakeDialer) connCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns)
}

// newTestClient wires a client to fakes with fast timings. The dialer is
// optional; without one the client never connects and handleRaw is driven
// directly.
func newTestClient(t *testing.T, opts Options, dialer *fakeDialer) (*Client, *fakeSource, *recordingView, *fakeClock) {
	t.Helper()

	if opts.Endpoint == "" {
		opts.Endpoint = "ws://relay.test/ws"
	}
	if opts.PublishInterval == 0 {
		opts.PublishInterval = 50 * time.Millisecond
	}
	if opts.ReannounceDelay == 0 {
		opts.ReannounceDelay = 5 * time.Millisecond
	}
	if opts.ReconnectBaseDelay == 0 {
		opts.ReconnectBaseDelay = 2 * time.Millisecond
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = 100 * time.Millisecond
	}
	// Leave sweeping to the tests.
	opts.SweepInterval = 0

	source := &fakeSource{state: &LocalState{Position: wire.Position{Lat: 60.0, Lng: 24.0}}}
	view := &recordingView{}

	client, err := New(opts, source, view, zerolog.Nop())
	if err != nil {
		t.Fatalf("failed to build client: %v", err)
	}
	clock := newFakeClock(time.Unix(1_700_000_000, 0))
	client.now = clock.Now
	if dialer != nil {
		client.dial = dialer.dial
	}
	t.Cleanup(client.Disconnect)
	return client, source, view, clock
}

// waitFor polls until cond holds or the deadline expires.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", msg)
}
