// Package state holds the local view of peer state: the peer table and the
// decoration store the sync client reconciles inbound events against.
package state

import (
	"sync"
	"time"

	"github.com/SamppaFIN/Klitoritari-sub004/internal/wire"
)

// PeerRecord is the last known state for one remote peer. Exactly one record
// exists per distinct peer id; the local actor is never stored here.
type PeerRecord struct {
	PeerID     string
	Position   *wire.Position
	Profile    wire.Profile
	Steps      int
	LastSeenAt time.Time
}

// PeerTable maps peer ids to their latest record. Staleness eviction uses
// LastSeenAt as a liveness proxy because the relay does not always deliver an
// explicit leave.
type PeerTable struct {
	mu    sync.Mutex
	peers map[string]*PeerRecord
}

func NewPeerTable() *PeerTable {
	return &PeerTable{peers: make(map[string]*PeerRecord)}
}

// Upsert folds one inbound state block into the table and refreshes the
// peer's LastSeenAt. It reports whether the peer was already known, which the
// client uses to demote a repeated join into a plain update.
func (t *PeerTable) Upsert(peerID string, data wire.PlayerData, now time.Time) (PeerRecord, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, existed := t.peers[peerID]
	if !existed {
		rec = &PeerRecord{PeerID: peerID}
		t.peers[peerID] = rec
	}
	if data.Position != nil {
		pos := *data.Position
		rec.Position = &pos
	}
	if data.Profile != nil {
		rec.Profile = *data.Profile
	}
	if data.Steps > 0 {
		rec.Steps = data.Steps
	}
	rec.LastSeenAt = now
	return *rec, existed
}

// Touch refreshes LastSeenAt for a known peer.
func (t *PeerTable) Touch(peerID string, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.peers[peerID]
	if ok {
		rec.LastSeenAt = now
	}
	return ok
}

// Remove deletes a peer and reports whether it was present.
func (t *PeerTable) Remove(peerID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.peers[peerID]
	delete(t.peers, peerID)
	return ok
}

// Get returns a copy of the record for one peer.
func (t *PeerTable) Get(peerID string) (PeerRecord, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.peers[peerID]
	if !ok {
		return PeerRecord{}, false
	}
	return *rec, true
}

// Len reports the number of known peers.
func (t *PeerTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.peers)
}

// SweepStale removes every peer whose LastSeenAt is older than maxAge and
// returns the evicted records, each exactly once.
func (t *PeerTable) SweepStale(now time.Time, maxAge time.Duration) []PeerRecord {
	t.mu.Lock()
	defer t.mu.Unlock()

	var evicted []PeerRecord
	for id, rec := range t.peers {
		if now.Sub(rec.LastSeenAt) > maxAge {
			evicted = append(evicted, *rec)
			delete(t.peers, id)
		}
	}
	return evicted
}

// Clear empties the table and returns the ids that were present.
func (t *PeerTable) Clear() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	ids := make([]string, 0, len(t.peers))
	for id := range t.peers {
		ids = append(ids, id)
	}
	t.peers = make(map[string]*PeerRecord)
	return ids
}

// Snapshot copies every record for diagnostics or rendering.
func (t *PeerTable) Snapshot() []PeerRecord {
	t.mu.Lock()
	defer t.mu.Unlock()

	records := make([]PeerRecord, 0, len(t.peers))
	for _, rec := range t.peers {
		records = append(records, *rec)
	}
	return records
}
