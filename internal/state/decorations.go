package state

import (
	"fmt"
	"sync"

	"github.com/SamppaFIN/Klitoritari-sub004/internal/wire"
)

// Decoration is a persistent map annotation placed by a peer. Identity is
// derived from owner, coordinates and creation time rather than taken from a
// server-assigned id, because the wire protocol does not guarantee unique
// ids: replaying the same broadcast must not mint a second decoration.
type Decoration struct {
	OwnerID   string  `json:"ownerId"`
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Size      float64 `json:"size,omitempty"`
	Rotation  float64 `json:"rotation,omitempty"`
	Symbol    string  `json:"symbol,omitempty"`
	CreatedAt int64   `json:"createdAt"`
}

// Key is the derived identity. Six decimal places keeps coordinates stable
// across a marshal round trip without collapsing nearby placements (~0.1m).
func (d Decoration) Key() string {
	return fmt.Sprintf("%s|%.6f|%.6f|%d", d.OwnerID, d.Lat, d.Lng, d.CreatedAt)
}

// WireData converts a decoration to its wire representation.
func (d Decoration) WireData() wire.FlagData {
	return wire.FlagData{
		Lat:       d.Lat,
		Lng:       d.Lng,
		Size:      d.Size,
		Rotation:  d.Rotation,
		Symbol:    d.Symbol,
		OwnerID:   d.OwnerID,
		Timestamp: d.CreatedAt,
	}
}

// DecorationFromWire builds a decoration from a flag broadcast.
func DecorationFromWire(ownerID string, data wire.FlagData) Decoration {
	if data.OwnerID != "" {
		ownerID = data.OwnerID
	}
	return Decoration{
		OwnerID:   ownerID,
		Lat:       data.Lat,
		Lng:       data.Lng,
		Size:      data.Size,
		Rotation:  data.Rotation,
		Symbol:    data.Symbol,
		CreatedAt: data.Timestamp,
	}
}

// DecorationStore keeps every decoration learned from the relay, keyed by
// derived identity so re-broadcasts upsert instead of duplicating.
type DecorationStore struct {
	mu          sync.Mutex
	decorations map[string]Decoration
}

func NewDecorationStore() *DecorationStore {
	return &DecorationStore{decorations: make(map[string]Decoration)}
}

// Upsert stores a decoration and reports whether the stored value changed.
// Re-delivering an identical broadcast is a no-op, which lets the caller
// skip redundant render calls.
func (s *DecorationStore) Upsert(d Decoration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := d.Key()
	if existing, ok := s.decorations[key]; ok && existing == d {
		return false
	}
	s.decorations[key] = d
	return true
}

// OwnedBy returns every stored decoration belonging to one owner.
func (s *DecorationStore) OwnedBy(ownerID string) []Decoration {
	s.mu.Lock()
	defer s.mu.Unlock()

	var owned []Decoration
	for _, d := range s.decorations {
		if d.OwnerID == ownerID {
			owned = append(owned, d)
		}
	}
	return owned
}

// All copies every stored decoration.
func (s *DecorationStore) All() []Decoration {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := make([]Decoration, 0, len(s.decorations))
	for _, d := range s.decorations {
		all = append(all, d)
	}
	return all
}

// Len reports the number of stored decorations.
func (s *DecorationStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.decorations)
}

// Clear empties the store.
func (s *DecorationStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decorations = make(map[string]Decoration)
}
