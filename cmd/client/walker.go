package main

import (
	"math/rand"
	"sync"
	"time"

	"github.com/SamppaFIN/Klitoritari-sub004/internal/multiplayer"
	"github.com/SamppaFIN/Klitoritari-sub004/internal/state"
	"github.com/SamppaFIN/Klitoritari-sub004/internal/wire"
)

// walker is a simulated PositionSource: a slow random walk around a start
// coordinate with a step counter, standing in for the browser's geolocation
// and step-tracking chain during local testing.
type walker struct {
	mu      sync.Mutex
	pos     wire.Position
	steps   int
	flags   []state.Decoration
	profile wire.Profile
	last    time.Time
	rng     *rand.Rand
}

func newWalker(lat, lng float64, name string, flags []state.Decoration) *walker {
	return &walker{
		pos:     wire.Position{Lat: lat, Lng: lng},
		flags:   flags,
		profile: wire.Profile{Name: name, Symbol: "wanderer"},
		last:    time.Now(),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// CurrentState advances the walk a little each poll. Roughly a meter of
// drift per second, which reads plausibly on a map.
func (w *walker) CurrentState() *multiplayer.LocalState {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(w.last).Seconds()
	w.last = now
	if elapsed > 0 {
		const degPerMeter = 1.0 / 111320.0
		w.pos.Lat += (w.rng.Float64() - 0.5) * 2 * elapsed * degPerMeter
		w.pos.Lng += (w.rng.Float64() - 0.5) * 2 * elapsed * degPerMeter
		w.steps += int(elapsed * 1.5)
	}

	return &multiplayer.LocalState{
		Position:    w.pos,
		Decorations: append([]state.Decoration(nil), w.flags...),
		Steps:       w.steps,
		Profile:     w.profile,
	}
}

// PlantFlag adds an owned decoration at the current position.
func (w *walker) PlantFlag(ownerID string) state.Decoration {
	w.mu.Lock()
	defer w.mu.Unlock()

	d := state.Decoration{
		OwnerID:   ownerID,
		Lat:       w.pos.Lat,
		Lng:       w.pos.Lng,
		Size:      1,
		Symbol:    "banner",
		CreatedAt: time.Now().UnixMilli(),
	}
	w.flags = append(w.flags, d)
	return d
}
