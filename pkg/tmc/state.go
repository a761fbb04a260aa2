// Package tmc holds the live, mutable TMC traffic overlay: a set of
// active slowdown events keyed by TMC location, expanded to the
// individual graph edges they cover via the static topology baked into
// graph.RoutingData at build time.
package tmc

import (
	"sync"
	"time"

	"tmcroute/pkg/graph"
)

// Key identifies one active TMC event by its originating location,
// direction of travel, and ALERT-C event code, so two distinct events
// (e.g. an accident and separate roadworks) at the same location and
// direction can coexist instead of overwriting one another.
type Key struct {
	LocationID uint32
	Direction  bool
	EventCode  uint32
}

// RawEvent is a decoded RDS-TMC message, as handed off by pkg/tmcingest.
// Slowdown and description are not carried on the wire; they're derived
// from EventCode via lookupSlowdown/lookupDescription.
type RawEvent struct {
	LocationID uint32
	Direction  bool
	EventCode  uint32
	Extent     uint8 // number of additional linear locations affected
	TTL        time.Duration
}

// Event is one active overlay entry, expanded to the edges it covers.
type Event struct {
	Desc     string
	Slowdown float64
	Edges    []uint32
	Expiry   time.Time
}

// State is the live TMC overlay. Safe for concurrent use: routing
// queries take a read lock for the lifetime of the search so the
// overlay a query sees is consistent from start to finish; ingest
// takes a write lock only to apply or expire events.
type State struct {
	mu           sync.RWMutex
	active       map[Key]Event
	edgeSlowdown map[uint32]float64
}

// NewState creates an empty overlay.
func NewState() *State {
	return &State{
		active:       make(map[Key]Event),
		edgeSlowdown: make(map[uint32]float64),
	}
}

// RLock/RUnlock expose the overlay's read lock directly so a routing
// query can hold it for the full search, guaranteeing every Snapshot
// call within that query sees the same overlay state.
func (s *State) RLock()   { s.mu.RLock() }
func (s *State) RUnlock() { s.mu.RUnlock() }

// Snapshot returns the slowdown multiplier in effect for edgeIndex
// (1.0 if unaffected). Must be called with RLock held.
func (s *State) Snapshot(edgeIndex uint32) float64 {
	if slowdown, ok := s.edgeSlowdown[edgeIndex]; ok {
		return slowdown
	}
	return 1.0
}

// ActiveEvents returns a copy of all currently active events, keyed by
// originating location, direction and event code, for the /api/tmc
// surface.
func (s *State) ActiveEvents() map[Key]Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[Key]Event, len(s.active))
	for k, v := range s.active {
		out[k] = v
	}
	return out
}

// Apply expands raw into the set of edges its linear-location chain
// covers (walking graph.RoutingData.TMCNext up to Extent hops, mirroring
// build_tmc_range_set) and installs it as an active event, overwriting
// any existing event for the same key. An event whose chain covers no
// edges is discarded.
func (s *State) Apply(raw RawEvent, rd *graph.RoutingData, now time.Time) {
	locations := rangeSet(raw.LocationID, raw.Direction, raw.Extent, rd)

	var edges []uint32
	for _, loc := range locations {
		edges = append(edges, rd.TMCToEdges[loc]...)
	}
	if len(edges) == 0 {
		return
	}

	event := Event{
		Desc:     lookupDescription(raw.EventCode),
		Slowdown: lookupSlowdown(raw.EventCode),
		Edges:    edges,
		Expiry:   now.Add(raw.TTL),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.active[Key{LocationID: raw.LocationID, Direction: raw.Direction, EventCode: raw.EventCode}] = event
	s.recomputeEdgeSlowdownLocked()
}

// recomputeEdgeSlowdownLocked rebuilds edgeSlowdown as the min slowdown
// over every active event touching each edge, so an edge covered by
// several overlapping TMC locations reports its worst congestion.
// Must be called with mu held.
func (s *State) recomputeEdgeSlowdownLocked() {
	s.edgeSlowdown = make(map[uint32]float64, len(s.edgeSlowdown))
	for _, event := range s.active {
		for _, e := range event.Edges {
			if existing, ok := s.edgeSlowdown[e]; !ok || event.Slowdown < existing {
				s.edgeSlowdown[e] = event.Slowdown
			}
		}
	}
}

// rangeSet walks the TMC linear-location chain starting at id in the
// given direction for up to dist additional hops, collecting every
// location id visited. Grounded on build_tmc_range_set: dist=0 returns
// just the origin, and the walk stops early if the chain runs out.
func rangeSet(id uint32, dir bool, dist uint8, rd *graph.RoutingData) []uint32 {
	result := []uint32{id}
	if dist == 0 {
		return result
	}

	curr := id
	remaining := dist
	for {
		next, ok := rd.TMCNext[graph.TMCLinkKey{LocationID: curr, Direction: dir}]
		if !ok {
			break
		}
		result = append(result, next)
		curr = next
		remaining--
		if remaining == 0 {
			break
		}
	}
	return result
}

// Expire drops every active event whose Expiry has passed, and rebuilds
// edgeSlowdown from the events that remain. TTL enforcement has no
// analogue upstream — RDS-TMC messages there were applied and left
// active forever — but a live overlay that never clears stale slowdowns
// would eventually just describe permanently closed roads.
func (s *State) Expire(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, event := range s.active {
		if !now.Before(event.Expiry) {
			delete(s.active, key)
		}
	}

	s.recomputeEdgeSlowdownLocked()
}
