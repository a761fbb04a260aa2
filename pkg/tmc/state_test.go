package tmc_test

import (
	"testing"
	"time"

	"tmcroute/pkg/graph"
	"tmcroute/pkg/tmc"
)

func testGraph() *graph.RoutingData {
	return &graph.RoutingData{
		DenseToOSM: []int64{1, 2, 3, 4},
		Offset:     []uint32{0, 0, 0, 0, 0},
		TMCToEdges: map[uint32][]uint32{
			100: {0, 1},
			101: {2},
			102: {3},
		},
		TMCNext: map[graph.TMCLinkKey]uint32{
			{LocationID: 100, Direction: true}: 101,
			{LocationID: 101, Direction: true}: 102,
		},
	}
}

func TestApplyExpandsChain(t *testing.T) {
	rd := testGraph()
	s := tmc.NewState()
	now := time.Unix(1000, 0)

	s.Apply(tmc.RawEvent{
		LocationID: 100,
		Direction:  true,
		EventCode:  12, // congestion, 0.3
		Extent:     2,
		TTL:        time.Hour,
	}, rd, now)

	s.RLock()
	defer s.RUnlock()
	for _, e := range []uint32{0, 1, 2, 3} {
		if got := s.Snapshot(e); got != 0.3 {
			t.Errorf("Snapshot(%d) = %v, want 0.3", e, got)
		}
	}
}

func TestApplyZeroExtentOnlyOriginLocation(t *testing.T) {
	rd := testGraph()
	s := tmc.NewState()
	now := time.Unix(1000, 0)

	s.Apply(tmc.RawEvent{LocationID: 100, Direction: true, EventCode: 3, Extent: 0, TTL: time.Hour}, rd, now)

	s.RLock()
	defer s.RUnlock()
	if got := s.Snapshot(0); got != 0.15 {
		t.Errorf("Snapshot(0) = %v, want 0.15", got)
	}
	if got := s.Snapshot(3); got != 1.0 {
		t.Errorf("Snapshot(3) = %v, want 1.0 (unaffected)", got)
	}
}

func TestSnapshotDefaultIsOne(t *testing.T) {
	s := tmc.NewState()
	s.RLock()
	defer s.RUnlock()
	if got := s.Snapshot(999); got != 1.0 {
		t.Errorf("Snapshot on empty state = %v, want 1.0", got)
	}
}

func TestExpireDropsStaleEvents(t *testing.T) {
	rd := testGraph()
	s := tmc.NewState()
	base := time.Unix(1000, 0)

	s.Apply(tmc.RawEvent{LocationID: 100, Direction: true, EventCode: 12, Extent: 0, TTL: time.Minute}, rd, base)

	s.Expire(base.Add(2 * time.Minute))

	s.RLock()
	defer s.RUnlock()
	if got := s.Snapshot(0); got != 1.0 {
		t.Errorf("Snapshot(0) after expiry = %v, want 1.0", got)
	}
	if len(s.ActiveEvents()) != 0 {
		t.Errorf("expected no active events after expiry")
	}
}

func TestExpireKeepsFreshEvents(t *testing.T) {
	rd := testGraph()
	s := tmc.NewState()
	base := time.Unix(1000, 0)

	s.Apply(tmc.RawEvent{LocationID: 100, Direction: true, EventCode: 12, Extent: 0, TTL: time.Hour}, rd, base)
	s.Expire(base.Add(time.Minute))

	s.RLock()
	defer s.RUnlock()
	if got := s.Snapshot(0); got != 0.3 {
		t.Errorf("Snapshot(0) = %v, want 0.3 (not yet expired)", got)
	}
}

func TestApplyDistinctEventCodesAtSameLocationCoexist(t *testing.T) {
	rd := testGraph()
	s := tmc.NewState()
	now := time.Unix(1000, 0)

	s.Apply(tmc.RawEvent{LocationID: 100, Direction: true, EventCode: 12, Extent: 0, TTL: time.Hour}, rd, now)
	s.Apply(tmc.RawEvent{LocationID: 100, Direction: true, EventCode: 401, Extent: 0, TTL: time.Hour}, rd, now)

	if len(s.ActiveEvents()) != 2 {
		t.Fatalf("expected both events to coexist, got %d", len(s.ActiveEvents()))
	}

	s.RLock()
	defer s.RUnlock()
	// edge_slowdown reports the worst of the two (401: road closed, 0.02).
	if got := s.Snapshot(0); got != 0.02 {
		t.Errorf("Snapshot(0) = %v, want 0.02 (min of 0.3 and 0.02)", got)
	}
}

func TestActiveEventsIsolatedCopy(t *testing.T) {
	rd := testGraph()
	s := tmc.NewState()
	s.Apply(tmc.RawEvent{LocationID: 100, Direction: true, EventCode: 12, Extent: 0, TTL: time.Hour}, rd, time.Unix(1000, 0))

	events := s.ActiveEvents()
	delete(events, tmc.Key{LocationID: 100, Direction: true, EventCode: 12})

	if len(s.ActiveEvents()) != 1 {
		t.Error("mutating the returned map must not affect internal state")
	}
}
