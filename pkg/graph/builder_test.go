package graph

import (
	"testing"

	"tmcroute/pkg/access"
	osmparser "tmcroute/pkg/osm"

	"github.com/paulmach/osm"
)

func TestBuildSimpleGraph(t *testing.T) {
	// Triangle graph: 100 -> 200 -> 300 -> 100.
	result := &osmparser.ParseResult{
		Edges: []osmparser.RawEdge{
			{FromNodeID: 100, ToNodeID: 200, LengthM: 1000, SpeedMPS: 10, Access: access.Car},
			{FromNodeID: 200, ToNodeID: 300, LengthM: 2000, SpeedMPS: 10, Access: access.Car},
			{FromNodeID: 300, ToNodeID: 100, LengthM: 3000, SpeedMPS: 10, Access: access.Car},
		},
		NodeLat: map[osm.NodeID]float64{100: 1.0, 200: 1.1, 300: 1.0},
		NodeLon: map[osm.NodeID]float64{100: 103.0, 200: 103.0, 300: 103.1},
	}

	g := Build(result)

	if g.NumNodes() != 3 {
		t.Fatalf("NumNodes = %d, want 3", g.NumNodes())
	}
	if g.NumEdges() != 3 {
		t.Fatalf("NumEdges = %d, want 3", g.NumEdges())
	}

	for i := uint32(0); i < g.NumNodes(); i++ {
		start, end := g.EdgesFrom(i)
		if end-start != 1 {
			t.Errorf("node %d has %d edges, want 1", i, end-start)
		}
	}

	var totalLength float64
	for _, e := range g.Edges {
		totalLength += e.LengthM
	}
	if totalLength != 6000 {
		t.Errorf("total length = %f, want 6000", totalLength)
	}

	// OSMToNode / DenseToOSM must be inverses of each other.
	for osmID, info := range g.OSMToNode {
		if g.DenseToOSM[info.DenseIndex] != osmID {
			t.Errorf("DenseToOSM[%d] = %d, want %d", info.DenseIndex, g.DenseToOSM[info.DenseIndex], osmID)
		}
	}
}

func TestBuildEmptyGraph(t *testing.T) {
	result := &osmparser.ParseResult{
		Edges:   nil,
		NodeLat: map[osm.NodeID]float64{},
		NodeLon: map[osm.NodeID]float64{},
	}

	g := Build(result)

	if g.NumNodes() != 0 {
		t.Errorf("NumNodes = %d, want 0", g.NumNodes())
	}
	if g.NumEdges() != 0 {
		t.Errorf("NumEdges = %d, want 0", g.NumEdges())
	}
}

func TestBuildBidirectionalEdges(t *testing.T) {
	result := &osmparser.ParseResult{
		Edges: []osmparser.RawEdge{
			{FromNodeID: 1, ToNodeID: 2, LengthM: 500, SpeedMPS: 10, Access: access.Car},
			{FromNodeID: 2, ToNodeID: 1, LengthM: 500, SpeedMPS: 10, Access: access.Car},
		},
		NodeLat: map[osm.NodeID]float64{1: 1.0, 2: 1.1},
		NodeLon: map[osm.NodeID]float64{1: 103.0, 2: 103.1},
	}

	g := Build(result)

	if g.NumNodes() != 2 {
		t.Fatalf("NumNodes = %d, want 2", g.NumNodes())
	}
	if g.NumEdges() != 2 {
		t.Fatalf("NumEdges = %d, want 2", g.NumEdges())
	}

	for i := uint32(0); i < g.NumNodes(); i++ {
		start, end := g.EdgesFrom(i)
		if end-start != 1 {
			t.Errorf("node %d has %d edges, want 1", i, end-start)
		}
	}
}

func TestBuildCSRInvariants(t *testing.T) {
	// Star graph: 10 -> 20, 10 -> 30, 10 -> 40, 20 -> 10.
	result := &osmparser.ParseResult{
		Edges: []osmparser.RawEdge{
			{FromNodeID: 10, ToNodeID: 20, LengthM: 100, SpeedMPS: 10, Access: access.Car},
			{FromNodeID: 10, ToNodeID: 30, LengthM: 200, SpeedMPS: 10, Access: access.Car},
			{FromNodeID: 10, ToNodeID: 40, LengthM: 300, SpeedMPS: 10, Access: access.Car},
			{FromNodeID: 20, ToNodeID: 10, LengthM: 100, SpeedMPS: 10, Access: access.Car},
		},
		NodeLat: map[osm.NodeID]float64{10: 1.0, 20: 1.1, 30: 1.2, 40: 1.3},
		NodeLon: map[osm.NodeID]float64{10: 103.0, 20: 103.1, 30: 103.2, 40: 103.3},
	}

	g := Build(result)

	if g.NumNodes() != 4 {
		t.Fatalf("NumNodes = %d, want 4", g.NumNodes())
	}
	if g.NumEdges() != 4 {
		t.Fatalf("NumEdges = %d, want 4", g.NumEdges())
	}

	for i := uint32(1); i <= g.NumNodes(); i++ {
		if g.Offset[i] < g.Offset[i-1] {
			t.Errorf("Offset[%d]=%d < Offset[%d]=%d — not monotonic", i, g.Offset[i], i-1, g.Offset[i-1])
		}
	}

	if g.Offset[g.NumNodes()] != g.NumEdges() {
		t.Errorf("Offset[%d]=%d != NumEdges=%d", g.NumNodes(), g.Offset[g.NumNodes()], g.NumEdges())
	}

	for i, e := range g.Edges {
		if e.Target >= g.NumNodes() {
			t.Errorf("Edges[%d].Target=%d >= NumNodes=%d", i, e.Target, g.NumNodes())
		}
	}
}

// TestDummyGraphCSROffsets pins the exact CSR offsets for the spec's
// dummy fixture graph (nodes 5000..5004, all at (0,0)).
func TestDummyGraphCSROffsets(t *testing.T) {
	result := &osmparser.ParseResult{
		Edges: []osmparser.RawEdge{
			{FromNodeID: 5000, ToNodeID: 5001, LengthM: 1, SpeedMPS: 13.89, Access: access.Car},
			{FromNodeID: 5000, ToNodeID: 5002, LengthM: 10, SpeedMPS: 13.89, Access: access.Car},
			{FromNodeID: 5002, ToNodeID: 5001, LengthM: 100, SpeedMPS: 13.89, Access: access.Car},
			{FromNodeID: 5002, ToNodeID: 5003, LengthM: 1000, SpeedMPS: 13.89, Access: access.Car},
			{FromNodeID: 5003, ToNodeID: 5000, LengthM: 10000, SpeedMPS: 13.89, Access: access.Car},
			{FromNodeID: 5003, ToNodeID: 5004, LengthM: 100000, SpeedMPS: 13.89, Access: access.Car},
		},
		NodeLat: map[osm.NodeID]float64{5000: 0, 5001: 0, 5002: 0, 5003: 0, 5004: 0},
		NodeLon: map[osm.NodeID]float64{5000: 0, 5001: 0, 5002: 0, 5003: 0, 5004: 0},
	}

	g := Build(result)

	if g.NumNodes() != 5 {
		t.Fatalf("NumNodes = %d, want 5", g.NumNodes())
	}

	want := []uint32{0, 2, 2, 4, 6, 6}
	if len(g.Offset) != len(want) {
		t.Fatalf("Offset length = %d, want %d", len(g.Offset), len(want))
	}
	for i, w := range want {
		if g.Offset[i] != w {
			t.Errorf("Offset[%d] = %d, want %d", i, g.Offset[i], w)
		}
	}

	// Node 5001 (dense index 1) has no outgoing edges.
	denseOf := func(osmID int64) uint32 { return g.OSMToNode[osmID].DenseIndex }
	n1 := denseOf(5001)
	start, end := g.EdgesFrom(n1)
	if start != end {
		t.Errorf("node 5001 should have no outgoing edges, got %d", end-start)
	}
}
