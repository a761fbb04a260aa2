package graph

import (
	"testing"

	"tmcroute/pkg/access"
	osmparser "tmcroute/pkg/osm"

	"github.com/paulmach/osm"
)

func TestUnionFind(t *testing.T) {
	uf := NewUnionFind(5)

	for i := range uint32(5) {
		if uf.Find(i) != i {
			t.Errorf("Find(%d) = %d, want %d", i, uf.Find(i), i)
		}
	}

	uf.Union(0, 1)
	if uf.Find(0) != uf.Find(1) {
		t.Error("0 and 1 should be in same set")
	}

	uf.Union(2, 3)
	if uf.Find(2) != uf.Find(3) {
		t.Error("2 and 3 should be in same set")
	}

	if uf.Find(0) == uf.Find(2) {
		t.Error("0 and 2 should be in different sets")
	}

	uf.Union(1, 3)
	if uf.Find(0) != uf.Find(3) {
		t.Error("0 and 3 should now be in same set")
	}
}

func TestAnalyzeComponentsTwoComponents(t *testing.T) {
	// Component 1: 10 <-> 20 <-> 30 (3 nodes)
	// Component 2: 40 <-> 50 (2 nodes)
	result := &osmparser.ParseResult{
		Edges: []osmparser.RawEdge{
			{FromNodeID: 10, ToNodeID: 20, LengthM: 100, SpeedMPS: 10, Access: access.Car},
			{FromNodeID: 20, ToNodeID: 10, LengthM: 100, SpeedMPS: 10, Access: access.Car},
			{FromNodeID: 20, ToNodeID: 30, LengthM: 200, SpeedMPS: 10, Access: access.Car},
			{FromNodeID: 30, ToNodeID: 20, LengthM: 200, SpeedMPS: 10, Access: access.Car},
			{FromNodeID: 40, ToNodeID: 50, LengthM: 300, SpeedMPS: 10, Access: access.Car},
			{FromNodeID: 50, ToNodeID: 40, LengthM: 300, SpeedMPS: 10, Access: access.Car},
		},
		NodeLat: map[osm.NodeID]float64{10: 1.0, 20: 1.1, 30: 1.2, 40: 2.0, 50: 2.1},
		NodeLon: map[osm.NodeID]float64{10: 103.0, 20: 103.1, 30: 103.2, 40: 104.0, 50: 104.1},
	}

	g := Build(result)
	report := AnalyzeComponents(g)

	if report.NumComponents != 2 {
		t.Errorf("NumComponents = %d, want 2", report.NumComponents)
	}
	if report.LargestSize != 3 {
		t.Errorf("LargestSize = %d, want 3", report.LargestSize)
	}
	if report.TotalNodes != 5 {
		t.Errorf("TotalNodes = %d, want 5", report.TotalNodes)
	}
}

func TestAnalyzeComponentsEmptyGraph(t *testing.T) {
	g := &RoutingData{}
	report := AnalyzeComponents(g)
	if report.NumComponents != 0 || report.TotalNodes != 0 {
		t.Errorf("expected zero-value report for empty graph, got %+v", report)
	}
}
