package graph

import (
	"sort"

	osmparser "tmcroute/pkg/osm"

	"github.com/paulmach/osm"
)

// Build creates a CSR RoutingData from parsed OSM edges, remapping the
// parser's parse-order TMC topology (pkg/osm.ParseResult.TMCToEdges) onto
// the final CSR edge indices assigned below.
func Build(result *osmparser.ParseResult) *RoutingData {
	edges := result.Edges
	if len(edges) == 0 {
		return &RoutingData{
			OSMToNode:  map[int64]NodeInfo{},
			TMCToEdges: map[uint32][]uint32{},
			TMCNext:    map[TMCLinkKey]uint32{},
		}
	}

	// Step 1: collect unique node ids, sorted ascending, as the dense order.
	nodeSet := make(map[osm.NodeID]struct{})
	for i := range edges {
		nodeSet[edges[i].FromNodeID] = struct{}{}
		nodeSet[edges[i].ToNodeID] = struct{}{}
	}

	denseToOSM := make([]int64, 0, len(nodeSet))
	for id := range nodeSet {
		denseToOSM = append(denseToOSM, int64(id))
	}
	sort.Slice(denseToOSM, func(i, j int) bool { return denseToOSM[i] < denseToOSM[j] })

	denseIndex := make(map[osm.NodeID]uint32, len(denseToOSM))
	for i, id := range denseToOSM {
		denseIndex[osm.NodeID(id)] = uint32(i)
	}
	numNodes := uint32(len(denseToOSM))

	// Step 2: remap edges to dense indices.
	type compactEdge struct {
		from, to uint32
		e        RoutingEdge
		orig     int // index into result.Edges, before the stable sort below
	}
	compact := make([]compactEdge, len(edges))
	for i, e := range edges {
		compact[i] = compactEdge{
			from: denseIndex[e.FromNodeID],
			to:   denseIndex[e.ToNodeID],
			e: RoutingEdge{
				Target:   denseIndex[e.ToNodeID],
				LengthM:  e.LengthM,
				SpeedMPS: e.SpeedMPS,
				Access:   e.Access,
			},
			orig: i,
		}
	}

	// Step 3: stable-sort by source, ties by target, for determinism.
	sort.SliceStable(compact, func(i, j int) bool {
		if compact[i].from != compact[j].from {
			return compact[i].from < compact[j].from
		}
		return compact[i].to < compact[j].to
	})

	// origToFinal[i] is the CSR edge index the i'th parse-order edge
	// landed at after the sort above, used to remap the parser's TMC
	// topology (keyed by parse-order index) onto final edge indices.
	origToFinal := make([]uint32, len(compact))
	for finalIdx, c := range compact {
		origToFinal[c.orig] = uint32(finalIdx)
	}

	// Step 4: build CSR via counting + prefix sum.
	numEdges := uint32(len(compact))
	offset := make([]uint32, numNodes+1)
	flatEdges := make([]RoutingEdge, numEdges)

	for _, c := range compact {
		offset[c.from+1]++
	}
	for i := uint32(1); i <= numNodes; i++ {
		offset[i] += offset[i-1]
	}
	for i, c := range compact {
		flatEdges[i] = c.e
	}

	// Step 5: build the reverse lookup with positions.
	osmToNode := make(map[int64]NodeInfo, numNodes)
	for idx, id := range denseToOSM {
		nid := osm.NodeID(id)
		osmToNode[id] = NodeInfo{
			Lat:        result.NodeLat[nid],
			Lon:        result.NodeLon[nid],
			DenseIndex: uint32(idx),
		}
	}

	// Step 6: remap the parser's parse-order TMC topology onto final CSR
	// edge indices.
	tmcToEdges := make(map[uint32][]uint32, len(result.TMCToEdges))
	for loc, origIdxs := range result.TMCToEdges {
		finalIdxs := make([]uint32, len(origIdxs))
		for i, oi := range origIdxs {
			finalIdxs[i] = origToFinal[oi]
		}
		tmcToEdges[loc] = finalIdxs
	}
	tmcNext := make(map[TMCLinkKey]uint32, len(result.TMCNext))
	for link, next := range result.TMCNext {
		tmcNext[TMCLinkKey{LocationID: link.LocationID, Direction: link.Direction}] = next
	}

	return &RoutingData{
		DenseToOSM: denseToOSM,
		OSMToNode:  osmToNode,
		Edges:      flatEdges,
		Offset:     offset,
		TMCToEdges: tmcToEdges,
		TMCNext:    tmcNext,
	}
}
