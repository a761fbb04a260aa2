// Package osm streams an OSM PBF extract into routable edges, in three
// passes: classify ways, materialize the nodes they reference, then emit
// edges for consecutive node pairs.
package osm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"strconv"

	"tmcroute/pkg/access"
	"tmcroute/pkg/geo"

	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
)

// ErrIngest wraps any failure to read or decode the PBF stream.
var ErrIngest = errors.New("osm: ingest failed")

// tmcLocationTag names a TMC location point, the way a node carrying
// "highway=traffic_signals" names a signal. Not a tagging scheme that
// ships in stock OSM extracts; invented so a PBF can round-trip through
// this parser with TMC topology attached, grounded in the original
// implementation's own tsm.rs reconnaissance scan for "tmc"/"TMC" tags
// on nodes and ways.
const tmcLocationTag = "tmc:lcd"

// RawEdge is a directed edge parsed from OSM data.
type RawEdge struct {
	FromNodeID osm.NodeID
	ToNodeID   osm.NodeID
	LengthM    float64
	SpeedMPS   float64
	Access     access.Flags
}

// TMCLink is a directed link between two TMC locations, used to expand
// an event's extent into the chain of locations it covers.
type TMCLink struct {
	LocationID uint32
	Direction  bool
}

// ParseResult holds the output of parsing an OSM PBF file.
type ParseResult struct {
	Edges   []RawEdge
	NodeLat map[osm.NodeID]float64
	NodeLon map[osm.NodeID]float64

	// TMCToEdges maps a TMC location code to the parse-order indices
	// into Edges that it covers. graph.Build remaps these to final CSR
	// edge indices once edges are sorted into their CSR order.
	TMCToEdges map[uint32][]int
	// TMCNext maps a directed TMC location link to the next location
	// in the chain, for event extent expansion.
	TMCNext map[TMCLink]uint32
}

// tmcTaggedNode is one tmc:lcd-tagged node encountered while walking a
// way's node sequence, at its position within that sequence.
type tmcTaggedNode struct {
	idx int
	loc uint32
}

// wayInfo holds parsed way data collected during Pass 1.
type wayInfo struct {
	NodeIDs  []osm.NodeID
	Forward  bool
	Backward bool
	Access   access.Flags
	SpeedMPS float64
}

// BBox defines a geographic bounding box for filtering. If non-zero, only
// edges with both endpoints inside the box are kept.
type BBox struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
}

// IsZero returns true if the bbox is unset.
func (b BBox) IsZero() bool {
	return b.MinLat == 0 && b.MaxLat == 0 && b.MinLng == 0 && b.MaxLng == 0
}

// Contains returns true if the point is inside the bounding box.
func (b BBox) Contains(lat, lng float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lng >= b.MinLng && lng <= b.MaxLng
}

// ParseOptions configures the OSM parser.
type ParseOptions struct {
	BBox BBox // if non-zero, filter edges to this bounding box
}

// Parse reads an OSM PBF file and returns directed edges, gated by vehicle
// access and split by travel direction. The reader is consumed twice
// (rewound for the second pass), so it must implement io.ReadSeeker.
func Parse(ctx context.Context, rs io.ReadSeeker, opts ...ParseOptions) (*ParseResult, error) {
	var opt ParseOptions
	if len(opts) > 0 {
		opt = opts[0]
	}
	useBBox := !opt.BBox.IsZero()

	// Pass 1: classify ways, collect the node ids they reference.
	referencedNodes := make(map[osm.NodeID]struct{})
	var ways []wayInfo

	scanner := osmpbf.New(ctx, rs, 1)
	scanner.SkipNodes = true
	scanner.SkipRelations = true

	for scanner.Scan() {
		w, ok := scanner.Object().(*osm.Way)
		if !ok {
			continue
		}
		if len(w.Nodes) < 2 {
			continue
		}

		flags, speedMPS, fwd, bwd, ok := access.Classify(w.Tags)
		if !ok || (!fwd && !bwd) {
			continue
		}

		nodeIDs := make([]osm.NodeID, len(w.Nodes))
		for i, wn := range w.Nodes {
			nodeIDs[i] = wn.ID
			referencedNodes[wn.ID] = struct{}{}
		}

		ways = append(ways, wayInfo{
			NodeIDs:  nodeIDs,
			Forward:  fwd,
			Backward: bwd,
			Access:   flags,
			SpeedMPS: speedMPS,
		})
	}
	if err := scanner.Err(); err != nil {
		scanner.Close()
		return nil, fmt.Errorf("%w: pass 1 (ways): %v", ErrIngest, err)
	}
	scanner.Close()

	log.Printf("osm: pass 1 complete: %d ways, %d referenced nodes", len(ways), len(referencedNodes))

	// Pass 2: materialize coordinates for the nodes ways actually need.
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("%w: seek for pass 2: %v", ErrIngest, err)
	}

	nodeLat := make(map[osm.NodeID]float64, len(referencedNodes))
	nodeLon := make(map[osm.NodeID]float64, len(referencedNodes))
	tmcLocations := make(map[osm.NodeID]uint32)

	scanner = osmpbf.New(ctx, rs, 1)
	scanner.SkipWays = true
	scanner.SkipRelations = true

	for scanner.Scan() {
		n, ok := scanner.Object().(*osm.Node)
		if !ok {
			continue
		}
		if _, needed := referencedNodes[n.ID]; !needed {
			continue
		}
		nodeLat[n.ID] = n.Lat
		nodeLon[n.ID] = n.Lon
		if v := n.Tags.Find(tmcLocationTag); v != "" {
			if loc, err := strconv.ParseUint(v, 10, 32); err == nil {
				tmcLocations[n.ID] = uint32(loc)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		scanner.Close()
		return nil, fmt.Errorf("%w: pass 2 (nodes): %v", ErrIngest, err)
	}
	scanner.Close()

	log.Printf("osm: pass 2 complete: %d node coordinates collected, %d TMC locations", len(nodeLat), len(tmcLocations))

	// Pass 3: materialize edges for consecutive node pairs. Positions are
	// already resident from pass 2, so this doesn't need a third physical
	// scan of the PBF stream. Alongside each edge, track the TMC topology:
	// a way's tmc:lcd-tagged nodes, in node order, are consecutive TMC
	// locations, and the edges between two consecutive tagged nodes are
	// the segment that location covers in that direction of travel.
	var edges []RawEdge
	var skippedEdges, bboxFiltered int
	tmcToEdges := make(map[uint32][]int)
	tmcNext := make(map[TMCLink]uint32)

	for _, w := range ways {
		forwardIdx := make([]int, len(w.NodeIDs)-1)
		backwardIdx := make([]int, len(w.NodeIDs)-1)
		for i := range forwardIdx {
			forwardIdx[i], backwardIdx[i] = -1, -1
		}

		var tagged []tmcTaggedNode
		for i, nid := range w.NodeIDs {
			if loc, ok := tmcLocations[nid]; ok {
				tagged = append(tagged, tmcTaggedNode{idx: i, loc: loc})
			}
		}

		for i := 0; i < len(w.NodeIDs)-1; i++ {
			fromID, toID := w.NodeIDs[i], w.NodeIDs[i+1]

			fromLat, fromOk := nodeLat[fromID]
			fromLon := nodeLon[fromID]
			toLat, toOk := nodeLat[toID]
			toLon := nodeLon[toID]

			if !fromOk || !toOk {
				skippedEdges++
				continue
			}

			if useBBox && (!opt.BBox.Contains(fromLat, fromLon) || !opt.BBox.Contains(toLat, toLon)) {
				bboxFiltered++
				continue
			}

			lengthM := geo.Haversine(fromLat, fromLon, toLat, toLon)
			if lengthM == 0 {
				lengthM = math.SmallestNonzeroFloat64
			}

			if w.Forward {
				edges = append(edges, RawEdge{
					FromNodeID: fromID, ToNodeID: toID,
					LengthM: lengthM, SpeedMPS: w.SpeedMPS, Access: w.Access,
				})
				forwardIdx[i] = len(edges) - 1
			}
			if w.Backward {
				edges = append(edges, RawEdge{
					FromNodeID: toID, ToNodeID: fromID,
					LengthM: lengthM, SpeedMPS: w.SpeedMPS, Access: w.Access,
				})
				backwardIdx[i] = len(edges) - 1
			}
		}

		extendTMCTopology(tagged, forwardIdx, backwardIdx, w.Forward, w.Backward, tmcToEdges, tmcNext)
	}

	if skippedEdges > 0 {
		log.Printf("osm: skipped %d edges with missing node coordinates", skippedEdges)
	}
	if bboxFiltered > 0 {
		log.Printf("osm: filtered %d edges outside bounding box", bboxFiltered)
	}
	log.Printf("osm: built %d directed edges, %d TMC locations covering edges", len(edges), len(tmcToEdges))

	return &ParseResult{
		Edges:      edges,
		NodeLat:    nodeLat,
		NodeLon:    nodeLon,
		TMCToEdges: tmcToEdges,
		TMCNext:    tmcNext,
	}, nil
}

// extendTMCTopology folds one way's tmc:lcd-tagged nodes into the
// accumulated topology maps. tagged is that way's tmc-tagged nodes in
// node-sequence order; forwardIdx/backwardIdx give the parse-order edge
// index for each node-pair position i (NodeIDs[i] -> NodeIDs[i+1] and
// its reverse), or -1 where that edge was skipped or filtered out.
func extendTMCTopology(tagged []tmcTaggedNode, forwardIdx, backwardIdx []int, forward, backward bool, tmcToEdges map[uint32][]int, tmcNext map[TMCLink]uint32) {
	if forward {
		for k := 0; k < len(tagged)-1; k++ {
			a, b := tagged[k], tagged[k+1]
			tmcNext[TMCLink{LocationID: a.loc, Direction: true}] = b.loc
			for i := a.idx; i < b.idx; i++ {
				if ei := forwardIdx[i]; ei >= 0 {
					tmcToEdges[a.loc] = append(tmcToEdges[a.loc], ei)
				}
			}
		}
	}
	if backward {
		for k := len(tagged) - 1; k > 0; k-- {
			a, b := tagged[k], tagged[k-1]
			tmcNext[TMCLink{LocationID: a.loc, Direction: false}] = b.loc
			for i := a.idx - 1; i >= b.idx; i-- {
				if ei := backwardIdx[i]; ei >= 0 {
					tmcToEdges[a.loc] = append(tmcToEdges[a.loc], ei)
				}
			}
		}
	}
}
