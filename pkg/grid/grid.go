// Package grid provides a uniform lat/lon spatial index for nearest-node
// lookups, built once over a graph.RoutingData at preprocessing time.
package grid

import (
	"errors"
	"math"

	"tmcroute/pkg/geo"
	"tmcroute/pkg/graph"
)

// ErrNoNodes is returned when the grid (or the searched neighborhood of
// bins) contains no candidate node at all.
var ErrNoNodes = errors.New("grid: no candidate nodes")

// BBox is a padded geographic bounding box used to bin nodes.
type BBox struct {
	MinLat, MinLon, MaxLat, MaxLon float64
}

// targetNodesPerBin is the occupancy the bin count is sized for.
const targetNodesPerBin = 1024

// padding widens the bounding box slightly so points exactly on an edge
// node's coordinates still fall strictly inside a bin.
const padding = 0.001

// Grid buckets dense node indices into a lat/lon grid for fast
// approximate-nearest-node queries.
type Grid struct {
	bbox       BBox
	binCountLat int
	binCountLon int
	bins       [][]uint32 // dense node indices
}

// Build indexes every node of rd into a grid sized for roughly
// targetNodesPerBin occupancy per bin, apportioned between lat/lon bins
// by the bbox's aspect ratio.
func Build(rd *graph.RoutingData) *Grid {
	n := int(rd.NumNodes())
	if n == 0 {
		return &Grid{bbox: BBox{}, binCountLat: 1, binCountLon: 1, bins: make([][]uint32, 1)}
	}

	bbox := calcBoundingBox(rd)
	bbox.MinLat -= padding
	bbox.MinLon -= padding
	bbox.MaxLat += padding
	bbox.MaxLon += padding

	binCount := n / targetNodesPerBin

	latSpan := bbox.MaxLat - bbox.MinLat
	lonSpan := bbox.MaxLon - bbox.MinLon

	binCountLat := 1
	binCountLon := 1
	if binCount > 0 && latSpan > 0 && lonSpan > 0 {
		binCountLat = max(1, int(math.Sqrt(float64(binCount)*latSpan/lonSpan)))
		binCountLon = max(1, int(math.Sqrt(float64(binCount)*lonSpan/latSpan)))
	}

	g := &Grid{
		bbox:        bbox,
		binCountLat: binCountLat,
		binCountLon: binCountLon,
		bins:        make([][]uint32, binCountLat*binCountLon),
	}

	for i := uint32(0); i < rd.NumNodes(); i++ {
		osmID := rd.DenseToOSM[i]
		info := rd.OSMToNode[osmID]
		latBin, lonBin := g.binIndex(info.Lat, info.Lon)
		pos := g.binPosition(latBin, lonBin)
		g.bins[pos] = append(g.bins[pos], i)
	}

	return g
}

func calcBoundingBox(rd *graph.RoutingData) BBox {
	bbox := BBox{MinLat: 1e18, MinLon: 1e18, MaxLat: -1e18, MaxLon: -1e18}
	for i := uint32(0); i < rd.NumNodes(); i++ {
		info := rd.OSMToNode[rd.DenseToOSM[i]]
		if info.Lat > bbox.MaxLat {
			bbox.MaxLat = info.Lat
		}
		if info.Lon > bbox.MaxLon {
			bbox.MaxLon = info.Lon
		}
		if info.Lat < bbox.MinLat {
			bbox.MinLat = info.Lat
		}
		if info.Lon < bbox.MinLon {
			bbox.MinLon = info.Lon
		}
	}
	return bbox
}

// binPosition flattens a (lat,lon) bin coordinate into a bins index.
func (g *Grid) binPosition(latBin, lonBin int) int {
	return latBin*g.binCountLon + lonBin
}

// binIndex locates the bin containing (lat,lon), clamped to the grid's
// bounds. The longitude bin denominator is the longitude span — the
// original implementation this is grounded on divided by (max_lat -
// min_lon), a copy-paste typo that silently skewed every longitude
// lookup; fixed here.
func (g *Grid) binIndex(lat, lon float64) (latBin, lonBin int) {
	latFrac := (lat - g.bbox.MinLat) * float64(g.binCountLat) / (g.bbox.MaxLat - g.bbox.MinLat)
	lonFrac := (lon - g.bbox.MinLon) * float64(g.binCountLon) / (g.bbox.MaxLon - g.bbox.MinLon)

	latBin = clamp(int(latFrac), 0, g.binCountLat-1)
	lonBin = clamp(int(lonFrac), 0, g.binCountLon-1)
	return latBin, lonBin
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// FindClosestNode returns the OSM node id of the node nearest (lat,lon),
// searching the 3x3 block of bins centered on the query's own bin and
// breaking ties by the smaller OSM id for determinism.
func (g *Grid) FindClosestNode(lat, lon float64, rd *graph.RoutingData) (int64, error) {
	latBin, lonBin := g.binIndex(lat, lon)

	startLat := max(0, latBin-1)
	startLon := max(0, lonBin-1)
	endLat := min(g.binCountLat, latBin+2)
	endLon := min(g.binCountLon, lonBin+2)

	minDist := -1.0
	var minOSM int64
	found := false

	for bl := startLat; bl < endLat; bl++ {
		for bo := startLon; bo < endLon; bo++ {
			pos := g.binPosition(bl, bo)
			for _, denseIdx := range g.bins[pos] {
				osmID := rd.DenseToOSM[denseIdx]
				info := rd.OSMToNode[osmID]
				d := geo.Haversine(lat, lon, info.Lat, info.Lon)
				if !found || d < minDist || (d == minDist && osmID < minOSM) {
					minDist = d
					minOSM = osmID
					found = true
				}
			}
		}
	}

	if !found {
		return 0, ErrNoNodes
	}
	return minOSM, nil
}
