package routing

import (
	"errors"
	"math"
	"sync"

	"tmcroute/pkg/access"
	"tmcroute/pkg/graph"
	"tmcroute/pkg/tmc"
)

// ErrUnknownNode is returned when a source or target OSM node id has no
// corresponding dense node in the routing graph.
var ErrUnknownNode = errors.New("routing: unknown node")

// ErrNoRoute is returned when the search exhausts the reachable set
// without finding the target.
var ErrNoRoute = errors.New("routing: no route found")

// Metric selects the edge cost function used by a query.
type Metric int

const (
	MetricDistance Metric = iota
	MetricTime
	MetricTimeWithTMC
)

// vspeed is the per-vehicle-class speed ceiling (m/s), capping whatever
// a way's own speed limit claims.
func vspeed(vehicle access.Flags) float64 {
	switch vehicle {
	case access.Car:
		return 130.0 / 3.6
	case access.Bike:
		return 15.0 / 3.6
	case access.Walk:
		return 5.0 / 3.6
	default:
		return 130.0 / 3.6
	}
}

// Step is one point on a returned path.
type Step struct {
	Lat, Lon float64
}

// Route is the result of a successful query.
type Route struct {
	DistanceM float64
	TimeS     float64
	Path      []Step
}

// Engine answers shortest-path queries against a fixed RoutingData,
// optionally layering in a live TMC overlay. Safe for concurrent use:
// each query gets its own QueryState off a sync.Pool.
type Engine struct {
	graph *graph.RoutingData
	tmc   *tmc.State
	pool  sync.Pool
}

// NewEngine creates a query engine over rd. tmcState may be nil, in
// which case MetricTimeWithTMC behaves identically to MetricTime.
func NewEngine(rd *graph.RoutingData, tmcState *tmc.State) *Engine {
	e := &Engine{graph: rd, tmc: tmcState}
	e.pool.New = func() any { return NewQueryState(rd.NumNodes()) }
	return e
}

// Route finds the cheapest path from sourceOSM to targetOSM for the
// given vehicle class and cost metric.
func (e *Engine) Route(sourceOSM, targetOSM int64, vehicle access.Flags, metric Metric) (*Route, error) {
	sourceInfo, ok := e.graph.OSMToNode[sourceOSM]
	if !ok {
		return nil, ErrUnknownNode
	}
	targetInfo, ok := e.graph.OSMToNode[targetOSM]
	if !ok {
		return nil, ErrUnknownNode
	}
	source, target := sourceInfo.DenseIndex, targetInfo.DenseIndex

	qs := e.pool.Get().(*QueryState)
	defer func() {
		qs.Reset()
		e.pool.Put(qs)
	}()

	vs := vspeed(vehicle)

	if metric == MetricTimeWithTMC && e.tmc != nil {
		e.tmc.RLock()
		defer e.tmc.RUnlock()
	}

	if source == target {
		return &Route{Path: []Step{{Lat: sourceInfo.Lat, Lon: sourceInfo.Lon}}}, nil
	}

	qs.touch(source, 0, noNode, noEdge)
	qs.PQ.Push(source, 0)

	for qs.PQ.Len() > 0 {
		item := qs.PQ.Pop()
		node, cost := item.Node, item.Cost

		if node == target {
			return e.buildRoute(source, target, qs, vs, metric), nil
		}
		if cost > qs.Dist[node] {
			continue
		}

		start, end := e.graph.EdgesFrom(node)
		for edgeIdx := start; edgeIdx < end; edgeIdx++ {
			edge := e.graph.Edges[edgeIdx]
			if vehicle&edge.Access == 0 {
				continue
			}

			newCost := cost + e.edgeCost(edge, edgeIdx, vs, metric)
			if newCost < qs.Dist[edge.Target] {
				qs.touch(edge.Target, newCost, node, edgeIdx)
				qs.PQ.Push(edge.Target, newCost)
			}
		}
	}

	return nil, ErrNoRoute
}

// edgeCost evaluates the configured metric for one edge traversal.
func (e *Engine) edgeCost(edge graph.RoutingEdge, edgeIdx uint32, vs float64, metric Metric) float64 {
	switch metric {
	case MetricDistance:
		return edge.LengthM
	case MetricTimeWithTMC:
		speed := edge.SpeedMPS
		if vs < speed {
			speed = vs
		}
		slowdown := 1.0
		if e.tmc != nil {
			slowdown = e.tmc.Snapshot(edgeIdx)
		}
		return edge.LengthM / math.Max(1.0, speed*slowdown)
	default: // MetricTime
		speed := edge.SpeedMPS
		if vs < speed {
			speed = vs
		}
		return edge.LengthM / speed
	}
}

// buildRoute walks predecessors back from target to source, accumulating
// total distance and time whichever metric drove the search, and reverses
// the result into source-to-target order. Time uses the vehicle-capped
// edge speed; for MetricTimeWithTMC that speed is also scaled by the
// edge's TMC slowdown, floored at 1 m/s.
func (e *Engine) buildRoute(source, target uint32, qs *QueryState, vs float64, metric Metric) *Route {
	route := &Route{}

	node := target
	for node != source {
		edgeIdx := qs.PredEdge[node]
		edge := e.graph.Edges[edgeIdx]

		info := e.graph.OSMToNode[e.graph.DenseToOSM[node]]
		route.Path = append(route.Path, Step{Lat: info.Lat, Lon: info.Lon})

		speed := edge.SpeedMPS
		if vs < speed {
			speed = vs
		}
		if metric == MetricTimeWithTMC && e.tmc != nil {
			speed = math.Max(1.0, speed*e.tmc.Snapshot(edgeIdx))
		}

		route.DistanceM += edge.LengthM
		route.TimeS += edge.LengthM / speed

		node = qs.Pred[node]
	}

	sourceInfo := e.graph.OSMToNode[e.graph.DenseToOSM[source]]
	route.Path = append(route.Path, Step{Lat: sourceInfo.Lat, Lon: sourceInfo.Lon})

	for i, j := 0, len(route.Path)-1; i < j; i, j = i+1, j-1 {
		route.Path[i], route.Path[j] = route.Path[j], route.Path[i]
	}

	return route
}
