package api

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"tmcroute/pkg/access"
	"tmcroute/pkg/graph"
	"tmcroute/pkg/grid"
	"tmcroute/pkg/routing"
	"tmcroute/pkg/tmc"

	"github.com/goccy/go-json"
	geojson "github.com/paulmach/go.geojson"
)

// ErrBadRequest is returned by query-parameter parsing helpers when a
// required parameter is missing or unparseable.
var ErrBadRequest = errors.New("api: bad request")

// Handlers holds the HTTP handlers and their dependencies. All fields
// are read-only after construction and safe to share across requests.
type Handlers struct {
	Graph  *graph.RoutingData
	Grid   *grid.Grid
	Engine *routing.Engine
	TMC    *tmc.State
}

// NewHandlers creates handlers wired to the given routing components.
func NewHandlers(rd *graph.RoutingData, g *grid.Grid, engine *routing.Engine, tmcState *tmc.State) *Handlers {
	return &Handlers{Graph: rd, Grid: g, Engine: engine, TMC: tmcState}
}

// HandleHello handles GET /api/hello.
func (h *Handlers) HandleHello(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintf(w, "HI! nodes: %d, edges: %d", h.Graph.NumNodes(), h.Graph.NumEdges())
}

// HandleGraph handles GET /api/graph.
func (h *Handlers) HandleGraph(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintf(w, "nodes: %d, edges: %d", h.Graph.NumNodes(), h.Graph.NumEdges())
}

// HandleTMC handles GET /api/tmc.
func (h *Handlers) HandleTMC(w http.ResponseWriter, r *http.Request) {
	result := TMCResult{Events: []TMCResultEntry{}}

	for _, event := range h.TMC.ActiveEvents() {
		entry := TMCResultEntry{Event: event.Desc}
		for _, edgeIdx := range event.Edges {
			entry.Edges = append(entry.Edges, h.edgeEndpoints(edgeIdx))
		}
		result.Events = append(result.Events, entry)
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *Handlers) edgeEndpoints(edgeIdx uint32) TMCEdgeJSON {
	// edgeIdx's source dense node is the node whose Offset range contains
	// it; Offset is sorted, so a binary search recovers it in O(log N).
	offset := h.Graph.Offset
	sourceNode := sort.Search(len(offset)-1, func(i int) bool {
		return offset[i+1] > edgeIdx
	})

	edge := h.Graph.Edges[edgeIdx]
	sourceOSM := h.Graph.DenseToOSM[sourceNode]
	sourceInfo := h.Graph.OSMToNode[sourceOSM]
	targetOSM := h.Graph.DenseToOSM[edge.Target]
	targetInfo := h.Graph.OSMToNode[targetOSM]

	return TMCEdgeJSON{
		From: [2]float64{sourceInfo.Lat, sourceInfo.Lon},
		To:   [2]float64{targetInfo.Lat, targetInfo.Lon},
	}
}

// HandleRoute handles GET /api/route.
func (h *Handlers) HandleRoute(w http.ResponseWriter, r *http.Request) {
	sourceOSM, targetOSM, vehicle, metric, err := h.resolveQuery(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorJSON{Error: err.Error()})
		return
	}

	start := time.Now()
	route, err := h.Engine.Route(sourceOSM, targetOSM, vehicle, metric)
	duration := time.Since(start)

	if err != nil {
		if errors.Is(err, routing.ErrNoRoute) {
			writeJSON(w, http.StatusNotFound, RouteResult{DurationMS: duration.Milliseconds(), Route: nil})
			return
		}
		writeJSON(w, http.StatusBadRequest, ErrorJSON{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, RouteResult{
		DurationMS: duration.Milliseconds(),
		Route:      toRouteJSON(route),
	})
}

// HandleRouteGeoJSON handles GET /api/route.geojson, an additive debug
// surface that renders the same query's resolved path as a single
// LineString feature.
func (h *Handlers) HandleRouteGeoJSON(w http.ResponseWriter, r *http.Request) {
	sourceOSM, targetOSM, vehicle, metric, err := h.resolveQuery(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorJSON{Error: err.Error()})
		return
	}

	route, err := h.Engine.Route(sourceOSM, targetOSM, vehicle, metric)
	if err != nil {
		if errors.Is(err, routing.ErrNoRoute) {
			http.Error(w, `{"error":"no_route_found"}`, http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusBadRequest, ErrorJSON{Error: err.Error()})
		return
	}

	line := make([][]float64, len(route.Path))
	for i, step := range route.Path {
		line[i] = []float64{step.Lon, step.Lat}
	}

	fc := geojson.NewFeatureCollection()
	feature := geojson.NewLineStringFeature(line)
	feature.SetProperty("distance_m", route.DistanceM)
	feature.SetProperty("time_s", route.TimeS)
	fc.AddFeature(feature)

	raw, err := fc.MarshalJSON()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, ErrorJSON{Error: "encode_failed"})
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.Write(raw)
}

// resolveQuery parses and validates the common source/target/vehicle/metric
// query parameters shared by /api/route and /api/route.geojson.
func (h *Handlers) resolveQuery(r *http.Request) (sourceOSM, targetOSM int64, vehicle access.Flags, metric routing.Metric, err error) {
	q := r.URL.Query()

	sourceLat, sourceLon, err := parsePosition(q.Get("source"))
	if err != nil {
		return 0, 0, 0, 0, fmt.Errorf("%w: source: %v", ErrBadRequest, err)
	}
	targetLat, targetLon, err := parsePosition(q.Get("target"))
	if err != nil {
		return 0, 0, 0, 0, fmt.Errorf("%w: target: %v", ErrBadRequest, err)
	}

	sourceOSM, err = h.Grid.FindClosestNode(sourceLat, sourceLon, h.Graph)
	if err != nil {
		return 0, 0, 0, 0, fmt.Errorf("%w: source: %v", ErrBadRequest, err)
	}
	targetOSM, err = h.Grid.FindClosestNode(targetLat, targetLon, h.Graph)
	if err != nil {
		return 0, 0, 0, 0, fmt.Errorf("%w: target: %v", ErrBadRequest, err)
	}

	switch q.Get("vehicle") {
	case "bike":
		vehicle = access.Bike
	case "walk":
		vehicle = access.Walk
	case "", "car":
		vehicle = access.Car
	default:
		return 0, 0, 0, 0, fmt.Errorf("%w: unknown vehicle %q", ErrBadRequest, q.Get("vehicle"))
	}

	useTMC := q.Get("tmc") == "true"

	switch q.Get("metric") {
	case "distance":
		metric = routing.MetricDistance
	case "", "time":
		if useTMC {
			metric = routing.MetricTimeWithTMC
		} else {
			metric = routing.MetricTime
		}
	default:
		return 0, 0, 0, 0, fmt.Errorf("%w: unknown metric %q", ErrBadRequest, q.Get("metric"))
	}

	return sourceOSM, targetOSM, vehicle, metric, nil
}

// parsePosition parses a "lat,lon" query value.
func parsePosition(raw string) (lat, lon float64, err error) {
	parts := strings.SplitN(raw, ",", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected \"lat,lon\", got %q", raw)
	}
	lat, err = strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, err
	}
	lon, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, err
	}
	return lat, lon, nil
}

func toRouteJSON(route *routing.Route) *RouteJSON {
	path := make([][2]float64, len(route.Path))
	for i, step := range route.Path {
		path[i] = [2]float64{step.Lat, step.Lon}
	}
	return &RouteJSON{Distance: route.DistanceM, Time: route.TimeS, Path: path}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
