package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"tmcroute/pkg/access"
	"tmcroute/pkg/graph"
	"tmcroute/pkg/grid"
	osmparser "tmcroute/pkg/osm"
	"tmcroute/pkg/routing"
	"tmcroute/pkg/tmc"

	"github.com/paulmach/osm"
)

func testHandlers(t *testing.T) *Handlers {
	t.Helper()
	result := &osmparser.ParseResult{
		Edges: []osmparser.RawEdge{
			{FromNodeID: 1, ToNodeID: 2, LengthM: 1000, SpeedMPS: 10, Access: access.Car},
			{FromNodeID: 2, ToNodeID: 1, LengthM: 1000, SpeedMPS: 10, Access: access.Car},
		},
		NodeLat: map[osm.NodeID]float64{1: 1.0, 2: 1.01},
		NodeLon: map[osm.NodeID]float64{1: 103.0, 2: 103.01},
	}
	rd := graph.Build(result)
	g := grid.Build(rd)
	tmcState := tmc.NewState()
	engine := routing.NewEngine(rd, tmcState)
	return NewHandlers(rd, g, engine, tmcState)
}

func TestHandleHello(t *testing.T) {
	h := testHandlers(t)

	req := httptest.NewRequest("GET", "/api/hello", nil)
	w := httptest.NewRecorder()
	h.HandleHello(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if w.Body.String() != "HI! nodes: 2, edges: 2" {
		t.Errorf("body = %q", w.Body.String())
	}
}

func TestHandleGraph(t *testing.T) {
	h := testHandlers(t)

	req := httptest.NewRequest("GET", "/api/graph", nil)
	w := httptest.NewRecorder()
	h.HandleGraph(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestHandleRouteSuccess(t *testing.T) {
	h := testHandlers(t)

	url := fmt.Sprintf("/api/route?source=%s&target=%s&metric=distance&vehicle=car", "1.0,103.0", "1.01,103.01")
	req := httptest.NewRequest("GET", url, nil)
	w := httptest.NewRecorder()
	h.HandleRoute(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200. body: %s", w.Code, w.Body.String())
	}

	var resp RouteResult
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Route == nil {
		t.Fatal("expected a route")
	}
	if resp.Route.Distance != 1000 {
		t.Errorf("Distance = %v, want 1000", resp.Route.Distance)
	}
}

func TestHandleRouteMissingParam(t *testing.T) {
	h := testHandlers(t)

	req := httptest.NewRequest("GET", "/api/route?source=1.0,103.0", nil)
	w := httptest.NewRecorder()
	h.HandleRoute(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestHandleRouteUnparsablePosition(t *testing.T) {
	h := testHandlers(t)

	req := httptest.NewRequest("GET", "/api/route?source=not-a-point&target=1.01,103.01", nil)
	w := httptest.NewRecorder()
	h.HandleRoute(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestHandleRouteUnknownVehicle(t *testing.T) {
	h := testHandlers(t)

	req := httptest.NewRequest("GET", "/api/route?source=1.0,103.0&target=1.01,103.01&vehicle=spaceship", nil)
	w := httptest.NewRecorder()
	h.HandleRoute(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestHandleTMCEmpty(t *testing.T) {
	h := testHandlers(t)

	req := httptest.NewRequest("GET", "/api/tmc", nil)
	w := httptest.NewRecorder()
	h.HandleTMC(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp TMCResult
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Events) != 0 {
		t.Errorf("Events = %v, want empty", resp.Events)
	}
}

func TestHandleRouteGeoJSON(t *testing.T) {
	h := testHandlers(t)

	req := httptest.NewRequest("GET", "/api/route.geojson?source=1.0,103.0&target=1.01,103.01", nil)
	w := httptest.NewRecorder()
	h.HandleRouteGeoJSON(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200. body: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/geo+json" {
		t.Errorf("Content-Type = %q", ct)
	}
}
