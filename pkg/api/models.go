package api

// RouteResult is the JSON response for GET /api/route.
type RouteResult struct {
	DurationMS int64      `json:"duration_ms"`
	Route      *RouteJSON `json:"route"`
}

// RouteJSON is a resolved path, or nil if no route was found.
type RouteJSON struct {
	Distance float64     `json:"distance"`
	Time     float64     `json:"time"`
	Path     [][2]float64 `json:"path"`
}

// TMCResult is the JSON response for GET /api/tmc.
type TMCResult struct {
	Events []TMCResultEntry `json:"events"`
}

// TMCResultEntry is one active TMC event rendered as its affected edges.
type TMCResultEntry struct {
	Event string       `json:"event"`
	Edges []TMCEdgeJSON `json:"edges"`
}

// TMCEdgeJSON is one edge's endpoints, for client-side rendering.
type TMCEdgeJSON struct {
	From [2]float64 `json:"from"`
	To   [2]float64 `json:"to"`
}

// ErrorJSON is the JSON body for a failed request.
type ErrorJSON struct {
	Error string `json:"error"`
}
