// Package routing implements a single-direction Dijkstra search over a
// graph.RoutingData, with a pluggable cost metric and a live TMC overlay.
package routing

import "math"

const noNode = math.MaxUint32
const noEdge = math.MaxUint32

// MinHeap is a concrete-typed min-heap for the Dijkstra priority queue.
// Avoids interface boxing overhead of container/heap. Costs are float64
// (meters or seconds), unlike a millimeter-quantized CH overlay's.
type MinHeap struct {
	items []PQItem
}

// PQItem is a priority queue entry. Ties in Cost break on the smaller
// Node index, which keeps search order (and therefore the returned path
// on a tie) deterministic.
type PQItem struct {
	Node uint32
	Cost float64
}

func less(a, b PQItem) bool {
	if a.Cost != b.Cost {
		return a.Cost < b.Cost
	}
	return a.Node < b.Node
}

func (h *MinHeap) Len() int { return len(h.items) }

func (h *MinHeap) Push(node uint32, cost float64) {
	h.items = append(h.items, PQItem{node, cost})
	h.siftUp(len(h.items) - 1)
}

func (h *MinHeap) Pop() PQItem {
	n := len(h.items)
	item := h.items[0]
	h.items[0] = h.items[n-1]
	h.items = h.items[:n-1]
	if len(h.items) > 0 {
		h.siftDown(0)
	}
	return item
}

func (h *MinHeap) PeekCost() float64 {
	if len(h.items) == 0 {
		return math.Inf(1)
	}
	return h.items[0].Cost
}

func (h *MinHeap) Reset() {
	h.items = h.items[:0]
}

func (h *MinHeap) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if !less(h.items[i], h.items[parent]) {
			break
		}
		h.items[i], h.items[parent] = h.items[parent], h.items[i]
		i = parent
	}
}

func (h *MinHeap) siftDown(i int) {
	n := len(h.items)
	for {
		smallest := i
		left := 2*i + 1
		right := 2*i + 2
		if left < n && less(h.items[left], h.items[smallest]) {
			smallest = left
		}
		if right < n && less(h.items[right], h.items[smallest]) {
			smallest = right
		}
		if smallest == i {
			break
		}
		h.items[i], h.items[smallest] = h.items[smallest], h.items[i]
		i = smallest
	}
}

// QueryState holds per-query search state, reused across queries via
// Reset (which only touches the nodes actually visited, not the whole
// graph) to avoid O(N) allocation per request.
type QueryState struct {
	Dist      []float64
	Pred      []uint32 // predecessor node (noNode = none)
	PredEdge  []uint32 // edge index used to reach this node (noEdge = none)
	Touched   []uint32
	PQ        MinHeap
}

// NewQueryState creates a QueryState sized for a graph with n nodes.
func NewQueryState(n uint32) *QueryState {
	dist := make([]float64, n)
	pred := make([]uint32, n)
	predEdge := make([]uint32, n)
	for i := range dist {
		dist[i] = math.Inf(1)
		pred[i] = noNode
		predEdge[i] = noEdge
	}
	return &QueryState{
		Dist:     dist,
		Pred:     pred,
		PredEdge: predEdge,
		Touched:  make([]uint32, 0, 1024),
		PQ:       MinHeap{items: make([]PQItem, 0, 256)},
	}
}

// Reset clears only the touched entries for fast reuse.
func (qs *QueryState) Reset() {
	for _, node := range qs.Touched {
		qs.Dist[node] = math.Inf(1)
		qs.Pred[node] = noNode
		qs.PredEdge[node] = noEdge
	}
	qs.Touched = qs.Touched[:0]
	qs.PQ.Reset()
}

func (qs *QueryState) touch(node uint32, cost float64, pred uint32, predEdge uint32) {
	if math.IsInf(qs.Dist[node], 1) {
		qs.Touched = append(qs.Touched, node)
	}
	qs.Dist[node] = cost
	qs.Pred[node] = pred
	qs.PredEdge[node] = predEdge
}
