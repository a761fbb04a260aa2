package graph

// UnionFind implements a disjoint-set data structure with path halving
// and union by rank.
type UnionFind struct {
	parent []uint32
	rank   []byte // byte is sufficient — max rank ~30 for realistic graphs
	size   []uint32
}

// NewUnionFind creates a UnionFind for n elements.
func NewUnionFind(n uint32) *UnionFind {
	parent := make([]uint32, n)
	size := make([]uint32, n)
	for i := range n {
		parent[i] = i
		size[i] = 1
	}
	return &UnionFind{parent: parent, rank: make([]byte, n), size: size}
}

// Find returns the representative of the set containing x, with path halving.
func (uf *UnionFind) Find(x uint32) uint32 {
	for uf.parent[x] != x {
		uf.parent[x] = uf.parent[uf.parent[x]] // path halving
		x = uf.parent[x]
	}
	return x
}

// Union merges the sets containing x and y. Returns false if already same set.
func (uf *UnionFind) Union(x, y uint32) bool {
	rx, ry := uf.Find(x), uf.Find(y)
	if rx == ry {
		return false
	}
	if uf.rank[rx] < uf.rank[ry] {
		rx, ry = ry, rx
	}
	uf.parent[ry] = rx
	uf.size[rx] += uf.size[ry]
	if uf.rank[rx] == uf.rank[ry] {
		uf.rank[rx]++
	}
	return true
}

// ComponentReport summarizes weakly-connected-component structure,
// treating the directed graph as undirected. Unlike a Contraction
// Hierarchy, plain Dijkstra routing has no requirement that the graph be
// a single component, so this is surfaced as an ingest-time log line
// (via cmd/preprocess), never used to drop nodes.
type ComponentReport struct {
	NumComponents int
	LargestSize   uint32
	TotalNodes    uint32
}

// AnalyzeComponents computes weakly connected components of rd.
func AnalyzeComponents(rd *RoutingData) ComponentReport {
	n := rd.NumNodes()
	if n == 0 {
		return ComponentReport{}
	}

	uf := NewUnionFind(n)
	for u := uint32(0); u < n; u++ {
		start, end := rd.EdgesFrom(u)
		for e := start; e < end; e++ {
			uf.Union(u, rd.Edges[e].Target)
		}
	}

	sizes := make(map[uint32]uint32)
	for i := uint32(0); i < n; i++ {
		sizes[uf.Find(i)]++
	}

	var largest uint32
	for _, size := range sizes {
		if size > largest {
			largest = size
		}
	}

	return ComponentReport{
		NumComponents: len(sizes),
		LargestSize:   largest,
		TotalNodes:    n,
	}
}
