// Package forest reduces a proximity graph to its minimum spanning forest and
// splits the forest into connected components.
//
// [Reduce] runs Kruskal's algorithm: edges are taken in ascending weight
// order, ties broken by canonical pair, and an edge is accepted iff its
// endpoints are still in different sets of a union-find structure. The same
// union-find then gives every vertex its component, so no second connectivity
// pass is needed.
//
// For a graph with V vertices and C connected components the forest holds
// exactly V-C edges. Results are fully deterministic for a given graph.
package forest

import (
	"cmp"
	"slices"

	"github.com/geohistoricaldata/cassinigraph/pkg/graph"
)

// Forest is a minimum spanning forest of a graph.
type Forest struct {
	g     *graph.Graph
	edges []graph.Edge
	uf    *unionFind
	pos   map[string]int
}

// Reduce computes the minimum spanning forest of g.
func Reduce(g *graph.Graph) *Forest {
	ids := g.IDs()
	pos := make(map[string]int, len(ids))
	for i, id := range ids {
		pos[id] = i
	}

	sorted := slices.Clone(g.Edges())
	slices.SortStableFunc(sorted, compareEdges)

	uf := newUnionFind(len(ids))
	accepted := make([]graph.Edge, 0, max(len(ids)-1, 0))
	for _, e := range sorted {
		if uf.union(pos[e.A], pos[e.B]) {
			accepted = append(accepted, e)
			if len(accepted) == len(ids)-1 {
				break
			}
		}
	}

	return &Forest{g: g, edges: accepted, uf: uf, pos: pos}
}

// compareEdges orders by weight ascending, then by canonical pair.
func compareEdges(x, y graph.Edge) int {
	if c := cmp.Compare(x.Weight, y.Weight); c != 0 {
		return c
	}
	return x.Pair.Compare(y.Pair)
}

// Graph returns the graph the forest was reduced from.
func (f *Forest) Graph() *graph.Graph { return f.g }

// Edges returns the accepted edges in acceptance order.
// The returned slice must not be modified.
func (f *Forest) Edges() []graph.Edge { return f.edges }

// TotalWeight returns the sum of the forest's edge weights.
func (f *Forest) TotalWeight() float64 {
	var total float64
	for _, e := range f.edges {
		total += e.Weight
	}
	return total
}

// Root returns the union-find representative index of id's component.
// Two vertices are connected iff they share a root.
func (f *Forest) Root(id string) (int, bool) {
	i, ok := f.pos[id]
	if !ok {
		return 0, false
	}
	return f.uf.find(i), true
}

// ComponentCount returns the number of connected components, isolated
// vertices included.
func (f *Forest) ComponentCount() int {
	return f.g.VertexCount() - len(f.edges)
}
