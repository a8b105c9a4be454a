package graph

import (
	"cmp"
	"slices"

	"github.com/geohistoricaldata/cassinigraph/pkg/geo"
)

// Pair is an unordered pair of node ids in canonical form: A < B.
type Pair struct {
	A string `json:"a"`
	B string `json:"b"`
}

// NewPair returns the canonical pair for ids a and b.
func NewPair(a, b string) Pair {
	if b < a {
		a, b = b, a
	}
	return Pair{A: a, B: b}
}

// Compare orders pairs by A, then B.
func (p Pair) Compare(q Pair) int {
	if c := cmp.Compare(p.A, q.A); c != 0 {
		return c
	}
	return cmp.Compare(p.B, q.B)
}

// Edge is an undirected weighted edge.
type Edge struct {
	Pair
	Weight float64 `json:"weight"`
}

// Graph is an undirected weighted graph without self-loops or parallel edges.
// It is built by a [Builder] and is read-only afterwards.
type Graph struct {
	vertices map[string]geo.Node
	ids      []string
	edges    []Edge
	index    map[Pair]int
}

// VertexCount returns the number of vertices.
func (g *Graph) VertexCount() int { return len(g.ids) }

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int { return len(g.edges) }

// Vertex returns the node registered under id.
func (g *Graph) Vertex(id string) (geo.Node, bool) {
	n, ok := g.vertices[id]
	return n, ok
}

// IDs returns the vertex ids in ascending order.
// The returned slice must not be modified.
func (g *Graph) IDs() []string { return g.ids }

// Vertices returns the vertices sorted by id.
func (g *Graph) Vertices() []geo.Node {
	out := make([]geo.Node, len(g.ids))
	for i, id := range g.ids {
		out[i] = g.vertices[id]
	}
	return out
}

// Edges returns the edges sorted by canonical pair.
// The returned slice must not be modified.
func (g *Graph) Edges() []Edge { return g.edges }

// Edge returns the edge between a and b, in either order.
func (g *Graph) Edge(a, b string) (Edge, bool) {
	i, ok := g.index[NewPair(a, b)]
	if !ok {
		return Edge{}, false
	}
	return g.edges[i], true
}

// SortEdges sorts edges by canonical pair in place.
func SortEdges(edges []Edge) {
	slices.SortFunc(edges, func(x, y Edge) int { return x.Pair.Compare(y.Pair) })
}
