package graph

import (
	"slices"

	"github.com/geohistoricaldata/cassinigraph/pkg/geo"
)

// Inconsistency describes a canonical pair observed twice with different weights.
type Inconsistency struct {
	Pair
	Kept    float64 // first-seen weight, the one stored
	Ignored float64 // weight of the later duplicate
}

// Options configures a Builder.
type Options struct {
	// OnInconsistency is called when a pair arrives again with a different
	// weight. The first-seen weight is always kept. Optional.
	OnInconsistency func(Inconsistency)
}

// Builder accumulates vertices and candidate edges.
// The zero value is not usable; call NewBuilder.
type Builder struct {
	opts            Options
	vertices        map[string]geo.Node
	edges           []Edge
	index           map[Pair]int
	duplicates      int
	inconsistencies int
}

// NewBuilder creates an empty builder.
func NewBuilder(opts Options) *Builder {
	return &Builder{
		opts:     opts,
		vertices: make(map[string]geo.Node),
		index:    make(map[Pair]int),
	}
}

// AddVertex registers n. The first node registered under an id wins; later
// registrations of the same id are ignored. It reports whether n was added.
func (b *Builder) AddVertex(n geo.Node) bool {
	if _, ok := b.vertices[n.ID]; ok {
		return false
	}
	b.vertices[n.ID] = n
	return true
}

// AddEdge registers both endpoints and inserts an edge between them unless the
// canonical pair is already present. Self-loops are ignored. It reports
// whether a new edge was inserted.
func (b *Builder) AddEdge(from, to geo.Node, weight float64) bool {
	if from.ID == to.ID {
		return false
	}
	b.AddVertex(from)
	b.AddVertex(to)

	p := NewPair(from.ID, to.ID)
	if i, seen := b.index[p]; seen {
		b.duplicates++
		if kept := b.edges[i].Weight; kept != weight {
			b.inconsistencies++
			if b.opts.OnInconsistency != nil {
				b.opts.OnInconsistency(Inconsistency{Pair: p, Kept: kept, Ignored: weight})
			}
		}
		return false
	}
	b.index[p] = len(b.edges)
	b.edges = append(b.edges, Edge{Pair: p, Weight: weight})
	return true
}

// Duplicates returns how many candidate edges were dropped as duplicates.
func (b *Builder) Duplicates() int { return b.duplicates }

// Inconsistencies returns how many duplicates carried a different weight.
func (b *Builder) Inconsistencies() int { return b.inconsistencies }

// Build returns the graph. The builder may keep being used afterwards; the
// returned graph does not share mutable state with it.
func (b *Builder) Build() *Graph {
	ids := make([]string, 0, len(b.vertices))
	vertices := make(map[string]geo.Node, len(b.vertices))
	for id, n := range b.vertices {
		ids = append(ids, id)
		vertices[id] = n
	}
	slices.Sort(ids)

	edges := slices.Clone(b.edges)
	SortEdges(edges)
	index := make(map[Pair]int, len(edges))
	for i, e := range edges {
		index[e.Pair] = i
	}

	return &Graph{
		vertices: vertices,
		ids:      ids,
		edges:    edges,
		index:    index,
	}
}
