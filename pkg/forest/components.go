package forest

import "github.com/geohistoricaldata/cassinigraph/pkg/graph"

// Component is a maximal connected subgraph of the forest with at least one edge.
type Component struct {
	// ID is a dense ordinal, assigned in ascending order of each component's
	// smallest vertex id.
	ID int
	// Vertices holds the member ids in ascending order.
	Vertices []string
	// Edges holds the member edges in acceptance order (ascending weight,
	// ties by canonical pair). len(Edges) == len(Vertices)-1.
	Edges []graph.Edge
}

// Weight returns the component's total edge weight.
func (c Component) Weight() float64 {
	var total float64
	for _, e := range c.Edges {
		total += e.Weight
	}
	return total
}

// Components partitions the forest into connected components.
//
// Vertices left without any forest edge (single-vertex components) are not
// returned: they carry no line geometry. See [Forest.Isolated].
func (f *Forest) Components() []Component {
	degree := f.degrees()

	byRoot := make(map[int]int)
	var comps []Component
	for _, id := range f.g.IDs() {
		if degree[id] == 0 {
			continue
		}
		root, _ := f.Root(id)
		ci, ok := byRoot[root]
		if !ok {
			ci = len(comps)
			byRoot[root] = ci
			comps = append(comps, Component{ID: ci})
		}
		comps[ci].Vertices = append(comps[ci].Vertices, id)
	}

	for _, e := range f.edges {
		root, _ := f.Root(e.A)
		ci := byRoot[root]
		comps[ci].Edges = append(comps[ci].Edges, e)
	}
	return comps
}

// Isolated returns, in ascending order, the ids of vertices with no forest edge.
func (f *Forest) Isolated() []string {
	degree := f.degrees()
	var out []string
	for _, id := range f.g.IDs() {
		if degree[id] == 0 {
			out = append(out, id)
		}
	}
	return out
}

func (f *Forest) degrees() map[string]int {
	degree := make(map[string]int, f.g.VertexCount())
	for _, e := range f.edges {
		degree[e.A]++
		degree[e.B]++
	}
	return degree
}
