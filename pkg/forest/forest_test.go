package forest

import (
	"fmt"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geohistoricaldata/cassinigraph/pkg/geo"
	"github.com/geohistoricaldata/cassinigraph/pkg/graph"
)

// buildGraph connects every pair of nodes within threshold, brute force.
func buildGraph(nodes []geo.Node, threshold float64) *graph.Graph {
	b := graph.NewBuilder(graph.Options{})
	for _, n := range nodes {
		b.AddVertex(n)
	}
	for _, a := range nodes {
		for _, c := range nodes {
			if a.ID == c.ID {
				continue
			}
			if d := geo.Distance(a.Loc, c.Loc); d <= threshold {
				b.AddEdge(a, c, d)
			}
		}
	}
	return b.Build()
}

func scenarioNodes() []geo.Node {
	return []geo.Node{
		{ID: "A", Loc: orb.Point{0, 0}},
		{ID: "B", Loc: orb.Point{3, 0}},
		{ID: "C", Loc: orb.Point{10, 0}},
		{ID: "D", Loc: orb.Point{3, 4}},
	}
}

func TestReduceScenario(t *testing.T) {
	g := buildGraph(scenarioNodes(), 5)
	require.Equal(t, 3, g.EdgeCount(), "A-B, B-D and A-D are within 5")

	f := Reduce(g)
	assert.Equal(t, []graph.Edge{
		{Pair: graph.NewPair("A", "B"), Weight: 3},
		{Pair: graph.NewPair("B", "D"), Weight: 4},
	}, f.Edges())
	assert.Equal(t, 7.0, f.TotalWeight())
	assert.Equal(t, 2, f.ComponentCount())

	comps := f.Components()
	require.Len(t, comps, 1)
	assert.Equal(t, 0, comps[0].ID)
	assert.Equal(t, []string{"A", "B", "D"}, comps[0].Vertices)
	assert.Equal(t, f.Edges(), comps[0].Edges)

	assert.Equal(t, []string{"C"}, f.Isolated())
	ra, _ := f.Root("A")
	rd, _ := f.Root("D")
	rc, _ := f.Root("C")
	assert.Equal(t, ra, rd)
	assert.NotEqual(t, ra, rc)
	_, ok := f.Root("missing")
	assert.False(t, ok)
}

func TestReduceEmpty(t *testing.T) {
	f := Reduce(graph.NewBuilder(graph.Options{}).Build())
	assert.Empty(t, f.Edges())
	assert.Empty(t, f.Components())
	assert.Empty(t, f.Isolated())
	assert.Zero(t, f.ComponentCount())
}

func TestReduceTieBreakByPair(t *testing.T) {
	// Unit square: four sides of weight 1, all within threshold 1.
	nodes := []geo.Node{
		{ID: "n1", Loc: orb.Point{0, 0}},
		{ID: "n2", Loc: orb.Point{1, 0}},
		{ID: "n3", Loc: orb.Point{1, 1}},
		{ID: "n4", Loc: orb.Point{0, 1}},
	}
	f := Reduce(buildGraph(nodes, 1))
	assert.Equal(t, []graph.Pair{
		graph.NewPair("n1", "n2"),
		graph.NewPair("n1", "n4"),
		graph.NewPair("n2", "n3"),
	}, pairs(f.Edges()))
}

func TestComponentIDsFollowSmallestVertex(t *testing.T) {
	// Two clusters far apart; the cluster holding "a" must get id 0 even
	// though its edges are heavier.
	nodes := []geo.Node{
		{ID: "z1", Loc: orb.Point{1000, 0}},
		{ID: "z2", Loc: orb.Point{1001, 0}},
		{ID: "a", Loc: orb.Point{0, 0}},
		{ID: "b", Loc: orb.Point{5, 0}},
		{ID: "m", Loc: orb.Point{500, 500}},
	}
	comps := Reduce(buildGraph(nodes, 10)).Components()
	require.Len(t, comps, 2)
	assert.Equal(t, []string{"a", "b"}, comps[0].Vertices)
	assert.Equal(t, []string{"z1", "z2"}, comps[1].Vertices)
	assert.Equal(t, 1, comps[1].ID)
}

func TestEdgeCountInvariant(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	for trial := 0; trial < 20; trial++ {
		nodes := randomNodes(rng, 60, 100)
		g := buildGraph(nodes, 12)
		f := Reduce(g)

		comps := f.Components()
		covered := 0
		for _, c := range comps {
			assert.Len(t, c.Edges, len(c.Vertices)-1, "component %d", c.ID)
			assert.GreaterOrEqual(t, len(c.Vertices), 2)
			covered += len(c.Vertices)
		}
		assert.Equal(t, g.VertexCount(), covered+len(f.Isolated()))
		assert.Equal(t, g.VertexCount()-len(comps)-len(f.Isolated()), len(f.Edges()))
	}
}

func TestReduceIsMinimal(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for trial := 0; trial < 30; trial++ {
		nodes := randomNodes(rng, 7, 10)
		g := buildGraph(nodes, 6)
		f := Reduce(g)

		for _, c := range f.Components() {
			best := bruteForceMST(g, c.Vertices)
			assert.InDelta(t, best, c.Weight(), 1e-9, "trial %d component %d", trial, c.ID)
		}
	}
}

func TestReduceDeterministicUnderInputOrder(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	nodes := randomNodes(rng, 80, 50)
	want := Reduce(buildGraph(nodes, 8))

	for i := 0; i < 5; i++ {
		shuffled := append([]geo.Node(nil), nodes...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		got := Reduce(buildGraph(shuffled, 8))
		assert.Equal(t, want.Edges(), got.Edges())
		assert.Equal(t, want.Components(), got.Components())
	}
}

func pairs(edges []graph.Edge) []graph.Pair {
	out := make([]graph.Pair, len(edges))
	for i, e := range edges {
		out[i] = e.Pair
	}
	return out
}

func randomNodes(rng *rand.Rand, n int, extent float64) []geo.Node {
	nodes := make([]geo.Node, n)
	for i := range nodes {
		// Quantize so that equal weights (ties) actually occur.
		x := math.Round(rng.Float64() * extent)
		y := math.Round(rng.Float64() * extent)
		nodes[i] = geo.Node{ID: fmt.Sprintf("n%03d", i), Loc: orb.Point{x, y}}
	}
	return nodes
}

// bruteForceMST returns the minimum spanning tree weight over the induced
// subgraph on vertices by enumerating every edge subset of size k-1.
func bruteForceMST(g *graph.Graph, vertices []string) float64 {
	in := make(map[string]int, len(vertices))
	for i, v := range vertices {
		in[v] = i
	}
	var edges []graph.Edge
	for _, e := range g.Edges() {
		if _, ok := in[e.A]; ok {
			edges = append(edges, e)
		}
	}

	k := len(vertices)
	best := math.Inf(1)
	var pick func(start int, chosen []graph.Edge)
	pick = func(start int, chosen []graph.Edge) {
		if len(chosen) == k-1 {
			uf := newUnionFind(k)
			w := 0.0
			for _, e := range chosen {
				if !uf.union(in[e.A], in[e.B]) {
					return
				}
				w += e.Weight
			}
			best = min(best, w)
			return
		}
		for i := start; i < len(edges); i++ {
			pick(i+1, append(chosen, edges[i]))
		}
	}
	pick(0, nil)
	return best
}
