package forest_test

import (
	"context"
	"fmt"

	"github.com/paulmach/orb"

	"github.com/geohistoricaldata/cassinigraph/pkg/forest"
	"github.com/geohistoricaldata/cassinigraph/pkg/geo"
	"github.com/geohistoricaldata/cassinigraph/pkg/graph"
	"github.com/geohistoricaldata/cassinigraph/pkg/proximity"
)

func Example() {
	nodes := []geo.Node{
		{ID: "A", Loc: orb.Point{0, 0}},
		{ID: "B", Loc: orb.Point{3, 0}},
		{ID: "C", Loc: orb.Point{100, 100}},
		{ID: "D", Loc: orb.Point{3, 4}},
	}

	cands, _ := proximity.Candidates(context.Background(), nodes, 5, proximity.Options{})
	b := graph.NewBuilder(graph.Options{})
	for _, n := range nodes {
		b.AddVertex(n)
	}
	for _, c := range cands {
		b.AddEdge(c.From, c.To, c.Distance)
	}

	f := forest.Reduce(b.Build())
	for _, c := range f.Components() {
		fmt.Printf("component %d: %v\n", c.ID, c.Vertices)
		for _, e := range c.Edges {
			fmt.Printf("  %s-%s %g\n", e.A, e.B, e.Weight)
		}
	}
	fmt.Println("isolated:", f.Isolated())
	// Output:
	// component 0: [A B D]
	//   A-B 3
	//   B-D 4
	// isolated: [C]
}
