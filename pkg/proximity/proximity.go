// Package proximity discovers pairs of nodes that lie within a distance
// threshold of each other.
//
// Nodes are loaded into an R-tree ([github.com/tidwall/rtree]); each query
// searches the square of half-side threshold around a node and keeps the
// hits whose planar distance is at most the threshold. Per-node queries are
// independent and [Candidates] runs them on a bounded worker pool. Results are
// gathered by node position, so the output does not depend on scheduling.
package proximity

import (
	"cmp"
	"context"
	"runtime"
	"slices"

	"github.com/tidwall/rtree"
	"golang.org/x/sync/errgroup"

	"github.com/geohistoricaldata/cassinigraph/pkg/geo"
)

// Neighbor is a node found near a query node.
type Neighbor struct {
	Node     geo.Node
	Distance float64
}

// Candidate is a directed candidate edge. (a, b, d) and (b, a, d) describe the
// same undirected edge; deduplication happens when the graph is built.
type Candidate struct {
	From     geo.Node
	To       geo.Node
	Distance float64
}

// Index is a static spatial index over a node set.
type Index struct {
	tree  rtree.RTreeG[int]
	nodes []geo.Node
}

// NewIndex indexes nodes. The slice is retained and must not be modified.
func NewIndex(nodes []geo.Node) *Index {
	idx := &Index{nodes: nodes}
	for i, n := range nodes {
		p := [2]float64{n.Loc[0], n.Loc[1]}
		idx.tree.Insert(p, p, i)
	}
	return idx
}

// Near returns every indexed node other than n whose distance to n is at most
// threshold, ordered by id. Nodes sharing n's id are skipped.
func (idx *Index) Near(n geo.Node, threshold float64) []Neighbor {
	lo := [2]float64{n.Loc[0] - threshold, n.Loc[1] - threshold}
	hi := [2]float64{n.Loc[0] + threshold, n.Loc[1] + threshold}

	var out []Neighbor
	idx.tree.Search(lo, hi, func(_, _ [2]float64, i int) bool {
		other := idx.nodes[i]
		if other.ID == n.ID {
			return true
		}
		if d := geo.Distance(n.Loc, other.Loc); d <= threshold {
			out = append(out, Neighbor{Node: other, Distance: d})
		}
		return true
	})
	slices.SortFunc(out, func(a, b Neighbor) int { return cmp.Compare(a.Node.ID, b.Node.ID) })
	return out
}

// Options configures [Candidates].
type Options struct {
	// Workers bounds concurrent neighbor queries. Defaults to GOMAXPROCS.
	Workers int
}

// Candidates returns a candidate edge for every ordered pair of nodes within
// threshold of each other. Output is grouped by source node in input order,
// then by target id. It returns ctx.Err() if ctx is done before all queries
// complete.
func Candidates(ctx context.Context, nodes []geo.Node, threshold float64, opts Options) ([]Candidate, error) {
	if len(nodes) == 0 {
		return nil, nil
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	idx := NewIndex(nodes)
	perNode := make([][]Neighbor, len(nodes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range nodes {
		if err := gctx.Err(); err != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			perNode[i] = idx.Near(nodes[i], threshold)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	total := 0
	for _, ns := range perNode {
		total += len(ns)
	}
	out := make([]Candidate, 0, total)
	for i, ns := range perNode {
		for _, nb := range ns {
			out = append(out, Candidate{From: nodes[i], To: nb.Node, Distance: nb.Distance})
		}
	}
	return out, nil
}
