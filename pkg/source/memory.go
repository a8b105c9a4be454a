package source

import (
	"cmp"
	"context"
	"slices"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/geohistoricaldata/cassinigraph/pkg/geo"
	"github.com/geohistoricaldata/cassinigraph/pkg/method"
)

// Cell is one cell of a partition of the plane, such as a parish Voronoi
// cell, with the point of its seat.
type Cell struct {
	ID   int
	Seat orb.Point
	Area orb.Polygon
}

// Memory is a FeatureSource and CellSource over an in-memory dataset.
type Memory struct {
	name  string
	nodes []geo.Node
	cells []Cell
}

// NewMemory returns a source over nodes and cells. Both slices are copied.
func NewMemory(nodes []geo.Node, cells ...Cell) *Memory {
	cs := slices.Clone(cells)
	slices.SortStableFunc(cs, func(a, b Cell) int { return cmp.Compare(a.ID, b.ID) })
	return &Memory{name: "memory", nodes: slices.Clone(nodes), cells: cs}
}

// Name returns "memory".
func (m *Memory) Name() string { return m.name }

// Query returns the matching nodes, sorted by id.
func (m *Memory) Query(ctx context.Context, pred method.Predicate, region geo.Region) ([]geo.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return filter(m.nodes, pred, region), nil
}

// Cells links every matching node to the first cell, by id, whose area
// contains it.
func (m *Memory) Cells(ctx context.Context, pred method.Predicate, region geo.Region) ([]CellLink, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return assignCells(filter(m.nodes, pred, region), m.cells), nil
}

// assignCells links nodes to cells sorted by id.
func assignCells(nodes []geo.Node, cells []Cell) []CellLink {
	var links []CellLink
	for _, n := range nodes {
		for _, c := range cells {
			if planar.PolygonContains(c.Area, n.Loc) {
				links = append(links, CellLink{Node: n, Cell: c.ID, Seat: c.Seat})
				break
			}
		}
	}
	sortLinks(links)
	return links
}

var (
	_ FeatureSource = (*Memory)(nil)
	_ CellSource    = (*Memory)(nil)
)
