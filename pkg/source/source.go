// Package source loads the point features a method runs on.
//
// A [FeatureSource] answers one question: which nodes of the Cassini layers
// match a predicate inside a region. Implementations read from PostGIS
// ([PostGIS]), a local SQLite extract ([SQLite]) or memory ([Memory]);
// [Cached] puts any of them behind a [cache.Cache].
//
// Node ids are "<layer>:<key>" (for example "toponym:1532" or "cheflieu:88")
// so that toponyms and chefs-lieux never collide.
package source

import (
	"cmp"
	"context"
	"slices"
	"strconv"

	"github.com/paulmach/orb"

	"github.com/geohistoricaldata/cassinigraph/pkg/geo"
	"github.com/geohistoricaldata/cassinigraph/pkg/method"
)

// FeatureSource returns the nodes selected by a predicate within a region.
// An empty result is not an error.
type FeatureSource interface {
	// Name identifies the dataset, for cache keys and logs.
	Name() string

	Query(ctx context.Context, pred method.Predicate, region geo.Region) ([]geo.Node, error)
}

// CellLink ties a point feature to the seat of the cell that contains it.
type CellLink struct {
	Node geo.Node  `json:"node"`
	Cell int       `json:"cell"`
	Seat orb.Point `json:"seat"`
}

// CellSource returns, for every node selected by a predicate within a region,
// its link to the seat of the containing cell. Links are ordered by cell,
// then node id. Nodes outside every cell are omitted.
type CellSource interface {
	Name() string

	Cells(ctx context.Context, pred method.Predicate, region geo.Region) ([]CellLink, error)
}

// Scoper is implemented by sources whose Name is shared by many datasets.
// Scope identifies the dataset itself; cached results are kept apart per scope.
type Scoper interface {
	Scope() string
}

// Closer is implemented by sources holding connections.
type Closer interface {
	Close() error
}

// ToponymID returns the node id of toponym key.
func ToponymID(key int64) string { return method.LayerToponym + ":" + strconv.FormatInt(key, 10) }

// ChefLieuID returns the node id of chef-lieu key.
func ChefLieuID(key int64) string { return method.LayerChefLieu + ":" + strconv.FormatInt(key, 10) }

// filter keeps the nodes matching pred inside region, sorted by id.
func filter(nodes []geo.Node, pred method.Predicate, region geo.Region) []geo.Node {
	out := make([]geo.Node, 0, len(nodes))
	for _, n := range nodes {
		if pred.Match(n.Category) && region.Contains(n.Loc) {
			out = append(out, n)
		}
	}
	sortNodes(out)
	return out
}

func sortNodes(nodes []geo.Node) {
	slices.SortStableFunc(nodes, func(a, b geo.Node) int { return cmp.Compare(a.ID, b.ID) })
}

func sortLinks(links []CellLink) {
	slices.SortStableFunc(links, func(a, b CellLink) int {
		if c := cmp.Compare(a.Cell, b.Cell); c != 0 {
			return c
		}
		return cmp.Compare(a.Node.ID, b.Node.ID)
	})
}
