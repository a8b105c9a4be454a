package source

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geohistoricaldata/cassinigraph/pkg/cache"
	"github.com/geohistoricaldata/cassinigraph/pkg/geo"
	"github.com/geohistoricaldata/cassinigraph/pkg/method"
)

var square = geo.MustParseRegion("SRID=2154;POLYGON((0 0,100 0,100 100,0 100,0 0))")

func fixture() Dataset {
	return Dataset{
		Toponyms: []Toponym{
			{ID: 1, TypeID: 10, Loc: orb.Point{10, 10}},
			{ID: 2, TypeID: 10, Loc: orb.Point{60, 10}},
			{ID: 3, TypeID: method.TypeAutre, Loc: orb.Point{20, 20}},
			{ID: 4, TypeID: 6, Loc: orb.Point{30, 30}},
			{ID: 5, TypeID: 10, Loc: orb.Point{500, 500}},
			{ID: 6, TypeID: method.TypeClocher, Loc: orb.Point{40, 40}},
		},
		ChefsLieux: []ChefLieu{
			{GID: 1, TypeCart: "paroisse", Loc: orb.Point{25, 25}},
			{GID: 2, TypeCart: "abbaye", Loc: orb.Point{75, 25}},
			{GID: 3, TypeCart: "prieuré", Loc: orb.Point{900, 900}},
		},
		Cells: []Cell{
			{ID: 1, Area: orb.Polygon{{{0, 0}, {50, 0}, {50, 100}, {0, 100}, {0, 0}}}},
			{ID: 2, Area: orb.Polygon{{{50, 0}, {100, 0}, {100, 100}, {50, 100}, {50, 0}}}},
		},
	}
}

func memoryFixture() *Memory {
	ds := fixture()
	var nodes []geo.Node
	for _, t := range ds.Toponyms {
		nodes = append(nodes, geo.Node{ID: ToponymID(t.ID), Loc: t.Loc, Category: method.ToponymCategory(t.TypeID)})
	}
	seats := make(map[int64]orb.Point)
	for _, c := range ds.ChefsLieux {
		nodes = append(nodes, geo.Node{ID: ChefLieuID(c.GID), Loc: c.Loc, Category: method.ChefLieuCategory(c.TypeCart)})
		seats[c.GID] = c.Loc
	}
	cells := ds.Cells
	for i := range cells {
		cells[i].Seat = seats[int64(cells[i].ID)]
	}
	return NewMemory(nodes, cells...)
}

func sqliteFixture(t *testing.T) *SQLite {
	t.Helper()
	return openDataset(t, filepath.Join(t.TempDir(), "cassini.sqlite"), fixture())
}

func openDataset(t *testing.T, path string, ds Dataset) *SQLite {
	t.Helper()
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	require.NoError(t, WriteSQLite(context.Background(), db, ds))
	require.NoError(t, db.Close())

	s, err := OpenSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func ids(nodes []geo.Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.ID
	}
	return out
}

func lookup(t *testing.T, name string) method.Predicate {
	t.Helper()
	m, err := method.Default().Lookup(name)
	require.NoError(t, err)
	return m.Predicate
}

// Both local sources must agree on every built-in method.
func TestQuery(t *testing.T) {
	sources := map[string]FeatureSource{
		"memory": memoryFixture(),
		"sqlite": sqliteFixture(t),
	}
	tests := []struct {
		method string
		want   []string
	}{
		{"full", []string{"cheflieu:1", "cheflieu:2", "toponym:1", "toponym:2", "toponym:4"}},
		{"settlement", []string{"cheflieu:1", "cheflieu:2", "toponym:1", "toponym:2"}},
		{"religion", []string{"cheflieu:2", "toponym:4"}},
	}
	for name, src := range sources {
		for _, tt := range tests {
			t.Run(name+"/"+tt.method, func(t *testing.T) {
				got, err := src.Query(context.Background(), lookup(t, tt.method), square)
				require.NoError(t, err)
				assert.Equal(t, tt.want, ids(got))
			})
		}
	}
}

func TestQueryUnboundedRegion(t *testing.T) {
	got, err := memoryFixture().Query(context.Background(), lookup(t, "religion"), geo.Region{})
	require.NoError(t, err)
	assert.Equal(t, []string{"cheflieu:2", "cheflieu:3", "toponym:4"}, ids(got))
}

func TestQueryCategories(t *testing.T) {
	got, err := sqliteFixture(t).Query(context.Background(), lookup(t, "religion"), square)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, geo.Node{ID: "cheflieu:2", Loc: orb.Point{75, 25}, Category: "cheflieu:abbaye"}, got[0])
	assert.Equal(t, "toponym:6", got[1].Category)
}

func TestCells(t *testing.T) {
	sources := map[string]CellSource{
		"memory": memoryFixture(),
		"sqlite": sqliteFixture(t),
	}
	for name, src := range sources {
		t.Run(name, func(t *testing.T) {
			links, err := src.Cells(context.Background(), lookup(t, "parishes"), square)
			require.NoError(t, err)
			require.Len(t, links, 2)

			assert.Equal(t, "toponym:1", links[0].Node.ID)
			assert.Equal(t, 1, links[0].Cell)
			assert.Equal(t, orb.Point{25, 25}, links[0].Seat)

			assert.Equal(t, "toponym:2", links[1].Node.ID)
			assert.Equal(t, 2, links[1].Cell)
			assert.Equal(t, orb.Point{75, 25}, links[1].Seat)
		})
	}
}

func TestMemoryCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := memoryFixture().Query(ctx, lookup(t, "full"), square)
	assert.ErrorIs(t, err, context.Canceled)
}

type countingSource struct {
	*Memory
	queries int
	cells   int
}

func (c *countingSource) Query(ctx context.Context, pred method.Predicate, region geo.Region) ([]geo.Node, error) {
	c.queries++
	return c.Memory.Query(ctx, pred, region)
}

func (c *countingSource) Cells(ctx context.Context, pred method.Predicate, region geo.Region) ([]CellLink, error) {
	c.cells++
	return c.Memory.Cells(ctx, pred, region)
}

func TestCached(t *testing.T) {
	ctx := context.Background()
	fc, err := cache.NewFileCache(t.TempDir())
	require.NoError(t, err)

	inner := &countingSource{Memory: memoryFixture()}
	src := NewCached(inner, fc, CacheOptions{TTL: time.Hour})

	first, err := src.Query(ctx, lookup(t, "full"), square)
	require.NoError(t, err)
	second, err := src.Query(ctx, lookup(t, "full"), square)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.queries, "second query is served from cache")

	_, err = src.Query(ctx, lookup(t, "religion"), square)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.queries, "a different predicate misses")

	links, err := src.Cells(ctx, lookup(t, "parishes"), square)
	require.NoError(t, err)
	again, err := src.Cells(ctx, lookup(t, "parishes"), square)
	require.NoError(t, err)
	assert.Equal(t, links, again)
	assert.Equal(t, 1, inner.cells)

	refresh := NewCached(inner, fc, CacheOptions{Refresh: true})
	_, err = refresh.Query(ctx, lookup(t, "full"), square)
	require.NoError(t, err)
	assert.Equal(t, 3, inner.queries, "refresh bypasses reads")
}

func TestCachedSeparatesDatasets(t *testing.T) {
	ctx := context.Background()
	fc, err := cache.NewFileCache(t.TempDir())
	require.NoError(t, err)

	small := fixture()
	small.Toponyms = small.Toponyms[1:2]
	dir := t.TempDir()
	a := openDataset(t, filepath.Join(dir, "a.sqlite"), small)
	b := openDataset(t, filepath.Join(dir, "b.sqlite"), fixture())
	require.Equal(t, a.Name(), b.Name())
	require.NotEqual(t, a.Scope(), b.Scope())

	for _, src := range []*SQLite{a, b, a} {
		direct, err := src.Query(ctx, lookup(t, "full"), square)
		require.NoError(t, err)
		cached, err := NewCached(src, fc, CacheOptions{}).Query(ctx, lookup(t, "full"), square)
		require.NoError(t, err)
		assert.Equal(t, ids(direct), ids(cached))

		links, err := src.Cells(ctx, lookup(t, "parishes"), square)
		require.NoError(t, err)
		cachedLinks, err := NewCached(src, fc, CacheOptions{}).Cells(ctx, lookup(t, "parishes"), square)
		require.NoError(t, err)
		assert.Equal(t, links, cachedLinks)
	}
}

func TestCachedScopeOption(t *testing.T) {
	ctx := context.Background()
	fc, err := cache.NewFileCache(t.TempDir())
	require.NoError(t, err)

	full := memoryFixture()
	empty := NewMemory(nil)
	require.Equal(t, full.Name(), empty.Name())

	got, err := NewCached(full, fc, CacheOptions{Scope: "first"}).Query(ctx, lookup(t, "full"), square)
	require.NoError(t, err)
	require.NotEmpty(t, got)

	got, err = NewCached(empty, fc, CacheOptions{Scope: "second"}).Query(ctx, lookup(t, "full"), square)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSQLiteScopeFollowsPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cassini.sqlite")
	s := openDataset(t, path, fixture())
	assert.Equal(t, pathScope(path), s.Scope())
	assert.NotEqual(t, pathScope(filepath.Join(dir, "other.sqlite")), s.Scope())
}

func TestCachedWithoutCells(t *testing.T) {
	src := NewCached(struct{ FeatureSource }{memoryFixture()}, cache.NewNullCache(), CacheOptions{})
	_, err := src.Cells(context.Background(), lookup(t, "parishes"), square)
	assert.Error(t, err)
}
