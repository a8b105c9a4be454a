package source

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/paulmach/orb"

	"github.com/geohistoricaldata/cassinigraph/pkg/cache"
	"github.com/geohistoricaldata/cassinigraph/pkg/errors"
	"github.com/geohistoricaldata/cassinigraph/pkg/geo"
	"github.com/geohistoricaldata/cassinigraph/pkg/method"
)

// Tables names the PostGIS relations holding the Cassini layers. Names may be
// schema-qualified ("travail.voronoi_parishes_52").
type Tables struct {
	Toponyms   string // id, type_id, geom
	ChefsLieux string // gid, typecart, geom
	Cells      string // gid (= chef-lieu gid), geom
}

// DefaultTables are the relations of the geohistoricaldata database.
var DefaultTables = Tables{
	Toponyms:   "france_cassini_toponyms",
	ChefsLieux: "france_cassini_chefs_lieux",
	Cells:      "travail.voronoi_parishes_52",
}

// PostGIS reads features from a PostGIS database.
type PostGIS struct {
	pool   *pgxpool.Pool
	tables Tables
	scope  string
}

// OpenPostGIS connects to dsn and checks the connection, retrying while the
// server is unreachable. Zero fields of tables take their default.
func OpenPostGIS(ctx context.Context, dsn string, tables Tables) (*PostGIS, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeSource, err, "invalid postgis dsn")
	}
	err = cache.RetryWithBackoff(ctx, func() error {
		if err := pool.Ping(ctx); err != nil {
			return cache.Retryable(err)
		}
		return nil
	})
	if err != nil {
		pool.Close()
		return nil, errors.Wrap(errors.ErrCodeSource, err, "connect to postgis")
	}
	tables = tables.withDefaults()
	return &PostGIS{pool: pool, tables: tables, scope: postgisScope(pool.Config().ConnConfig, tables)}, nil
}

func (t Tables) withDefaults() Tables {
	if t.Toponyms == "" {
		t.Toponyms = DefaultTables.Toponyms
	}
	if t.ChefsLieux == "" {
		t.ChefsLieux = DefaultTables.ChefsLieux
	}
	if t.Cells == "" {
		t.Cells = DefaultTables.Cells
	}
	return t
}

// Name returns "postgis".
func (p *PostGIS) Name() string { return "postgis" }

// Scope returns a hash of the server, database and tables read.
func (p *PostGIS) Scope() string { return p.scope }

func postgisScope(cc *pgx.ConnConfig, t Tables) string {
	id := fmt.Sprintf("%s:%d/%s|%s|%s|%s", cc.Host, cc.Port, cc.Database, t.Toponyms, t.ChefsLieux, t.Cells)
	return cache.Hash([]byte(id))
}

// Close closes the connection pool.
func (p *PostGIS) Close() error {
	p.pool.Close()
	return nil
}

// Query selects the matching toponyms and chefs-lieux within region.
func (p *PostGIS) Query(ctx context.Context, pred method.Predicate, region geo.Region) ([]geo.Node, error) {
	sql, args := featureQuery(p.tables, pred, region)
	if sql == "" {
		return nil, nil
	}
	rows, err := p.pool.Query(ctx, sql, args)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeSource, err, "query features")
	}

	var (
		nodes        []geo.Node
		id, category string
		x, y         float64
	)
	_, err = pgx.ForEachRow(rows, []any{&id, &x, &y, &category}, func() error {
		nodes = append(nodes, geo.Node{ID: id, Loc: orb.Point{x, y}, Category: category})
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeSource, err, "read features")
	}
	sortNodes(nodes)
	return nodes, nil
}

// Cells links the matching toponyms to the seat of the cell containing them.
// Cells are clipped to region before the containment test.
func (p *PostGIS) Cells(ctx context.Context, pred method.Predicate, region geo.Region) ([]CellLink, error) {
	sql, args := cellQuery(p.tables, pred, region)
	rows, err := p.pool.Query(ctx, sql, args)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeSource, err, "query cells")
	}

	var (
		links        []CellLink
		id, category string
		x, y, sx, sy float64
		cell         int
	)
	_, err = pgx.ForEachRow(rows, []any{&id, &x, &y, &category, &cell, &sx, &sy}, func() error {
		links = append(links, CellLink{
			Node: geo.Node{ID: id, Loc: orb.Point{x, y}, Category: category},
			Cell: cell,
			Seat: orb.Point{sx, sy},
		})
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeSource, err, "read cells")
	}
	sortLinks(links)
	return links, nil
}

// featureQuery builds the union of the toponym and chef-lieu selections. It
// returns an empty statement when the predicate skips both layers.
func featureQuery(t Tables, pred method.Predicate, region geo.Region) (string, pgx.NamedArgs) {
	args := pgx.NamedArgs{}
	var parts []string

	if !pred.Toponyms.Skip {
		var b strings.Builder
		fmt.Fprintf(&b, "SELECT 'toponym:' || id, ST_X(geom), ST_Y(geom), 'toponym:' || type_id FROM %s", ident(t.Toponyms))
		where := append(regionClause(region, args), toponymClauses("type_id", pred.Toponyms, args)...)
		writeWhere(&b, where)
		parts = append(parts, b.String())
	}
	if !pred.ChefsLieux.Skip {
		var b strings.Builder
		fmt.Fprintf(&b, "SELECT 'cheflieu:' || gid, ST_X(geom), ST_Y(geom), 'cheflieu:' || coalesce(typecart, '') FROM %s", ident(t.ChefsLieux))
		where := regionClause(region, args)
		if len(pred.ChefsLieux.Include) > 0 {
			args["cl_include"] = pred.ChefsLieux.Include
			where = append(where, "typecart = ANY(@cl_include::text[])")
		}
		if len(pred.ChefsLieux.Exclude) > 0 {
			args["cl_exclude"] = pred.ChefsLieux.Exclude
			where = append(where, "coalesce(typecart, '') <> ALL(@cl_exclude::text[])")
		}
		writeWhere(&b, where)
		parts = append(parts, b.String())
	}
	return strings.Join(parts, "\nUNION ALL\n"), args
}

// cellQuery joins the selected toponyms to the cells that contain them and to
// the cell seats.
func cellQuery(t Tables, pred method.Predicate, region geo.Region) (string, pgx.NamedArgs) {
	args := pgx.NamedArgs{}
	var b strings.Builder
	b.WriteString("SELECT 'toponym:' || a.id, ST_X(a.geom), ST_Y(a.geom), 'toponym:' || a.type_id, c.gid, ST_X(s.geom), ST_Y(s.geom)\n")
	fmt.Fprintf(&b, "FROM %s AS a\n", ident(t.Toponyms))
	fmt.Fprintf(&b, "JOIN %s AS c ON ST_Within(a.geom, c.geom)\n", ident(t.Cells))
	fmt.Fprintf(&b, "JOIN %s AS s ON s.gid = c.gid", ident(t.ChefsLieux))

	where := toponymClauses("a.type_id", pred.Toponyms, args)
	if !region.IsZero() {
		args["region"] = region.EWKT()
		where = append(where, "ST_Within(a.geom, ST_Intersection(c.geom, ST_GeomFromEWKT(@region)))")
	}
	writeWhere(&b, where)
	b.WriteString("\nORDER BY c.gid, a.id")
	return b.String(), args
}

func regionClause(region geo.Region, args pgx.NamedArgs) []string {
	if region.IsZero() {
		return nil
	}
	args["region"] = region.EWKT()
	return []string{"ST_Within(geom, ST_GeomFromEWKT(@region))"}
}

func toponymClauses(col string, f method.TypeFilter, args pgx.NamedArgs) []string {
	var where []string
	if len(f.Include) > 0 {
		args["topo_include"] = f.Include
		where = append(where, col+" = ANY(@topo_include::int[])")
	}
	if len(f.Exclude) > 0 {
		args["topo_exclude"] = f.Exclude
		where = append(where, col+" <> ALL(@topo_exclude::int[])")
	}
	return where
}

func writeWhere(b *strings.Builder, where []string) {
	if len(where) > 0 {
		b.WriteString("\nWHERE ")
		b.WriteString(strings.Join(where, "\n  AND "))
	}
}

// ident quotes a possibly schema-qualified relation name.
func ident(name string) string {
	return pgx.Identifier(strings.Split(name, ".")).Sanitize()
}

var (
	_ FeatureSource = (*PostGIS)(nil)
	_ CellSource    = (*PostGIS)(nil)
	_ Closer        = (*PostGIS)(nil)
)
