package source

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"

	"github.com/geohistoricaldata/cassinigraph/pkg/cache"
	"github.com/geohistoricaldata/cassinigraph/pkg/errors"
	"github.com/geohistoricaldata/cassinigraph/pkg/geo"
	"github.com/geohistoricaldata/cassinigraph/pkg/method"
)

// SQLiteSchema creates the tables of a local extract of the Cassini layers.
// Coordinates are stored in the projected CRS of the extract; cell areas are
// WKT polygons keyed by the gid of their seat.
const SQLiteSchema = `
CREATE TABLE IF NOT EXISTS toponyms (
	id      INTEGER PRIMARY KEY,
	type_id INTEGER NOT NULL,
	x       REAL    NOT NULL,
	y       REAL    NOT NULL
);
CREATE TABLE IF NOT EXISTS chefs_lieux (
	gid      INTEGER PRIMARY KEY,
	typecart TEXT,
	x        REAL NOT NULL,
	y        REAL NOT NULL
);
CREATE TABLE IF NOT EXISTS cells (
	gid  INTEGER PRIMARY KEY REFERENCES chefs_lieux(gid),
	area TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS toponyms_xy ON toponyms(x, y);
CREATE INDEX IF NOT EXISTS chefs_lieux_xy ON chefs_lieux(x, y);
`

// SQLite reads features from a SQLite extract laid out as [SQLiteSchema].
type SQLite struct {
	db    *sql.DB
	scope string
}

// OpenSQLite opens the extract at path read-only.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeSource, err, "open %s", path)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(errors.ErrCodeSource, err, "open %s", path)
	}
	return &SQLite{db: db, scope: pathScope(path)}, nil
}

// NewSQLite wraps an open database. Its results are cached under scope,
// which should identify the database file.
func NewSQLite(db *sql.DB, scope string) *SQLite { return &SQLite{db: db, scope: scope} }

// Name returns "sqlite".
func (s *SQLite) Name() string { return "sqlite" }

// Scope returns the hash of the extract's absolute path.
func (s *SQLite) Scope() string { return s.scope }

func pathScope(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return cache.Hash([]byte(path))
}

// Close closes the database.
func (s *SQLite) Close() error { return s.db.Close() }

// Query selects the matching features. Type filters and the region's bounding
// box are applied in SQL, the exact region test in Go.
func (s *SQLite) Query(ctx context.Context, pred method.Predicate, region geo.Region) ([]geo.Node, error) {
	var nodes []geo.Node
	if !pred.Toponyms.Skip {
		ts, err := s.toponyms(ctx, pred.Toponyms, region)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, ts...)
	}
	if !pred.ChefsLieux.Skip {
		cs, err := s.chefsLieux(ctx, pred.ChefsLieux, region)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, cs...)
	}
	return filter(nodes, pred, region), nil
}

// Cells links the matching toponyms to the seat of the cell containing them.
func (s *SQLite) Cells(ctx context.Context, pred method.Predicate, region geo.Region) ([]CellLink, error) {
	nodes, err := s.toponyms(ctx, pred.Toponyms, region)
	if err != nil {
		return nil, err
	}
	nodes = filter(nodes, pred, region)

	rows, err := s.db.QueryContext(ctx,
		"SELECT c.gid, c.area, s.x, s.y FROM cells c JOIN chefs_lieux s ON s.gid = c.gid ORDER BY c.gid")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeSource, err, "query cells")
	}
	defer rows.Close()

	var cells []Cell
	for rows.Next() {
		var (
			c    Cell
			area string
		)
		if err := rows.Scan(&c.ID, &area, &c.Seat[0], &c.Seat[1]); err != nil {
			return nil, errors.Wrap(errors.ErrCodeSource, err, "read cells")
		}
		poly, err := wkt.UnmarshalPolygon(area)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeSource, err, "cell %d: invalid area", c.ID)
		}
		c.Area = poly
		cells = append(cells, c)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeSource, err, "read cells")
	}
	return assignCells(nodes, cells), nil
}

func (s *SQLite) toponyms(ctx context.Context, f method.TypeFilter, region geo.Region) ([]geo.Node, error) {
	var (
		where []string
		args  []any
	)
	where, args = bboxClause(region, where, args)
	if len(f.Include) > 0 {
		where = append(where, "type_id IN ("+placeholders(len(f.Include))+")")
		for _, t := range f.Include {
			args = append(args, t)
		}
	}
	if len(f.Exclude) > 0 {
		where = append(where, "type_id NOT IN ("+placeholders(len(f.Exclude))+")")
		for _, t := range f.Exclude {
			args = append(args, t)
		}
	}

	q := "SELECT id, type_id, x, y FROM toponyms" + whereSQL(where)
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeSource, err, "query toponyms")
	}
	defer rows.Close()

	var nodes []geo.Node
	for rows.Next() {
		var (
			id   int64
			typ  int
			x, y float64
		)
		if err := rows.Scan(&id, &typ, &x, &y); err != nil {
			return nil, errors.Wrap(errors.ErrCodeSource, err, "read toponyms")
		}
		nodes = append(nodes, geo.Node{ID: ToponymID(id), Loc: orb.Point{x, y}, Category: method.ToponymCategory(typ)})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeSource, err, "read toponyms")
	}
	return nodes, nil
}

func (s *SQLite) chefsLieux(ctx context.Context, f method.LabelFilter, region geo.Region) ([]geo.Node, error) {
	var (
		where []string
		args  []any
	)
	where, args = bboxClause(region, where, args)
	if len(f.Include) > 0 {
		where = append(where, "typecart IN ("+placeholders(len(f.Include))+")")
		for _, l := range f.Include {
			args = append(args, l)
		}
	}

	q := "SELECT gid, coalesce(typecart, ''), x, y FROM chefs_lieux" + whereSQL(where)
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeSource, err, "query chefs-lieux")
	}
	defer rows.Close()

	var nodes []geo.Node
	for rows.Next() {
		var (
			gid   int64
			label string
			x, y  float64
		)
		if err := rows.Scan(&gid, &label, &x, &y); err != nil {
			return nil, errors.Wrap(errors.ErrCodeSource, err, "read chefs-lieux")
		}
		nodes = append(nodes, geo.Node{ID: ChefLieuID(gid), Loc: orb.Point{x, y}, Category: method.ChefLieuCategory(label)})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeSource, err, "read chefs-lieux")
	}
	return nodes, nil
}

func bboxClause(region geo.Region, where []string, args []any) ([]string, []any) {
	if region.IsZero() {
		return where, args
	}
	b := region.Bound()
	where = append(where, "x BETWEEN ? AND ?", "y BETWEEN ? AND ?")
	return where, append(args, b.Min[0], b.Max[0], b.Min[1], b.Max[1])
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func whereSQL(where []string) string {
	if len(where) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(where, " AND ")
}

// Dataset is the content of a SQLite extract.
type Dataset struct {
	Toponyms   []Toponym
	ChefsLieux []ChefLieu
	Cells      []Cell
}

// Toponym is a row of the toponyms table.
type Toponym struct {
	ID     int64
	TypeID int
	Loc    orb.Point
}

// ChefLieu is a row of the chefs_lieux table.
type ChefLieu struct {
	GID      int64
	TypeCart string
	Loc      orb.Point
}

// WriteSQLite creates the schema in db and inserts ds in one transaction.
// Cell ids must be the gid of an existing chef-lieu.
func WriteSQLite(ctx context.Context, db *sql.DB, ds Dataset) error {
	if _, err := db.ExecContext(ctx, SQLiteSchema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, t := range ds.Toponyms {
		if _, err := tx.ExecContext(ctx, "INSERT INTO toponyms (id, type_id, x, y) VALUES (?, ?, ?, ?)",
			t.ID, t.TypeID, t.Loc[0], t.Loc[1]); err != nil {
			return fmt.Errorf("insert toponym %d: %w", t.ID, err)
		}
	}
	for _, c := range ds.ChefsLieux {
		if _, err := tx.ExecContext(ctx, "INSERT INTO chefs_lieux (gid, typecart, x, y) VALUES (?, ?, ?, ?)",
			c.GID, c.TypeCart, c.Loc[0], c.Loc[1]); err != nil {
			return fmt.Errorf("insert chef-lieu %d: %w", c.GID, err)
		}
	}
	for _, c := range ds.Cells {
		if _, err := tx.ExecContext(ctx, "INSERT INTO cells (gid, area) VALUES (?, ?)",
			c.ID, wkt.MarshalString(c.Area)); err != nil {
			return fmt.Errorf("insert cell %d: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

var (
	_ FeatureSource = (*SQLite)(nil)
	_ CellSource    = (*SQLite)(nil)
	_ Closer        = (*SQLite)(nil)
)
