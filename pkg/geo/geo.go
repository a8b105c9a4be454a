// Package geo defines the point features and regions the pipeline works on.
//
// Coordinates are planar (a projected CRS such as Lambert-93, EPSG:2154), so
// distances are Euclidean and expressed in the units of the CRS.
package geo

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/planar"
)

// Node is a geolocated point feature.
//
// ID must be unique within one query result. Category is the source type tag
// the feature was selected by; it is informational once the node leaves the
// source.
type Node struct {
	ID       string    `json:"id"`
	Loc      orb.Point `json:"loc"`
	Category string    `json:"category,omitempty"`
}

// Distance returns the planar distance between a and b.
// It is symmetric: Distance(a, b) == Distance(b, a) bit for bit.
func Distance(a, b orb.Point) float64 {
	return planar.Distance(a, b)
}

// Region is a bounding polygon with its spatial reference id.
type Region struct {
	SRID    int
	Polygon orb.MultiPolygon
}

// Sheet52 is the footprint of Cassini map sheet n°52, in Lambert-93.
const Sheet52 = "SRID=2154;MULTIPOLYGON(((764888.786132299 6492879.32317303,687116.995262039 6493785.37890199,687553.636039631 6543122.02721408,765542.471445634 6542310.77705176,764888.786132299 6492879.32317303)))"

// ParseRegion parses an EWKT polygon or multipolygon ("SRID=n;MULTIPOLYGON(...)").
// The SRID prefix is optional and defaults to 0.
func ParseRegion(ewkt string) (Region, error) {
	s := strings.TrimSpace(ewkt)
	var r Region
	if head, rest, ok := strings.Cut(s, ";"); ok && strings.HasPrefix(strings.ToUpper(head), "SRID=") {
		srid, err := strconv.Atoi(strings.TrimSpace(head[len("SRID="):]))
		if err != nil {
			return Region{}, fmt.Errorf("parse srid %q: %w", head, err)
		}
		r.SRID = srid
		s = strings.TrimSpace(rest)
	}

	geom, err := wkt.Unmarshal(s)
	if err != nil {
		return Region{}, fmt.Errorf("parse region: %w", err)
	}
	switch g := geom.(type) {
	case orb.MultiPolygon:
		r.Polygon = g
	case orb.Polygon:
		r.Polygon = orb.MultiPolygon{g}
	default:
		return Region{}, fmt.Errorf("parse region: unsupported geometry %s", geom.GeoJSONType())
	}
	if len(r.Polygon) == 0 {
		return Region{}, fmt.Errorf("parse region: empty polygon")
	}
	return r, nil
}

// MustParseRegion is like ParseRegion but panics on error.
// It is meant for package-level defaults.
func MustParseRegion(ewkt string) Region {
	r, err := ParseRegion(ewkt)
	if err != nil {
		panic(err)
	}
	return r
}

// DefaultRegion returns the Cassini sheet 52 footprint.
func DefaultRegion() Region {
	return MustParseRegion(Sheet52)
}

// Contains reports whether p lies inside the region. The zero Region is
// unbounded and contains every point.
func (r Region) Contains(p orb.Point) bool {
	if r.IsZero() {
		return true
	}
	return planar.MultiPolygonContains(r.Polygon, p)
}

// Bound returns the region's bounding box.
func (r Region) Bound() orb.Bound {
	return r.Polygon.Bound()
}

// IsZero reports whether the region has no polygon.
func (r Region) IsZero() bool {
	return len(r.Polygon) == 0
}

// EWKT renders the region the way PostGIS' ST_GeomFromEWKT expects it.
func (r Region) EWKT() string {
	return fmt.Sprintf("SRID=%d;%s", r.SRID, wkt.MarshalString(r.Polygon))
}
