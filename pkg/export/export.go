// Package export persists components as polyline records.
//
// A record is a component id (or cell id) with its ordered segments. Records
// reach a [Sink] one at a time through Write; Finalize makes them durable.
// File sinks buffer records and rewrite their whole output in Finalize, so
// exporting the same records twice yields byte-identical files.
//
// Available formats:
//
//   - shp: ESRI shapefile, one multi-part POLYLINE per record
//   - geojson: FeatureCollection of MultiLineString features
//   - dot, svg: Graphviz drawing with nodes pinned at their coordinates
//   - mongo: one document per record in a collection named after the layer
package export

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/paulmach/orb"

	"github.com/geohistoricaldata/cassinigraph/pkg/errors"
)

// Segment is a straight line between two points.
type Segment struct {
	From orb.Point `json:"from"`
	To   orb.Point `json:"to"`
}

// Record is one exported row: an id and its segments in order.
type Record struct {
	ID       int       `json:"id"`
	Segments []Segment `json:"segments"`
}

// MultiLineString returns the record geometry, one two-point line per segment.
func (r Record) MultiLineString() orb.MultiLineString {
	mls := make(orb.MultiLineString, len(r.Segments))
	for i, s := range r.Segments {
		mls[i] = orb.LineString{s.From, s.To}
	}
	return mls
}

// Layer describes the output of one method.
type Layer struct {
	Name      string // method name: file basename, collection name
	Attribute string // name of the integer id attribute
	SRID      int
}

// Sink receives records.
type Sink interface {
	// Write adds a record. Segments are kept in the given order.
	Write(ctx context.Context, id int, segments []Segment) error

	// Finalize persists everything written so far.
	Finalize(ctx context.Context) error
}

// Format names an output format.
type Format string

const (
	FormatShapefile Format = "shp"
	FormatGeoJSON   Format = "geojson"
	FormatDOT       Format = "dot"
	FormatSVG       Format = "svg"
	FormatMongo     Format = "mongo"
)

// Formats lists the supported formats.
var Formats = []Format{FormatShapefile, FormatGeoJSON, FormatDOT, FormatSVG, FormatMongo}

// ParseFormats parses comma-separated format lists, dropping repeats.
func ParseFormats(values ...string) ([]Format, error) {
	var out []Format
	for _, v := range values {
		for _, s := range strings.Split(v, ",") {
			f := Format(strings.ToLower(strings.TrimSpace(s)))
			if f == "" || slices.Contains(out, f) {
				continue
			}
			if !slices.Contains(Formats, f) {
				return nil, errors.New(errors.ErrCodeInvalidFormat,
					"unknown format %q (supported: %s)", s, formatList())
			}
			out = append(out, f)
		}
	}
	if len(out) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidFormat, "no output format given")
	}
	return out, nil
}

func formatList() string {
	s := make([]string, len(Formats))
	for i, f := range Formats {
		s[i] = string(f)
	}
	return strings.Join(s, ", ")
}

// buffer accumulates records for sinks that write on Finalize.
type buffer struct {
	records []Record
}

func (b *buffer) Write(ctx context.Context, id int, segments []Segment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.records = append(b.records, Record{ID: id, Segments: slices.Clone(segments)})
	return nil
}

func exportErr(layer Layer, format Format, err error) error {
	return errors.Wrap(errors.ErrCodeExport, err, "export %s as %s", layer.Name, format)
}

func checkLayer(l Layer) error {
	if l.Name == "" {
		return fmt.Errorf("layer has no name")
	}
	if l.Attribute == "" {
		return fmt.Errorf("layer %s has no attribute", l.Name)
	}
	return nil
}
