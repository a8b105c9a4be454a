package export

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	shp "github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geohistoricaldata/cassinigraph/pkg/errors"
)

var layer = Layer{Name: "full", Attribute: "component", SRID: 2154}

// records are the forest of the A/B/C/D example: A(0,0) B(3,0) D(3,4).
func records() []Record {
	return []Record{
		{ID: 0, Segments: []Segment{
			{From: orb.Point{0, 0}, To: orb.Point{3, 0}},
			{From: orb.Point{3, 0}, To: orb.Point{3, 4}},
		}},
		{ID: 1, Segments: []Segment{
			{From: orb.Point{100, 100}, To: orb.Point{101, 100}},
		}},
	}
}

func writeAll(t *testing.T, s Sink, rs []Record) {
	t.Helper()
	ctx := context.Background()
	for _, r := range rs {
		require.NoError(t, s.Write(ctx, r.ID, r.Segments))
	}
	require.NoError(t, s.Finalize(ctx))
}

func TestParseFormats(t *testing.T) {
	got, err := ParseFormats("shp,GeoJSON", "svg", "shp")
	require.NoError(t, err)
	assert.Equal(t, []Format{FormatShapefile, FormatGeoJSON, FormatSVG}, got)

	_, err = ParseFormats("kml")
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidFormat))

	_, err = ParseFormats("", " , ")
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidFormat))
}

func TestMemorySink(t *testing.T) {
	s := NewMemorySink()
	rs := records()
	writeAll(t, s, rs)
	assert.Equal(t, rs, s.Records())
	assert.Equal(t, 1, s.Finalized())

	// Mutating the caller's slice after Write must not change the record.
	segs := []Segment{{From: orb.Point{1, 1}, To: orb.Point{2, 2}}}
	require.NoError(t, s.Write(context.Background(), 9, segs))
	segs[0].To = orb.Point{5, 5}
	require.NoError(t, s.Finalize(context.Background()))
	assert.Equal(t, orb.Point{2, 2}, s.Records()[2].Segments[0].To)
}

func TestMemorySinkEmpty(t *testing.T) {
	s := NewMemorySink()
	require.NoError(t, s.Finalize(context.Background()))
	assert.Empty(t, s.Records())
	assert.Equal(t, 1, s.Finalized())
}

type failingSink struct {
	MemorySink
	err error
}

func (f *failingSink) Finalize(context.Context) error { return f.err }

func TestMultiSink(t *testing.T) {
	a, b := NewMemorySink(), NewMemorySink()
	writeAll(t, MultiSink{a, b}, records())
	assert.Equal(t, a.Records(), b.Records())

	boom := assert.AnError
	c := NewMemorySink()
	err := MultiSink{&failingSink{err: boom}, c}.Finalize(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, c.Finalized(), "later sinks are still finalized")
}

func TestShapefileSink(t *testing.T) {
	dir := t.TempDir()
	s, err := NewShapefileSink(dir, layer)
	require.NoError(t, err)
	writeAll(t, s, records())

	for _, ext := range []string{".shp", ".shx", ".dbf", ".prj"} {
		assert.FileExists(t, filepath.Join(dir, "full"+ext))
	}
	assert.NoFileExists(t, filepath.Join(dir, "fulldbf"))

	r, err := shp.Open(s.Path())
	require.NoError(t, err)
	defer r.Close()

	fields := r.Fields()
	require.Len(t, fields, 1)
	assert.Equal(t, "component", fields[0].String())

	var got []Record
	for r.Next() {
		n, shape := r.Shape()
		line, ok := shape.(*shp.PolyLine)
		require.True(t, ok, "shape %d is %T", n, shape)

		id, err := strconv.Atoi(strings.TrimRight(r.ReadAttribute(n, 0), "\x00 "))
		require.NoError(t, err)

		rec := Record{ID: id}
		for p := 0; p < int(line.NumParts); p++ {
			start := line.Parts[p]
			rec.Segments = append(rec.Segments, Segment{
				From: orb.Point{line.Points[start].X, line.Points[start].Y},
				To:   orb.Point{line.Points[start+1].X, line.Points[start+1].Y},
			})
		}
		got = append(got, rec)
	}
	require.NoError(t, r.Err())
	assert.Equal(t, records(), got)
}

func TestShapefileSinkIdempotent(t *testing.T) {
	dir := t.TempDir()
	export := func() map[string][]byte {
		s, err := NewShapefileSink(dir, layer)
		require.NoError(t, err)
		writeAll(t, s, records())
		files := make(map[string][]byte)
		for _, ext := range []string{".shp", ".shx", ".dbf"} {
			data, err := os.ReadFile(filepath.Join(dir, "full"+ext))
			require.NoError(t, err)
			files[ext] = data
		}
		return files
	}
	assert.Equal(t, export(), export())
}

func TestShapefileSinkEmpty(t *testing.T) {
	dir := t.TempDir()
	s, err := NewShapefileSink(dir, Layer{Name: "religion", Attribute: "component"})
	require.NoError(t, err)
	require.NoError(t, s.Finalize(context.Background()))
	assert.FileExists(t, filepath.Join(dir, "religion.shp"))
	assert.NoFileExists(t, filepath.Join(dir, "religion.prj"), "no projection without a known SRID")
}

func TestGeoJSONSink(t *testing.T) {
	dir := t.TempDir()
	s, err := NewGeoJSONSink(dir, layer)
	require.NoError(t, err)
	writeAll(t, s, records())

	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	fc, err := geojson.UnmarshalFeatureCollection(data)
	require.NoError(t, err)
	require.Len(t, fc.Features, 2)

	f := fc.Features[0]
	assert.Equal(t, 0.0, f.Properties["component"])
	assert.Equal(t, 2.0, f.Properties["segments"])
	assert.Equal(t, orb.MultiLineString{{{0, 0}, {3, 0}}, {{3, 0}, {3, 4}}}, f.Geometry)

	// A second export of the same records is byte-identical.
	s2, err := NewGeoJSONSink(dir, layer)
	require.NoError(t, err)
	writeAll(t, s2, records())
	again, err := os.ReadFile(s2.Path())
	require.NoError(t, err)
	assert.Equal(t, data, again)
}

func TestWriteGeoJSONEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteGeoJSON(&buf, layer, nil))
	var doc map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "FeatureCollection", doc["type"])
	assert.Empty(t, doc["features"])
}

func TestToDOT(t *testing.T) {
	dot := ToDOT(layer, records())
	assert.True(t, strings.HasPrefix(dot, `graph "full" {`))
	assert.Equal(t, 5, strings.Count(dot, "[pos="), "shared endpoint B is drawn once")
	assert.Equal(t, 3, strings.Count(dot, " -- "))
	assert.Contains(t, dot, `tooltip="component 1"`)
	assert.Equal(t, dot, ToDOT(layer, records()))
}

func TestGraphvizSink(t *testing.T) {
	dir := t.TempDir()

	dotSink, err := NewGraphvizSink(dir, layer, FormatDOT)
	require.NoError(t, err)
	writeAll(t, dotSink, records())
	assert.FileExists(t, filepath.Join(dir, "full.dot"))

	svgSink, err := NewGraphvizSink(dir, layer, FormatSVG)
	require.NoError(t, err)
	writeAll(t, svgSink, records())
	svg, err := os.ReadFile(filepath.Join(dir, "full.svg"))
	require.NoError(t, err)
	assert.Contains(t, string(svg), "<svg")

	_, err = NewGraphvizSink(dir, layer, FormatShapefile)
	assert.Error(t, err)
}

func TestMongoDocuments(t *testing.T) {
	docs := mongoDocuments(layer, records())
	require.Len(t, docs, 2)
	d := docs[0].(mongoDocument)
	assert.Equal(t, "full", d.Method)
	assert.Equal(t, "component", d.Attribute)
	assert.Equal(t, 2, d.Segments)
	assert.Equal(t, "MultiLineString", d.Geometry.Type)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(Target{Dir: dir}, layer, []Format{FormatGeoJSON})
	require.NoError(t, err)
	assert.IsType(t, &GeoJSONSink{}, s)

	s, err = Open(Target{Dir: dir}, layer, []Format{FormatShapefile, FormatDOT})
	require.NoError(t, err)
	require.IsType(t, MultiSink{}, s)
	assert.Len(t, s.(MultiSink), 2)

	_, err = Open(Target{Dir: dir}, layer, []Format{FormatMongo})
	assert.True(t, errors.IsValidation(err))

	_, err = Open(Target{Dir: dir}, Layer{Name: "x"}, []Format{FormatShapefile})
	assert.Error(t, err, "layer without attribute")
}
