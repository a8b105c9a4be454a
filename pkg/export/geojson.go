package export

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/paulmach/orb/geojson"
)

// FeatureCollection converts records to GeoJSON. Each feature carries the
// layer attribute and its segment count as properties.
func FeatureCollection(layer Layer, records []Record) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, r := range records {
		f := geojson.NewFeature(r.MultiLineString())
		f.Properties[layer.Attribute] = r.ID
		f.Properties["segments"] = len(r.Segments)
		fc.Append(f)
	}
	return fc
}

// WriteGeoJSON encodes records as an indented FeatureCollection.
func WriteGeoJSON(w io.Writer, layer Layer, records []Record) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(FeatureCollection(layer, records))
}

// GeoJSONSink writes <dir>/<layer>.geojson.
type GeoJSONSink struct {
	buffer
	dir   string
	layer Layer
}

// NewGeoJSONSink returns a sink writing into dir.
func NewGeoJSONSink(dir string, layer Layer) (*GeoJSONSink, error) {
	if err := checkLayer(layer); err != nil {
		return nil, err
	}
	return &GeoJSONSink{dir: dir, layer: layer}, nil
}

// Path returns the output path.
func (s *GeoJSONSink) Path() string { return filepath.Join(s.dir, s.layer.Name+".geojson") }

// Finalize rewrites the file.
func (s *GeoJSONSink) Finalize(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := writeFile(s.Path(), func(w io.Writer) error {
		return WriteGeoJSON(w, s.layer, s.records)
	})
	if err != nil {
		return exportErr(s.layer, FormatGeoJSON, err)
	}
	return nil
}

// writeFile writes path through a temporary file in the same directory.
func writeFile(path string, fn func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*")
	if err != nil {
		return err
	}
	if err := fn(tmp); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

var _ Sink = (*GeoJSONSink)(nil)
