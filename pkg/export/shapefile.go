package export

import (
	"context"
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	shp "github.com/jonas-p/go-shp"
)

// lambert93 is the ESRI WKT of EPSG:2154, written as the .prj of Lambert-93
// layers.
const lambert93 = `PROJCS["RGF93_Lambert_93",GEOGCS["GCS_RGF_1993",DATUM["D_RGF_1993",SPHEROID["GRS_1980",6378137.0,298.257222101]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]],PROJECTION["Lambert_Conformal_Conic"],PARAMETER["False_Easting",700000.0],PARAMETER["False_Northing",6600000.0],PARAMETER["Central_Meridian",3.0],PARAMETER["Standard_Parallel_1",44.0],PARAMETER["Standard_Parallel_2",49.0],PARAMETER["Latitude_Of_Origin",46.5],UNIT["Meter",1.0]]`

// ShapefileSink writes <dir>/<layer>.shp with its .shx and .dbf companions.
// Each record becomes one POLYLINE shape with one part per segment.
type ShapefileSink struct {
	buffer
	dir   string
	layer Layer
}

// NewShapefileSink returns a sink writing into dir.
func NewShapefileSink(dir string, layer Layer) (*ShapefileSink, error) {
	if err := checkLayer(layer); err != nil {
		return nil, err
	}
	return &ShapefileSink{dir: dir, layer: layer}, nil
}

// Path returns the .shp path.
func (s *ShapefileSink) Path() string { return filepath.Join(s.dir, s.layer.Name+".shp") }

// Finalize rewrites the shapefile with every record written so far.
func (s *ShapefileSink) Finalize(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return exportErr(s.layer, FormatShapefile, err)
	}
	if err := s.write(); err != nil {
		return exportErr(s.layer, FormatShapefile, err)
	}
	return nil
}

func (s *ShapefileSink) write() error {
	base := filepath.Join(s.dir, s.layer.Name)
	w, err := shp.Create(base+".shp", shp.POLYLINE)
	if err != nil {
		return err
	}
	if err := w.SetFields([]shp.Field{shp.NumberField(s.layer.Attribute, 10)}); err != nil {
		w.Close()
		return err
	}

	for _, r := range s.records {
		parts := make([][]shp.Point, len(r.Segments))
		for i, seg := range r.Segments {
			parts[i] = []shp.Point{{X: seg.From[0], Y: seg.From[1]}, {X: seg.To[0], Y: seg.To[1]}}
		}
		row := w.Write(shp.NewPolyLine(parts))
		if err := w.WriteAttribute(int(row), 0, r.ID); err != nil {
			w.Close()
			return fmt.Errorf("record %d: %w", r.ID, err)
		}
	}
	w.Close()

	// go-shp v0.1.1 names the attribute table "<base>dbf".
	if err := os.Rename(base+"dbf", base+".dbf"); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
		return err
	}

	if s.layer.SRID == 2154 {
		return os.WriteFile(base+".prj", []byte(lambert93), 0o644)
	}
	return nil
}

var _ Sink = (*ShapefileSink)(nil)
