package export

import (
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/geohistoricaldata/cassinigraph/pkg/errors"
)

// Target says where sinks opened by [Open] write.
type Target struct {
	Dir   string          // output directory of file formats
	Mongo *mongo.Database // required by FormatMongo
}

// Open returns a sink writing layer in every format, fanned out in order.
func Open(target Target, layer Layer, formats []Format) (Sink, error) {
	sinks := make(MultiSink, 0, len(formats))
	for _, f := range formats {
		s, err := open(target, layer, f)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "open %s sink for %s", f, layer.Name)
		}
		sinks = append(sinks, s)
	}
	if len(sinks) == 1 {
		return sinks[0], nil
	}
	return sinks, nil
}

func open(target Target, layer Layer, f Format) (Sink, error) {
	switch f {
	case FormatShapefile:
		return NewShapefileSink(target.Dir, layer)
	case FormatGeoJSON:
		return NewGeoJSONSink(target.Dir, layer)
	case FormatDOT, FormatSVG:
		return NewGraphvizSink(target.Dir, layer, f)
	case FormatMongo:
		if target.Mongo == nil {
			return nil, errors.New(errors.ErrCodeInvalidConfig, "mongo format needs --mongo-uri")
		}
		return NewMongoSink(target.Mongo, layer)
	}
	return nil, errors.New(errors.ErrCodeInvalidFormat, "unknown format %q", f)
}
