package export

import (
	"context"
	"fmt"

	"github.com/paulmach/orb/geojson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// DefaultMongoDatabase is the database used when the URI names none.
const DefaultMongoDatabase = "cassinigraph"

// ConnectMongo opens a client for uri and checks it with a ping.
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, nil
}

type mongoDocument struct {
	Method    string            `bson:"method"`
	Attribute string            `bson:"attribute"`
	ID        int               `bson:"id"`
	Segments  int               `bson:"segments"`
	Geometry  *geojson.Geometry `bson:"geometry"`
}

func mongoDocuments(layer Layer, records []Record) []any {
	docs := make([]any, len(records))
	for i, r := range records {
		docs[i] = mongoDocument{
			Method:    layer.Name,
			Attribute: layer.Attribute,
			ID:        r.ID,
			Segments:  len(r.Segments),
			Geometry:  geojson.NewGeometry(r.MultiLineString()),
		}
	}
	return docs
}

// MongoSink stores one document per record in the collection named after the
// layer. Finalize replaces the collection's content.
type MongoSink struct {
	buffer
	coll  *mongo.Collection
	layer Layer
}

// NewMongoSink returns a sink writing into db.
func NewMongoSink(db *mongo.Database, layer Layer) (*MongoSink, error) {
	if err := checkLayer(layer); err != nil {
		return nil, err
	}
	return &MongoSink{coll: db.Collection(layer.Name), layer: layer}, nil
}

// Finalize drops the collection and inserts every record, in order.
func (s *MongoSink) Finalize(ctx context.Context) error {
	if err := s.coll.Drop(ctx); err != nil {
		return exportErr(s.layer, FormatMongo, err)
	}
	if len(s.records) == 0 {
		return nil
	}
	if _, err := s.coll.InsertMany(ctx, mongoDocuments(s.layer, s.records)); err != nil {
		return exportErr(s.layer, FormatMongo, err)
	}
	return nil
}

var _ Sink = (*MongoSink)(nil)
