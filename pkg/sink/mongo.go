package sink

import (
	"context"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/PenHsuanWang/file-data-fetcher/pkg/config"
	"github.com/PenHsuanWang/file-data-fetcher/pkg/models"
)

// MongoSink persists batches to a MongoDB collection.
//
// Inserts are ordered but not transactional: if a write fails mid-batch
// the documents before the failure stay inserted. The error is still
// surfaced and the file is not marked processed, so the replay re-runs
// the whole batch.
type MongoSink struct {
	client     *mongo.Client
	collection *mongo.Collection
	logger     *slog.Logger
}

// NewMongoSink connects to MongoDB and creates a new MongoSink
func NewMongoSink(ctx context.Context, cfg config.MongoConfig, logger *slog.Logger) (*MongoSink, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, &SinkError{Sink: "mongodb", Err: err}
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, &SinkError{Sink: "mongodb", Err: err}
	}

	return &MongoSink{
		client:     client,
		collection: client.Database(cfg.Database).Collection(cfg.Collection),
		logger:     logger,
	}, nil
}

func (s *MongoSink) Name() string { return "mongodb" }

// SaveBatch inserts all records of the batch into the collection
func (s *MongoSink) SaveBatch(ctx context.Context, batch *models.Batch) error {
	s.logger.Info("inserting batch into MongoDB",
		"collection", s.collection.Name(),
		"file", batch.SourceFile,
		"records", batch.Count())

	if err := s.InsertRecords(ctx, batch.Records); err != nil {
		return &SinkError{
			Sink:       s.Name(),
			SourceFile: batch.SourceFile,
			Checksum:   batch.Checksum,
			Err:        err,
		}
	}
	return nil
}

// InsertRecords bulk-inserts records as documents
func (s *MongoSink) InsertRecords(ctx context.Context, records []models.ValidatedRecord) error {
	docs := make([]interface{}, 0, len(records))
	for _, rec := range records {
		doc := bson.M{}
		for k, v := range rec.Values {
			doc[k] = v
		}
		docs = append(docs, doc)
	}

	_, err := s.collection.InsertMany(ctx, docs)
	return err
}

// Close disconnects the client
func (s *MongoSink) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
