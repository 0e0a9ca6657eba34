package sinks

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/Ramsey-B/fern/pkg/tracing"
)

// MongoDocument is the stored shape of one exported record.
type MongoDocument struct {
	ID          string         `bson:"_id"`
	RecordID    string         `bson:"record_id"`
	BatchLabel  string         `bson:"batch_label"`
	RunID       string         `bson:"run_id"`
	ContentHash string         `bson:"content_hash"`
	ExportedAt  time.Time      `bson:"exported_at"`
	Data        map[string]any `bson:"data"`
}

// DocumentWriter upserts documents by _id.
type DocumentWriter interface {
	UpsertMany(ctx context.Context, docs []MongoDocument) error
}

// MongoSink upserts one document per record. Document ids combine batch label and record id
// so separate surveys never overwrite each other.
type MongoSink struct {
	writer DocumentWriter
	logger ectologger.Logger
}

func NewMongoSink(writer DocumentWriter, logger ectologger.Logger) *MongoSink {
	return &MongoSink{writer: writer, logger: logger}
}

func (s *MongoSink) Name() string {
	return TargetMongo
}

func (s *MongoSink) Export(ctx context.Context, export Export) error {
	ctx, span := tracing.StartSpan(ctx, "sinks.MongoSink.Export")
	defer span.End()

	for i, page := range export.Pages {
		docs := make([]MongoDocument, 0, len(page))
		for j, record := range page {
			entry := export.Entry(i, j)
			if entry.Key == "" {
				continue
			}
			docs = append(docs, MongoDocument{
				ID:          export.Metadata.BatchLabel + ":" + entry.Key,
				RecordID:    entry.ID,
				BatchLabel:  export.Metadata.BatchLabel,
				RunID:       export.Metadata.RunID,
				ContentHash: string(entry.Hash),
				ExportedAt:  export.Metadata.GeneratedAt.UTC(),
				Data:        record.ToMap(),
			})
		}

		if len(docs) == 0 {
			continue
		}
		if err := s.writer.UpsertMany(ctx, docs); err != nil {
			return fmt.Errorf("failed to write page %d of %d: %w", i+1, len(export.Pages), err)
		}
	}
	return nil
}

// MongoCollection writes to a real collection with unordered bulk replaces.
type MongoCollection struct {
	client     *mongo.Client
	collection *mongo.Collection
}

func ConnectMongo(ctx context.Context, uri, databaseName, collectionName string) (*MongoCollection, error) {
	if uri == "" {
		return nil, fmt.Errorf("a mongo URI is required")
	}

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	return &MongoCollection{
		client:     client,
		collection: client.Database(databaseName).Collection(collectionName),
	}, nil
}

func (c *MongoCollection) UpsertMany(ctx context.Context, docs []MongoDocument) error {
	writes := make([]mongo.WriteModel, 0, len(docs))
	for _, doc := range docs {
		writes = append(writes, mongo.NewReplaceOneModel().
			SetFilter(bson.D{{Key: "_id", Value: doc.ID}}).
			SetReplacement(doc).
			SetUpsert(true))
	}

	_, err := c.collection.BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(false))
	return err
}

func (c *MongoCollection) Ping(ctx context.Context) error {
	return c.client.Ping(ctx, readpref.Primary())
}

func (c *MongoCollection) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}
