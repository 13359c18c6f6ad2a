package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/quantbench/newswatch/internal/types"
)

// MongoArchive mirrors saved records into a MongoDB collection so
// downstream analysis jobs can query news without parsing day files.
// The day files remain the source of truth; the archive is best-effort.
type MongoArchive struct {
	client     *mongo.Client
	collection *mongo.Collection
	logger     *slog.Logger
}

// NewMongoArchive connects to MongoDB and verifies the link with a ping.
func NewMongoArchive(uri, database, collection string, logger *slog.Logger) (*MongoArchive, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongodb connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("mongodb ping: %w", err)
	}

	return &MongoArchive{
		client:     client,
		collection: client.Database(database).Collection(collection),
		logger:     logger.With("component", "mongo_archive"),
	}, nil
}

// Mirror inserts one record.
func (a *MongoArchive) Mirror(rec types.SavedRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := a.collection.InsertOne(ctx, bson.M{
		"bucket":   rec.Bucket,
		"seq_id":   rec.ID,
		"title":    rec.Title,
		"content":  rec.Content,
		"time":     rec.Time,
		"saved_at": rec.SavedAt,
	})
	if err != nil {
		return fmt.Errorf("mongodb insert: %w", err)
	}
	return nil
}

// Close disconnects from MongoDB.
func (a *MongoArchive) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return a.client.Disconnect(ctx)
}
