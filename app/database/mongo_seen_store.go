package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

var _ SeenStore = (*MongoSeenStore)(nil)

type seenDocument struct {
	ID string `bson:"id"`
}

// MongoSeenStore stores {id: <post id>} documents, one Mongo collection per subreddit.
type MongoSeenStore struct {
	client *mongo.Client
	db     *mongo.Database
}

func NewMongoSeenStore(ctx context.Context, uri, dbName string) (*MongoSeenStore, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri).SetRetryWrites(true))
	if err != nil {
		return nil, unavailable("failed to connect to MongoDB", err)
	}

	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		client.Disconnect(context.Background())
		return nil, unavailable("failed to ping MongoDB", err)
	}

	slog.Debug("Connected to MongoDB", "database", dbName)

	return &MongoSeenStore{client: client, db: client.Database(dbName)}, nil
}

func (s *MongoSeenStore) Exists(ctx context.Context, id, collection string) (bool, error) {
	count, err := s.db.Collection(collection).CountDocuments(ctx, bson.M{"id": id}, options.Count().SetLimit(1))
	if err != nil {
		return false, unavailable(fmt.Sprintf("failed to check seen post %s in %s", id, collection), err)
	}
	return count > 0, nil
}

func (s *MongoSeenStore) Insert(ctx context.Context, id, collection string) error {
	if _, err := s.db.Collection(collection).InsertOne(ctx, seenDocument{ID: id}); err != nil {
		return unavailable(fmt.Sprintf("failed to insert seen post %s into %s", id, collection), err)
	}
	return nil
}

func (s *MongoSeenStore) Prune(ctx context.Context, collection string, maxSize int) (int, error) {
	count, err := s.Count(ctx, collection)
	if err != nil {
		return 0, err
	}

	if count <= maxSize {
		return 0, nil
	}

	result, err := s.db.Collection(collection).DeleteMany(ctx, bson.M{})
	if err != nil {
		return 0, unavailable(fmt.Sprintf("failed to prune %s", collection), err)
	}

	return int(result.DeletedCount), nil
}

func (s *MongoSeenStore) Count(ctx context.Context, collection string) (int, error) {
	count, err := s.db.Collection(collection).CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, unavailable(fmt.Sprintf("failed to count %s", collection), err)
	}
	return int(count), nil
}

func (s *MongoSeenStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
