// Package mongostore implements the interaction store on MongoDB: one
// upserted document per user plus an append-only interaction log collection.
package mongostore

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"career_support_bot/internal/config"
	"career_support_bot/internal/logging"
)

// Collection names used by the bot.
const (
	CollectionUsers = "telegram_users"
	CollectionLogs  = "telegram_interaction_logs"
)

// mongoClient captures the subset of mongo.Client behavior we rely on to
// allow lightweight stubbing in tests without a live Mongo deployment.
type mongoClient interface {
	Ping(context.Context, *readpref.ReadPref) error
	Database(string, ...*options.DatabaseOptions) *mongo.Database
	Disconnect(context.Context) error
}

// userCollection is the slice of collection behavior the recorder needs.
type userCollection interface {
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) *mongo.SingleResult
	CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error)
}

type logCollection interface {
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
	CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error)
}

// connectMongo is overridable for tests.
var connectMongo = func(ctx context.Context, opts *options.ClientOptions) (mongoClient, error) {
	return mongo.Connect(ctx, opts)
}

// createIndexes is overridable for tests.
var createIndexes = func(ctx context.Context, coll *mongo.Collection, models []mongo.IndexModel) ([]string, error) {
	return coll.Indexes().CreateMany(ctx, models)
}

// Store owns the Mongo client and the two interaction collections. Unlike
// the per-call file and Postgres backends, the driver pools connections, so
// the client lives for the process.
type Store struct {
	client mongoClient
	db     *mongo.Database
	users  userCollection
	logs   logCollection
	logger *logrus.Entry
}

// New initializes the Mongo client using the supplied configuration and
// verifies connectivity with a ping.
func New(ctx context.Context, cfg config.Config, logger *logrus.Entry) (*Store, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if logger == nil {
		logger = logging.Logger()
	}

	client, err := connectMongo(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	db := client.Database(cfg.MongoDB)

	return &Store{
		client: client,
		db:     db,
		users:  db.Collection(CollectionUsers),
		logs:   db.Collection(CollectionLogs),
		logger: logger,
	}, nil
}

// EnsureSchema creates the foundational indexes for both collections. The
// collections themselves are created implicitly on first use, so this call
// is idempotent and safe on every start.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if s == nil || s.db == nil {
		return errors.New("mongo store is not initialized")
	}

	userIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().
				SetName("user_id_unique").
				SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "last_interaction", Value: 1}},
			Options: options.Index().SetName("last_interaction"),
		},
	}

	if _, err := createIndexes(ctx, s.db.Collection(CollectionUsers), userIndexes); err != nil {
		return fmt.Errorf("create %s indexes: %w", CollectionUsers, err)
	}

	logIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetName("user_id"),
		},
		{
			Keys:    bson.D{{Key: "timestamp", Value: 1}},
			Options: options.Index().SetName("timestamp"),
		},
	}

	if _, err := createIndexes(ctx, s.db.Collection(CollectionLogs), logIndexes); err != nil {
		return fmt.Errorf("create %s indexes: %w", CollectionLogs, err)
	}

	return nil
}

// Ping verifies connectivity against the primary.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.client == nil {
		return errors.New("mongo store is not initialized")
	}
	if ctx == nil {
		return errors.New("context is required")
	}

	return s.client.Ping(ctx, readpref.Primary())
}

// Close disconnects the Mongo client.
func (s *Store) Close(ctx context.Context) error {
	if s == nil || s.client == nil {
		return nil
	}
	if ctx == nil {
		return errors.New("context is required")
	}

	return s.client.Disconnect(ctx)
}
