package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const (
	UsersCollection             = "users"
	PostsCollection             = "posts"
	MessagesCollection          = "messages"
	PushSubscriptionsCollection = "push_subscriptions"
)

type DB struct {
	Client            *mongo.Client
	Users             *mongo.Collection
	Posts             *mongo.Collection
	Messages          *mongo.Collection
	PushSubscriptions *mongo.Collection
}

func Connect(ctx context.Context, uri, name string) (*DB, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	db := client.Database(name)
	return &DB{
		Client:            client,
		Users:             db.Collection(UsersCollection),
		Posts:             db.Collection(PostsCollection),
		Messages:          db.Collection(MessagesCollection),
		PushSubscriptions: db.Collection(PushSubscriptionsCollection),
	}, nil
}

// ConnectWithRetry tries Connect up to attempts times, sleeping between failures.
func ConnectWithRetry(ctx context.Context, uri, name string, attempts int, logger *zap.Logger) (*DB, error) {
	var lastErr error
	for i := 1; i <= attempts; i++ {
		db, err := Connect(ctx, uri, name)
		if err == nil {
			return db, nil
		}
		lastErr = err
		logger.Warn("MongoDB connection attempt failed", zap.Int("attempt", i), zap.Error(err))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
	return nil, lastErr
}

// EnsureIndexes creates the unique and query indexes the repositories rely on.
func (d *DB) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	specs := map[*mongo.Collection][]mongo.IndexModel{
		d.Users: {
			{Keys: bson.D{{"email", 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{"username", 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{"reputation", -1}, {"postCount", -1}}},
		},
		d.Posts: {
			{Keys: bson.D{{"isPinned", -1}, {"lastReplyAt", -1}}},
			{Keys: bson.D{{"category", 1}, {"isPinned", -1}, {"lastReplyAt", -1}}},
			{Keys: bson.D{{"author", 1}, {"createdAt", -1}}},
		},
		d.Messages: {
			{Keys: bson.D{{"sender", 1}, {"receiver", 1}, {"createdAt", -1}}},
			{Keys: bson.D{{"receiver", 1}, {"isRead", 1}}},
		},
		d.PushSubscriptions: {
			{Keys: bson.D{{"endpoint", 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{"userId", 1}}},
		},
	}

	for coll, models := range specs {
		if _, err := coll.Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create indexes on %s: %w", coll.Name(), err)
		}
	}
	return nil
}

func (d *DB) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return d.Client.Ping(ctx, nil)
}

func (d *DB) Disconnect(ctx context.Context) error {
	if d == nil || d.Client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return d.Client.Disconnect(ctx)
}
