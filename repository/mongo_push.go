package repository

import (
	"context"
	"fmt"
	"time"

	"offerland/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoPush struct {
	coll *mongo.Collection
}

func NewPushSubscriptionRepository(coll *mongo.Collection) PushSubscriptionRepository {
	return &mongoPush{coll: coll}
}

// Upsert keys subscriptions by endpoint; a browser re-subscribing under a
// different account moves the endpoint to that account.
func (r *mongoPush) Upsert(ctx context.Context, sub *models.PushSubscription) error {
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now()
	}
	_, err := r.coll.UpdateOne(ctx,
		bson.M{"endpoint": sub.Endpoint},
		bson.M{
			"$set": bson.M{
				"userId": sub.UserID,
				"p256dh": sub.P256dh,
				"auth":   sub.Auth,
			},
			"$setOnInsert": bson.M{"createdAt": sub.CreatedAt},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("upsert push subscription: %w", err)
	}
	return nil
}

func (r *mongoPush) FindByUser(ctx context.Context, userID primitive.ObjectID) ([]models.PushSubscription, error) {
	cursor, err := r.coll.Find(ctx, bson.M{"userId": userID})
	if err != nil {
		return nil, fmt.Errorf("find push subscriptions: %w", err)
	}
	defer cursor.Close(ctx)

	subs := []models.PushSubscription{}
	if err := cursor.All(ctx, &subs); err != nil {
		return nil, fmt.Errorf("decode push subscriptions: %w", err)
	}
	return subs, nil
}

func (r *mongoPush) DeleteByEndpoint(ctx context.Context, endpoint string) error {
	if _, err := r.coll.DeleteOne(ctx, bson.M{"endpoint": endpoint}); err != nil {
		return fmt.Errorf("delete push subscription: %w", err)
	}
	return nil
}
