package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"offerland/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoMessages struct {
	coll *mongo.Collection
}

func NewMessageRepository(coll *mongo.Collection) MessageRepository {
	return &mongoMessages{coll: coll}
}

func (r *mongoMessages) Create(ctx context.Context, msg *models.Message) error {
	if msg.ID.IsZero() {
		msg.ID = primitive.NewObjectID()
	}
	if _, err := r.coll.InsertOne(ctx, msg); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (r *mongoMessages) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Message, error) {
	var msg models.Message
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&msg)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find message: %w", err)
	}
	return &msg, nil
}

func threadFilter(a, b primitive.ObjectID) bson.M {
	return bson.M{"$or": bson.A{
		bson.M{"sender": a, "receiver": b},
		bson.M{"sender": b, "receiver": a},
	}}
}

func (r *mongoMessages) Thread(ctx context.Context, a, b primitive.ObjectID, page models.Page) ([]models.Message, int64, error) {
	filter := threadFilter(a, b)

	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count thread: %w", err)
	}

	// ObjectIDs grow monotonically, so _id breaks createdAt ties in insertion order.
	opts := options.Find().
		SetSort(bson.D{{"createdAt", -1}, {"_id", -1}}).
		SetSkip(page.Skip()).
		SetLimit(int64(page.Size))

	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("find thread: %w", err)
	}
	defer cursor.Close(ctx)

	messages := []models.Message{}
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, 0, fmt.Errorf("decode thread: %w", err)
	}
	return messages, total, nil
}

func (r *mongoMessages) MarkThreadRead(ctx context.Context, sender, receiver primitive.ObjectID, at time.Time) (int64, error) {
	result, err := r.coll.UpdateMany(ctx,
		bson.M{"sender": sender, "receiver": receiver, "isRead": false},
		bson.M{"$set": bson.M{"isRead": true, "readAt": at}},
	)
	if err != nil {
		return 0, fmt.Errorf("mark thread read: %w", err)
	}
	return result.ModifiedCount, nil
}

func (r *mongoMessages) MarkRead(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	result, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"isRead": true, "readAt": at}},
	)
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoMessages) CountUnread(ctx context.Context, receiver primitive.ObjectID) (int64, error) {
	count, err := r.coll.CountDocuments(ctx, bson.M{"receiver": receiver, "isRead": false})
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return count, nil
}

func (r *mongoMessages) Conversations(ctx context.Context, userID primitive.ObjectID) ([]models.ConversationGroup, error) {
	pipeline := mongo.Pipeline{
		{{"$match", bson.M{"$or": bson.A{
			bson.M{"sender": userID},
			bson.M{"receiver": userID},
		}}}},
		{{"$sort", bson.D{{"createdAt", -1}, {"_id", -1}}}},
		{{"$group", bson.D{
			{"_id", bson.M{"$cond": bson.A{
				bson.M{"$eq": bson.A{"$sender", userID}},
				"$receiver",
				"$sender",
			}}},
			{"lastMessage", bson.M{"$first": "$$ROOT"}},
			{"unreadCount", bson.M{"$sum": bson.M{"$cond": bson.A{
				bson.M{"$and": bson.A{
					bson.M{"$eq": bson.A{"$receiver", userID}},
					bson.M{"$eq": bson.A{"$isRead", false}},
				}},
				1,
				0,
			}}}},
		}}},
		{{"$sort", bson.D{{"lastMessage.createdAt", -1}, {"lastMessage._id", -1}}}},
	}

	cursor, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate conversations: %w", err)
	}
	defer cursor.Close(ctx)

	groups := []models.ConversationGroup{}
	if err := cursor.All(ctx, &groups); err != nil {
		return nil, fmt.Errorf("decode conversations: %w", err)
	}
	return groups, nil
}
