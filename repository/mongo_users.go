package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"offerland/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoUsers struct {
	coll *mongo.Collection
}

func NewUserRepository(coll *mongo.Collection) UserRepository {
	return &mongoUsers{coll: coll}
}

func (r *mongoUsers) Create(ctx context.Context, user *models.User) error {
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	if _, err := r.coll.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("insert user: %w", ErrDuplicate)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *mongoUsers) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var user models.User
	err := r.coll.FindOne(ctx, filter).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &user, nil
}

func (r *mongoUsers) FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *mongoUsers) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *mongoUsers) FindByEmailOrUsername(ctx context.Context, email, username string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"$or": bson.A{
		bson.M{"email": email},
		bson.M{"username": username},
	}})
}

func (r *mongoUsers) UsernameTaken(ctx context.Context, username string, exclude primitive.ObjectID) (bool, error) {
	count, err := r.coll.CountDocuments(ctx,
		bson.M{"username": username, "_id": bson.M{"$ne": exclude}},
		options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("count usernames: %w", err)
	}
	return count > 0, nil
}

func (r *mongoUsers) FindMany(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]*models.User, error) {
	out := make(map[primitive.ObjectID]*models.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	cursor, err := r.coll.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("find users: %w", err)
	}
	defer cursor.Close(ctx)

	var users []models.User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	for i := range users {
		out[users[i].ID] = &users[i]
	}
	return out, nil
}

func (r *mongoUsers) UpdateProfile(ctx context.Context, id primitive.ObjectID, update models.ProfileUpdate) (*models.User, error) {
	set := bson.M{}
	if update.Username != nil {
		set["username"] = *update.Username
	}
	if update.Bio != nil {
		set["bio"] = *update.Bio
	}
	if update.Avatar != nil {
		set["avatar"] = *update.Avatar
	}
	if len(set) == 0 {
		return r.FindByID(ctx, id)
	}

	var user models.User
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("update profile: %w", ErrDuplicate)
		}
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return &user, nil
}

func (r *mongoUsers) TouchLastActive(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	return r.updateOne(ctx, id, bson.M{"$set": bson.M{"lastActive": at}})
}

func (r *mongoUsers) IncrementPostCount(ctx context.Context, id primitive.ObjectID, delta int) error {
	return r.updateOne(ctx, id, bson.M{"$inc": bson.M{"postCount": delta}})
}

func (r *mongoUsers) updateOne(ctx context.Context, id primitive.ObjectID, update bson.M) error {
	result, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoUsers) Search(ctx context.Context, text string, page models.Page) ([]models.User, int64, error) {
	pattern := primitive.Regex{Pattern: regexp.QuoteMeta(text), Options: "i"}
	filter := bson.M{"$or": bson.A{
		bson.M{"username": pattern},
		bson.M{"email": pattern},
	}}

	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{"reputation", -1}, {"postCount", -1}, {"_id", 1}}).
		SetSkip(page.Skip()).
		SetLimit(int64(page.Size))

	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("search users: %w", err)
	}
	defer cursor.Close(ctx)

	users := []models.User{}
	if err := cursor.All(ctx, &users); err != nil {
		return nil, 0, fmt.Errorf("decode users: %w", err)
	}
	return users, total, nil
}
