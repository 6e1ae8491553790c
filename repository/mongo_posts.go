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

type mongoPosts struct {
	coll *mongo.Collection
}

func NewPostRepository(coll *mongo.Collection) PostRepository {
	return &mongoPosts{coll: coll}
}

func (r *mongoPosts) Create(ctx context.Context, post *models.Post) error {
	if post.ID.IsZero() {
		post.ID = primitive.NewObjectID()
	}
	if post.Tags == nil {
		post.Tags = []string{}
	}
	if post.Likes == nil {
		post.Likes = []primitive.ObjectID{}
	}
	if post.Replies == nil {
		post.Replies = []models.Reply{}
	}
	if _, err := r.coll.InsertOne(ctx, post); err != nil {
		return fmt.Errorf("insert post: %w", err)
	}
	return nil
}

func (r *mongoPosts) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Post, error) {
	var post models.Post
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&post)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find post: %w", err)
	}
	return &post, nil
}

func (r *mongoPosts) IncrementViews(ctx context.Context, id primitive.ObjectID) (*models.Post, error) {
	var post models.Post
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$inc": bson.M{"views": 1}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&post)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("increment views: %w", err)
	}
	return &post, nil
}

func (r *mongoPosts) List(ctx context.Context, filter models.PostFilter, page models.Page) ([]models.Post, int64, error) {
	query := bson.M{}
	if filter.Category != "" {
		query["category"] = filter.Category
	}
	if filter.Search != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(filter.Search), Options: "i"}
		query["$or"] = bson.A{
			bson.M{"title": pattern},
			bson.M{"content": pattern},
		}
	}
	sort := bson.D{{"isPinned", -1}, {"lastReplyAt", -1}, {"_id", -1}}
	return r.find(ctx, query, sort, page)
}

func (r *mongoPosts) ListByAuthor(ctx context.Context, authorID primitive.ObjectID, page models.Page) ([]models.Post, int64, error) {
	sort := bson.D{{"createdAt", -1}, {"_id", -1}}
	return r.find(ctx, bson.M{"author": authorID}, sort, page)
}

func (r *mongoPosts) find(ctx context.Context, query bson.M, sort bson.D, page models.Page) ([]models.Post, int64, error) {
	total, err := r.coll.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("count posts: %w", err)
	}

	opts := options.Find().
		SetSort(sort).
		SetSkip(page.Skip()).
		SetLimit(int64(page.Size))

	cursor, err := r.coll.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("find posts: %w", err)
	}
	defer cursor.Close(ctx)

	posts := []models.Post{}
	if err := cursor.All(ctx, &posts); err != nil {
		return nil, 0, fmt.Errorf("decode posts: %w", err)
	}
	return posts, total, nil
}

func (r *mongoPosts) AppendReply(ctx context.Context, postID primitive.ObjectID, reply models.Reply) error {
	if reply.Likes == nil {
		reply.Likes = []primitive.ObjectID{}
	}
	result, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": postID, "isLocked": false},
		bson.M{
			"$push": bson.M{"replies": reply},
			"$set":  bson.M{"lastReplyAt": reply.CreatedAt, "updatedAt": time.Now()},
		},
	)
	if err != nil {
		return fmt.Errorf("append reply: %w", err)
	}
	if result.MatchedCount == 1 {
		return nil
	}

	// Nothing matched: either the post is gone or it was locked meanwhile.
	if _, err := r.FindByID(ctx, postID); err != nil {
		return err
	}
	return ErrLocked
}

// ToggleLike adds the like if absent, otherwise removes it. Each branch is a
// single conditional update so concurrent toggles never double count.
func (r *mongoPosts) ToggleLike(ctx context.Context, postID, userID primitive.ObjectID) (models.LikeState, error) {
	post, err := r.toggle(ctx,
		bson.M{"_id": postID, "likes": bson.M{"$ne": userID}},
		bson.M{"$addToSet": bson.M{"likes": userID}},
		bson.M{"_id": postID, "likes": userID},
		bson.M{"$pull": bson.M{"likes": userID}},
	)
	if err != nil {
		return models.LikeState{}, err
	}
	return likeState(post.Likes, userID), nil
}

func (r *mongoPosts) ToggleReplyLike(ctx context.Context, postID, replyID, userID primitive.ObjectID) (models.LikeState, error) {
	post, err := r.toggle(ctx,
		bson.M{"_id": postID, "replies": bson.M{"$elemMatch": bson.M{"_id": replyID, "likes": bson.M{"$ne": userID}}}},
		bson.M{"$addToSet": bson.M{"replies.$.likes": userID}},
		bson.M{"_id": postID, "replies": bson.M{"$elemMatch": bson.M{"_id": replyID, "likes": userID}}},
		bson.M{"$pull": bson.M{"replies.$.likes": userID}},
	)
	if err != nil {
		return models.LikeState{}, err
	}
	reply := post.Reply(replyID)
	if reply == nil {
		return models.LikeState{}, ErrNotFound
	}
	return likeState(reply.Likes, userID), nil
}

func (r *mongoPosts) toggle(ctx context.Context, addFilter, add, removeFilter, remove bson.M) (*models.Post, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var post models.Post
	err := r.coll.FindOneAndUpdate(ctx, addFilter, add, opts).Decode(&post)
	if err == nil {
		return &post, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("add like: %w", err)
	}

	err = r.coll.FindOneAndUpdate(ctx, removeFilter, remove, opts).Decode(&post)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("remove like: %w", err)
	}
	return &post, nil
}

func likeState(likes []primitive.ObjectID, userID primitive.ObjectID) models.LikeState {
	state := models.LikeState{LikesCount: len(likes)}
	for _, id := range likes {
		if id == userID {
			state.IsLiked = true
			break
		}
	}
	return state
}
