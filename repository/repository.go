// Package repository defines the storage contracts used by the services and
// their MongoDB implementations. repository/memory holds an in-process
// implementation of the same interfaces.
package repository

import (
	"context"
	"errors"
	"time"

	"offerland/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrNotFound  = errors.New("document not found")
	ErrDuplicate = errors.New("duplicate key")
	ErrLocked    = errors.New("post is locked")
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	// FindByEmailOrUsername returns the first user matching either field.
	FindByEmailOrUsername(ctx context.Context, email, username string) (*models.User, error)
	UsernameTaken(ctx context.Context, username string, exclude primitive.ObjectID) (bool, error)
	FindMany(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]*models.User, error)
	UpdateProfile(ctx context.Context, id primitive.ObjectID, update models.ProfileUpdate) (*models.User, error)
	TouchLastActive(ctx context.Context, id primitive.ObjectID, at time.Time) error
	IncrementPostCount(ctx context.Context, id primitive.ObjectID, delta int) error
	// Search matches text as a case-insensitive substring of username or email,
	// ordered by reputation then postCount, both descending.
	Search(ctx context.Context, text string, page models.Page) ([]models.User, int64, error)
}

type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Post, error)
	// IncrementViews bumps the view counter and returns the updated post.
	IncrementViews(ctx context.Context, id primitive.ObjectID) (*models.Post, error)
	// List orders pinned posts first, then by lastReplyAt descending.
	List(ctx context.Context, filter models.PostFilter, page models.Page) ([]models.Post, int64, error)
	// ListByAuthor orders by createdAt descending.
	ListByAuthor(ctx context.Context, authorID primitive.ObjectID, page models.Page) ([]models.Post, int64, error)
	// AppendReply returns ErrLocked if the post is locked.
	AppendReply(ctx context.Context, postID primitive.ObjectID, reply models.Reply) error
	ToggleLike(ctx context.Context, postID, userID primitive.ObjectID) (models.LikeState, error)
	ToggleReplyLike(ctx context.Context, postID, replyID, userID primitive.ObjectID) (models.LikeState, error)
}

type MessageRepository interface {
	Create(ctx context.Context, msg *models.Message) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Message, error)
	// Thread returns one page of messages between a and b, newest first,
	// plus the total size of the thread.
	Thread(ctx context.Context, a, b primitive.ObjectID, page models.Page) ([]models.Message, int64, error)
	// MarkThreadRead marks every unread message from sender to receiver as read.
	MarkThreadRead(ctx context.Context, sender, receiver primitive.ObjectID, at time.Time) (int64, error)
	MarkRead(ctx context.Context, id primitive.ObjectID, at time.Time) error
	CountUnread(ctx context.Context, receiver primitive.ObjectID) (int64, error)
	// Conversations groups every message touching userID by counterpart,
	// most recent group first.
	Conversations(ctx context.Context, userID primitive.ObjectID) ([]models.ConversationGroup, error)
}

type PushSubscriptionRepository interface {
	Upsert(ctx context.Context, sub *models.PushSubscription) error
	FindByUser(ctx context.Context, userID primitive.ObjectID) ([]models.PushSubscription, error)
	DeleteByEndpoint(ctx context.Context, endpoint string) error
}

// Repositories bundles one implementation of every contract.
type Repositories struct {
	Users    UserRepository
	Posts    PostRepository
	Messages MessageRepository
	Push     PushSubscriptionRepository
}
