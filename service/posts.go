package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"offerland/apperr"
	"offerland/models"
	"offerland/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const CategoryAll = "all"

// NewPost is the input of PostService.Create.
type NewPost struct {
	Title    string
	Content  string
	Category models.Category
	Tags     []string
}

type PostPage struct {
	Posts       []models.Post `json:"posts"`
	Total       int64         `json:"total"`
	TotalPages  int64         `json:"totalPages"`
	CurrentPage int           `json:"currentPage"`
}

type PostService struct {
	posts repository.PostRepository
	users repository.UserRepository
	now   func() time.Time
}

func NewPostService(posts repository.PostRepository, users repository.UserRepository) *PostService {
	return &PostService{posts: posts, users: users, now: time.Now}
}

func (s *PostService) Create(ctx context.Context, authorID primitive.ObjectID, in NewPost) (*models.Post, error) {
	title := strings.TrimSpace(in.Title)
	content := in.Content

	if err := checkLength("Title", title, 5, 200); err != nil {
		return nil, err
	}
	if err := checkLength("Content", content, 10, 10000); err != nil {
		return nil, err
	}
	if !in.Category.Valid() {
		return nil, apperr.Validation("Invalid category")
	}

	author, err := s.users.FindByID(ctx, authorID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound("User not found")
	}
	if err != nil {
		return nil, apperr.Internal("Failed to create post", err)
	}

	now := s.now()
	post := &models.Post{
		Title:       title,
		Content:     content,
		AuthorID:    authorID,
		Category:    in.Category,
		Tags:        cleanTags(in.Tags),
		Likes:       []primitive.ObjectID{},
		Replies:     []models.Reply{},
		LastReplyAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.posts.Create(ctx, post); err != nil {
		return nil, apperr.Internal("Failed to create post", err)
	}
	if err := s.users.IncrementPostCount(ctx, authorID, 1); err != nil {
		return nil, apperr.Internal("Failed to update post count", err)
	}

	author.PostCount++
	post.Author = author.Card()
	return post, nil
}

// Get counts a view on every call.
func (s *PostService) Get(ctx context.Context, postID primitive.ObjectID) (*models.Post, error) {
	post, err := s.posts.IncrementViews(ctx, postID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound("Post not found")
	}
	if err != nil {
		return nil, apperr.Internal("Failed to load post", err)
	}

	ids := []primitive.ObjectID{post.AuthorID}
	for _, reply := range post.Replies {
		ids = append(ids, reply.UserID)
	}
	people, err := s.users.FindMany(ctx, ids)
	if err != nil {
		return nil, apperr.Internal("Failed to load post", err)
	}

	if author, ok := people[post.AuthorID]; ok {
		post.Author = author.Card()
	}
	for i := range post.Replies {
		if u, ok := people[post.Replies[i].UserID]; ok {
			post.Replies[i].User = u.Card()
		}
	}
	return post, nil
}

func (s *PostService) List(ctx context.Context, filter models.PostFilter, page models.Page) (*PostPage, error) {
	if filter.Category == CategoryAll {
		filter.Category = ""
	}
	if filter.Category != "" && !filter.Category.Valid() {
		return nil, apperr.Validation("Invalid category")
	}
	filter.Search = strings.TrimSpace(filter.Search)

	posts, total, err := s.posts.List(ctx, filter, page)
	if err != nil {
		return nil, apperr.Internal("Failed to list posts", err)
	}
	return s.page(ctx, posts, total, page)
}

// ListByAuthor returns one user's posts, newest first.
func (s *PostService) ListByAuthor(ctx context.Context, authorID primitive.ObjectID, page models.Page) (*PostPage, error) {
	if _, err := s.users.FindByID(ctx, authorID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("User not found")
		}
		return nil, apperr.Internal("Failed to list posts", err)
	}

	posts, total, err := s.posts.ListByAuthor(ctx, authorID, page)
	if err != nil {
		return nil, apperr.Internal("Failed to list posts", err)
	}
	return s.page(ctx, posts, total, page)
}

func (s *PostService) RecentByAuthor(ctx context.Context, authorID primitive.ObjectID, n int) ([]models.Post, error) {
	posts, _, err := s.posts.ListByAuthor(ctx, authorID, models.Page{Number: 1, Size: n})
	if err != nil {
		return nil, apperr.Internal("Failed to load recent posts", err)
	}
	return posts, nil
}

func (s *PostService) page(ctx context.Context, posts []models.Post, total int64, page models.Page) (*PostPage, error) {
	ids := make([]primitive.ObjectID, 0, len(posts))
	for _, p := range posts {
		ids = append(ids, p.AuthorID)
	}
	authors, err := s.users.FindMany(ctx, ids)
	if err != nil {
		return nil, apperr.Internal("Failed to list posts", err)
	}
	for i := range posts {
		if a, ok := authors[posts[i].AuthorID]; ok {
			posts[i].Author = a.Brief()
		}
	}

	return &PostPage{
		Posts:       posts,
		Total:       total,
		TotalPages:  page.TotalPages(total),
		CurrentPage: page.Number,
	}, nil
}

// AddReply checks the lock before the content so a locked post always
// answers Forbidden.
func (s *PostService) AddReply(ctx context.Context, postID, userID primitive.ObjectID, content string) (*models.Reply, error) {
	post, err := s.posts.FindByID(ctx, postID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound("Post not found")
	}
	if err != nil {
		return nil, apperr.Internal("Failed to add reply", err)
	}
	if post.IsLocked {
		return nil, apperr.Forbidden("Post is locked")
	}

	if err := checkLength("Reply", content, 1, 5000); err != nil {
		return nil, err
	}

	user, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound("User not found")
	}
	if err != nil {
		return nil, apperr.Internal("Failed to add reply", err)
	}

	reply := models.Reply{
		ID:        primitive.NewObjectID(),
		UserID:    userID,
		Content:   content,
		CreatedAt: s.now(),
		Likes:     []primitive.ObjectID{},
	}
	switch err := s.posts.AppendReply(ctx, postID, reply); {
	case errors.Is(err, repository.ErrLocked):
		return nil, apperr.Forbidden("Post is locked")
	case errors.Is(err, repository.ErrNotFound):
		return nil, apperr.NotFound("Post not found")
	case err != nil:
		return nil, apperr.Internal("Failed to add reply", err)
	}

	reply.User = user.Card()
	return &reply, nil
}

func (s *PostService) ToggleLike(ctx context.Context, postID, userID primitive.ObjectID) (models.LikeState, error) {
	state, err := s.posts.ToggleLike(ctx, postID, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return state, apperr.NotFound("Post not found")
	}
	if err != nil {
		return state, apperr.Internal("Failed to toggle like", err)
	}
	return state, nil
}

func (s *PostService) ToggleReplyLike(ctx context.Context, postID, replyID, userID primitive.ObjectID) (models.LikeState, error) {
	state, err := s.posts.ToggleReplyLike(ctx, postID, replyID, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return state, apperr.NotFound("Post or reply not found")
	}
	if err != nil {
		return state, apperr.Internal("Failed to toggle like", err)
	}
	return state, nil
}
