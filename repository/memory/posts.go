package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"offerland/models"
	"offerland/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type posts struct{ s *Store }

func clonePost(p *models.Post) *models.Post {
	out := *p
	out.Tags = append([]string{}, p.Tags...)
	out.Likes = copyIDs(p.Likes)
	out.Replies = make([]models.Reply, len(p.Replies))
	for i, reply := range p.Replies {
		reply.Likes = copyIDs(reply.Likes)
		out.Replies[i] = reply
	}
	out.Author = nil
	return &out
}

func (r *posts) Create(_ context.Context, post *models.Post) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

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
	r.s.posts[post.ID] = clonePost(post)
	return nil
}

func (r *posts) FindByID(_ context.Context, id primitive.ObjectID) (*models.Post, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	p, ok := r.s.posts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return clonePost(p), nil
}

func (r *posts) IncrementViews(_ context.Context, id primitive.ObjectID) (*models.Post, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.posts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	p.Views++
	return clonePost(p), nil
}

func (r *posts) List(_ context.Context, filter models.PostFilter, page models.Page) ([]models.Post, int64, error) {
	needle := strings.ToLower(filter.Search)
	matched := r.collect(func(p *models.Post) bool {
		if filter.Category != "" && p.Category != filter.Category {
			return false
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(p.Title), needle) &&
			!strings.Contains(strings.ToLower(p.Content), needle) {
			return false
		}
		return true
	})

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if a.IsPinned != b.IsPinned {
			return a.IsPinned
		}
		if !a.LastReplyAt.Equal(b.LastReplyAt) {
			return a.LastReplyAt.After(b.LastReplyAt)
		}
		return idLess(b.ID, a.ID)
	})
	return paginate(matched, page), int64(len(matched)), nil
}

func (r *posts) ListByAuthor(_ context.Context, authorID primitive.ObjectID, page models.Page) ([]models.Post, int64, error) {
	matched := r.collect(func(p *models.Post) bool { return p.AuthorID == authorID })

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return idLess(b.ID, a.ID)
	})
	return paginate(matched, page), int64(len(matched)), nil
}

func (r *posts) collect(match func(*models.Post) bool) []models.Post {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := []models.Post{}
	for _, p := range r.s.posts {
		if match(p) {
			out = append(out, *clonePost(p))
		}
	}
	return out
}

func (r *posts) AppendReply(_ context.Context, postID primitive.ObjectID, reply models.Reply) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.posts[postID]
	if !ok {
		return repository.ErrNotFound
	}
	if p.IsLocked {
		return repository.ErrLocked
	}
	reply.Likes = copyIDs(reply.Likes)
	reply.User = nil
	p.Replies = append(p.Replies, reply)
	p.LastReplyAt = reply.CreatedAt
	p.UpdatedAt = time.Now()
	return nil
}

func (r *posts) ToggleLike(_ context.Context, postID, userID primitive.ObjectID) (models.LikeState, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.posts[postID]
	if !ok {
		return models.LikeState{}, repository.ErrNotFound
	}
	var liked bool
	p.Likes, liked = toggleID(p.Likes, userID)
	return models.LikeState{LikesCount: len(p.Likes), IsLiked: liked}, nil
}

func (r *posts) ToggleReplyLike(_ context.Context, postID, replyID, userID primitive.ObjectID) (models.LikeState, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.posts[postID]
	if !ok {
		return models.LikeState{}, repository.ErrNotFound
	}
	reply := p.Reply(replyID)
	if reply == nil {
		return models.LikeState{}, repository.ErrNotFound
	}
	var liked bool
	reply.Likes, liked = toggleID(reply.Likes, userID)
	return models.LikeState{LikesCount: len(reply.Likes), IsLiked: liked}, nil
}

// toggleID removes id if present, otherwise appends it. It reports whether
// id is present afterwards.
func toggleID(ids []primitive.ObjectID, id primitive.ObjectID) ([]primitive.ObjectID, bool) {
	for i, existing := range ids {
		if existing == id {
			return append(ids[:i:i], ids[i+1:]...), false
		}
	}
	return append(ids, id), true
}
