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

type users struct{ s *Store }

func (r *users) Create(_ context.Context, user *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, u := range r.s.users {
		if u.Email == user.Email || u.Username == user.Username {
			return repository.ErrDuplicate
		}
	}
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	stored := *user
	r.s.users[user.ID] = &stored
	return nil
}

func (r *users) FindByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	u, ok := r.s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := *u
	return &out, nil
}

func (r *users) FindByEmail(_ context.Context, email string) (*models.User, error) {
	return r.first(func(u *models.User) bool { return u.Email == email })
}

func (r *users) FindByEmailOrUsername(_ context.Context, email, username string) (*models.User, error) {
	return r.first(func(u *models.User) bool { return u.Email == email || u.Username == username })
}

func (r *users) first(match func(*models.User) bool) (*models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, u := range r.s.users {
		if match(u) {
			out := *u
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *users) UsernameTaken(_ context.Context, username string, exclude primitive.ObjectID) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for id, u := range r.s.users {
		if id != exclude && u.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (r *users) FindMany(_ context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]*models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make(map[primitive.ObjectID]*models.User, len(ids))
	for _, id := range ids {
		if u, ok := r.s.users[id]; ok {
			cp := *u
			out[id] = &cp
		}
	}
	return out, nil
}

func (r *users) UpdateProfile(_ context.Context, id primitive.ObjectID, update models.ProfileUpdate) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if update.Username != nil {
		for otherID, other := range r.s.users {
			if otherID != id && other.Username == *update.Username {
				return nil, repository.ErrDuplicate
			}
		}
		u.Username = *update.Username
	}
	if update.Bio != nil {
		u.Bio = *update.Bio
	}
	if update.Avatar != nil {
		u.Avatar = *update.Avatar
	}
	out := *u
	return &out, nil
}

func (r *users) TouchLastActive(_ context.Context, id primitive.ObjectID, at time.Time) error {
	return r.mutate(id, func(u *models.User) { u.LastActive = at })
}

func (r *users) IncrementPostCount(_ context.Context, id primitive.ObjectID, delta int) error {
	return r.mutate(id, func(u *models.User) { u.PostCount += delta })
}

func (r *users) mutate(id primitive.ObjectID, fn func(*models.User)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	fn(u)
	return nil
}

func (r *users) Search(_ context.Context, text string, page models.Page) ([]models.User, int64, error) {
	r.s.mu.RLock()
	needle := strings.ToLower(text)
	matched := []models.User{}
	for _, u := range r.s.users {
		if strings.Contains(strings.ToLower(u.Username), needle) ||
			strings.Contains(strings.ToLower(u.Email), needle) {
			matched = append(matched, *u)
		}
	}
	r.s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if a.Reputation != b.Reputation {
			return a.Reputation > b.Reputation
		}
		if a.PostCount != b.PostCount {
			return a.PostCount > b.PostCount
		}
		return idLess(a.ID, b.ID)
	})
	return paginate(matched, page), int64(len(matched)), nil
}
