package memory

import (
	"context"
	"time"

	"offerland/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type pushSubs struct{ s *Store }

func (r *pushSubs) Upsert(_ context.Context, sub *models.PushSubscription) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if existing, ok := r.s.push[sub.Endpoint]; ok {
		existing.UserID = sub.UserID
		existing.P256dh = sub.P256dh
		existing.Auth = sub.Auth
		return nil
	}
	if sub.ID.IsZero() {
		sub.ID = primitive.NewObjectID()
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now()
	}
	stored := *sub
	r.s.push[sub.Endpoint] = &stored
	return nil
}

func (r *pushSubs) FindByUser(_ context.Context, userID primitive.ObjectID) ([]models.PushSubscription, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := []models.PushSubscription{}
	for _, sub := range r.s.push {
		if sub.UserID == userID {
			out = append(out, *sub)
		}
	}
	return out, nil
}

func (r *pushSubs) DeleteByEndpoint(_ context.Context, endpoint string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	delete(r.s.push, endpoint)
	return nil
}
