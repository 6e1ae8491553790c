package memory

import (
	"context"
	"sort"
	"time"

	"offerland/models"
	"offerland/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type messages struct{ s *Store }

func cloneMessage(m *models.Message) models.Message {
	out := *m
	if m.ReadAt != nil {
		at := *m.ReadAt
		out.ReadAt = &at
	}
	out.Sender, out.Receiver = nil, nil
	return out
}

// newestFirst orders by createdAt then id, both descending.
func newestFirst(a, b *models.Message) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return idLess(b.ID, a.ID)
}

func (r *messages) Create(_ context.Context, msg *models.Message) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if msg.ID.IsZero() {
		msg.ID = primitive.NewObjectID()
	}
	stored := cloneMessage(msg)
	r.s.messages[msg.ID] = &stored
	return nil
}

func (r *messages) FindByID(_ context.Context, id primitive.ObjectID) (*models.Message, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	m, ok := r.s.messages[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := cloneMessage(m)
	return &out, nil
}

func (r *messages) Thread(_ context.Context, a, b primitive.ObjectID, page models.Page) ([]models.Message, int64, error) {
	r.s.mu.RLock()
	thread := []models.Message{}
	for _, m := range r.s.messages {
		if (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a) {
			thread = append(thread, cloneMessage(m))
		}
	}
	r.s.mu.RUnlock()

	sort.Slice(thread, func(i, j int) bool { return newestFirst(&thread[i], &thread[j]) })
	return paginate(thread, page), int64(len(thread)), nil
}

func (r *messages) MarkThreadRead(_ context.Context, sender, receiver primitive.ObjectID, at time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for _, m := range r.s.messages {
		if m.SenderID == sender && m.ReceiverID == receiver && !m.IsRead {
			readAt := at
			m.IsRead = true
			m.ReadAt = &readAt
			n++
		}
	}
	return n, nil
}

func (r *messages) MarkRead(_ context.Context, id primitive.ObjectID, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	m, ok := r.s.messages[id]
	if !ok {
		return repository.ErrNotFound
	}
	m.IsRead = true
	m.ReadAt = &at
	return nil
}

func (r *messages) CountUnread(_ context.Context, receiver primitive.ObjectID) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var n int64
	for _, m := range r.s.messages {
		if m.ReceiverID == receiver && !m.IsRead {
			n++
		}
	}
	return n, nil
}

func (r *messages) Conversations(_ context.Context, userID primitive.ObjectID) ([]models.ConversationGroup, error) {
	r.s.mu.RLock()
	groups := make(map[primitive.ObjectID]*models.ConversationGroup)
	for _, m := range r.s.messages {
		if m.SenderID != userID && m.ReceiverID != userID {
			continue
		}
		other := m.Counterpart(userID)
		g, ok := groups[other]
		if !ok {
			g = &models.ConversationGroup{CounterpartID: other, LastMessage: cloneMessage(m)}
			groups[other] = g
		} else if newestFirst(m, &g.LastMessage) {
			g.LastMessage = cloneMessage(m)
		}
		if m.ReceiverID == userID && !m.IsRead {
			g.UnreadCount++
		}
	}
	r.s.mu.RUnlock()

	out := make([]models.ConversationGroup, 0, len(groups))
	for _, g := range groups {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool { return newestFirst(&out[i].LastMessage, &out[j].LastMessage) })
	return out, nil
}
