package service

import (
	"context"
	"errors"
	"time"

	"offerland/apperr"
	"offerland/models"
	"offerland/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// History is one page of a two-party thread, oldest message first.
type History struct {
	Messages    []models.Message    `json:"messages"`
	OtherUser   *models.UserSummary `json:"otherUser"`
	Total       int64               `json:"total"`
	TotalPages  int64               `json:"totalPages"`
	CurrentPage int                 `json:"currentPage"`
}

type MessageService struct {
	messages repository.MessageRepository
	users    repository.UserRepository
	now      func() time.Time
}

func NewMessageService(messages repository.MessageRepository, users repository.UserRepository) *MessageService {
	return &MessageService{messages: messages, users: users, now: time.Now}
}

func (s *MessageService) Send(ctx context.Context, senderID, receiverID primitive.ObjectID, content string) (*models.Message, error) {
	if senderID == receiverID {
		return nil, apperr.Validation("Cannot send a message to yourself")
	}
	if err := checkLength("Message", content, 1, 2000); err != nil {
		return nil, err
	}

	people, err := s.users.FindMany(ctx, []primitive.ObjectID{senderID, receiverID})
	if err != nil {
		return nil, apperr.Internal("Failed to send message", err)
	}
	receiver, ok := people[receiverID]
	if !ok {
		return nil, apperr.Validation("Receiver not found")
	}
	sender, ok := people[senderID]
	if !ok {
		return nil, apperr.NotFound("User not found")
	}

	msg := &models.Message{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		CreatedAt:  s.now(),
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, apperr.Internal("Failed to send message", err)
	}

	msg.Sender = sender.Brief()
	msg.Receiver = receiver.Brief()
	return msg, nil
}

// History marks the counterpart's unread messages as read before reading the
// page, so the returned page already reflects the transition.
func (s *MessageService) History(ctx context.Context, userID, otherID primitive.ObjectID, page models.Page) (*History, error) {
	people, err := s.users.FindMany(ctx, []primitive.ObjectID{userID, otherID})
	if err != nil {
		return nil, apperr.Internal("Failed to load messages", err)
	}
	other, ok := people[otherID]
	if !ok {
		return nil, apperr.NotFound("User not found")
	}

	if _, err := s.messages.MarkThreadRead(ctx, otherID, userID, s.now()); err != nil {
		return nil, apperr.Internal("Failed to load messages", err)
	}

	thread, total, err := s.messages.Thread(ctx, userID, otherID, page)
	if err != nil {
		return nil, apperr.Internal("Failed to load messages", err)
	}

	// Selected newest first, returned oldest first.
	for i, j := 0, len(thread)-1; i < j; i, j = i+1, j-1 {
		thread[i], thread[j] = thread[j], thread[i]
	}
	for i := range thread {
		if u, ok := people[thread[i].SenderID]; ok {
			thread[i].Sender = u.Brief()
		}
		if u, ok := people[thread[i].ReceiverID]; ok {
			thread[i].Receiver = u.Brief()
		}
	}

	return &History{
		Messages:    thread,
		OtherUser:   other.Presence(),
		Total:       total,
		TotalPages:  page.TotalPages(total),
		CurrentPage: page.Number,
	}, nil
}

// MarkRead always stamps readAt, even when the message was already read.
func (s *MessageService) MarkRead(ctx context.Context, messageID, requester primitive.ObjectID) (*models.Message, error) {
	msg, err := s.messages.FindByID(ctx, messageID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound("Message not found")
	}
	if err != nil {
		return nil, apperr.Internal("Failed to mark message as read", err)
	}
	if msg.ReceiverID != requester {
		return nil, apperr.Forbidden("Not authorized")
	}

	at := s.now()
	switch err := s.messages.MarkRead(ctx, messageID, at); {
	case errors.Is(err, repository.ErrNotFound):
		return nil, apperr.NotFound("Message not found")
	case err != nil:
		return nil, apperr.Internal("Failed to mark message as read", err)
	}

	msg.IsRead = true
	msg.ReadAt = &at
	return msg, nil
}

func (s *MessageService) UnreadCount(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	n, err := s.messages.CountUnread(ctx, userID)
	if err != nil {
		return 0, apperr.Internal("Failed to count unread messages", err)
	}
	return n, nil
}

// Conversations drops counterparts whose account no longer resolves.
func (s *MessageService) Conversations(ctx context.Context, userID primitive.ObjectID) ([]models.Conversation, error) {
	groups, err := s.messages.Conversations(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("Failed to load conversations", err)
	}

	ids := make([]primitive.ObjectID, len(groups))
	for i, g := range groups {
		ids[i] = g.CounterpartID
	}
	people, err := s.users.FindMany(ctx, ids)
	if err != nil {
		return nil, apperr.Internal("Failed to load conversations", err)
	}

	out := make([]models.Conversation, 0, len(groups))
	for _, g := range groups {
		other, ok := people[g.CounterpartID]
		if !ok {
			continue
		}
		out = append(out, models.Conversation{
			OtherUser:   other.Presence(),
			LastMessage: g.LastMessage,
			UnreadCount: g.UnreadCount,
		})
	}
	return out, nil
}
