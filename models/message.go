package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Message struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SenderID   primitive.ObjectID `bson:"sender" json:"senderId"`
	ReceiverID primitive.ObjectID `bson:"receiver" json:"receiverId"`
	Content    string             `bson:"content" json:"content"`
	IsRead     bool               `bson:"isRead" json:"isRead"`
	ReadAt     *time.Time         `bson:"readAt,omitempty" json:"readAt,omitempty"`
	CreatedAt  time.Time          `bson:"createdAt" json:"createdAt"`
	Sender     *UserSummary       `bson:"-" json:"sender,omitempty"`   // Populated in response only
	Receiver   *UserSummary       `bson:"-" json:"receiver,omitempty"` // Populated in response only
}

// Counterpart returns the participant that is not userID.
func (m *Message) Counterpart(userID primitive.ObjectID) primitive.ObjectID {
	if m.SenderID == userID {
		return m.ReceiverID
	}
	return m.SenderID
}

// ConversationGroup is one row of the per-counterpart aggregation.
type ConversationGroup struct {
	CounterpartID primitive.ObjectID `bson:"_id"`
	LastMessage   Message            `bson:"lastMessage"`
	UnreadCount   int64              `bson:"unreadCount"`
}

type Conversation struct {
	OtherUser   *UserSummary `json:"otherUser"`
	LastMessage Message      `json:"lastMessage"`
	UnreadCount int64        `json:"unreadCount"`
}
