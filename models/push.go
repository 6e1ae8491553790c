package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type PushSubscription struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID    primitive.ObjectID `bson:"userId" json:"userId"`
	Endpoint  string             `bson:"endpoint" json:"endpoint"`
	P256dh    string             `bson:"p256dh" json:"-"`
	Auth      string             `bson:"auth" json:"-"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}
