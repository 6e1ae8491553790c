package repository

import "offerland/database"

// NewMongo builds the MongoDB-backed repositories over db's collections.
func NewMongo(db *database.DB) Repositories {
	return Repositories{
		Users:    NewUserRepository(db.Users),
		Posts:    NewPostRepository(db.Posts),
		Messages: NewMessageRepository(db.Messages),
		Push:     NewPushSubscriptionRepository(db.PushSubscriptions),
	}
}
