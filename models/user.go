package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const DefaultAvatar = "https://upload.wikimedia.org/wikipedia/commons/8/89/Portrait_Placeholder.png"

type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Email        string             `bson:"email" json:"email"`
	Username     string             `bson:"username" json:"username"`
	PasswordHash string             `bson:"passwordHash" json:"-"`
	Avatar       string             `bson:"avatar" json:"avatar"`
	Bio          string             `bson:"bio" json:"bio"`
	JoinDate     time.Time          `bson:"joinDate" json:"joinDate"`
	LastActive   time.Time          `bson:"lastActive" json:"lastActive"`
	PostCount    int                `bson:"postCount" json:"postCount"`
	Reputation   int                `bson:"reputation" json:"reputation"`
}

// UserSummary is the projection of a user embedded in posts, replies and messages.
type UserSummary struct {
	ID         primitive.ObjectID `json:"id"`
	Username   string             `json:"username"`
	Avatar     string             `json:"avatar"`
	Bio        string             `json:"bio,omitempty"`
	JoinDate   *time.Time         `json:"joinDate,omitempty"`
	PostCount  *int               `json:"postCount,omitempty"`
	Reputation *int               `json:"reputation,omitempty"`
	LastActive *time.Time         `json:"lastActive,omitempty"`
}

// Brief is the id/username/avatar projection.
func (u *User) Brief() *UserSummary {
	avatar := u.Avatar
	if avatar == "" {
		avatar = DefaultAvatar
	}
	return &UserSummary{ID: u.ID, Username: u.Username, Avatar: avatar}
}

// Card adds the public profile counters shown next to posts.
func (u *User) Card() *UserSummary {
	s := u.Brief()
	joinDate, postCount, reputation := u.JoinDate, u.PostCount, u.Reputation
	s.Bio = u.Bio
	s.JoinDate = &joinDate
	s.PostCount = &postCount
	s.Reputation = &reputation
	return s
}

// Presence adds lastActive, used in conversation lists and search results.
func (u *User) Presence() *UserSummary {
	s := u.Brief()
	lastActive := u.LastActive
	s.LastActive = &lastActive
	return s
}

// ProfileUpdate is a partial update; nil fields are left untouched.
type ProfileUpdate struct {
	Username *string
	Bio      *string
	Avatar   *string
}

func (p ProfileUpdate) Empty() bool {
	return p.Username == nil && p.Bio == nil && p.Avatar == nil
}
