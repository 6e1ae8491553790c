package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Category string

const (
	CategoryJobSearch           Category = "job-search"
	CategoryInterviewExperience Category = "interview-experience"
	CategoryReferral            Category = "referral"
	CategoryLife                Category = "life"
	CategoryTechnical           Category = "technical"
	CategoryOther               Category = "other"
)

var Categories = []Category{
	CategoryJobSearch,
	CategoryInterviewExperience,
	CategoryReferral,
	CategoryLife,
	CategoryTechnical,
	CategoryOther,
}

func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

type Post struct {
	ID          primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Title       string               `bson:"title" json:"title"`
	Content     string               `bson:"content" json:"content"`
	AuthorID    primitive.ObjectID   `bson:"author" json:"-"`
	Category    Category             `bson:"category" json:"category"`
	Tags        []string             `bson:"tags" json:"tags"`
	Views       int                  `bson:"views" json:"views"`
	Likes       []primitive.ObjectID `bson:"likes" json:"likes"`
	Replies     []Reply              `bson:"replies" json:"replies"`
	IsPinned    bool                 `bson:"isPinned" json:"isPinned"`
	IsLocked    bool                 `bson:"isLocked" json:"isLocked"`
	LastReplyAt time.Time            `bson:"lastReplyAt" json:"lastReplyAt"`
	CreatedAt   time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time            `bson:"updatedAt" json:"updatedAt"`
	Author      *UserSummary         `bson:"-" json:"author,omitempty"` // Populated in response only
}

type Reply struct {
	ID        primitive.ObjectID   `bson:"_id" json:"id"`
	UserID    primitive.ObjectID   `bson:"user" json:"-"`
	Content   string               `bson:"content" json:"content"`
	CreatedAt time.Time            `bson:"createdAt" json:"createdAt"`
	Likes     []primitive.ObjectID `bson:"likes" json:"likes"`
	User      *UserSummary         `bson:"-" json:"user,omitempty"` // Populated in response only
}

func (p *Post) Reply(id primitive.ObjectID) *Reply {
	for i := range p.Replies {
		if p.Replies[i].ID == id {
			return &p.Replies[i]
		}
	}
	return nil
}

// PostFilter narrows post listings. Zero values match everything.
type PostFilter struct {
	Category Category
	Search   string
}

// LikeState is the result of a like toggle.
type LikeState struct {
	LikesCount int  `json:"likesCount"`
	IsLiked    bool `json:"isLiked"`
}
