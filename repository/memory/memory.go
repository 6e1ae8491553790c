// Package memory implements the repository contracts in process memory.
// It backs the test suites and STORE_DRIVER=memory.
package memory

import (
	"bytes"
	"sync"

	"offerland/models"
	"offerland/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Store holds every collection behind one lock, so each repository call is
// atomic with respect to the others.
type Store struct {
	mu       sync.RWMutex
	users    map[primitive.ObjectID]*models.User
	posts    map[primitive.ObjectID]*models.Post
	messages map[primitive.ObjectID]*models.Message
	push     map[string]*models.PushSubscription
}

func New() *Store {
	return &Store{
		users:    make(map[primitive.ObjectID]*models.User),
		posts:    make(map[primitive.ObjectID]*models.Post),
		messages: make(map[primitive.ObjectID]*models.Message),
		push:     make(map[string]*models.PushSubscription),
	}
}

func (s *Store) Repositories() repository.Repositories {
	return repository.Repositories{
		Users:    &users{s},
		Posts:    &posts{s},
		Messages: &messages{s},
		Push:     &pushSubs{s},
	}
}

// idLess orders ObjectIDs by creation; ids minted in one process are monotonic.
func idLess(a, b primitive.ObjectID) bool {
	return bytes.Compare(a[:], b[:]) < 0
}

func paginate[T any](items []T, page models.Page) []T {
	skip := page.Skip()
	if skip < 0 || skip >= int64(len(items)) {
		return []T{}
	}
	start := int(skip)
	end := start + page.Size
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

func copyIDs(ids []primitive.ObjectID) []primitive.ObjectID {
	out := make([]primitive.ObjectID, len(ids))
	copy(out, ids)
	return out
}
