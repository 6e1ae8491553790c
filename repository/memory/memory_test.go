package memory

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"offerland/models"
	"offerland/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestUsersUniqueness(t *testing.T) {
	ctx := context.Background()
	repos := New().Repositories()

	alice := &models.User{Email: "alice@example.com", Username: "alice"}
	require.NoError(t, repos.Users.Create(ctx, alice))
	assert.False(t, alice.ID.IsZero())

	err := repos.Users.Create(ctx, &models.User{Email: "alice@example.com", Username: "other"})
	assert.ErrorIs(t, err, repository.ErrDuplicate)

	bob := &models.User{Email: "bob@example.com", Username: "bob"}
	require.NoError(t, repos.Users.Create(ctx, bob))

	taken, err := repos.Users.UsernameTaken(ctx, "alice", bob.ID)
	require.NoError(t, err)
	assert.True(t, taken)

	taken, err = repos.Users.UsernameTaken(ctx, "alice", alice.ID)
	require.NoError(t, err)
	assert.False(t, taken)

	name := "alice"
	_, err = repos.Users.UpdateProfile(ctx, bob.ID, models.ProfileUpdate{Username: &name})
	assert.ErrorIs(t, err, repository.ErrDuplicate)
}

func TestUsersSearchOrdering(t *testing.T) {
	ctx := context.Background()
	repos := New().Repositories()

	for _, u := range []*models.User{
		{Email: "low@example.com", Username: "dev_low", Reputation: 1, PostCount: 9},
		{Email: "high@example.com", Username: "dev_high", Reputation: 5, PostCount: 1},
		{Email: "mid@example.com", Username: "DEV_mid", Reputation: 1, PostCount: 20},
		{Email: "nobody@example.com", Username: "someone"},
	} {
		require.NoError(t, repos.Users.Create(ctx, u))
	}

	found, total, err := repos.Users.Search(ctx, "dev", models.NewPage(1, 10, 10))
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, found, 3)
	assert.Equal(t, "dev_high", found[0].Username)
	assert.Equal(t, "DEV_mid", found[1].Username)
	assert.Equal(t, "dev_low", found[2].Username)
}

func TestPostsListOrdering(t *testing.T) {
	ctx := context.Background()
	repos := New().Repositories()
	author := primitive.NewObjectID()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	old := &models.Post{Title: "old", AuthorID: author, Category: models.CategoryLife, LastReplyAt: base}
	fresh := &models.Post{Title: "fresh", AuthorID: author, Category: models.CategoryTechnical, LastReplyAt: base.Add(time.Hour)}
	pinned := &models.Post{Title: "pinned", AuthorID: author, Category: models.CategoryLife, LastReplyAt: base.Add(-time.Hour), IsPinned: true}
	for _, p := range []*models.Post{old, fresh, pinned} {
		require.NoError(t, repos.Posts.Create(ctx, p))
	}

	list, total, err := repos.Posts.List(ctx, models.PostFilter{}, models.NewPage(1, 10, 10))
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Equal(t, []string{"pinned", "fresh", "old"}, titles(list))

	list, total, err = repos.Posts.List(ctx, models.PostFilter{Category: models.CategoryLife}, models.NewPage(1, 10, 10))
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Equal(t, []string{"pinned", "old"}, titles(list))

	list, _, err = repos.Posts.List(ctx, models.PostFilter{Search: "FRE"}, models.NewPage(1, 10, 10))
	require.NoError(t, err)
	assert.Equal(t, []string{"fresh"}, titles(list))
}

func titles(posts []models.Post) []string {
	out := make([]string, len(posts))
	for i, p := range posts {
		out[i] = p.Title
	}
	return out
}

func TestPostsReturnCopies(t *testing.T) {
	ctx := context.Background()
	repos := New().Repositories()

	post := &models.Post{Title: "t", Tags: []string{"go"}}
	require.NoError(t, repos.Posts.Create(ctx, post))

	got, err := repos.Posts.FindByID(ctx, post.ID)
	require.NoError(t, err)
	got.Tags[0] = "mutated"
	got.Likes = append(got.Likes, primitive.NewObjectID())

	again, err := repos.Posts.FindByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"go"}, again.Tags)
	assert.Empty(t, again.Likes)
}

func TestPostsAppendReplyLocked(t *testing.T) {
	ctx := context.Background()
	repos := New().Repositories()

	post := &models.Post{Title: "locked", IsLocked: true}
	require.NoError(t, repos.Posts.Create(ctx, post))

	err := repos.Posts.AppendReply(ctx, post.ID, models.Reply{ID: primitive.NewObjectID(), Content: "hi"})
	assert.ErrorIs(t, err, repository.ErrLocked)

	err = repos.Posts.AppendReply(ctx, primitive.NewObjectID(), models.Reply{ID: primitive.NewObjectID()})
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestPostsConcurrentLikeToggles(t *testing.T) {
	ctx := context.Background()
	repos := New().Repositories()

	post := &models.Post{Title: "popular"}
	require.NoError(t, repos.Posts.Create(ctx, post))

	users := make([]primitive.ObjectID, 50)
	for i := range users {
		users[i] = primitive.NewObjectID()
	}

	var wg sync.WaitGroup
	for _, u := range users {
		wg.Add(1)
		go func(u primitive.ObjectID) {
			defer wg.Done()
			_, _ = repos.Posts.ToggleLike(ctx, post.ID, u)
		}(u)
	}
	wg.Wait()

	got, err := repos.Posts.FindByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Len(t, got.Likes, len(users))

	state, err := repos.Posts.ToggleLike(ctx, post.ID, users[0])
	require.NoError(t, err)
	assert.Equal(t, models.LikeState{LikesCount: len(users) - 1, IsLiked: false}, state)
}

func TestMessagesThreadAndConversations(t *testing.T) {
	ctx := context.Background()
	repos := New().Repositories()
	me, bob, carol := primitive.NewObjectID(), primitive.NewObjectID(), primitive.NewObjectID()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	send := func(from, to primitive.ObjectID, content string, at time.Time) *models.Message {
		m := &models.Message{SenderID: from, ReceiverID: to, Content: content, CreatedAt: at}
		require.NoError(t, repos.Messages.Create(ctx, m))
		return m
	}

	send(bob, me, "b1", base)
	send(me, bob, "m1", base.Add(time.Minute))
	send(bob, me, "b2", base.Add(time.Minute)) // same instant, inserted later
	send(carol, me, "c1", base.Add(-time.Hour))

	thread, total, err := repos.Messages.Thread(ctx, me, bob, models.NewPage(1, 2, 20))
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, thread, 2)
	assert.Equal(t, "b2", thread[0].Content)
	assert.Equal(t, "m1", thread[1].Content)

	unread, err := repos.Messages.CountUnread(ctx, me)
	require.NoError(t, err)
	assert.Equal(t, int64(3), unread)

	groups, err := repos.Messages.Conversations(ctx, me)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, bob, groups[0].CounterpartID)
	assert.Equal(t, "b2", groups[0].LastMessage.Content)
	assert.Equal(t, int64(2), groups[0].UnreadCount)
	assert.Equal(t, carol, groups[1].CounterpartID)
	assert.Equal(t, int64(1), groups[1].UnreadCount)

	n, err := repos.Messages.MarkThreadRead(ctx, bob, me, base.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	unread, err = repos.Messages.CountUnread(ctx, me)
	require.NoError(t, err)
	assert.Equal(t, int64(1), unread)
}

func TestMessagesMarkReadOverwrites(t *testing.T) {
	ctx := context.Background()
	repos := New().Repositories()

	m := &models.Message{SenderID: primitive.NewObjectID(), ReceiverID: primitive.NewObjectID(), CreatedAt: time.Now()}
	require.NoError(t, repos.Messages.Create(ctx, m))

	first := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	second := first.Add(time.Hour)
	require.NoError(t, repos.Messages.MarkRead(ctx, m.ID, first))
	require.NoError(t, repos.Messages.MarkRead(ctx, m.ID, second))

	got, err := repos.Messages.FindByID(ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, got.IsRead)
	require.NotNil(t, got.ReadAt)
	assert.True(t, second.Equal(*got.ReadAt))

	assert.ErrorIs(t, repos.Messages.MarkRead(ctx, primitive.NewObjectID(), first), repository.ErrNotFound)
}

func TestPushUpsertByEndpoint(t *testing.T) {
	ctx := context.Background()
	repos := New().Repositories()
	alice, bob := primitive.NewObjectID(), primitive.NewObjectID()

	require.NoError(t, repos.Push.Upsert(ctx, &models.PushSubscription{UserID: alice, Endpoint: "https://push/1"}))
	require.NoError(t, repos.Push.Upsert(ctx, &models.PushSubscription{UserID: bob, Endpoint: "https://push/1"}))

	subs, err := repos.Push.FindByUser(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, subs)

	subs, err = repos.Push.FindByUser(ctx, bob)
	require.NoError(t, err)
	assert.Len(t, subs, 1)

	require.NoError(t, repos.Push.DeleteByEndpoint(ctx, "https://push/1"))
	subs, err = repos.Push.FindByUser(ctx, bob)
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func TestPaginateBounds(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	tests := []struct {
		name string
		page models.Page
		want []int
	}{
		{"first", models.NewPage(1, 2, 2), []int{1, 2}},
		{"last partial", models.NewPage(3, 2, 2), []int{5}},
		{"past the end", models.NewPage(4, 2, 2), []int{}},
		{"huge page number", models.NewPage(math.MaxInt, 10, 10), []int{}},
		{"negative skip", models.Page{Number: -5, Size: 2}, []int{1, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, paginate(items, tt.page))
		})
	}
}
