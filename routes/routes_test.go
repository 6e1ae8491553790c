package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"offerland/auth"
	"offerland/handlers"
	"offerland/models"
	"offerland/repository"
	"offerland/repository/memory"
	"offerland/service"
	"offerland/websocket"

	"github.com/gin-gonic/gin"
	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []*models.Message
}

func (n *recordingNotifier) NotifyMessage(_ context.Context, msg *models.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

type testApp struct {
	router   *gin.Engine
	tokens   *auth.TokenManager
	repos    repository.Repositories
	handler  *handlers.Handler
	relay    *websocket.Manager
	notifier *recordingNotifier
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := zap.NewNop()
	repos := memory.New().Repositories()
	tokens := auth.NewTokenManager("route-secret", time.Hour)
	posts := service.NewPostService(repos.Posts, repos.Users)
	services := service.Services{
		Users:    service.NewUserService(repos.Users, posts, tokens),
		Posts:    posts,
		Messages: service.NewMessageService(repos.Messages, repos.Users),
	}
	relay := websocket.NewManager(logger, nil)
	notifier := &recordingNotifier{}

	h := handlers.New(handlers.Deps{
		Services: services,
		Tokens:   tokens,
		Relay:    relay,
		PushSubs: repos.Push,
		Notifier: notifier,
		VAPIDKey: "test-public-key",
		Logger:   logger,
	})
	router, err := SetupRouter(h, Options{
		Tokens: tokens,
		Users:  repos.Users,
		Logger: logger,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		relay.Stop()
		h.Wait()
	})
	return &testApp{router: router, tokens: tokens, repos: repos, handler: h, relay: relay, notifier: notifier}
}

func (a *testApp) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out))
}

type session struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

func (a *testApp) register(t *testing.T, username string) session {
	t.Helper()
	w := a.do(t, http.MethodPost, "/api/auth/register", "", gin.H{
		"email":    username + "@example.com",
		"username": username,
		"password": "secret123",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var s session
	decode(t, w, &s)
	return s
}

func errorOf(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	decode(t, w, &body)
	return body.Error
}

func TestAuthFlow(t *testing.T) {
	app := newTestApp(t)
	alice := app.register(t, "alice")
	assert.NotEmpty(t, alice.Token)
	assert.Equal(t, "alice@example.com", alice.User.Email)

	w := app.do(t, http.MethodPost, "/api/auth/register", "", gin.H{
		"email": "ALICE@example.com", "username": "other", "password": "secret123",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Email already registered", errorOf(t, w))

	w = app.do(t, http.MethodPost, "/api/auth/login", "", gin.H{
		"email": "alice@example.com", "password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid credentials", errorOf(t, w))

	w = app.do(t, http.MethodPost, "/api/auth/login", "", gin.H{
		"email": "alice@example.com", "password": "secret123",
	})
	require.Equal(t, http.StatusOK, w.Code)
	var login session
	decode(t, w, &login)

	w = app.do(t, http.MethodGet, "/api/auth/me", login.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var me models.User
	decode(t, w, &me)
	assert.Equal(t, alice.User.ID, me.ID)
	assert.NotContains(t, w.Body.String(), "passwordHash")
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	app := newTestApp(t)

	w := app.do(t, http.MethodGet, "/api/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = app.do(t, http.MethodGet, "/api/messages/unread/count", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPostLifecycle(t *testing.T) {
	app := newTestApp(t)
	alice := app.register(t, "alice")
	bob := app.register(t, "bob")

	w := app.do(t, http.MethodPost, "/api/posts", alice.Token, gin.H{
		"title": "Offer comparison", "content": "Which offer should I take?", "category": "gardening",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = app.do(t, http.MethodPost, "/api/posts", alice.Token, gin.H{
		"title":    "Offer comparison",
		"content":  "Which offer should I take?",
		"category": "job-search",
		"tags":     []string{"offers", "  ", " salary "},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var post models.Post
	decode(t, w, &post)
	assert.Equal(t, []string{"offers", "salary"}, post.Tags)
	path := "/api/posts/" + post.ID.Hex()

	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusOK, app.do(t, http.MethodGet, path, "", nil).Code)
	}
	w = app.do(t, http.MethodGet, path, "", nil)
	decode(t, w, &post)
	assert.Equal(t, 4, post.Views)

	var like models.LikeState
	w = app.do(t, http.MethodPost, path+"/like", bob.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &like)
	assert.Equal(t, models.LikeState{LikesCount: 1, IsLiked: true}, like)

	w = app.do(t, http.MethodPost, path+"/like", bob.Token, nil)
	decode(t, w, &like)
	assert.Equal(t, models.LikeState{LikesCount: 0, IsLiked: false}, like)

	w = app.do(t, http.MethodPost, path+"/replies", bob.Token, gin.H{"content": "Take the one with growth"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var reply models.Reply
	decode(t, w, &reply)

	w = app.do(t, http.MethodPost, path+"/replies/"+reply.ID.Hex()+"/like", alice.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &like)
	assert.Equal(t, models.LikeState{LikesCount: 1, IsLiked: true}, like)

	w = app.do(t, http.MethodGet, "/api/posts?category=job-search", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list service.PostPage
	decode(t, w, &list)
	assert.EqualValues(t, 1, list.Total)

	w = app.do(t, http.MethodGet, "/api/users/"+alice.User.ID.Hex(), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "alice@example.com")
}

func TestReplyToLockedPost(t *testing.T) {
	app := newTestApp(t)
	alice := app.register(t, "alice")

	now := time.Now()
	locked := &models.Post{
		Title:       "Closed thread",
		Content:     "No more replies here",
		AuthorID:    alice.User.ID,
		Category:    models.CategoryOther,
		Likes:       []primitive.ObjectID{},
		Replies:     []models.Reply{},
		IsLocked:    true,
		LastReplyAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, app.repos.Posts.Create(context.Background(), locked))

	w := app.do(t, http.MethodPost, "/api/posts/"+locked.ID.Hex()+"/replies", alice.Token, gin.H{"content": "hello"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Post is locked", errorOf(t, w))
}

func TestMalformedIDIsNotFound(t *testing.T) {
	app := newTestApp(t)
	alice := app.register(t, "alice")

	assert.Equal(t, http.StatusNotFound, app.do(t, http.MethodGet, "/api/posts/xyz", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, app.do(t, http.MethodGet, "/api/messages/xyz", alice.Token, nil).Code)
	assert.Equal(t, http.StatusNotFound, app.do(t, http.MethodGet, "/api/nothing-here", "", nil).Code)
}

func TestOfflineMessageFlow(t *testing.T) {
	app := newTestApp(t)
	u1 := app.register(t, "user1")
	u2 := app.register(t, "user2")

	w := app.do(t, http.MethodPost, "/api/messages", u1.Token, gin.H{
		"receiverId": u2.User.ID.Hex(), "content": "hello",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var sent models.Message
	decode(t, w, &sent)
	assert.False(t, sent.IsRead)

	app.handler.Wait()
	assert.Equal(t, 1, app.notifier.count())

	var unread struct {
		Count int64 `json:"count"`
	}
	decode(t, app.do(t, http.MethodGet, "/api/messages/unread/count", u2.Token, nil), &unread)
	assert.EqualValues(t, 1, unread.Count)

	w = app.do(t, http.MethodGet, "/api/messages/conversations", u2.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var convs []models.Conversation
	decode(t, w, &convs)
	require.Len(t, convs, 1)
	assert.Equal(t, u1.User.ID, convs[0].OtherUser.ID)
	assert.EqualValues(t, 1, convs[0].UnreadCount)

	w = app.do(t, http.MethodGet, "/api/messages/"+u1.User.ID.Hex(), u2.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var history service.History
	decode(t, w, &history)
	require.Len(t, history.Messages, 1)
	assert.Equal(t, "hello", history.Messages[0].Content)

	decode(t, app.do(t, http.MethodGet, "/api/messages/unread/count", u2.Token, nil), &unread)
	assert.EqualValues(t, 0, unread.Count)
}

func TestSendMessageValidation(t *testing.T) {
	app := newTestApp(t)
	u1 := app.register(t, "user1")

	w := app.do(t, http.MethodPost, "/api/messages", u1.Token, gin.H{
		"receiverId": u1.User.ID.Hex(), "content": "me",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = app.do(t, http.MethodPost, "/api/messages", u1.Token, gin.H{
		"receiverId": "not-an-id", "content": "hi",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMarkReadRequiresReceiver(t *testing.T) {
	app := newTestApp(t)
	u1 := app.register(t, "user1")
	u2 := app.register(t, "user2")

	w := app.do(t, http.MethodPost, "/api/messages", u1.Token, gin.H{
		"receiverId": u2.User.ID.Hex(), "content": "hello",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var sent models.Message
	decode(t, w, &sent)
	path := "/api/messages/" + sent.ID.Hex() + "/read"

	w = app.do(t, http.MethodPut, path, u1.Token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = app.do(t, http.MethodPut, path, u2.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var read models.Message
	decode(t, w, &read)
	assert.True(t, read.IsRead)
	assert.NotNil(t, read.ReadAt)
}

func TestPushRoutes(t *testing.T) {
	app := newTestApp(t)
	alice := app.register(t, "alice")

	w := app.do(t, http.MethodGet, "/api/push/vapid-public-key", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "test-public-key")

	w = app.do(t, http.MethodPost, "/api/push/subscribe", alice.Token, gin.H{"endpoint": "not a url"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = app.do(t, http.MethodPost, "/api/push/subscribe", alice.Token, gin.H{
		"endpoint": "https://push.example.com/abc",
		"keys":     gin.H{"p256dh": "key", "auth": "secret"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	subs, err := app.repos.Push.FindByUser(context.Background(), alice.User.ID)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "https://push.example.com/abc", subs[0].Endpoint)
}

func TestHealth(t *testing.T) {
	app := newTestApp(t)
	w := app.do(t, http.MethodGet, "/api/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestOnlineReceiverGetsRelayInsteadOfPush(t *testing.T) {
	app := newTestApp(t)
	u1 := app.register(t, "user1")
	u2 := app.register(t, "user2")

	srv := httptest.NewServer(app.router)
	defer srv.Close()

	_, resp, err := gorilla.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws?token=bogus", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	conn, _, err := gorilla.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws?token="+u2.Token, nil)
	require.NoError(t, err)
	defer conn.Close()

	type frame struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	readFrame := func() frame {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var f frame
		require.NoError(t, conn.ReadJSON(&f))
		return f
	}

	require.Equal(t, websocket.EventConnected, readFrame().Type)
	require.NoError(t, conn.WriteJSON(gin.H{"type": "join", "payload": gin.H{"userId": u2.User.ID.Hex()}}))
	require.Equal(t, websocket.EventJoined, readFrame().Type)
	require.Eventually(t, func() bool { return app.relay.IsOnline(u2.User.ID) }, time.Second, 10*time.Millisecond)

	w := app.do(t, http.MethodPost, "/api/messages", u1.Token, gin.H{
		"receiverId": u2.User.ID.Hex(), "content": "are you there?",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	f := readFrame()
	require.Equal(t, websocket.EventReceive, f.Type)
	var msg models.Message
	require.NoError(t, json.Unmarshal(f.Payload, &msg))
	assert.Equal(t, "are you there?", msg.Content)
	assert.Equal(t, u1.User.ID, msg.SenderID)

	app.handler.Wait()
	assert.Zero(t, app.notifier.count())
}

func TestCORSOrigins(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "https://anywhere.test")
	w := httptest.NewRecorder()
	app.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))

	restricted, err := SetupRouter(app.handler, Options{
		CORSOrigins: []string{"https://offerland.test"},
		Tokens:      app.tokens,
		Users:       app.repos.Users,
		Logger:      zap.NewNop(),
	})
	require.NoError(t, err)

	tests := []struct {
		name   string
		origin string
		status int
		allow  string
	}{
		{"configured origin", "https://offerland.test", http.StatusOK, "https://offerland.test"},
		{"foreign origin", "https://anywhere.test", http.StatusForbidden, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
			req.Header.Set("Origin", tt.origin)
			w := httptest.NewRecorder()
			restricted.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.allow, w.Header().Get("Access-Control-Allow-Origin"))
		})
	}

	_, err = SetupRouter(app.handler, Options{
		CORSOrigins: []string{"offerland.test"},
		Tokens:      app.tokens,
		Users:       app.repos.Users,
		Logger:      zap.NewNop(),
	})
	assert.Error(t, err)
}

func TestPanicAnswersJSON(t *testing.T) {
	app := newTestApp(t)
	app.router.GET("/api/explode", func(*gin.Context) { panic("boom") })

	w := app.do(t, http.MethodGet, "/api/explode", "", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Internal server error", errorOf(t, w))
}

func TestHugePageNumberReturnsEmptyPage(t *testing.T) {
	app := newTestApp(t)
	u1 := app.register(t, "user1")
	u2 := app.register(t, "user2")

	w := app.do(t, http.MethodPost, "/api/posts", u1.Token, gin.H{
		"title": "Offer comparison", "content": "Which offer should I take?", "category": "technical",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	w = app.do(t, http.MethodPost, "/api/messages", u1.Token, gin.H{
		"receiverId": u2.User.ID.Hex(), "content": "hello",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	huge := fmt.Sprintf("page=%d&limit=10", math.MaxInt64)
	tests := []struct {
		name  string
		path  string
		token string
		key   string
	}{
		{"posts", "/api/posts?" + huge, "", "posts"},
		{"history", "/api/messages/" + u1.User.ID.Hex() + "?" + huge, u2.Token, "messages"},
		{"search", "/api/users?search=user&" + huge, "", "users"},
		{"posts by author", "/api/users/" + u1.User.ID.Hex() + "/posts?" + huge, "", "posts"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := app.do(t, http.MethodGet, tt.path, tt.token, nil)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())

			var body map[string]json.RawMessage
			decode(t, w, &body)
			var items []json.RawMessage
			require.NoError(t, json.Unmarshal(body[tt.key], &items))
			assert.Empty(t, items)
			assert.NotEqual(t, "0", string(body["total"]))
		})
	}
}
