// Package handlers is the gin HTTP surface of the forum.
package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"offerland/auth"
	"offerland/models"
	"offerland/repository"
	"offerland/service"
	"offerland/websocket"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// MessageNotifier reaches users that are not connected to the relay.
type MessageNotifier interface {
	NotifyMessage(ctx context.Context, msg *models.Message) error
}

type Deps struct {
	Services service.Services
	Tokens   *auth.TokenManager
	Relay    *websocket.Manager
	PushSubs repository.PushSubscriptionRepository
	Notifier MessageNotifier // nil disables web-push
	VAPIDKey string
	HealthFn func(ctx context.Context) error
	Logger   *zap.Logger
}

type Handler struct {
	users    *service.UserService
	posts    *service.PostService
	messages *service.MessageService
	tokens   *auth.TokenManager
	relay    *websocket.Manager
	pushSubs repository.PushSubscriptionRepository
	notifier MessageNotifier
	vapidKey string
	healthFn func(ctx context.Context) error
	logger   *zap.Logger

	background sync.WaitGroup
}

func New(d Deps) *Handler {
	return &Handler{
		users:    d.Services.Users,
		posts:    d.Services.Posts,
		messages: d.Services.Messages,
		tokens:   d.Tokens,
		relay:    d.Relay,
		pushSubs: d.PushSubs,
		notifier: d.Notifier,
		vapidKey: d.VAPIDKey,
		healthFn: d.HealthFn,
		logger:   d.Logger,
	}
}

// Wait blocks until background notifications started by handlers finish.
func (h *Handler) Wait() {
	h.background.Wait()
}

func (h *Handler) Health(c *gin.Context) {
	status, code := "ok", http.StatusOK
	if h.healthFn != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()
		if err := h.healthFn(ctx); err != nil {
			h.logger.Warn("Health check failed", zap.Error(err))
			status, code = "degraded", http.StatusServiceUnavailable
		}
	}

	c.JSON(code, gin.H{
		"status": status,
		"online": h.relay.Online(),
		"time":   time.Now().Unix(),
	})
}
