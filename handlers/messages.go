package handlers

import (
	"context"
	"net/http"
	"time"

	"offerland/apperr"
	"offerland/middleware"
	"offerland/models"
	"offerland/websocket"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type sendMessageRequest struct {
	ReceiverID string `json:"receiverId" binding:"required"`
	Content    string `json:"content"`
}

func (h *Handler) Conversations(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	convs, err := h.messages.Conversations(ctx, middleware.UserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, convs)
}

func (h *Handler) UnreadCount(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	n, err := h.messages.UnreadCount(ctx, middleware.UserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": n})
}

func (h *Handler) History(c *gin.Context) {
	otherID, ok := h.pathID(c, "userId", "User not found")
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	history, err := h.messages.History(ctx, middleware.UserID(c), otherID, pageFromQuery(c, 20))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, history)
}

// SendMessage persists first, then mirrors the message to the receiver's
// socket. Receivers without a socket get a web-push in the background.
func (h *Handler) SendMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	receiverID, err := primitive.ObjectIDFromHex(req.ReceiverID)
	if err != nil {
		h.respondError(c, apperr.Validation("Invalid receiver ID"))
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	msg, err := h.messages.Send(ctx, middleware.UserID(c), receiverID, req.Content)
	if err != nil {
		h.respondError(c, err)
		return
	}

	delivered := h.relay.Relay(msg.ReceiverID, websocket.Event{Type: websocket.EventReceive, Payload: msg})
	if !delivered && h.notifier != nil {
		h.notifyAsync(msg)
	}

	c.JSON(http.StatusCreated, msg)
}

func (h *Handler) notifyAsync(msg *models.Message) {
	h.background.Add(1)
	go func() {
		defer h.background.Done()
		defer func() {
			if r := recover(); r != nil {
				h.logger.Error("Panic in push notification", zap.Any("panic", r))
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := h.notifier.NotifyMessage(ctx, msg); err != nil {
			h.logger.Warn("Push notification failed",
				zap.String("messageId", msg.ID.Hex()), zap.Error(err))
		}
	}()
}

func (h *Handler) MarkRead(c *gin.Context) {
	messageID, ok := h.pathID(c, "messageId", "Message not found")
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	msg, err := h.messages.MarkRead(ctx, messageID, middleware.UserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}
