package handlers

import (
	"net/http"

	"offerland/apperr"
	"offerland/middleware"
	"offerland/models"

	"github.com/gin-gonic/gin"
)

type subscribeRequest struct {
	Endpoint string `json:"endpoint" binding:"required,url"`
	Keys     struct {
		P256dh string `json:"p256dh" binding:"required"`
		Auth   string `json:"auth" binding:"required"`
	} `json:"keys" binding:"required"`
}

func (h *Handler) VapidPublicKey(c *gin.Context) {
	if h.vapidKey == "" {
		h.respondError(c, apperr.NotFound("Push notifications are not configured"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"publicKey": h.vapidKey})
}

func (h *Handler) SubscribePush(c *gin.Context) {
	var req subscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	sub := &models.PushSubscription{
		UserID:   middleware.UserID(c),
		Endpoint: req.Endpoint,
		P256dh:   req.Keys.P256dh,
		Auth:     req.Keys.Auth,
	}
	if err := h.pushSubs.Upsert(ctx, sub); err != nil {
		h.respondError(c, apperr.Internal("Failed to save subscription", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Push subscription saved successfully"})
}
