package handlers

import (
	"net/http"

	"offerland/apperr"
	"offerland/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ServeWS authenticates the ?token= query parameter before upgrading.
func (h *Handler) ServeWS(c *gin.Context) {
	token, ok := middleware.TokenFromRequest(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Token required"})
		return
	}

	userID, err := h.tokens.Verify(token)
	if err != nil {
		h.logger.Debug("WebSocket connection rejected", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
		return
	}

	ctx, cancel := requestContext(c)
	_, err = h.users.Me(ctx, userID)
	cancel()
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "User not found"})
			return
		}
		h.respondError(c, err)
		return
	}

	h.relay.ServeWS(c.Writer, c.Request, userID)
}
