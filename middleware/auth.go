package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"offerland/auth"
	"offerland/repository"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const userIDKey = "userId"

// TokenFromRequest reads "Authorization: Bearer <token>", falling back to the
// token query parameter used by websocket clients.
func TokenFromRequest(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		token := c.Query("token")
		return token, token != ""
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// JWTAuth verifies the session token and checks that its user still exists.
func JWTAuth(tokens *auth.TokenManager, users repository.UserRepository, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Skip middleware for OPTIONS requests (CORS preflight)
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		tokenString, ok := TokenFromRequest(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		userID, err := tokens.Verify(tokenString)
		if err != nil {
			logger.Debug("JWT validation failed", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
		defer cancel()

		_, err = users.FindByID(ctx, userID)
		if errors.Is(err, repository.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "User not found"})
			return
		}
		if err != nil {
			logger.Error("Failed to resolve token user", zap.String("userId", userID.Hex()), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

// UserID returns the id stored by JWTAuth. It panics on routes without it.
func UserID(c *gin.Context) primitive.ObjectID {
	return c.MustGet(userIDKey).(primitive.ObjectID)
}
