package handlers

import (
	"context"
	"strconv"
	"time"

	"offerland/apperr"
	"offerland/models"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const requestTimeout = 10 * time.Second

func requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), requestTimeout)
}

// respondError writes {"error": message} with the status of err's kind.
// Internal causes are logged, never returned.
func (h *Handler) respondError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.KindInternal {
		h.logger.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("route", c.FullPath()),
			zap.Error(err))
	}
	c.JSON(kind.Status(), gin.H{"error": apperr.PublicMessage(err)})
}

func (h *Handler) badRequest(c *gin.Context, err error) {
	h.respondError(c, apperr.Validation(err.Error()))
}

// pathID parses an ObjectID path parameter. A malformed id cannot name an
// existing resource, so it answers NotFound.
func (h *Handler) pathID(c *gin.Context, param, notFound string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param(param))
	if err != nil {
		h.respondError(c, apperr.NotFound(notFound))
		return primitive.NilObjectID, false
	}
	return id, true
}

func pageFromQuery(c *gin.Context, defaultSize int) models.Page {
	number, _ := strconv.Atoi(c.Query("page"))
	size, _ := strconv.Atoi(c.Query("limit"))
	return models.NewPage(number, size, defaultSize)
}
