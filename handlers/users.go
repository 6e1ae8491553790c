package handlers

import (
	"net/http"

	"offerland/apperr"
	"offerland/middleware"
	"offerland/models"

	"github.com/gin-gonic/gin"
)

const maxAvatarSize = 5 << 20

type profileRequest struct {
	Username *string `json:"username"`
	Bio      *string `json:"bio"`
	Avatar   *string `json:"avatar"`
}

func (h *Handler) SearchUsers(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	page, err := h.users.Search(ctx, c.Query("search"), pageFromQuery(c, 10))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handler) GetUser(c *gin.Context) {
	userID, ok := h.pathID(c, "id", "User not found")
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	profile, err := h.users.Profile(ctx, userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *Handler) GetUserPosts(c *gin.Context) {
	userID, ok := h.pathID(c, "id", "User not found")
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	page, err := h.posts.ListByAuthor(ctx, userID, pageFromQuery(c, 10))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handler) UpdateProfile(c *gin.Context) {
	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	user, err := h.users.UpdateProfile(ctx, middleware.UserID(c), models.ProfileUpdate{
		Username: req.Username,
		Bio:      req.Bio,
		Avatar:   req.Avatar,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// UploadAvatar accepts a multipart "avatar" file.
func (h *Handler) UploadAvatar(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxAvatarSize)

	file, _, err := c.Request.FormFile("avatar")
	if err != nil {
		h.respondError(c, apperr.Validation("No avatar file provided"))
		return
	}
	defer file.Close()

	ctx, cancel := requestContext(c)
	defer cancel()

	user, err := h.users.UploadAvatar(ctx, middleware.UserID(c), file)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}
