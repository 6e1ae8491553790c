package handlers

import (
	"net/http"

	"offerland/middleware"
	"offerland/models"
	"offerland/service"

	"github.com/gin-gonic/gin"
)

type createPostRequest struct {
	Title    string          `json:"title" binding:"required"`
	Content  string          `json:"content" binding:"required"`
	Category models.Category `json:"category" binding:"required,category"`
	Tags     []string        `json:"tags"`
}

// Reply content is validated by the service, after the lock check.
type replyRequest struct {
	Content string `json:"content"`
}

func (h *Handler) ListPosts(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	filter := models.PostFilter{
		Category: models.Category(c.Query("category")),
		Search:   c.Query("search"),
	}
	page, err := h.posts.List(ctx, filter, pageFromQuery(c, 10))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handler) GetPost(c *gin.Context) {
	postID, ok := h.pathID(c, "id", "Post not found")
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	post, err := h.posts.Get(ctx, postID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

func (h *Handler) CreatePost(c *gin.Context) {
	var req createPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	post, err := h.posts.Create(ctx, middleware.UserID(c), service.NewPost{
		Title:    req.Title,
		Content:  req.Content,
		Category: req.Category,
		Tags:     req.Tags,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, post)
}

func (h *Handler) AddReply(c *gin.Context) {
	postID, ok := h.pathID(c, "id", "Post not found")
	if !ok {
		return
	}

	var req replyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	reply, err := h.posts.AddReply(ctx, postID, middleware.UserID(c), req.Content)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, reply)
}

func (h *Handler) ToggleLike(c *gin.Context) {
	postID, ok := h.pathID(c, "id", "Post not found")
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	state, err := h.posts.ToggleLike(ctx, postID, middleware.UserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

func (h *Handler) ToggleReplyLike(c *gin.Context) {
	postID, ok := h.pathID(c, "id", "Post not found")
	if !ok {
		return
	}
	replyID, ok := h.pathID(c, "replyId", "Reply not found")
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	state, err := h.posts.ToggleReplyLike(ctx, postID, replyID, middleware.UserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}
