package routes

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"offerland/auth"
	"offerland/handlers"
	"offerland/middleware"
	"offerland/models"
	"offerland/repository"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

type Options struct {
	CORSOrigins []string
	Limiter     *middleware.IPRateLimiter // nil disables rate limiting
	Tokens      *auth.TokenManager
	Users       repository.UserRepository
	Logger      *zap.Logger
	Avatars     bool
}

var registerOnce sync.Once

// RegisterValidators adds the "category" binding tag to gin's validator.
func RegisterValidators() error {
	var err error
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			err = fmt.Errorf("unexpected binding engine %T", binding.Validator.Engine())
			return
		}
		err = v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
			return models.Category(fl.Field().String()).Valid()
		})
	})
	return err
}

// corsConfig allows any origin, without credentials, when origins is empty
// or contains "*".
func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "Accept", "X-Requested-With"},
		ExposeHeaders: []string{"Content-Length", "Content-Type"},
		MaxAge:        12 * time.Hour,
	}

	allowAll := len(origins) == 0
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
	}
	if allowAll {
		cfg.AllowAllOrigins = true
		return cfg
	}

	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}

func SetupRouter(h *handlers.Handler, opts Options) (*gin.Engine, error) {
	if err := RegisterValidators(); err != nil {
		return nil, err
	}

	cc := corsConfig(opts.CORSOrigins)
	if err := cc.Validate(); err != nil {
		return nil, fmt.Errorf("cors config: %w", err)
	}

	router := gin.New()
	router.Use(middleware.RequestLogger(opts.Logger), gin.CustomRecovery(func(c *gin.Context, recovered any) {
		opts.Logger.Error("Panic recovered",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Any("panic", recovered))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}))
	router.Use(cors.New(cc))

	router.GET("/api/health", h.Health)
	router.GET("/ws", h.ServeWS)

	api := router.Group("/api")
	api.Use(middleware.RateLimit(opts.Limiter))
	requireAuth := middleware.JWTAuth(opts.Tokens, opts.Users, opts.Logger)

	authGroup := api.Group("/auth")
	authGroup.POST("/register", h.Register)
	authGroup.POST("/login", h.Login)
	authGroup.GET("/me", requireAuth, h.Me)

	posts := api.Group("/posts")
	posts.GET("", h.ListPosts)
	posts.GET("/:id", h.GetPost)
	posts.POST("", requireAuth, h.CreatePost)
	posts.POST("/:id/replies", requireAuth, h.AddReply)
	posts.POST("/:id/like", requireAuth, h.ToggleLike)
	posts.POST("/:id/replies/:replyId/like", requireAuth, h.ToggleReplyLike)

	users := api.Group("/users")
	users.GET("", h.SearchUsers)
	users.GET("/:id", h.GetUser)
	users.GET("/:id/posts", h.GetUserPosts)
	users.PUT("/profile", requireAuth, h.UpdateProfile)
	if opts.Avatars {
		users.POST("/avatar", requireAuth, h.UploadAvatar)
	}

	messages := api.Group("/messages", requireAuth)
	messages.GET("/conversations", h.Conversations)
	messages.GET("/unread/count", h.UnreadCount)
	messages.GET("/:userId", h.History)
	messages.POST("", h.SendMessage)
	messages.PUT("/:messageId/read", h.MarkRead)

	push := api.Group("/push")
	push.GET("/vapid-public-key", h.VapidPublicKey)
	push.POST("/subscribe", requireAuth, h.SubscribePush)

	router.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api") {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Endpoint not found",
				"path":  c.Request.URL.Path,
			})
			return
		}
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})

	return router, nil
}
