package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"offerland/auth"
	"offerland/config"
	"offerland/database"
	"offerland/handlers"
	"offerland/media"
	"offerland/middleware"
	"offerland/notify"
	"offerland/repository"
	"offerland/repository/memory"
	"offerland/routes"
	"offerland/service"
	"offerland/websocket"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Server stopped with error", zap.Error(err))
	}
	logger.Info("Server stopped gracefully")
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	zcfg := zap.NewDevelopmentConfig()
	if cfg.Release() {
		zcfg = zap.NewProductionConfig()
	}
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("parse LOG_LEVEL: %w", err)
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	return zcfg.Build()
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Release() {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	var (
		repos    repository.Repositories
		healthFn func(context.Context) error
	)
	switch cfg.StoreDriver {
	case config.StoreMongo:
		logger.Info("Connecting to MongoDB", zap.String("database", cfg.Mongo.Database))
		db, err := database.ConnectWithRetry(ctx, cfg.Mongo.URI, cfg.Mongo.Database, 3, logger)
		if err != nil {
			return err
		}
		defer func() {
			dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := db.Disconnect(dctx); err != nil {
				logger.Warn("MongoDB disconnect failed", zap.Error(err))
			}
		}()
		if err := db.EnsureIndexes(ctx); err != nil {
			return err
		}
		repos = repository.NewMongo(db)
		healthFn = db.Ping
	case config.StoreMemory:
		logger.Warn("Using in-memory store, data is lost on restart")
		repos = memory.New().Repositories()
	}

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL)
	posts := service.NewPostService(repos.Posts, repos.Users)
	users := service.NewUserService(repos.Users, posts, tokens)
	if cfg.CloudinaryURL != "" {
		cld, err := media.NewCloudinary(cfg.CloudinaryURL)
		if err != nil {
			return err
		}
		users.WithAvatarStore(cld)
	}
	services := service.Services{
		Users:    users,
		Posts:    posts,
		Messages: service.NewMessageService(repos.Messages, repos.Users),
	}

	relay := websocket.NewManager(logger, cfg.CORSOrigins)
	deps := handlers.Deps{
		Services: services,
		Tokens:   tokens,
		Relay:    relay,
		PushSubs: repos.Push,
		HealthFn: healthFn,
		Logger:   logger,
	}
	if cfg.PushEnabled() {
		push := notify.NewWebPush(repos.Push, cfg.Push, logger)
		deps.Notifier = push
		deps.VAPIDKey = push.PublicKey()
	} else {
		logger.Info("VAPID keys not set, web push disabled")
	}
	h := handlers.New(deps)

	var limiter *middleware.IPRateLimiter
	if cfg.RateLimitPerMinute > 0 {
		limiter = middleware.NewIPRateLimiter(cfg.RateLimitPerMinute, time.Minute)
	}

	router, err := routes.SetupRouter(h, routes.Options{
		CORSOrigins: cfg.CORSOrigins,
		Limiter:     limiter,
		Tokens:      tokens,
		Users:       repos.Users,
		Logger:      logger,
		Avatars:     users.AvatarsEnabled(),
	})
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Server listening", zap.String("port", cfg.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if limiter == nil {
			return nil
		}
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				limiter.Sweep()
			}
		}
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := server.Shutdown(shutdownCtx)
		relay.Stop()
		h.Wait()
		return err
	})

	return g.Wait()
}
