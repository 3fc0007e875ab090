package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/studyroomhq/studyroom-chat/internal/assistant"
	"github.com/studyroomhq/studyroom-chat/internal/auth"
	"github.com/studyroomhq/studyroom-chat/internal/cache"
	"github.com/studyroomhq/studyroom-chat/internal/config"
	"github.com/studyroomhq/studyroom-chat/internal/handler"
	"github.com/studyroomhq/studyroom-chat/internal/moderation"
	"github.com/studyroomhq/studyroom-chat/internal/registry"
	"github.com/studyroomhq/studyroom-chat/internal/repository"
	"github.com/studyroomhq/studyroom-chat/internal/service"
	"github.com/studyroomhq/studyroom-chat/pkg/database"
	"github.com/studyroomhq/studyroom-chat/pkg/log"
	"github.com/studyroomhq/studyroom-chat/pkg/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log.Init(cfg.Log)
	logger := log.L()
	logger.Info().Int("port", cfg.Server.Port).Msg("starting studyroom-chat")

	if cfg.Database.Driver == "" || cfg.Database.Driver == "sqlite" {
		if err := os.MkdirAll(filepath.Dir(cfg.Database.FilePath), 0o755); err != nil {
			logger.Fatal().Err(err).Msg("failed to create database directory")
		}
	}

	db, err := database.New(&cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}

	repo := repository.NewGormRepository(db)
	if err := repo.Migrate(); err != nil {
		logger.Fatal().Err(err).Msg("database migration failed")
	}
	logger.Info().Str("driver", cfg.Database.Driver).Msg("database ready")

	var msgCache cache.MessageCache
	switch cfg.Cache.Driver {
	case "redis":
		msgCache, err = cache.NewRedisMessageCache(cache.RedisConfig{
			Address:  cfg.Cache.Redis.Address,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		}, cfg.Cache.Prefix)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis cache")
		}
		logger.Info().Str("address", cfg.Cache.Redis.Address).Msg("using redis history cache")
	default:
		msgCache = cache.NewMemoryMessageCache()
		logger.Info().Msg("using in-memory history cache")
	}
	defer msgCache.Close()

	var store storage.Storage
	switch cfg.Storage.Driver {
	case "s3":
		store, err = storage.NewS3Storage(context.Background(), cfg.Storage.S3)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize s3 storage")
		}
		logger.Info().Str("bucket", cfg.Storage.S3.Bucket).Msg("using s3 attachment storage")
	default:
		local, err := storage.NewLocalStorage(cfg.Storage.Local)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize local storage")
		}
		store = local
		logger.Info().Str("path", local.BasePath()).Msg("using local attachment storage")
	}

	helper := assistant.NewClient(cfg.Assistant)
	if helper.Enabled() {
		logger.Info().Str("model", helper.Model()).Msg("study assistant enabled")
	} else {
		logger.Info().Msg("study assistant disabled, no api key configured")
	}

	tokens := auth.NewTokenManager(cfg.Auth.Secret, cfg.Auth.TokenTTL, cfg.Auth.Issuer)
	authSvc := auth.NewService(repo, tokens)

	reg := registry.New()
	mod := moderation.NewState()
	historySvc := service.NewHistoryService(repo, msgCache, cfg.History.CacheTTL)
	chatSvc := service.NewChatService(reg, mod, repo, historySvc, msgCache, helper)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(log.GinMiddleware(logger), gin.Recovery())

	httpHandler := handler.NewHTTPHandler(historySvc)
	wsHandler := handler.NewWSHandler(chatSvc, authSvc, cfg.WebSocket)
	authHandler := handler.NewAuthHandler(authSvc)
	uploadHandler := handler.NewUploadHandler(store, cfg.Storage.URLTTL)
	aiHandler := handler.NewAIHandler(helper)

	router.GET("/", httpHandler.Root)
	router.GET("/health", httpHandler.Health)
	router.GET("/chat/ws/:room_id", wsHandler.Serve)
	router.POST("/auth/register", authHandler.Register)
	router.POST("/auth/login", authHandler.Login)
	router.POST("/upload", uploadHandler.Upload)
	router.POST("/ai/helper", aiHandler.Helper)
	router.GET("/ai/health", aiHandler.Health)

	api := router.Group("/api/v1")
	api.GET("/rooms/:room_id/messages", httpHandler.Messages)

	// Local attachments are served straight off disk; s3 URLs point at the
	// bucket instead.
	if local, ok := store.(*storage.LocalStorage); ok {
		router.Static(cfg.Storage.Local.URLPrefix, local.BasePath())
	}

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // websocket writes manage their own deadlines
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", server.Addr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("forced shutdown")
	}

	logger.Info().Msg("stopped")
}
