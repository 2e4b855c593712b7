package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/steemit/feedclient/internal/api"
	"github.com/steemit/feedclient/internal/cache"
	"github.com/steemit/feedclient/internal/feed"
	"github.com/steemit/feedclient/internal/remote"
	"github.com/steemit/feedclient/internal/store"
	"github.com/steemit/feedclient/pkg/config"
	"github.com/steemit/feedclient/pkg/logging"
	"github.com/steemit/feedclient/pkg/telemetry"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logging.InitLogger(&cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logging.GetLogger().Sync()

	logger := logging.GetLogger()
	logger.Info("Starting feed client bridge")

	// Initialize telemetry
	telemetryShutdown, err := telemetry.Init(&cfg.Telemetry)
	if err != nil {
		logger.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer telemetryShutdown()

	// Redis is optional, a nil cache disables shared statistics
	redisCache, err := cache.New(&cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to initialize Redis cache", zap.Error(err))
	}
	defer redisCache.Close()

	client, err := remote.New(&cfg.API,
		remote.WithSearchCache(cfg.Search.CacheSize, cfg.Search.CacheTTL),
		remote.WithStatsCache(redisCache, cfg.Redis.StatsTTL),
	)
	if err != nil {
		logger.Fatal("Failed to initialize feed API client", zap.Error(err))
	}

	posts := store.New(client)
	feeds := feed.NewController(posts, cfg.Feed.PageSize)

	apiRouter := api.NewRouter(api.Deps{
		Feeds:        feeds,
		Profiles:     client,
		Cache:        redisCache,
		ViewerID:     cfg.API.ViewerID,
		ListPageSize: cfg.Lists.PageSize,
	})

	if cfg.Logging.Level == "DEBUG" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	apiRouter.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Server starting", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// event streams end with the watchers, then pending confirmations drain
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	apiRouter.Close()

	logger.Info("Server exited")
}
