package api

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/steemit/feedclient/internal/api/bridge"
	"github.com/steemit/feedclient/internal/cache"
	"github.com/steemit/feedclient/internal/feed"
	"github.com/steemit/feedclient/internal/service"
	"github.com/steemit/feedclient/internal/store"
	"github.com/steemit/feedclient/pkg/logging"
)

const keepAliveInterval = 15 * time.Second

// Deps are the components the router exposes
type Deps struct {
	Feeds        *feed.Controller
	Profiles     service.ProfileService
	Cache        *cache.Cache
	ViewerID     int64
	ListPageSize int
}

// Router sets up API routes
type Router struct {
	handler  *JSONRPCHandler
	events   *bridge.Events
	posts    *bridge.PostAPI
	feeds    *bridge.FeedAPI
	profiles *bridge.ProfileAPI
	store    *store.Store
	cache    *cache.Cache
	logger   *zap.Logger
}

// NewRouter creates a new API router
func NewRouter(deps Deps) *Router {
	events := bridge.NewEvents()
	router := &Router{
		handler:  NewJSONRPCHandler(),
		events:   events,
		posts:    bridge.NewPostAPI(deps.Feeds.Store(), events),
		feeds:    bridge.NewFeedAPI(deps.Feeds, events),
		profiles: bridge.NewProfileAPI(deps.Profiles, deps.ViewerID, deps.ListPageSize, events),
		store:    deps.Feeds.Store(),
		cache:    deps.Cache,
		logger:   logging.WithComponent("api-router"),
	}

	router.registerMethods()

	return router
}

// SetupRoutes sets up all API routes
func (r *Router) SetupRoutes(engine *gin.Engine) {
	engine.GET("/health", r.healthHandler)
	engine.GET("/.well-known/healthcheck.json", r.healthHandler)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	engine.GET("/events", r.eventsHandler)

	engine.POST("/", r.handler.Handle)
}

func (r *Router) registerMethods() {
	r.handler.RegisterMethod("feed.load_more", r.feeds.LoadMore)
	r.handler.RegisterMethod("feed.refresh", r.feeds.Refresh)
	r.handler.RegisterMethod("feed.posts", r.feeds.Posts)
	r.handler.RegisterMethod("feed.clear_error", r.feeds.ClearError)

	r.handler.RegisterMethod("post.get", r.posts.Get)
	r.handler.RegisterMethod("post.load", r.posts.Load)
	r.handler.RegisterMethod("post.toggle_like", r.posts.ToggleLike)
	r.handler.RegisterMethod("post.delete", r.posts.Delete)
	r.handler.RegisterMethod("poll.percentages", r.posts.Percentages)

	r.handler.RegisterMethod("list.load", r.profiles.Load)
	r.handler.RegisterMethod("list.refresh", r.profiles.Refresh)
	r.handler.RegisterMethod("list.toggle_follow", r.profiles.ToggleFollow)
	r.handler.RegisterMethod("list.add_item", r.profiles.AddItem)
	r.handler.RegisterMethod("list.remove_item", r.profiles.RemoveItem)
	r.handler.RegisterMethod("list.clear_error", r.profiles.ClearError)

	r.handler.RegisterMethod("stats.get", r.profiles.Stats)
}

// Close stops the event stream watchers and waits for pending mutations
func (r *Router) Close() {
	r.profiles.Wait()
	r.store.Wait()
	r.events.Close()
}

// healthHandler handles health check requests
func (r *Router) healthHandler(c *gin.Context) {
	status := gin.H{
		"status":  "OK",
		"service": "feedclient-bridge",
	}
	if r.cache != nil {
		if err := r.cache.Health(c.Request.Context()); err != nil {
			r.logger.Warn("Redis health check failed", zap.Error(err))
			status["status"] = "DEGRADED"
			status["redis"] = err.Error()
		} else {
			status["redis"] = "OK"
		}
	}
	c.JSON(http.StatusOK, status)
}

// eventsHandler streams state changes as server-sent events
func (r *Router) eventsHandler(c *gin.Context) {
	ch, cancel := r.events.Subscribe()
	defer cancel()

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	r.logger.Debug("Event stream opened", zap.String("remote", c.ClientIP()))

	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case ev, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent(ev.Topic, ev.Data)
			return true
		case <-ticker.C:
			c.SSEvent("ping", time.Now().UTC().Unix())
			return true
		}
	})
}
