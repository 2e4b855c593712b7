// Package remote implements the post and profile services against the
// feed API's JSON-RPC endpoint.
package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"github.com/steemit/feedclient/internal/cache"
	"github.com/steemit/feedclient/internal/models"
	"github.com/steemit/feedclient/internal/service"
	"github.com/steemit/feedclient/pkg/config"
	"github.com/steemit/feedclient/pkg/logging"
	"github.com/steemit/feedclient/pkg/telemetry"
)

const (
	defaultSearchCacheSize = 256
	defaultSearchCacheTTL  = 30 * time.Second
	defaultRetryInterval   = 200 * time.Millisecond
	maxRetryInterval       = 2 * time.Second
)

// Client talks to the feed API
type Client struct {
	rpc           *RPCClient
	maxRetries    int
	retryInterval time.Duration
	search        *expirable.LRU[string, []models.PublicUser]
	stats         *cache.Cache
	statsTTL      time.Duration
	httpClient    *http.Client
	logger        *zap.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the HTTP client built from the API timeout
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithSearchCache sizes the in-process username search cache
func WithSearchCache(size int, ttl time.Duration) Option {
	return func(c *Client) {
		if size <= 0 {
			size = defaultSearchCacheSize
		}
		if ttl <= 0 {
			ttl = defaultSearchCacheTTL
		}
		c.search = expirable.NewLRU[string, []models.PublicUser](size, nil, ttl)
	}
}

// WithStatsCache shares app statistics through Redis for ttl. A nil
// cache disables it.
func WithStatsCache(stats *cache.Cache, ttl time.Duration) Option {
	return func(c *Client) {
		c.stats = stats
		c.statsTTL = ttl
	}
}

// WithRetryInterval sets the first backoff interval between read retries
func WithRetryInterval(d time.Duration) Option {
	return func(c *Client) {
		c.retryInterval = d
	}
}

// WithLogger overrides the component logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a feed API client
func New(cfg *config.APIConfig, opts ...Option) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("api_url is required")
	}

	c := &Client{
		maxRetries:    cfg.MaxRetries,
		retryInterval: defaultRetryInterval,
		logger:        logging.WithComponent("remote"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.search == nil {
		WithSearchCache(defaultSearchCacheSize, defaultSearchCacheTTL)(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	c.rpc = NewRPCClient(cfg.URL, c.httpClient, c.logger)

	c.logger.Info("Feed API client initialized", zap.String("url", cfg.URL))

	return c, nil
}

// read calls a side-effect free method, retrying transport failures
func (c *Client) read(ctx context.Context, api, method string, params interface{}, out interface{}) error {
	op := api + "." + method
	ctx, span := telemetry.StartSpan(ctx, "remote."+op)
	defer span.End()

	b := backoff.WithMaxRetries(backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(c.retryInterval),
		backoff.WithMaxInterval(maxRetryInterval),
	), uint64(c.maxRetries))

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		raw, err := c.rpc.Call(ctx, api, method, params)
		if err != nil {
			if !retryable(err) {
				return backoff.Permanent(err)
			}
			c.logger.Debug("Retrying RPC call", zap.String("method", op), zap.Int("attempt", attempt), zap.Error(err))
			return err
		}
		if out == nil {
			return nil
		}
		if err := sonic.Unmarshal(raw, out); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to unmarshal %s result: %w", op, err))
		}
		return nil
	}, backoff.WithContext(b, ctx))
	if err != nil {
		span.RecordError(err)
		return mapError(op, err)
	}
	return nil
}

// write calls a mutating method once
func (c *Client) write(ctx context.Context, api, method string, params interface{}) error {
	op := api + "." + method
	ctx, span := telemetry.StartSpan(ctx, "remote."+op)
	defer span.End()

	if _, err := c.rpc.Call(ctx, api, method, params); err != nil {
		span.RecordError(err)
		return mapError(op, err)
	}
	return nil
}

// mapError translates RPC failures into the service error taxonomy
func mapError(op string, err error) error {
	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		err = permanent.Err
	}
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		switch rpcErr.Code {
		case CodeNotFound:
			return fmt.Errorf("%s: %w", op, service.ErrNotFound)
		case CodeInvalidParams:
			return fmt.Errorf("%s: %w: %s", op, service.ErrValidation, rpcErr.Message)
		}
	}
	return service.NewTransportError(op, err)
}

func pageParams(offset, limit int) map[string]interface{} {
	return map[string]interface{}{
		"offset": offset,
		"limit":  limit,
	}
}

func listParams(userID int64, limit int, before *time.Time) map[string]interface{} {
	params := map[string]interface{}{
		"user_id": userID,
		"limit":   limit,
	}
	if before != nil {
		params["before"] = before.UTC().Format(time.RFC3339Nano)
	}
	return params
}

// FetchFollowingFeed returns a page of the viewer's home feed
func (c *Client) FetchFollowingFeed(ctx context.Context, offset, limit int) ([]models.DetailedPost, error) {
	var posts []models.DetailedPost
	if err := c.read(ctx, "feed_api", "get_following_feed", pageParams(offset, limit), &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// FetchGlobalFeed returns a page of the global feed
func (c *Client) FetchGlobalFeed(ctx context.Context, offset, limit int) ([]models.DetailedPost, error) {
	var posts []models.DetailedPost
	if err := c.read(ctx, "feed_api", "get_global_feed", pageParams(offset, limit), &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// FetchProfileFeed returns a page of posts authored by userID
func (c *Client) FetchProfileFeed(ctx context.Context, userID int64, offset, limit int) ([]models.DetailedPost, error) {
	params := pageParams(offset, limit)
	params["user_id"] = userID

	var posts []models.DetailedPost
	if err := c.read(ctx, "feed_api", "get_profile_feed", params, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// FetchPost returns one post
func (c *Client) FetchPost(ctx context.Context, id int64) (models.DetailedPost, error) {
	var post models.DetailedPost
	if err := c.read(ctx, "post_api", "get_post", map[string]interface{}{"id": id}, &post); err != nil {
		return models.DetailedPost{}, err
	}
	return post, nil
}

// ToggleLike flips the viewer's like on a post
func (c *Client) ToggleLike(ctx context.Context, id int64) error {
	return c.write(ctx, "post_api", "toggle_like", map[string]interface{}{"id": id})
}

// DeletePost deletes one of the viewer's posts
func (c *Client) DeletePost(ctx context.Context, id int64) error {
	return c.write(ctx, "post_api", "delete_post", map[string]interface{}{"id": id})
}

func (c *Client) users(ctx context.Context, method string, userID int64, limit int, before *time.Time) ([]models.DetailedUser, error) {
	var users []models.DetailedUser
	if err := c.read(ctx, "profile_api", method, listParams(userID, limit, before), &users); err != nil {
		return nil, err
	}
	return users, nil
}

// GetFollowing lists the accounts userID follows
func (c *Client) GetFollowing(ctx context.Context, userID int64, limit int, before *time.Time) ([]models.DetailedUser, error) {
	return c.users(ctx, "get_following", userID, limit, before)
}

// GetMutuals lists accounts both userID and the viewer follow
func (c *Client) GetMutuals(ctx context.Context, userID int64, limit int, before *time.Time) ([]models.DetailedUser, error) {
	return c.users(ctx, "get_mutuals", userID, limit, before)
}

// GetFriends lists the friends of userID
func (c *Client) GetFriends(ctx context.Context, userID int64, limit int, before *time.Time) ([]models.DetailedUser, error) {
	return c.users(ctx, "get_friends", userID, limit, before)
}

// ToggleFollowing follows or unfollows userID depending on currentlyFollowing
func (c *Client) ToggleFollowing(ctx context.Context, userID int64, currentlyFollowing bool) error {
	return c.write(ctx, "profile_api", "toggle_following", map[string]interface{}{
		"user_id":             userID,
		"currently_following": currentlyFollowing,
	})
}

// AddFriend sends a friend request to userID
func (c *Client) AddFriend(ctx context.Context, userID int64) error {
	return c.write(ctx, "profile_api", "add_friend", map[string]interface{}{"user_id": userID})
}

// RemoveFriend ends the friendship with userID
func (c *Client) RemoveFriend(ctx context.Context, userID int64) error {
	return c.write(ctx, "profile_api", "remove_friend", map[string]interface{}{"user_id": userID})
}

// SearchByUsernamePrefix returns accounts whose username starts with
// prefix. Results are cached briefly in process.
func (c *Client) SearchByUsernamePrefix(ctx context.Context, prefix string) ([]models.PublicUser, error) {
	if users, ok := c.search.Get(prefix); ok {
		return users, nil
	}

	var users []models.PublicUser
	if err := c.read(ctx, "profile_api", "search_by_username_prefix", map[string]interface{}{"prefix": prefix}, &users); err != nil {
		return nil, err
	}
	c.search.Add(prefix, users)
	return users, nil
}

// GetAppStatistics returns global counters, shared through Redis when a
// stats cache is configured
func (c *Client) GetAppStatistics(ctx context.Context) (models.Stats, error) {
	key := "stats:" + cache.HashKey(c.rpc.URL())

	var stats models.Stats
	err := c.stats.GetJSON(ctx, key, &stats)
	if err == nil {
		return stats, nil
	}
	if !errors.Is(err, cache.ErrCacheDisabled) && !errors.Is(err, cache.ErrMiss) {
		c.logger.Warn("Failed to read cached statistics", zap.Error(err))
	}

	if err := c.read(ctx, "profile_api", "get_app_statistics", map[string]interface{}{}, &stats); err != nil {
		return models.Stats{}, err
	}
	if c.stats != nil {
		if err := c.stats.SetJSON(ctx, key, stats, c.statsTTL); err != nil {
			c.logger.Warn("Failed to cache statistics", zap.Error(err))
		}
	}
	return stats, nil
}

var (
	_ service.PostService    = (*Client)(nil)
	_ service.ProfileService = (*Client)(nil)
)
