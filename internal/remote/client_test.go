package remote

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/steemit/feedclient/internal/cache"
	"github.com/steemit/feedclient/internal/models"
	"github.com/steemit/feedclient/internal/service"
	"github.com/steemit/feedclient/pkg/config"
)

type handlerFunc func(params map[string]interface{}) (interface{}, *RPCError)

type fakeAPI struct {
	mu         sync.Mutex
	handlers   map[string]handlerFunc
	calls      map[string]int
	params     map[string][]map[string]interface{}
	requestIDs []string
	failHTTP   int // respond 503 this many times before handling
}

func newFakeAPI(t *testing.T) (*fakeAPI, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	api := &fakeAPI{
		handlers: make(map[string]handlerFunc),
		calls:    make(map[string]int),
		params:   make(map[string][]map[string]interface{}),
	}

	engine := gin.New()
	engine.POST("/", func(c *gin.Context) {
		var req struct {
			ID     int64                  `json:"id"`
			Method string                 `json:"method"`
			Params map[string]interface{} `json:"params"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Status(http.StatusBadRequest)
			return
		}

		api.mu.Lock()
		api.calls[req.Method]++
		api.params[req.Method] = append(api.params[req.Method], req.Params)
		api.requestIDs = append(api.requestIDs, c.GetHeader("X-Request-ID"))
		if api.failHTTP > 0 {
			api.failHTTP--
			api.mu.Unlock()
			c.Status(http.StatusServiceUnavailable)
			return
		}
		h, ok := api.handlers[req.Method]
		api.mu.Unlock()

		if !ok {
			c.JSON(http.StatusOK, gin.H{"jsonrpc": "2.0", "id": req.ID,
				"error": RPCError{Code: -32601, Message: "Method not found"}})
			return
		}
		result, rpcErr := h(req.Params)
		if rpcErr != nil {
			c.JSON(http.StatusOK, gin.H{"jsonrpc": "2.0", "id": req.ID, "error": rpcErr})
			return
		}
		c.JSON(http.StatusOK, gin.H{"jsonrpc": "2.0", "id": req.ID, "result": result})
	})

	srv := httptest.NewServer(engine)
	t.Cleanup(srv.Close)
	return api, srv
}

func (f *fakeAPI) handle(method string, h handlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[method] = h
}

func (f *fakeAPI) failNext(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failHTTP = n
}

func (f *fakeAPI) paramsOf(method string) []map[string]interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.params[method]
}

func (f *fakeAPI) count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func newClient(t *testing.T, url string, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithLogger(zap.NewNop()), WithRetryInterval(time.Millisecond)}, opts...)
	c, err := New(&config.APIConfig{URL: url, Timeout: 2 * time.Second, MaxRetries: 2}, opts...)
	require.NoError(t, err)
	return c
}

func TestNewRequiresURL(t *testing.T) {
	_, err := New(&config.APIConfig{})
	assert.Error(t, err)
}

func TestFetchFeeds(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.handle("feed_api.get_profile_feed", func(map[string]interface{}) (interface{}, *RPCError) {
		return []models.DetailedPost{
			{Post: models.Post{ID: 7, Text: "hello"}, LikeCount: 2},
			{Post: models.Post{ID: 8}},
		}, nil
	})
	api.handle("feed_api.get_following_feed", func(map[string]interface{}) (interface{}, *RPCError) {
		return []models.DetailedPost{}, nil
	})

	c := newClient(t, srv.URL)

	posts, err := c.FetchProfileFeed(context.Background(), 42, 20, 10)
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, int64(7), posts[0].ID)
	assert.Equal(t, "hello", posts[0].Text)
	assert.Equal(t, 2, posts[0].LikeCount)
	gotParams := api.paramsOf("feed_api.get_profile_feed")[0]
	assert.EqualValues(t, 42, gotParams["user_id"])
	assert.EqualValues(t, 20, gotParams["offset"])
	assert.EqualValues(t, 10, gotParams["limit"])

	posts, err = c.FetchFollowingFeed(context.Background(), 0, 10)
	require.NoError(t, err)
	assert.Empty(t, posts)

	api.mu.Lock()
	for _, id := range api.requestIDs {
		assert.Len(t, id, 36, "uuid request id")
	}
	api.mu.Unlock()
}

func TestErrorMapping(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.handle("post_api.get_post", func(map[string]interface{}) (interface{}, *RPCError) {
		return nil, &RPCError{Code: CodeNotFound, Message: "post not found"}
	})
	api.handle("post_api.toggle_like", func(map[string]interface{}) (interface{}, *RPCError) {
		return nil, &RPCError{Code: -32000, Message: "database unavailable"}
	})
	api.handle("post_api.delete_post", func(map[string]interface{}) (interface{}, *RPCError) {
		return nil, &RPCError{Code: CodeInvalidParams, Message: "not the author"}
	})

	c := newClient(t, srv.URL)
	ctx := context.Background()

	_, err := c.FetchPost(ctx, 1)
	assert.ErrorIs(t, err, service.ErrNotFound)
	assert.Equal(t, 1, api.count("post_api.get_post"), "rpc errors are not retried")

	err = c.ToggleLike(ctx, 1)
	require.Error(t, err)
	assert.True(t, service.IsTransport(err))
	var rpcErr *RPCError
	require.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, -32000, rpcErr.Code)

	err = c.DeletePost(ctx, 1)
	assert.ErrorIs(t, err, service.ErrValidation)
}

func TestReadsRetryTransportFailures(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.handle("post_api.get_post", func(map[string]interface{}) (interface{}, *RPCError) {
		return models.DetailedPost{Post: models.Post{ID: 5}}, nil
	})
	api.failNext(2)

	c := newClient(t, srv.URL)
	post, err := c.FetchPost(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, int64(5), post.ID)
	assert.Equal(t, 3, api.count("post_api.get_post"))
}

func TestReadsGiveUpAfterMaxRetries(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.handle("post_api.get_post", func(map[string]interface{}) (interface{}, *RPCError) {
		return models.DetailedPost{Post: models.Post{ID: 5}}, nil
	})
	api.failNext(10)

	c := newClient(t, srv.URL)
	_, err := c.FetchPost(context.Background(), 5)
	require.Error(t, err)
	assert.True(t, service.IsTransport(err))
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
	assert.Equal(t, 3, api.count("post_api.get_post"))
}

func TestMutationsAreNotRetried(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.handle("profile_api.add_friend", func(map[string]interface{}) (interface{}, *RPCError) {
		return true, nil
	})
	api.failNext(1)

	c := newClient(t, srv.URL)
	err := c.AddFriend(context.Background(), 9)
	require.Error(t, err)
	assert.True(t, service.IsTransport(err))
	assert.Equal(t, 1, api.count("profile_api.add_friend"))
}

func TestListParams(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.handle("profile_api.get_friends", func(map[string]interface{}) (interface{}, *RPCError) {
		return []models.DetailedUser{{PublicUser: models.PublicUser{ID: 3, Username: "carol"}, IsFriend: true}}, nil
	})
	api.handle("profile_api.toggle_following", func(map[string]interface{}) (interface{}, *RPCError) {
		return nil, nil
	})

	c := newClient(t, srv.URL)
	ctx := context.Background()

	users, err := c.GetFriends(ctx, 1, 20, nil)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.True(t, users[0].IsFriend)

	before := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	_, err = c.GetFriends(ctx, 1, 20, &before)
	require.NoError(t, err)

	require.NoError(t, c.ToggleFollowing(ctx, 3, true))

	friends := api.paramsOf("profile_api.get_friends")
	require.Len(t, friends, 2)
	_, hasCursor := friends[0]["before"]
	assert.False(t, hasCursor)
	assert.Equal(t, "2024-05-01T10:00:00Z", friends[1]["before"])

	toggles := api.paramsOf("profile_api.toggle_following")
	require.Len(t, toggles, 1)
	assert.Equal(t, true, toggles[0]["currently_following"])
}

func TestSearchIsCached(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.handle("profile_api.search_by_username_prefix", func(params map[string]interface{}) (interface{}, *RPCError) {
		return []models.PublicUser{{ID: 1, Username: params["prefix"].(string) + "ce"}}, nil
	})

	c := newClient(t, srv.URL, WithSearchCache(8, time.Minute))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		users, err := c.SearchByUsernamePrefix(ctx, "ali")
		require.NoError(t, err)
		require.Len(t, users, 1)
		assert.Equal(t, "alice", users[0].Username)
	}
	_, err := c.SearchByUsernamePrefix(ctx, "bo")
	require.NoError(t, err)

	assert.Equal(t, 2, api.count("profile_api.search_by_username_prefix"))
}

func TestStatisticsSharedThroughRedis(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.handle("profile_api.get_app_statistics", func(map[string]interface{}) (interface{}, *RPCError) {
		return models.Stats{Users: 3, Posts: 9, Comments: 1, Likes: 27}, nil
	})

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	stats := cache.NewWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))

	first := newClient(t, srv.URL, WithStatsCache(stats, time.Minute))
	second := newClient(t, srv.URL, WithStatsCache(stats, time.Minute))
	ctx := context.Background()

	got, err := first.GetAppStatistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(27), got.Likes)

	got, err = second.GetAppStatistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(9), got.Posts)
	assert.Equal(t, 1, api.count("profile_api.get_app_statistics"))
}

func TestStatisticsServedWhenRedisFails(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.handle("profile_api.get_app_statistics", func(map[string]interface{}) (interface{}, *RPCError) {
		return models.Stats{Posts: 4}, nil
	})

	mr, err := miniredis.Run()
	require.NoError(t, err)
	stats := cache.NewWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1}))
	mr.Close()

	core, logs := observer.New(zapcore.WarnLevel)
	c := newClient(t, srv.URL, WithStatsCache(stats, time.Minute), WithLogger(zap.New(core)))

	got, err := c.GetAppStatistics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), got.Posts)

	assert.Equal(t, 1, logs.FilterMessage("Failed to read cached statistics").Len())
	assert.Equal(t, 1, logs.FilterMessage("Failed to cache statistics").Len())
}

func TestStatisticsWithoutRedis(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.handle("profile_api.get_app_statistics", func(map[string]interface{}) (interface{}, *RPCError) {
		return models.Stats{Users: 1}, nil
	})

	c := newClient(t, srv.URL)
	for i := 0; i < 2; i++ {
		got, err := c.GetAppStatistics(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(1), got.Users)
	}
	assert.Equal(t, 2, api.count("profile_api.get_app_statistics"))
}
