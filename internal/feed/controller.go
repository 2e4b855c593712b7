// Package feed keeps the scrollable post feeds (home, global and single
// profile). Each feed holds an ordered id list and an offset; post
// payloads live in the store.
package feed

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/steemit/feedclient/internal/models"
	"github.com/steemit/feedclient/internal/service"
	"github.com/steemit/feedclient/internal/state"
	"github.com/steemit/feedclient/internal/store"
	"github.com/steemit/feedclient/pkg/logging"
)

// DefaultPageSize is used when the controller is built with a non-positive page size
const DefaultPageSize = 20

// Key identifies one feed. UserID is only meaningful for profile feeds.
type Key struct {
	Variant models.FeedVariant
	UserID  int64
}

// NewKey builds the key for variant, dropping userID unless it is a profile feed
func NewKey(variant models.FeedVariant, userID int64) Key {
	if variant != models.FeedProfile {
		userID = 0
	}
	return Key{Variant: variant, UserID: userID}
}

// String returns a stable name for the feed
func (k Key) String() string {
	if k.Variant == models.FeedProfile {
		return fmt.Sprintf("%s:%d", k.Variant, k.UserID)
	}
	return string(k.Variant)
}

// Phase is the load phase of a feed
type Phase string

// Phases
const (
	PhaseIdle    Phase = "idle"
	PhaseLoading Phase = "loading"
	PhaseLoaded  Phase = "loaded"
	PhaseFailed  Phase = "failed"
)

// Snapshot is the observable state of one feed
type Snapshot struct {
	Key      Key
	Phase    Phase
	IDs      []int64
	Offset   int
	HasMore  bool
	Fetching bool
	Err      error
	Message  string
}

type feedState struct {
	key      Key
	ids      []int64
	offset   int
	hasMore  bool
	loaded   bool
	fetching bool
	err      error
	message  string
	value    *state.Value[Snapshot]
}

func (f *feedState) snapshot() Snapshot {
	phase := PhaseIdle
	switch {
	case f.loaded:
		phase = PhaseLoaded
	case f.fetching:
		phase = PhaseLoading
	case f.err != nil:
		phase = PhaseFailed
	}
	return Snapshot{
		Key:      f.key,
		Phase:    phase,
		IDs:      f.ids,
		Offset:   f.offset,
		HasMore:  f.hasMore,
		Fetching: f.fetching,
		Err:      f.err,
		Message:  f.message,
	}
}

// Option configures a Controller
type Option func(*Controller)

// WithLogger overrides the component logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// Controller tracks every feed opened against one store
type Controller struct {
	mu       sync.Mutex
	store    *store.Store
	pageSize int
	feeds    map[Key]*feedState
	logger   *zap.Logger
}

// NewController creates a controller fetching pageSize posts per page
func NewController(s *store.Store, pageSize int, opts ...Option) *Controller {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	c := &Controller{
		store:    s,
		pageSize: pageSize,
		feeds:    make(map[Key]*feedState),
		logger:   logging.WithComponent("feed"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Store returns the backing post store
func (c *Controller) Store() *store.Store {
	return c.store
}

// PageSize returns the number of posts requested per page
func (c *Controller) PageSize() int {
	return c.pageSize
}

func (c *Controller) feedLocked(key Key) *feedState {
	f, ok := c.feeds[key]
	if !ok {
		f = &feedState{key: key, hasMore: true}
		f.value = state.NewValue(f.snapshot())
		c.feeds[key] = f
	}
	return f
}

func (c *Controller) publishLocked(f *feedState) {
	f.value.Set(f.snapshot())
}

// Fetch loads the page at offset. Offset zero replaces the id list, any
// other offset appends the ids not yet listed. A fetch already running for
// the same feed makes this a no-op.
func (c *Controller) Fetch(ctx context.Context, variant models.FeedVariant, offset int, userID int64) error {
	if !variant.Valid() {
		return fmt.Errorf("%w: unknown feed variant %q", service.ErrValidation, variant)
	}
	if offset < 0 {
		return fmt.Errorf("%w: offset must not be negative", service.ErrValidation)
	}
	key := NewKey(variant, userID)

	c.mu.Lock()
	f := c.feedLocked(key)
	if f.fetching {
		c.mu.Unlock()
		c.logger.Debug("Fetch skipped, fetch in flight", zap.Stringer("feed", key), zap.Int("offset", offset))
		return nil
	}
	f.fetching = true
	c.publishLocked(f)
	c.mu.Unlock()

	ids, err := c.store.LoadPage(ctx, store.PageQuery{
		Variant: key.Variant,
		Offset:  offset,
		Limit:   c.pageSize,
		UserID:  key.UserID,
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	f.fetching = false

	if err != nil {
		if f.loaded {
			f.message = "Could not load posts: " + err.Error()
		} else {
			f.err = err
		}
		c.logger.Warn("Feed fetch failed", zap.Stringer("feed", key), zap.Int("offset", offset), zap.Error(err))
		c.publishLocked(f)
		return err
	}

	if offset == 0 {
		f.ids = dedupe(nil, ids)
	} else {
		f.ids = dedupe(f.ids, ids)
	}
	f.offset = offset + len(ids)
	f.hasMore = len(ids) == c.pageSize
	f.loaded = true
	f.err = nil

	c.logger.Debug("Feed page loaded",
		zap.Stringer("feed", key),
		zap.Int("offset", offset),
		zap.Int("count", len(ids)),
		zap.Bool("has_more", f.hasMore))

	c.publishLocked(f)
	return nil
}

// LoadMore fetches the page following the ones already loaded
func (c *Controller) LoadMore(ctx context.Context, variant models.FeedVariant, userID int64) error {
	c.mu.Lock()
	offset := c.feedLocked(NewKey(variant, userID)).offset
	c.mu.Unlock()
	return c.Fetch(ctx, variant, offset, userID)
}

// Refresh fetches the first page again and replaces the id list
func (c *Controller) Refresh(ctx context.Context, variant models.FeedVariant, userID int64) error {
	return c.Fetch(ctx, variant, 0, userID)
}

// HasMore reports whether another page may exist
func (c *Controller) HasMore(variant models.FeedVariant, userID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.feedLocked(NewKey(variant, userID)).hasMore
}

// IDs returns a copy of the feed's id list
func (c *Controller) IDs(variant models.FeedVariant, userID int64) []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int64(nil), c.feedLocked(NewKey(variant, userID)).ids...)
}

// Posts resolves the id list through the store. Ids no longer cached,
// such as deleted posts, are skipped.
func (c *Controller) Posts(variant models.FeedVariant, userID int64) []models.DetailedPost {
	ids := c.IDs(variant, userID)
	posts := make([]models.DetailedPost, 0, len(ids))
	for _, id := range ids {
		if post, ok := c.store.Get(id); ok {
			posts = append(posts, post)
		}
	}
	return posts
}

// Insert puts a freshly created post at the head of the feed
func (c *Controller) Insert(variant models.FeedVariant, userID int64, post models.DetailedPost) {
	c.store.Put(post)

	c.mu.Lock()
	defer c.mu.Unlock()
	f := c.feedLocked(NewKey(variant, userID))
	ids := make([]int64, 0, len(f.ids)+1)
	ids = append(ids, post.ID)
	for _, id := range f.ids {
		if id != post.ID {
			ids = append(ids, id)
		}
	}
	f.ids = ids
	c.publishLocked(f)
}

// Remove drops id from the feed. The cached payload is left to the store.
func (c *Controller) Remove(variant models.FeedVariant, userID int64, id int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	f := c.feedLocked(NewKey(variant, userID))
	ids := make([]int64, 0, len(f.ids))
	for _, existing := range f.ids {
		if existing != id {
			ids = append(ids, existing)
		}
	}
	if len(ids) == len(f.ids) {
		return false
	}
	f.ids = ids
	c.publishLocked(f)
	return true
}

// ClearError dismisses the transient error message of one feed
func (c *Controller) ClearError(variant models.FeedVariant, userID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f := c.feedLocked(NewKey(variant, userID))
	f.message = ""
	c.publishLocked(f)
}

// Snapshot returns the current state of one feed
func (c *Controller) Snapshot(variant models.FeedVariant, userID int64) Snapshot {
	return c.Observe(variant, userID).Get()
}

// Observe exposes the state of one feed for subscribers
func (c *Controller) Observe(variant models.FeedVariant, userID int64) *state.Value[Snapshot] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.feedLocked(NewKey(variant, userID)).value
}

// Keys returns every feed opened so far
func (c *Controller) Keys() []Key {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]Key, 0, len(c.feeds))
	for k := range c.feeds {
		keys = append(keys, k)
	}
	return keys
}

// dedupe returns a new slice with the ids of next not already in base appended
func dedupe(base, next []int64) []int64 {
	seen := make(map[int64]struct{}, len(base)+len(next))
	out := make([]int64, 0, len(base)+len(next))
	for _, id := range base {
		seen[id] = struct{}{}
		out = append(out, id)
	}
	for _, id := range next {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
