// Package store is the client-side entity cache for posts. Reads are
// synchronous; concurrent loads of one id share a single fetch; like and
// delete are applied locally first and rolled back when the server
// refuses them.
package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/steemit/feedclient/internal/models"
	"github.com/steemit/feedclient/internal/optimistic"
	"github.com/steemit/feedclient/internal/service"
	"github.com/steemit/feedclient/internal/state"
	"github.com/steemit/feedclient/pkg/logging"
	"github.com/steemit/feedclient/pkg/telemetry"
)

// ChangeKind describes what happened to a cached post
type ChangeKind string

// Change kinds
const (
	ChangeInserted ChangeKind = "inserted"
	ChangeUpdated  ChangeKind = "updated"
	ChangeRemoved  ChangeKind = "removed"
)

// Revision is the last change applied to the store
type Revision struct {
	Seq  uint64
	ID   int64
	Kind ChangeKind
}

// PageQuery selects one page of a feed
type PageQuery struct {
	Variant models.FeedVariant
	Offset  int
	Limit   int
	UserID  int64 // profile feeds only
}

// Store caches posts by id
type Store struct {
	mu         sync.Mutex
	posts      map[int64]models.DetailedPost
	tombstones map[int64]struct{}
	seq        uint64

	service service.PostService
	flights singleflight.Group
	runner  *optimistic.Runner
	logger  *zap.Logger

	changes *state.Value[Revision]
	message *state.Value[string]

	hits    metric.Int64Counter
	misses  metric.Int64Counter
	fetches metric.Int64Counter
}

// Option configures a Store
type Option func(*Store)

// WithLogger overrides the component logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New creates an empty store backed by posts
func New(posts service.PostService, opts ...Option) *Store {
	s := &Store{
		posts:      make(map[int64]models.DetailedPost),
		tombstones: make(map[int64]struct{}),
		service:    posts,
		logger:     logging.WithComponent("store"),
		changes:    state.NewValue(Revision{}),
		message:    state.NewValue(""),
		hits:       telemetry.Counter("feedclient.store.hits", "Post loads served from the cache"),
		misses:     telemetry.Counter("feedclient.store.misses", "Post loads not found in the cache"),
		fetches:    telemetry.Counter("feedclient.store.fetches", "Post fetches sent to the server"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.runner = optimistic.NewRunner(s.logger, s.reportError)
	return s
}

// Get returns the cached post without doing any I/O
func (s *Store) Get(id int64) (models.DetailedPost, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	post, ok := s.posts[id]
	return post, ok
}

// Len returns the number of cached posts
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.posts)
}

// Load returns the cached post or fetches it. Concurrent loads of the same
// id share one fetch. A failed fetch caches nothing and reports false.
func (s *Store) Load(ctx context.Context, id int64) (models.DetailedPost, bool) {
	if post, ok := s.Get(id); ok {
		s.hits.Add(ctx, 1)
		return post, true
	}
	s.misses.Add(ctx, 1)

	// the fetch outlives any single caller so a canceled caller does not
	// fail everyone waiting on the same flight
	fetchCtx := context.WithoutCancel(ctx)
	v, err, shared := s.flights.Do(strconv.FormatInt(id, 10), func() (interface{}, error) {
		// an earlier flight may have completed after our cache miss
		if post, ok := s.Get(id); ok {
			return post, nil
		}
		return s.fetch(fetchCtx, id)
	})
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			s.logger.Debug("Post not found", zap.Int64("post_id", id))
		} else {
			s.logger.Warn("Failed to load post", zap.Int64("post_id", id), zap.Error(err))
		}
		return models.DetailedPost{}, false
	}
	if shared {
		s.logger.Debug("Joined in-flight post fetch", zap.Int64("post_id", id))
	}
	return v.(models.DetailedPost), true
}

func (s *Store) fetch(ctx context.Context, id int64) (models.DetailedPost, error) {
	ctx, span := telemetry.StartSpan(ctx, "store.fetch_post")
	defer span.End()

	s.fetches.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", "post")))
	post, err := s.service.FetchPost(ctx, id)
	if err != nil {
		span.RecordError(err)
		return models.DetailedPost{}, err
	}
	post.SortImages()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, deleted := s.tombstones[id]; deleted {
		return models.DetailedPost{}, service.ErrNotFound
	}
	// keep a value inserted meanwhile, it may carry optimistic state
	if existing, ok := s.posts[id]; ok {
		return existing, nil
	}
	s.setLocked(post, ChangeInserted)
	return post, nil
}

// LoadPage fetches one feed page and merges it into the cache. Posts
// already cached are left untouched. The ids are returned in server order.
func (s *Store) LoadPage(ctx context.Context, q PageQuery) ([]int64, error) {
	if q.Limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", service.ErrValidation)
	}
	if q.Offset < 0 {
		return nil, fmt.Errorf("%w: offset must not be negative", service.ErrValidation)
	}

	ctx, span := telemetry.StartSpan(ctx, "store.load_page")
	defer span.End()

	s.fetches.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(q.Variant))))

	var (
		posts []models.DetailedPost
		err   error
	)
	switch q.Variant {
	case models.FeedHome:
		posts, err = s.service.FetchFollowingFeed(ctx, q.Offset, q.Limit)
	case models.FeedGlobal:
		posts, err = s.service.FetchGlobalFeed(ctx, q.Offset, q.Limit)
	case models.FeedProfile:
		posts, err = s.service.FetchProfileFeed(ctx, q.UserID, q.Offset, q.Limit)
	default:
		return nil, fmt.Errorf("%w: unknown feed variant %q", service.ErrValidation, q.Variant)
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to load %s page at offset %d: %w", q.Variant, q.Offset, err)
	}

	ids := make([]int64, 0, len(posts))

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, post := range posts {
		ids = append(ids, post.ID)
		if _, deleted := s.tombstones[post.ID]; deleted {
			continue
		}
		if _, ok := s.posts[post.ID]; ok {
			continue
		}
		post.SortImages()
		s.setLocked(post, ChangeInserted)
	}

	s.logger.Debug("Loaded feed page",
		zap.String("variant", string(q.Variant)),
		zap.Int("offset", q.Offset),
		zap.Int("count", len(ids)))

	return ids, nil
}

// Put inserts or replaces a post, for example one the viewer just created
func (s *Store) Put(post models.DetailedPost) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, deleted := s.tombstones[post.ID]; deleted {
		return
	}
	kind := ChangeInserted
	if _, ok := s.posts[post.ID]; ok {
		kind = ChangeUpdated
	}
	post.SortImages()
	s.setLocked(post, kind)
}

// ToggleLike flips the liked flag of a cached post right away and confirms
// it with the server. On failure the flip is undone and the error is sent
// on the returned channel. Uncached posts yield service.ErrNotFound.
func (s *Store) ToggleLike(ctx context.Context, id int64) <-chan error {
	s.mu.Lock()
	defer s.mu.Unlock()

	before, ok := s.posts[id]
	if !ok {
		return optimistic.Resolved(service.ErrNotFound)
	}
	after := before.WithLikeToggled()

	return s.runner.Run(ctx, optimistic.Mutation{
		Name:   "toggle_like",
		Apply:  func() { s.setLocked(after, ChangeUpdated) },
		Revert: func() { s.revertLike(id, before, after) },
	}, func(ctx context.Context) error {
		ctx, span := telemetry.StartSpan(ctx, "store.toggle_like")
		defer span.End()
		return s.service.ToggleLike(ctx, id)
	})
}

// revertLike restores the pre-toggle flag when nothing else touched it,
// otherwise it applies the inverse flip to whatever is cached now.
func (s *Store) revertLike(id int64, before, after models.DetailedPost) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.posts[id]
	if !ok {
		return
	}
	if current.IsLiked == after.IsLiked && current.LikeCount == after.LikeCount {
		current.IsLiked = before.IsLiked
		current.LikeCount = before.LikeCount
	} else {
		current = current.WithLikeToggled()
	}
	s.setLocked(current, ChangeUpdated)
}

// Delete removes a post from the cache right away and asks the server to
// delete it. If the server refuses, the post is restored unless a newer
// copy was cached in the meantime.
func (s *Store) Delete(ctx context.Context, id int64) <-chan error {
	s.mu.Lock()
	defer s.mu.Unlock()

	before, cached := s.posts[id]

	return s.runner.Run(ctx, optimistic.Mutation{
		Name: "delete_post",
		Apply: func() {
			s.tombstones[id] = struct{}{}
			if cached {
				delete(s.posts, id)
				s.notifyLocked(id, ChangeRemoved)
			}
		},
		Revert: func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.tombstones, id)
			if _, ok := s.posts[id]; cached && !ok {
				s.setLocked(before, ChangeInserted)
			}
		},
	}, func(ctx context.Context) error {
		ctx, span := telemetry.StartSpan(ctx, "store.delete_post")
		defer span.End()
		return s.service.DeletePost(ctx, id)
	})
}

// Changes exposes the last applied change for observers
func (s *Store) Changes() *state.Value[Revision] {
	return s.changes
}

// Message returns the transient error message, empty when there is none
func (s *Store) Message() string {
	return s.message.Get()
}

// Messages exposes the transient error message for observers
func (s *Store) Messages() *state.Value[string] {
	return s.message
}

// ClearError dismisses the transient error message
func (s *Store) ClearError() {
	s.message.Set("")
}

// Wait blocks until all background confirmations have finished
func (s *Store) Wait() {
	s.runner.Wait()
}

func (s *Store) reportError(name string, err error) {
	switch name {
	case "toggle_like":
		s.message.Set("Could not update like: " + err.Error())
	case "delete_post":
		s.message.Set("Could not delete post: " + err.Error())
	default:
		s.message.Set(err.Error())
	}
}

func (s *Store) setLocked(post models.DetailedPost, kind ChangeKind) {
	s.posts[post.ID] = post
	s.notifyLocked(post.ID, kind)
}

func (s *Store) notifyLocked(id int64, kind ChangeKind) {
	s.seq++
	s.changes.Set(Revision{Seq: s.seq, ID: id, Kind: kind})
}
