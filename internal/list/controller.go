// Package list keeps cursor-paginated lists (following, mutuals, friends,
// search results) and applies optimistic relationship changes to them.
package list

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/steemit/feedclient/internal/state"
	"github.com/steemit/feedclient/pkg/logging"
)

// Item is anything a list can hold
type Item interface {
	ItemID() int64
	ItemCreated() time.Time
}

// Phase is the load phase of a list
type Phase string

// Phases
const (
	PhaseIdle    Phase = "idle"
	PhaseLoading Phase = "loading"
	PhaseLoaded  Phase = "loaded"
	PhaseFailed  Phase = "failed"
)

// State is an immutable snapshot of a list
type State[T Item] struct {
	Phase    Phase
	Items    []T
	HasMore  bool
	Cursor   *time.Time
	Fetching bool
	// Err is set only in PhaseFailed
	Err error
	// Message is a dismissible error about an operation on loaded data
	Message string
}

// Fetcher returns up to limit items created strictly before the cursor,
// newest first. A nil cursor starts from the newest item.
type Fetcher[T Item] func(ctx context.Context, limit int, before *time.Time) ([]T, error)

// Option configures a Controller
type Option func(*options)

type options struct {
	logger *zap.Logger
}

// WithLogger overrides the component logger
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Controller is a cursor-paginated list state machine
type Controller[T Item] struct {
	mu       sync.Mutex
	fetch    Fetcher[T]
	pageSize int

	phase    Phase
	items    []T
	loaded   bool
	hasMore  bool
	cursor   *time.Time
	err      error
	message  string
	fetching bool

	state  *state.Value[State[T]]
	logger *zap.Logger
}

// NewController creates an idle list that fetches pageSize items per page
func NewController[T Item](fetch Fetcher[T], pageSize int, opts ...Option) *Controller[T] {
	o := options{logger: logging.WithComponent("list")}
	for _, opt := range opts {
		opt(&o)
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	return &Controller[T]{
		fetch:    fetch,
		pageSize: pageSize,
		phase:    PhaseIdle,
		state:    state.NewValue(State[T]{Phase: PhaseIdle}),
		logger:   o.logger,
	}
}

// Load fetches the next page, or the first page again when reset is true.
// It does nothing while another load of this list is running; that load
// is not canceled and is applied when it completes.
func (c *Controller[T]) Load(ctx context.Context, reset bool) error {
	c.mu.Lock()
	if c.fetching {
		c.mu.Unlock()
		c.logger.Debug("Load skipped, fetch in flight", zap.Bool("reset", reset))
		return nil
	}
	c.fetching = true
	prev := c.cursor
	if reset {
		c.cursor = nil
	}
	before := c.cursor
	if !c.loaded {
		c.phase = PhaseLoading
	}
	c.publishLocked()
	c.mu.Unlock()

	page, err := c.fetch(ctx, c.pageSize, before)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetching = false

	if err != nil {
		if c.loaded {
			// the kept items still end at the old cursor
			c.cursor = prev
			if reset {
				c.message = "Could not refresh: " + err.Error()
			} else {
				c.message = "Could not load more: " + err.Error()
			}
		} else {
			c.phase = PhaseFailed
			c.err = err
		}
		c.logger.Warn("List load failed", zap.Bool("reset", reset), zap.Error(err))
		c.publishLocked()
		return err
	}

	if reset || !c.loaded {
		c.items = append([]T(nil), page...)
	} else {
		items := make([]T, 0, len(c.items)+len(page))
		items = append(items, c.items...)
		c.items = append(items, page...)
	}
	c.loaded = true
	c.phase = PhaseLoaded
	c.err = nil
	if len(page) > 0 {
		last := page[len(page)-1].ItemCreated()
		c.cursor = &last
	}
	c.hasMore = len(page) == c.pageSize

	c.logger.Debug("List page loaded",
		zap.Int("count", len(page)),
		zap.Int("total", len(c.items)),
		zap.Bool("has_more", c.hasMore))

	c.publishLocked()
	return nil
}

// Snapshot returns the current state
func (c *Controller[T]) Snapshot() State[T] {
	return c.state.Get()
}

// Observe exposes the state for subscribers
func (c *Controller[T]) Observe() *state.Value[State[T]] {
	return c.state
}

// Items returns a copy of the current items
func (c *Controller[T]) Items() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]T(nil), c.items...)
}

// HasMore reports whether the last page was full
func (c *Controller[T]) HasMore() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hasMore
}

// PageSize returns the requested page size
func (c *Controller[T]) PageSize() int {
	return c.pageSize
}

// Contains reports whether an item with id is listed
func (c *Controller[T]) Contains(id int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.indexLocked(id) >= 0
}

// Update replaces the item with id by fn's result
func (c *Controller[T]) Update(id int64, fn func(T) T) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.indexLocked(id)
	if i < 0 {
		return false
	}
	items := append([]T(nil), c.items...)
	items[i] = fn(items[i])
	c.items = items
	c.publishLocked()
	return true
}

// InsertIfAbsent inserts item at index unless its id is already listed.
// The index is clamped to the list bounds.
func (c *Controller[T]) InsertIfAbsent(index int, item T) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.indexLocked(item.ItemID()) >= 0 {
		return false
	}
	c.insertLocked(index, item)
	return true
}

// InsertAt inserts item at index, clamped to the list bounds
func (c *Controller[T]) InsertAt(index int, item T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.insertLocked(index, item)
}

// Remove drops the item with id and returns it with its former index
func (c *Controller[T]) Remove(id int64) (T, int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero T
	i := c.indexLocked(id)
	if i < 0 {
		return zero, -1, false
	}
	removed := c.items[i]
	items := make([]T, 0, len(c.items)-1)
	items = append(items, c.items[:i]...)
	items = append(items, c.items[i+1:]...)
	c.items = items
	c.publishLocked()
	return removed, i, true
}

// SetMessage sets the transient error message
func (c *Controller[T]) SetMessage(message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.message = message
	c.publishLocked()
}

// ClearError dismisses the transient error message
func (c *Controller[T]) ClearError() {
	c.SetMessage("")
}

func (c *Controller[T]) insertLocked(index int, item T) {
	if index < 0 {
		index = 0
	}
	if index > len(c.items) {
		index = len(c.items)
	}
	items := make([]T, 0, len(c.items)+1)
	items = append(items, c.items[:index]...)
	items = append(items, item)
	items = append(items, c.items[index:]...)
	c.items = items
	c.publishLocked()
}

func (c *Controller[T]) indexLocked(id int64) int {
	for i, item := range c.items {
		if item.ItemID() == id {
			return i
		}
	}
	return -1
}

// publishLocked hands out the current slice; every mutation above builds
// a new slice so published snapshots are never written to.
func (c *Controller[T]) publishLocked() {
	var cursor *time.Time
	if c.cursor != nil {
		cur := *c.cursor
		cursor = &cur
	}
	c.state.Set(State[T]{
		Phase:    c.phase,
		Items:    c.items,
		HasMore:  c.hasMore,
		Cursor:   cursor,
		Fetching: c.fetching,
		Err:      c.err,
		Message:  c.message,
	})
}
