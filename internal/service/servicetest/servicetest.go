// Package servicetest provides in-memory service fakes for tests.
package servicetest

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/steemit/feedclient/internal/models"
	"github.com/steemit/feedclient/internal/service"
)

// Posts is a fake service.PostService.
// A non-nil FetchGate blocks FetchPost until it is closed; MutateGate does
// the same for ToggleLike and DeletePost.
type Posts struct {
	mu    sync.Mutex
	calls map[string]int

	ByID      map[int64]models.DetailedPost
	Following []models.DetailedPost
	Global    []models.DetailedPost
	Profile   map[int64][]models.DetailedPost

	FetchErr  error
	FeedErr   error
	LikeErr   error
	DeleteErr error

	FetchGate  chan struct{}
	MutateGate chan struct{}
}

// NewPosts creates a fake seeded with posts reachable by id
func NewPosts(posts ...models.DetailedPost) *Posts {
	p := &Posts{
		calls:   make(map[string]int),
		ByID:    make(map[int64]models.DetailedPost),
		Profile: make(map[int64][]models.DetailedPost),
	}
	for _, post := range posts {
		p.ByID[post.ID] = post
	}
	return p
}

// Calls returns how many times method was invoked
func (p *Posts) Calls(method string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[method]
}

// SetErr sets an error field under the fake's lock
func (p *Posts) SetErr(target *error, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	*target = err
}

func (p *Posts) record(method string) {
	p.mu.Lock()
	p.calls[method]++
	p.mu.Unlock()
}

func (p *Posts) FetchFollowingFeed(ctx context.Context, offset, limit int) ([]models.DetailedPost, error) {
	p.record("FetchFollowingFeed")
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.FeedErr != nil {
		return nil, p.FeedErr
	}
	return page(p.Following, offset, limit), nil
}

func (p *Posts) FetchGlobalFeed(ctx context.Context, offset, limit int) ([]models.DetailedPost, error) {
	p.record("FetchGlobalFeed")
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.FeedErr != nil {
		return nil, p.FeedErr
	}
	return page(p.Global, offset, limit), nil
}

func (p *Posts) FetchProfileFeed(ctx context.Context, userID int64, offset, limit int) ([]models.DetailedPost, error) {
	p.record("FetchProfileFeed")
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.FeedErr != nil {
		return nil, p.FeedErr
	}
	return page(p.Profile[userID], offset, limit), nil
}

func (p *Posts) FetchPost(ctx context.Context, id int64) (models.DetailedPost, error) {
	p.record("FetchPost")
	if err := wait(ctx, p.FetchGate); err != nil {
		return models.DetailedPost{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.FetchErr != nil {
		return models.DetailedPost{}, p.FetchErr
	}
	post, ok := p.ByID[id]
	if !ok {
		return models.DetailedPost{}, service.ErrNotFound
	}
	return post, nil
}

func (p *Posts) ToggleLike(ctx context.Context, id int64) error {
	p.record("ToggleLike")
	if err := wait(ctx, p.MutateGate); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.LikeErr
}

func (p *Posts) DeletePost(ctx context.Context, id int64) error {
	p.record("DeletePost")
	if err := wait(ctx, p.MutateGate); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.DeleteErr != nil {
		return p.DeleteErr
	}
	delete(p.ByID, id)
	return nil
}

// Profiles is a fake service.ProfileService. Lists are keyed by
// "following", "mutuals" and "friends" and must be ordered newest first.
type Profiles struct {
	mu    sync.Mutex
	calls map[string]int

	Lists map[string][]models.DetailedUser
	Users []models.PublicUser
	Stats models.Stats

	ListErr   error
	FollowErr error
	AddErr    error
	RemoveErr error
	SearchErr error
	StatsErr  error

	ListGate   chan struct{}
	MutateGate chan struct{}
}

// NewProfiles creates an empty fake
func NewProfiles() *Profiles {
	return &Profiles{
		calls: make(map[string]int),
		Lists: make(map[string][]models.DetailedUser),
	}
}

// Calls returns how many times method was invoked
func (p *Profiles) Calls(method string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[method]
}

// SetErr sets an error field under the fake's lock
func (p *Profiles) SetErr(target *error, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	*target = err
}

func (p *Profiles) record(method string) {
	p.mu.Lock()
	p.calls[method]++
	p.mu.Unlock()
}

func (p *Profiles) list(ctx context.Context, method, kind string, limit int, before *time.Time) ([]models.DetailedUser, error) {
	p.record(method)
	if err := wait(ctx, p.ListGate); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ListErr != nil {
		return nil, p.ListErr
	}
	var out []models.DetailedUser
	for _, u := range p.Lists[kind] {
		if before != nil && !u.ItemCreated().Before(*before) {
			continue
		}
		out = append(out, u)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (p *Profiles) GetFollowing(ctx context.Context, userID int64, limit int, before *time.Time) ([]models.DetailedUser, error) {
	return p.list(ctx, "GetFollowing", "following", limit, before)
}

func (p *Profiles) GetMutuals(ctx context.Context, userID int64, limit int, before *time.Time) ([]models.DetailedUser, error) {
	return p.list(ctx, "GetMutuals", "mutuals", limit, before)
}

func (p *Profiles) GetFriends(ctx context.Context, userID int64, limit int, before *time.Time) ([]models.DetailedUser, error) {
	return p.list(ctx, "GetFriends", "friends", limit, before)
}

func (p *Profiles) mutate(ctx context.Context, method string, errp *error) error {
	p.record(method)
	if err := wait(ctx, p.MutateGate); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return *errp
}

func (p *Profiles) ToggleFollowing(ctx context.Context, userID int64, currentlyFollowing bool) error {
	return p.mutate(ctx, "ToggleFollowing", &p.FollowErr)
}

func (p *Profiles) AddFriend(ctx context.Context, userID int64) error {
	return p.mutate(ctx, "AddFriend", &p.AddErr)
}

func (p *Profiles) RemoveFriend(ctx context.Context, userID int64) error {
	return p.mutate(ctx, "RemoveFriend", &p.RemoveErr)
}

func (p *Profiles) SearchByUsernamePrefix(ctx context.Context, prefix string) ([]models.PublicUser, error) {
	p.record("SearchByUsernamePrefix")
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.SearchErr != nil {
		return nil, p.SearchErr
	}
	var out []models.PublicUser
	for _, u := range p.Users {
		if strings.HasPrefix(u.Username, prefix) {
			out = append(out, u)
		}
	}
	return out, nil
}

func (p *Profiles) GetAppStatistics(ctx context.Context) (models.Stats, error) {
	p.record("GetAppStatistics")
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Stats, p.StatsErr
}

func page(posts []models.DetailedPost, offset, limit int) []models.DetailedPost {
	if offset >= len(posts) {
		return nil
	}
	end := offset + limit
	if end > len(posts) {
		end = len(posts)
	}
	out := make([]models.DetailedPost, end-offset)
	copy(out, posts[offset:end])
	return out
}

func wait(ctx context.Context, gate chan struct{}) error {
	if gate == nil {
		return nil
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var (
	_ service.PostService    = (*Posts)(nil)
	_ service.ProfileService = (*Profiles)(nil)
)
