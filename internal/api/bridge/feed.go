package bridge

import (
	"encoding/json"
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/steemit/feedclient/internal/feed"
	"github.com/steemit/feedclient/internal/models"
	"github.com/steemit/feedclient/internal/service"
)

// FeedView is the wire form of a feed snapshot
type FeedView struct {
	Variant models.FeedVariant    `json:"variant"`
	UserID  int64                 `json:"user_id,omitempty"`
	Phase   feed.Phase            `json:"phase"`
	IDs     []int64               `json:"ids"`
	Posts   []models.DetailedPost `json:"posts,omitempty"`
	HasMore bool                  `json:"has_more"`
	Loading bool                  `json:"loading"`
	Error   string                `json:"error,omitempty"`
	Message string                `json:"message"`
}

func feedView(s feed.Snapshot) interface{} {
	ids := s.IDs
	if ids == nil {
		ids = []int64{}
	}
	return FeedView{
		Variant: s.Key.Variant,
		UserID:  s.Key.UserID,
		Phase:   s.Phase,
		IDs:     ids,
		HasMore: s.HasMore,
		Loading: s.Fetching,
		Error:   errString(s.Err),
		Message: s.Message,
	}
}

type feedParams struct {
	Variant models.FeedVariant `json:"variant"`
	UserID  int64              `json:"user_id"`
}

// FeedAPI provides the home, global and profile feed methods
type FeedAPI struct {
	feeds  *feed.Controller
	events *Events
}

// NewFeedAPI creates a new feed API
func NewFeedAPI(feeds *feed.Controller, events *Events) *FeedAPI {
	return &FeedAPI{feeds: feeds, events: events}
}

func (f *FeedAPI) params(params json.RawMessage) (feedParams, error) {
	p := feedParams{Variant: models.FeedHome}
	if err := decode(params, &p); err != nil {
		return p, err
	}
	if !p.Variant.Valid() {
		return p, fmt.Errorf("%w: unknown feed variant %q", service.ErrValidation, p.Variant)
	}
	key := feed.NewKey(p.Variant, p.UserID)
	Watch(f.events, "feed:"+key.String(), f.feeds.Observe(p.Variant, p.UserID), feedView)
	return p, nil
}

func (f *FeedAPI) view(p feedParams) FeedView {
	v := feedView(f.feeds.Snapshot(p.Variant, p.UserID)).(FeedView)
	v.Posts = f.feeds.Posts(p.Variant, p.UserID)
	return v
}

// LoadMore handles feed.load_more
func (f *FeedAPI) LoadMore(ctx *gin.Context, params json.RawMessage) (interface{}, error) {
	p, err := f.params(params)
	if err != nil {
		return nil, err
	}
	if err := f.feeds.LoadMore(ctx.Request.Context(), p.Variant, p.UserID); err != nil {
		return nil, err
	}
	return f.view(p), nil
}

// Refresh handles feed.refresh
func (f *FeedAPI) Refresh(ctx *gin.Context, params json.RawMessage) (interface{}, error) {
	p, err := f.params(params)
	if err != nil {
		return nil, err
	}
	if err := f.feeds.Refresh(ctx.Request.Context(), p.Variant, p.UserID); err != nil {
		return nil, err
	}
	return f.view(p), nil
}

// Posts handles feed.posts, a read of what is already loaded
func (f *FeedAPI) Posts(ctx *gin.Context, params json.RawMessage) (interface{}, error) {
	p, err := f.params(params)
	if err != nil {
		return nil, err
	}
	return f.view(p), nil
}

// ClearError handles feed.clear_error. The post store's message is
// dismissed too since feed rows surface it.
func (f *FeedAPI) ClearError(ctx *gin.Context, params json.RawMessage) (interface{}, error) {
	p, err := f.params(params)
	if err != nil {
		return nil, err
	}
	f.feeds.ClearError(p.Variant, p.UserID)
	f.feeds.Store().ClearError()
	return f.view(p), nil
}
