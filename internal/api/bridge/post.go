package bridge

import (
	"encoding/json"
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/steemit/feedclient/internal/apportion"
	"github.com/steemit/feedclient/internal/models"
	"github.com/steemit/feedclient/internal/service"
	"github.com/steemit/feedclient/internal/store"
)

// PostView is the wire form of a cached post lookup
type PostView struct {
	Post    *models.DetailedPost `json:"post"`
	Cached  bool                 `json:"cached"`
	Message string               `json:"message"`
}

type postParams struct {
	ID   int64 `json:"id"`
	Wait bool  `json:"wait"`
}

// PostAPI provides post methods backed by the post store
type PostAPI struct {
	store  *store.Store
	events *Events
}

// NewPostAPI creates a new post API and streams store changes
func NewPostAPI(s *store.Store, events *Events) *PostAPI {
	Watch(events, "store:changes", s.Changes(), func(r store.Revision) interface{} { return r })
	Watch(events, "store:message", s.Messages(), func(m string) interface{} { return m })
	return &PostAPI{store: s, events: events}
}

func (p *PostAPI) params(params json.RawMessage) (postParams, error) {
	var pp postParams
	if err := decode(params, &pp); err != nil {
		return pp, err
	}
	if pp.ID <= 0 {
		return pp, fmt.Errorf("%w: missing required parameter: id", service.ErrValidation)
	}
	return pp, nil
}

func (p *PostAPI) view(id int64) PostView {
	v := PostView{Message: p.store.Message()}
	if post, ok := p.store.Get(id); ok {
		v.Post = &post
		v.Cached = true
	}
	return v
}

// Get handles post.get, a cache read that never fetches
func (p *PostAPI) Get(ctx *gin.Context, params json.RawMessage) (interface{}, error) {
	pp, err := p.params(params)
	if err != nil {
		return nil, err
	}
	return p.view(pp.ID), nil
}

// Load handles post.load
func (p *PostAPI) Load(ctx *gin.Context, params json.RawMessage) (interface{}, error) {
	pp, err := p.params(params)
	if err != nil {
		return nil, err
	}
	if _, ok := p.store.Load(ctx.Request.Context(), pp.ID); !ok {
		return nil, fmt.Errorf("post %d: %w", pp.ID, service.ErrNotFound)
	}
	return p.view(pp.ID), nil
}

// ToggleLike handles post.toggle_like. Without wait the optimistic state
// is returned before the server confirmed it.
func (p *PostAPI) ToggleLike(ctx *gin.Context, params json.RawMessage) (interface{}, error) {
	pp, err := p.params(params)
	if err != nil {
		return nil, err
	}
	done := p.store.ToggleLike(ctx.Request.Context(), pp.ID)
	if _, ok := p.store.Get(pp.ID); !ok {
		return nil, <-done
	}
	if err := await(ctx.Request.Context(), done, pp.Wait); err != nil {
		return nil, err
	}
	return p.view(pp.ID), nil
}

// Delete handles post.delete
func (p *PostAPI) Delete(ctx *gin.Context, params json.RawMessage) (interface{}, error) {
	pp, err := p.params(params)
	if err != nil {
		return nil, err
	}
	done := p.store.Delete(ctx.Request.Context(), pp.ID)
	if err := await(ctx.Request.Context(), done, pp.Wait); err != nil {
		return nil, err
	}
	return p.view(pp.ID), nil
}

type pollParams struct {
	PostID      int64     `json:"post_id"`
	Percentages []float64 `json:"percentages"`
	Votes       []int     `json:"votes"`
}

// PollView carries integer percentages, null when they must not be shown
type PollView struct {
	Percentages []int `json:"percentages"`
}

// Percentages handles poll.percentages for a cached post's poll, raw
// percentages or raw vote counts
func (p *PostAPI) Percentages(ctx *gin.Context, params json.RawMessage) (interface{}, error) {
	var pp pollParams
	if err := decode(params, &pp); err != nil {
		return nil, err
	}

	var (
		shares []int
		ok     bool
	)
	switch {
	case pp.PostID > 0:
		post, cached := p.store.Get(pp.PostID)
		if !cached {
			return nil, fmt.Errorf("post %d: %w", pp.PostID, service.ErrNotFound)
		}
		if post.Poll == nil {
			return nil, fmt.Errorf("%w: post %d has no poll", service.ErrValidation, pp.PostID)
		}
		shares, ok = post.Poll.Percentages()
	case pp.Percentages != nil:
		shares, ok = apportion.Apportion(pp.Percentages)
	case pp.Votes != nil:
		shares, ok = apportion.Shares(pp.Votes)
	default:
		return nil, fmt.Errorf("%w: one of post_id, percentages or votes is required", service.ErrValidation)
	}
	if !ok {
		return PollView{}, nil
	}
	return PollView{Percentages: shares}, nil
}
