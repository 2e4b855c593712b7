package bridge

import (
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sourcegraph/conc"

	"github.com/steemit/feedclient/internal/list"
	"github.com/steemit/feedclient/internal/models"
	"github.com/steemit/feedclient/internal/service"
)

const (
	searchListCacheSize = 32
	searchListTTL       = 5 * time.Minute
)

type searchList struct {
	list    *list.UserList
	unwatch func()
}

// ListView is the wire form of a user list snapshot
type ListView struct {
	Kind    list.Kind             `json:"kind"`
	Phase   list.Phase            `json:"phase"`
	Items   []models.DetailedUser `json:"items"`
	HasMore bool                  `json:"has_more"`
	Cursor  string                `json:"cursor,omitempty"`
	Loading bool                  `json:"loading"`
	Error   string                `json:"error,omitempty"`
	Message string                `json:"message"`
}

func listView(kind list.Kind) func(list.State[models.DetailedUser]) interface{} {
	return func(s list.State[models.DetailedUser]) interface{} {
		items := s.Items
		if items == nil {
			items = []models.DetailedUser{}
		}
		v := ListView{
			Kind:    kind,
			Phase:   s.Phase,
			Items:   items,
			HasMore: s.HasMore,
			Loading: s.Fetching,
			Error:   errString(s.Err),
			Message: s.Message,
		}
		if s.Cursor != nil {
			v.Cursor = s.Cursor.UTC().Format(time.RFC3339Nano)
		}
		return v
	}
}

type listParams struct {
	Kind      list.Kind          `json:"kind"`
	UserID    int64              `json:"user_id"`
	Prefix    string             `json:"prefix"`
	TargetID  int64              `json:"target_id"`
	Candidate *models.PublicUser `json:"candidate"`
	Wait      bool               `json:"wait"`
}

// ProfileAPI provides user list and statistics methods
type ProfileAPI struct {
	profiles service.ProfileService
	viewerID int64
	pageSize int
	events   *Events

	mu       sync.Mutex
	lists    map[string]*list.UserList
	searches *expirable.LRU[string, searchList]
	evicted  conc.WaitGroup
}

// NewProfileAPI creates a new profile API. Lists default to the viewer's
// own when no user_id is given.
func NewProfileAPI(profiles service.ProfileService, viewerID int64, pageSize int, events *Events) *ProfileAPI {
	pr := &ProfileAPI{
		profiles: profiles,
		viewerID: viewerID,
		pageSize: pageSize,
		events:   events,
		lists:    make(map[string]*list.UserList),
	}
	// only the most recent search prefixes stay registered
	pr.searches = expirable.NewLRU[string, searchList](searchListCacheSize, func(_ string, s searchList) {
		s.unwatch()
		pr.evicted.Go(s.list.Wait)
	}, searchListTTL)
	return pr
}

func (pr *ProfileAPI) list(params json.RawMessage) (*list.UserList, listParams, error) {
	p := listParams{Kind: list.KindFriends}
	if err := decode(params, &p); err != nil {
		return nil, p, err
	}
	if p.UserID == 0 {
		p.UserID = pr.viewerID
	}

	var key string
	switch p.Kind {
	case list.KindFollowing, list.KindMutuals, list.KindFriends:
		key = string(p.Kind) + ":" + strconv.FormatInt(p.UserID, 10)
	case list.KindSearch:
		if p.Prefix == "" {
			return nil, p, fmt.Errorf("%w: missing required parameter: prefix", service.ErrValidation)
		}
		key = string(p.Kind) + ":" + p.Prefix
	default:
		return nil, p, fmt.Errorf("%w: unknown list kind %q", service.ErrValidation, p.Kind)
	}

	pr.mu.Lock()
	defer pr.mu.Unlock()
	if p.Kind == list.KindSearch {
		if s, ok := pr.searches.Get(key); ok {
			return s.list, p, nil
		}
		l := list.NewSearch(pr.profiles, p.Prefix, pr.pageSize)
		unwatch := Watch(pr.events, "list:"+key, l.Observe(), listView(p.Kind))
		pr.searches.Add(key, searchList{list: l, unwatch: unwatch})
		return l, p, nil
	}
	if l, ok := pr.lists[key]; ok {
		return l, p, nil
	}

	var l *list.UserList
	switch p.Kind {
	case list.KindFollowing:
		l = list.NewFollowing(pr.profiles, p.UserID, pr.pageSize)
	case list.KindMutuals:
		l = list.NewMutuals(pr.profiles, p.UserID, pr.pageSize)
	case list.KindFriends:
		l = list.NewFriends(pr.profiles, p.UserID, pr.pageSize)
	}
	pr.lists[key] = l
	Watch(pr.events, "list:"+key, l.Observe(), listView(p.Kind))
	return l, p, nil
}

func (pr *ProfileAPI) view(l *list.UserList) ListView {
	return listView(l.Kind())(l.Snapshot()).(ListView)
}

func (pr *ProfileAPI) target(l *list.UserList, id int64) (models.DetailedUser, error) {
	if id <= 0 {
		return models.DetailedUser{}, fmt.Errorf("%w: missing required parameter: target_id", service.ErrValidation)
	}
	for _, u := range l.Items() {
		if u.ID == id {
			return u, nil
		}
	}
	return models.DetailedUser{}, fmt.Errorf("user %d is not listed: %w", id, service.ErrNotFound)
}

// Load handles list.load, fetching the next page
func (pr *ProfileAPI) Load(ctx *gin.Context, params json.RawMessage) (interface{}, error) {
	l, _, err := pr.list(params)
	if err != nil {
		return nil, err
	}
	if err := l.Load(ctx.Request.Context(), false); err != nil {
		return nil, err
	}
	return pr.view(l), nil
}

// Refresh handles list.refresh, replacing the list with its first page
func (pr *ProfileAPI) Refresh(ctx *gin.Context, params json.RawMessage) (interface{}, error) {
	l, _, err := pr.list(params)
	if err != nil {
		return nil, err
	}
	if err := l.Load(ctx.Request.Context(), true); err != nil {
		return nil, err
	}
	return pr.view(l), nil
}

// ToggleFollow handles list.toggle_follow
func (pr *ProfileAPI) ToggleFollow(ctx *gin.Context, params json.RawMessage) (interface{}, error) {
	l, p, err := pr.list(params)
	if err != nil {
		return nil, err
	}
	user, err := pr.target(l, p.TargetID)
	if err != nil {
		return nil, err
	}
	if err := await(ctx.Request.Context(), l.ToggleFollow(ctx.Request.Context(), user), p.Wait); err != nil {
		return nil, err
	}
	return pr.view(l), nil
}

// AddItem handles list.add_item
func (pr *ProfileAPI) AddItem(ctx *gin.Context, params json.RawMessage) (interface{}, error) {
	l, p, err := pr.list(params)
	if err != nil {
		return nil, err
	}
	if p.Candidate == nil || p.Candidate.ID <= 0 {
		return nil, fmt.Errorf("%w: missing required parameter: candidate", service.ErrValidation)
	}
	if err := await(ctx.Request.Context(), l.AddItem(ctx.Request.Context(), *p.Candidate), p.Wait); err != nil {
		return nil, err
	}
	return pr.view(l), nil
}

// RemoveItem handles list.remove_item
func (pr *ProfileAPI) RemoveItem(ctx *gin.Context, params json.RawMessage) (interface{}, error) {
	l, p, err := pr.list(params)
	if err != nil {
		return nil, err
	}
	user, err := pr.target(l, p.TargetID)
	if err != nil {
		return nil, err
	}
	if err := await(ctx.Request.Context(), l.RemoveItem(ctx.Request.Context(), user), p.Wait); err != nil {
		return nil, err
	}
	return pr.view(l), nil
}

// ClearError handles list.clear_error
func (pr *ProfileAPI) ClearError(ctx *gin.Context, params json.RawMessage) (interface{}, error) {
	l, _, err := pr.list(params)
	if err != nil {
		return nil, err
	}
	l.ClearError()
	return pr.view(l), nil
}

// Stats handles stats.get
func (pr *ProfileAPI) Stats(ctx *gin.Context, params json.RawMessage) (interface{}, error) {
	return pr.profiles.GetAppStatistics(ctx.Request.Context())
}

// Wait blocks until every list's background confirmations have finished
func (pr *ProfileAPI) Wait() {
	pr.mu.Lock()
	lists := make([]*list.UserList, 0, len(pr.lists))
	for _, l := range pr.lists {
		lists = append(lists, l)
	}
	for _, s := range pr.searches.Values() {
		lists = append(lists, s.list)
	}
	pr.mu.Unlock()
	for _, l := range lists {
		l.Wait()
	}
	pr.evicted.Wait()
}

// SearchLists returns the number of registered search lists
func (pr *ProfileAPI) SearchLists() int {
	return pr.searches.Len()
}
