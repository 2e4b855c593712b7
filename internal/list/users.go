package list

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/steemit/feedclient/internal/models"
	"github.com/steemit/feedclient/internal/optimistic"
	"github.com/steemit/feedclient/internal/service"
	"github.com/steemit/feedclient/pkg/logging"
)

// Kind names what a user list shows
type Kind string

// List kinds
const (
	KindFollowing Kind = "following"
	KindMutuals   Kind = "mutuals"
	KindFriends   Kind = "friends"
	KindSearch    Kind = "search"
)

// UserList is a paginated list of accounts with follow and friend intents
type UserList struct {
	*Controller[models.DetailedUser]

	kind     Kind
	profiles service.ProfileService
	runner   *optimistic.Runner
	logger   *zap.Logger
}

func newUserList(kind Kind, profiles service.ProfileService, fetch Fetcher[models.DetailedUser], pageSize int, opts ...Option) *UserList {
	o := options{logger: logging.WithComponent("list")}
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger.With(zap.String("kind", string(kind)))

	l := &UserList{
		Controller: NewController(fetch, pageSize, WithLogger(logger)),
		kind:       kind,
		profiles:   profiles,
		logger:     logger,
	}
	l.runner = optimistic.NewRunner(logger, l.reportError)
	return l
}

// NewFollowing lists the accounts userID follows
func NewFollowing(profiles service.ProfileService, userID int64, pageSize int, opts ...Option) *UserList {
	return newUserList(KindFollowing, profiles, func(ctx context.Context, limit int, before *time.Time) ([]models.DetailedUser, error) {
		return profiles.GetFollowing(ctx, userID, limit, before)
	}, pageSize, opts...)
}

// NewMutuals lists the accounts userID and the viewer both follow
func NewMutuals(profiles service.ProfileService, userID int64, pageSize int, opts ...Option) *UserList {
	return newUserList(KindMutuals, profiles, func(ctx context.Context, limit int, before *time.Time) ([]models.DetailedUser, error) {
		return profiles.GetMutuals(ctx, userID, limit, before)
	}, pageSize, opts...)
}

// NewFriends lists the friends of userID
func NewFriends(profiles service.ProfileService, userID int64, pageSize int, opts ...Option) *UserList {
	return newUserList(KindFriends, profiles, func(ctx context.Context, limit int, before *time.Time) ([]models.DetailedUser, error) {
		return profiles.GetFriends(ctx, userID, limit, before)
	}, pageSize, opts...)
}

// NewSearch lists accounts whose username starts with prefix. Search
// results come back as one page; asking for the next one yields nothing.
func NewSearch(profiles service.ProfileService, prefix string, pageSize int, opts ...Option) *UserList {
	return newUserList(KindSearch, profiles, func(ctx context.Context, limit int, before *time.Time) ([]models.DetailedUser, error) {
		if before != nil {
			return nil, nil
		}
		users, err := profiles.SearchByUsernamePrefix(ctx, prefix)
		if err != nil {
			return nil, err
		}
		out := make([]models.DetailedUser, len(users))
		for i, u := range users {
			out[i] = models.ProvisionalUser(u)
		}
		return out, nil
	}, pageSize, opts...)
}

// Kind returns what the list shows
func (l *UserList) Kind() Kind {
	return l.kind
}

// ToggleFollow flips the follow flag of the listed user right away and
// confirms it with the server, flipping it back if that fails.
func (l *UserList) ToggleFollow(ctx context.Context, user models.DetailedUser) <-chan error {
	current := user.IsFollowing
	return l.runner.Run(ctx, optimistic.Mutation{
		Name: "toggle_follow",
		Apply: func() {
			l.Update(user.ID, func(u models.DetailedUser) models.DetailedUser {
				current = u.IsFollowing
				u.IsFollowing = !u.IsFollowing
				return u
			})
		},
		Revert: func() {
			l.Update(user.ID, func(u models.DetailedUser) models.DetailedUser {
				u.IsFollowing = !u.IsFollowing
				return u
			})
		},
	}, func(ctx context.Context) error {
		return l.profiles.ToggleFollowing(ctx, user.ID, current)
	})
}

// AddItem puts a provisional entry for candidate at the head of the list
// and sends a friend request. Already listed candidates are ignored.
func (l *UserList) AddItem(ctx context.Context, candidate models.PublicUser) <-chan error {
	if l.Contains(candidate.ID) {
		return optimistic.Resolved(nil)
	}

	entry := models.ProvisionalUser(candidate)
	inserted := false
	return l.runner.Run(ctx, optimistic.Mutation{
		Name:  "add_item",
		Apply: func() { inserted = l.InsertIfAbsent(0, entry) },
		Revert: func() {
			if inserted {
				l.Remove(candidate.ID)
			}
		},
	}, func(ctx context.Context) error {
		if !inserted {
			return nil
		}
		return l.profiles.AddFriend(ctx, candidate.ID)
	})
}

// RemoveItem drops user from the list and asks the server to unfriend.
// On failure the user is put back where it was, clamped to the current
// length.
func (l *UserList) RemoveItem(ctx context.Context, user models.DetailedUser) <-chan error {
	if !l.Contains(user.ID) {
		return optimistic.Resolved(nil)
	}

	var (
		removed models.DetailedUser
		index   int
		ok      bool
	)
	return l.runner.Run(ctx, optimistic.Mutation{
		Name:  "remove_item",
		Apply: func() { removed, index, ok = l.Remove(user.ID) },
		Revert: func() {
			if ok {
				l.InsertIfAbsent(index, removed)
			}
		},
	}, func(ctx context.Context) error {
		if !ok {
			return nil
		}
		return l.profiles.RemoveFriend(ctx, user.ID)
	})
}

// Wait blocks until all background confirmations have finished
func (l *UserList) Wait() {
	l.runner.Wait()
}

func (l *UserList) reportError(name string, err error) {
	switch name {
	case "toggle_follow":
		l.SetMessage("Could not update follow: " + err.Error())
	case "add_item":
		l.SetMessage("Could not add friend: " + err.Error())
	case "remove_item":
		l.SetMessage("Could not remove friend: " + err.Error())
	default:
		l.SetMessage(err.Error())
	}
}
