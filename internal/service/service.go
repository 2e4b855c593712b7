// Package service declares the remote capabilities the cache layer
// consumes. Production implementations live in internal/remote; tests use
// servicetest.
package service

import (
	"context"
	"time"

	"github.com/steemit/feedclient/internal/models"
)

// PostService reads and mutates posts on the server
type PostService interface {
	FetchFollowingFeed(ctx context.Context, offset, limit int) ([]models.DetailedPost, error)
	FetchGlobalFeed(ctx context.Context, offset, limit int) ([]models.DetailedPost, error)
	FetchProfileFeed(ctx context.Context, userID int64, offset, limit int) ([]models.DetailedPost, error)

	// FetchPost returns ErrNotFound when the post does not exist
	FetchPost(ctx context.Context, id int64) (models.DetailedPost, error)
	ToggleLike(ctx context.Context, id int64) error
	DeletePost(ctx context.Context, id int64) error
}

// ProfileService reads and mutates the social graph. List calls page
// backwards from before; a nil cursor starts at the newest entry.
type ProfileService interface {
	GetFollowing(ctx context.Context, userID int64, limit int, before *time.Time) ([]models.DetailedUser, error)
	GetMutuals(ctx context.Context, userID int64, limit int, before *time.Time) ([]models.DetailedUser, error)
	GetFriends(ctx context.Context, userID int64, limit int, before *time.Time) ([]models.DetailedUser, error)

	ToggleFollowing(ctx context.Context, userID int64, currentlyFollowing bool) error
	AddFriend(ctx context.Context, userID int64) error
	RemoveFriend(ctx context.Context, userID int64) error

	SearchByUsernamePrefix(ctx context.Context, prefix string) ([]models.PublicUser, error)
	GetAppStatistics(ctx context.Context) (models.Stats, error)
}
