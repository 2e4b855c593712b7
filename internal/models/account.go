package models

import (
	"time"
)

// PublicUser is the public part of an account
type PublicUser struct {
	ID          int64     `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name,omitempty"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// DetailedUser is an account as seen by the current viewer.
// ListedAt is the creation time of the relationship row the list was
// built from; it drives cursor pagination.
type DetailedUser struct {
	PublicUser
	Bio           string    `json:"bio,omitempty"`
	IsFollower    bool      `json:"is_follower"`
	IsFollowing   bool      `json:"is_following"`
	IsBlocking    bool      `json:"is_blocking"`
	IsMuting      bool      `json:"is_muting"`
	IsFriend      bool      `json:"is_friend"`
	MutualFriends []string  `json:"mutual_friends,omitempty"`
	MutualCount   int       `json:"mutual_count"`
	ListedAt      time.Time `json:"listed_at,omitempty"`
}

// ItemID returns the account id
func (u DetailedUser) ItemID() int64 {
	return u.ID
}

// ItemCreated returns the pagination timestamp
func (u DetailedUser) ItemCreated() time.Time {
	if u.ListedAt.IsZero() {
		return u.PublicUser.CreatedAt
	}
	return u.ListedAt
}

// ProvisionalUser builds a list entry from public fields only. All
// relationship flags are left neutral.
func ProvisionalUser(u PublicUser) DetailedUser {
	return DetailedUser{PublicUser: u}
}

// Stats holds app-wide counters
type Stats struct {
	Users    int64 `json:"users"`
	Posts    int64 `json:"posts"`
	Comments int64 `json:"comments"`
	Likes    int64 `json:"likes"`
}
