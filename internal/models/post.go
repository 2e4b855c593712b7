package models

import (
	"sort"
	"time"
)

// Visibility controls who can see a post
type Visibility string

// Visibility values
const (
	VisibilityPublic    Visibility = "public"
	VisibilityFollowers Visibility = "followers"
	VisibilityFriends   Visibility = "friends"
)

// Facet marks a mention inside post text by byte range
type Facet struct {
	Start  int   `json:"start"`
	End    int   `json:"end"`
	UserID int64 `json:"user_id"`
}

// Post represents the authored part of a post
type Post struct {
	ID         int64      `json:"id"`
	AuthorID   int64      `json:"author_id"`
	Text       string     `json:"text"`
	CreatedAt  time.Time  `json:"created_at"`
	Facets     []Facet    `json:"facets,omitempty"`
	Visibility Visibility `json:"visibility"`
}

// Image is an attachment of a post
type Image struct {
	URL      string `json:"url"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Position int    `json:"position"`
}

// DetailedPost aggregates a post with everything a feed row renders
type DetailedPost struct {
	Post
	Author        PublicUser `json:"author"`
	IsLiked       bool       `json:"is_liked"`
	LikeCount     int        `json:"like_count"`
	CommentCount  int        `json:"comment_count"`
	Images        []Image    `json:"images,omitempty"`
	RelevantLikes []string   `json:"relevant_likes,omitempty"`
	IsPinned      bool       `json:"is_pinned"`
	Poll          *Poll      `json:"poll,omitempty"`
}

// Equal reports whether two snapshots describe the same post.
// Content is not compared.
func (p DetailedPost) Equal(other DetailedPost) bool {
	return p.ID == other.ID
}

// SortImages orders attachments by display position
func (p *DetailedPost) SortImages() {
	sort.SliceStable(p.Images, func(i, j int) bool {
		return p.Images[i].Position < p.Images[j].Position
	})
}

// WithLikeToggled returns a copy with the liked flag flipped and the like
// count adjusted to match.
func (p DetailedPost) WithLikeToggled() DetailedPost {
	p.IsLiked = !p.IsLiked
	if p.IsLiked {
		p.LikeCount++
	} else if p.LikeCount > 0 {
		p.LikeCount--
	}
	return p
}

// FeedVariant names one of the scrollable feeds
type FeedVariant string

// Feed variants
const (
	FeedHome    FeedVariant = "home"
	FeedGlobal  FeedVariant = "global"
	FeedProfile FeedVariant = "profile"
)

// Valid reports whether v is a known variant
func (v FeedVariant) Valid() bool {
	switch v {
	case FeedHome, FeedGlobal, FeedProfile:
		return true
	}
	return false
}
