package models

import (
	"testing"
)

func TestPollPercentages(t *testing.T) {
	tests := []struct {
		name     string
		poll     Poll
		expected []int
		ok       bool
	}{
		{
			name: "no votes",
			poll: Poll{Options: []PollOption{{Text: "a"}, {Text: "b"}}},
			ok:   false,
		},
		{
			name: "uneven votes",
			poll: Poll{
				Options:   []PollOption{{Text: "a", Votes: 5}, {Text: "b", Votes: 4}, {Text: "c", Votes: 3}},
				VoteTotal: 12,
			},
			expected: []int{42, 33, 25},
			ok:       true,
		},
		{
			name: "total disagrees with options",
			poll: Poll{
				Options:   []PollOption{{Text: "a", Votes: 1}, {Text: "b", Votes: 1}},
				VoteTotal: 10,
			},
			ok: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, ok := tt.poll.Percentages()
			if ok != tt.ok {
				t.Fatalf("Percentages() ok = %v, want %v", ok, tt.ok)
			}
			if !ok {
				return
			}
			if len(result) != len(tt.expected) {
				t.Fatalf("Percentages() = %v, want %v", result, tt.expected)
			}
			for i := range result {
				if result[i] != tt.expected[i] {
					t.Errorf("Percentages() = %v, want %v", result, tt.expected)
					break
				}
			}
		})
	}
}

func TestDetailedPostEqual(t *testing.T) {
	a := DetailedPost{Post: Post{ID: 7, Text: "first"}, IsLiked: true}
	b := DetailedPost{Post: Post{ID: 7, Text: "edited"}}
	c := DetailedPost{Post: Post{ID: 8, Text: "first"}, IsLiked: true}

	if !a.Equal(b) {
		t.Error("snapshots with the same id should be equal")
	}
	if a.Equal(c) {
		t.Error("snapshots with different ids should not be equal")
	}
}

func TestWithLikeToggled(t *testing.T) {
	p := DetailedPost{Post: Post{ID: 1}, IsLiked: false, LikeCount: 2}

	liked := p.WithLikeToggled()
	if !liked.IsLiked || liked.LikeCount != 3 {
		t.Errorf("WithLikeToggled() = %v/%d, want true/3", liked.IsLiked, liked.LikeCount)
	}

	back := liked.WithLikeToggled()
	if back.IsLiked || back.LikeCount != 2 {
		t.Errorf("WithLikeToggled() twice = %v/%d, want false/2", back.IsLiked, back.LikeCount)
	}
}

func TestItemCreatedFallsBackToAccountCreation(t *testing.T) {
	u := ProvisionalUser(PublicUser{ID: 3, Username: "ann"})
	if u.IsFollowing || u.IsFollower || u.IsFriend || u.IsBlocking || u.IsMuting {
		t.Error("provisional user should have neutral relationship flags")
	}
	if !u.ItemCreated().Equal(u.PublicUser.CreatedAt) {
		t.Error("ItemCreated should fall back to account creation time")
	}
}
