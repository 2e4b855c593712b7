package list

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/steemit/feedclient/internal/models"
	"github.com/steemit/feedclient/internal/service/servicetest"
)

func loadedFriends(t *testing.T, profiles *servicetest.Profiles, n int) *UserList {
	t.Helper()
	profiles.Lists["friends"] = users(0, n)
	l := NewFriends(profiles, 1, 20, WithLogger(zap.NewNop()))
	require.NoError(t, l.Load(context.Background(), false))
	return l
}

func TestListConstructors(t *testing.T) {
	profiles := servicetest.NewProfiles()
	profiles.Lists["following"] = users(0, 2)
	profiles.Lists["mutuals"] = users(0, 3)
	profiles.Lists["friends"] = users(0, 4)

	tests := []struct {
		name   string
		list   *UserList
		method string
		kind   Kind
		count  int
	}{
		{"following", NewFollowing(profiles, 1, 20), "GetFollowing", KindFollowing, 2},
		{"mutuals", NewMutuals(profiles, 1, 20), "GetMutuals", KindMutuals, 3},
		{"friends", NewFriends(profiles, 1, 20), "GetFriends", KindFriends, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, tt.list.Load(context.Background(), false))
			assert.Equal(t, tt.kind, tt.list.Kind())
			assert.Len(t, tt.list.Items(), tt.count)
			assert.Equal(t, 1, profiles.Calls(tt.method))
		})
	}
}

func TestSearchIsSinglePage(t *testing.T) {
	profiles := servicetest.NewProfiles()
	profiles.Users = []models.PublicUser{
		{ID: 1, Username: "alice"},
		{ID: 2, Username: "alfred"},
		{ID: 3, Username: "bob"},
	}
	l := NewSearch(profiles, "al", 2, WithLogger(zap.NewNop()))

	require.NoError(t, l.Load(context.Background(), false))
	items := l.Items()
	require.Len(t, items, 2)
	assert.False(t, items[0].IsFollowing, "search results carry no relationship flags")

	// the page was full, but there is nothing behind a search cursor
	require.True(t, l.HasMore())
	require.NoError(t, l.Load(context.Background(), false))
	assert.Len(t, l.Items(), 2)
	assert.False(t, l.HasMore())
	assert.Equal(t, 1, profiles.Calls("SearchByUsernamePrefix"))
}

func TestToggleFollow(t *testing.T) {
	t.Run("confirmed", func(t *testing.T) {
		profiles := servicetest.NewProfiles()
		l := loadedFriends(t, profiles, 3)
		target := l.Items()[1]

		require.NoError(t, <-l.ToggleFollow(context.Background(), target))
		assert.True(t, l.Items()[1].IsFollowing)
		assert.Equal(t, 1, profiles.Calls("ToggleFollowing"))
	})

	t.Run("reverted", func(t *testing.T) {
		profiles := servicetest.NewProfiles()
		profiles.FollowErr = errors.New("rate limited")
		profiles.MutateGate = make(chan struct{})
		l := loadedFriends(t, profiles, 3)
		target := l.Items()[1]

		done := l.ToggleFollow(context.Background(), target)
		assert.True(t, l.Items()[1].IsFollowing, "applied before confirmation")

		close(profiles.MutateGate)
		require.Error(t, <-done)
		assert.False(t, l.Items()[1].IsFollowing)
		assert.Contains(t, l.Snapshot().Message, "Could not update follow")
	})
}

func TestAddItem(t *testing.T) {
	t.Run("duplicate is ignored", func(t *testing.T) {
		profiles := servicetest.NewProfiles()
		l := loadedFriends(t, profiles, 3)
		existing := l.Items()[2].PublicUser

		require.NoError(t, <-l.AddItem(context.Background(), existing))
		assert.Len(t, l.Items(), 3)
		assert.Equal(t, 0, profiles.Calls("AddFriend"))
	})

	t.Run("inserted at head", func(t *testing.T) {
		profiles := servicetest.NewProfiles()
		l := loadedFriends(t, profiles, 3)

		require.NoError(t, <-l.AddItem(context.Background(), models.PublicUser{ID: 100, Username: "newcomer"}))
		items := l.Items()
		require.Len(t, items, 4)
		assert.Equal(t, int64(100), items[0].ID)
		assert.Equal(t, 1, profiles.Calls("AddFriend"))
	})

	t.Run("removed on failure", func(t *testing.T) {
		profiles := servicetest.NewProfiles()
		profiles.AddErr = errors.New("blocked")
		l := loadedFriends(t, profiles, 3)

		require.Error(t, <-l.AddItem(context.Background(), models.PublicUser{ID: 100}))
		assert.False(t, l.Contains(100))
		assert.Contains(t, l.Snapshot().Message, "Could not add friend")
	})
}

func TestRemoveItem(t *testing.T) {
	t.Run("confirmed", func(t *testing.T) {
		profiles := servicetest.NewProfiles()
		l := loadedFriends(t, profiles, 3)

		require.NoError(t, <-l.RemoveItem(context.Background(), l.Items()[1]))
		assert.False(t, l.Contains(1))
		assert.Equal(t, 1, profiles.Calls("RemoveFriend"))
	})

	t.Run("absent is ignored", func(t *testing.T) {
		profiles := servicetest.NewProfiles()
		l := loadedFriends(t, profiles, 3)

		require.NoError(t, <-l.RemoveItem(context.Background(), models.DetailedUser{PublicUser: models.PublicUser{ID: 55}}))
		assert.Equal(t, 0, profiles.Calls("RemoveFriend"))
	})

	t.Run("restored at original index", func(t *testing.T) {
		profiles := servicetest.NewProfiles()
		profiles.RemoveErr = errors.New("server error")
		l := loadedFriends(t, profiles, 3)

		require.Error(t, <-l.RemoveItem(context.Background(), l.Items()[1]))
		items := l.Items()
		require.Len(t, items, 3)
		assert.Equal(t, int64(1), items[1].ID)
	})

	t.Run("not duplicated when refreshed back", func(t *testing.T) {
		profiles := servicetest.NewProfiles()
		profiles.RemoveErr = errors.New("server error")
		profiles.MutateGate = make(chan struct{})
		l := loadedFriends(t, profiles, 3)

		done := l.RemoveItem(context.Background(), l.Items()[1])
		require.False(t, l.Contains(1))
		// the server still lists the friend, so a refresh brings it back
		require.NoError(t, l.Load(context.Background(), true))
		require.True(t, l.Contains(1))

		close(profiles.MutateGate)
		require.Error(t, <-done)

		seen := make(map[int64]int)
		for _, u := range l.Items() {
			seen[u.ID]++
		}
		assert.Len(t, l.Items(), 3)
		assert.Equal(t, 1, seen[1])
	})

	t.Run("restored clamped to length", func(t *testing.T) {
		profiles := servicetest.NewProfiles()
		profiles.RemoveErr = errors.New("server error")
		profiles.MutateGate = make(chan struct{})
		l := loadedFriends(t, profiles, 3)

		done := l.RemoveItem(context.Background(), l.Items()[2])
		// shrink the list below the removed index while the call is pending
		l.Remove(0)
		l.Remove(1)

		close(profiles.MutateGate)
		require.Error(t, <-done)
		items := l.Items()
		require.Len(t, items, 1)
		assert.Equal(t, int64(2), items[0].ID)
		assert.Contains(t, l.Snapshot().Message, "Could not remove friend")

		l.ClearError()
		assert.Empty(t, l.Snapshot().Message)
	})
}
