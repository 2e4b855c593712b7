package bridge

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steemit/feedclient/internal/list"
	"github.com/steemit/feedclient/internal/service/servicetest"
)

func TestSearchListsAreBounded(t *testing.T) {
	events := NewEvents()
	defer events.Close()

	pr := NewProfileAPI(servicetest.NewProfiles(), 1, 20, events)
	defer pr.Wait()

	first, _, err := pr.list(json.RawMessage(`{"kind":"search","prefix":"p0"}`))
	require.NoError(t, err)
	again, _, err := pr.list(json.RawMessage(`{"kind":"search","prefix":"p0"}`))
	require.NoError(t, err)
	assert.Same(t, first, again)

	for i := 0; i < searchListCacheSize*2; i++ {
		_, _, err := pr.list(json.RawMessage(fmt.Sprintf(`{"kind":"search","prefix":"p%d"}`, i)))
		require.NoError(t, err)
	}
	assert.Equal(t, searchListCacheSize, pr.SearchLists())

	events.mu.Lock()
	watched := len(events.watched)
	events.mu.Unlock()
	assert.Equal(t, searchListCacheSize, watched, "evicted lists stop streaming")

	// an evicted prefix gets a fresh list
	l, _, err := pr.list(json.RawMessage(`{"kind":"search","prefix":"p0"}`))
	require.NoError(t, err)
	assert.NotSame(t, first, l)
	assert.Equal(t, list.KindSearch, l.Kind())
}

func TestUserListsAreKeptPerOwner(t *testing.T) {
	events := NewEvents()
	defer events.Close()

	pr := NewProfileAPI(servicetest.NewProfiles(), 1, 20, events)
	defer pr.Wait()

	mine, p, err := pr.list(json.RawMessage(`{"kind":"friends"}`))
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.UserID)

	theirs, _, err := pr.list(json.RawMessage(`{"kind":"friends","user_id":2}`))
	require.NoError(t, err)
	assert.NotSame(t, mine, theirs)

	again, _, err := pr.list(json.RawMessage(`{"kind":"friends","user_id":1}`))
	require.NoError(t, err)
	assert.Same(t, mine, again)
}
