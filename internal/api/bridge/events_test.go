package bridge

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steemit/feedclient/internal/service"
	"github.com/steemit/feedclient/internal/state"
)

func TestWatchPublishesChanges(t *testing.T) {
	events := NewEvents()
	defer events.Close()

	ch, cancel := events.Subscribe()
	defer cancel()

	v := state.NewValue(0)
	Watch(events, "counter", v, func(n int) interface{} { return n * 10 })
	// a second watch of the same topic must not duplicate events
	Watch(events, "counter", v, func(n int) interface{} { return n * 10 })

	v.Set(4)

	select {
	case ev := <-ch:
		assert.Equal(t, "counter", ev.Topic)
		assert.Equal(t, 40, ev.Data)
	case <-time.After(time.Second):
		t.Fatal("no event published")
	}

	select {
	case ev := <-ch:
		t.Fatalf("unexpected duplicate event %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublishDropsForSlowSubscribers(t *testing.T) {
	events := NewEvents()
	defer events.Close()

	ch, cancel := events.Subscribe()
	for i := 0; i < subscriberBuffer+10; i++ {
		events.Publish(Event{Topic: "t", Data: i})
	}
	assert.Len(t, ch, subscriberBuffer)

	cancel()
	cancel()
	_, open := <-ch
	// buffered events drain before the close is seen
	assert.True(t, open)
}

func TestDecode(t *testing.T) {
	var p postParams
	require.NoError(t, decode(nil, &p))
	require.NoError(t, decode(json.RawMessage(`null`), &p))
	require.NoError(t, decode(json.RawMessage(`{"id":7,"wait":true}`), &p))
	assert.Equal(t, int64(7), p.ID)
	assert.True(t, p.Wait)

	err := decode(json.RawMessage(`{"id":"seven"}`), &p)
	assert.ErrorIs(t, err, service.ErrValidation)
}
