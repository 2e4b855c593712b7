package bridge

import (
	"context"
	"sync"

	"github.com/sourcegraph/conc"
	"go.uber.org/zap"

	"github.com/steemit/feedclient/internal/state"
	"github.com/steemit/feedclient/pkg/logging"
)

const subscriberBuffer = 64

// Event is one state change pushed to presentation code
type Event struct {
	Topic string      `json:"topic"`
	Data  interface{} `json:"data"`
}

// Events fans state changes out to stream subscribers. Slow subscribers
// miss events rather than block publishers.
type Events struct {
	mu      sync.Mutex
	subs    map[uint64]chan Event
	nextID  uint64
	watched map[string]struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     conc.WaitGroup
	logger *zap.Logger
}

// NewEvents creates an empty hub
func NewEvents() *Events {
	ctx, cancel := context.WithCancel(context.Background())
	return &Events{
		subs:    make(map[uint64]chan Event),
		watched: make(map[string]struct{}),
		ctx:     ctx,
		cancel:  cancel,
		logger:  logging.WithComponent("events"),
	}
}

// Publish sends ev to every subscriber that has room for it
func (e *Events) Publish(ev Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for id, ch := range e.subs {
		select {
		case ch <- ev:
		default:
			e.logger.Debug("Dropped event for slow subscriber", zap.Uint64("subscriber", id), zap.String("topic", ev.Topic))
		}
	}
}

// Subscribe returns a channel of later events and a cancel function
func (e *Events) Subscribe() (<-chan Event, func()) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := e.nextID
	e.nextID++
	ch := make(chan Event, subscriberBuffer)
	e.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			delete(e.subs, id)
			close(ch)
		})
	}
}

// Close stops every watcher and waits for them
func (e *Events) Close() {
	e.cancel()
	e.wg.Wait()
}

// Watch publishes every later value of v under topic, converted by view.
// A topic is watched at most once. The returned function stops the watch
// and frees the topic.
func Watch[T any](e *Events, topic string, v *state.Value[T], view func(T) interface{}) func() {
	e.mu.Lock()
	if _, ok := e.watched[topic]; ok {
		e.mu.Unlock()
		return func() {}
	}
	e.watched[topic] = struct{}{}
	e.mu.Unlock()

	ctx, stop := context.WithCancel(e.ctx)
	ch, cancel := v.Subscribe()
	e.wg.Go(func() {
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case val, ok := <-ch:
				if !ok {
					return
				}
				e.Publish(Event{Topic: topic, Data: view(val)})
			}
		}
	})

	var once sync.Once
	return func() {
		once.Do(func() {
			stop()
			e.mu.Lock()
			delete(e.watched, topic)
			e.mu.Unlock()
		})
	}
}
