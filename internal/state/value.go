// Package state holds observable values that presentation code can read
// synchronously and subscribe to for change notifications.
package state

import (
	"sync"
)

// Value is an observable value. Get never blocks on subscribers; each
// subscriber sees the latest value, intermediate values may be skipped.
type Value[T any] struct {
	mu      sync.Mutex
	current T
	version uint64
	subs    map[uint64]chan T
	nextID  uint64
}

// NewValue creates a Value holding initial
func NewValue[T any](initial T) *Value[T] {
	return &Value[T]{
		current: initial,
		subs:    make(map[uint64]chan T),
	}
}

// Get returns the current value
func (v *Value[T]) Get() T {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current
}

// Version returns how many times the value was set
func (v *Value[T]) Version() uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.version
}

// Set replaces the value and notifies subscribers
func (v *Value[T]) Set(val T) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.setLocked(val)
}

// Update applies fn to the current value and stores the result
func (v *Value[T]) Update(fn func(T) T) T {
	v.mu.Lock()
	defer v.mu.Unlock()
	next := fn(v.current)
	v.setLocked(next)
	return next
}

func (v *Value[T]) setLocked(val T) {
	v.current = val
	v.version++
	for _, ch := range v.subs {
		// drop an unread stale value so the send below cannot block
		select {
		case <-ch:
		default:
		}
		ch <- val
	}
}

// Subscribe returns a channel receiving every later value and a cancel
// function that closes it.
func (v *Value[T]) Subscribe() (<-chan T, func()) {
	v.mu.Lock()
	defer v.mu.Unlock()

	id := v.nextID
	v.nextID++
	ch := make(chan T, 1)
	v.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			v.mu.Lock()
			defer v.mu.Unlock()
			delete(v.subs, id)
			close(ch)
		})
	}
	return ch, cancel
}

// Subscribers returns the number of live subscriptions
func (v *Value[T]) Subscribers() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.subs)
}
