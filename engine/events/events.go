// Package events implements synchronous, in-order delivery of conversation
// events to subscribers.
package events

import "github.com/nathoo/parley/types"

// Publisher accepts events. The engine does not inspect what subscribers do.
type Publisher interface {
	Publish(evt types.Event)
}

// Handler receives published events.
type Handler func(evt types.Event)

type subscription struct {
	id      int
	handler Handler
}

// Bus fans events out to subscribers in subscription order on the caller's
// goroutine. It is not safe for concurrent use.
type Bus struct {
	subs   []subscription
	nextID int
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers h and returns a function that removes it. Calling the
// returned function more than once is harmless.
func (b *Bus) Subscribe(h Handler) (unsubscribe func()) {
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, handler: h})
	return func() { b.remove(id) }
}

func (b *Bus) remove(id int) {
	for i, s := range b.subs {
		if s.id == id {
			// Copy so a Publish in progress keeps iterating its own slice.
			next := make([]subscription, 0, len(b.subs)-1)
			next = append(next, b.subs[:i]...)
			b.subs = append(next, b.subs[i+1:]...)
			return
		}
	}
}

// Publish delivers evt to every current subscriber. Subscription changes
// made by a handler apply from the next Publish.
func (b *Bus) Publish(evt types.Event) {
	subs := b.subs
	for _, s := range subs {
		s.handler(evt)
	}
}

// Len returns the number of subscribers.
func (b *Bus) Len() int {
	return len(b.subs)
}
