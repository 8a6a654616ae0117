package event

import (
	"context"
	"sync"
)

// Handler observes notifications delivered by a Bus
type Handler func(ctx context.Context, message *Message)

type subscription struct {
	id      int
	handler Handler
	types   map[Type]bool
}

// Bus is a synchronous callback registry; handlers run on the emitting
// goroutine in subscription order.
type Bus struct {
	mux           sync.RWMutex
	seq           int
	subscriptions []*subscription
}

// NewBus creates an empty bus
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers handler for the given types, or for all types when
// none are given. The returned function removes the subscription.
func (b *Bus) Subscribe(handler Handler, types ...Type) (unsubscribe func()) {
	sub := &subscription{handler: handler}
	if len(types) > 0 {
		sub.types = make(map[Type]bool, len(types))
		for _, t := range types {
			sub.types[t] = true
		}
	}
	b.mux.Lock()
	b.seq++
	sub.id = b.seq
	b.subscriptions = append(b.subscriptions, sub)
	b.mux.Unlock()
	return func() { b.unsubscribe(sub.id) }
}

func (b *Bus) unsubscribe(id int) {
	b.mux.Lock()
	defer b.mux.Unlock()
	for i, sub := range b.subscriptions {
		if sub.id == id {
			b.subscriptions = append(b.subscriptions[:i:i], b.subscriptions[i+1:]...)
			return
		}
	}
}

// Emit delivers message to every matching subscriber
func (b *Bus) Emit(ctx context.Context, message *Message) {
	b.mux.RLock()
	subscriptions := b.subscriptions
	b.mux.RUnlock()
	for _, sub := range subscriptions {
		if sub.types != nil && !sub.types[message.Type()] {
			continue
		}
		sub.handler(ctx, message)
	}
}

// Len returns the number of subscriptions
func (b *Bus) Len() int {
	b.mux.RLock()
	defer b.mux.RUnlock()
	return len(b.subscriptions)
}
