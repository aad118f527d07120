package fastview

import (
	"sync"

	channerics "github.com/niceyeti/channerics/channels"
)

// Hub copies one update stream to every subscribed page. A subscriber that is not ready
// misses the update; updates are idempotent so the next one catches it up.
type Hub[T any] struct {
	mu   sync.Mutex
	subs map[chan T]struct{}
}

func NewHub[T any]() *Hub[T] {
	return &Hub[T]{
		subs: map[chan T]struct{}{},
	}
}

// Run forwards source to the subscribers until source closes or done fires, then closes
// every subscription.
func (hub *Hub[T]) Run(done <-chan struct{}, source <-chan T) {
	defer hub.closeAll()
	for item := range channerics.OrDone(done, source) {
		hub.mu.Lock()
		for sub := range hub.subs {
			select {
			case sub <- item:
			default:
			}
		}
		hub.mu.Unlock()
	}
}

// Subscribe returns a channel of updates and a func that ends the subscription.
func (hub *Hub[T]) Subscribe() (<-chan T, func()) {
	sub := make(chan T, 1)
	hub.mu.Lock()
	if hub.subs == nil {
		close(sub)
	} else {
		hub.subs[sub] = struct{}{}
	}
	hub.mu.Unlock()

	var once sync.Once
	return sub, func() {
		once.Do(func() {
			hub.mu.Lock()
			defer hub.mu.Unlock()
			if _, ok := hub.subs[sub]; ok {
				delete(hub.subs, sub)
				close(sub)
			}
		})
	}
}

// Subscribers returns the number of live subscriptions.
func (hub *Hub[T]) Subscribers() int {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	return len(hub.subs)
}

func (hub *Hub[T]) closeAll() {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	for sub := range hub.subs {
		close(sub)
	}
	hub.subs = nil
}
