// Package bus provides the in-process publish/subscribe mechanism that ties
// the credential lifecycle components together. Each event type gets its own
// Topic, so the dispatch table is built at subscription time and no runtime
// type matching is required.
package bus

import "sync"

// Topic is a synchronous publish/subscribe channel for a single event type.
// Handlers are invoked in registration order, on the publishing goroutine:
// a slow handler blocks the publisher, which is intentional backpressure for
// the expiry monitor and the callback listener.
type Topic[E any] struct {
	mu       sync.Mutex
	handlers []func(E)
}

func NewTopic[E any]() *Topic[E] {
	return &Topic[E]{}
}

// Subscribe registers a handler to be invoked for every subsequently
// published event. Handlers cannot be unregistered.
func (t *Topic[E]) Subscribe(handler func(E)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers = append(t.handlers, handler)
}

// Publish invokes every registered handler with the given event, in
// registration order, and returns once all handlers have returned. Dispatch
// is reentrant: a handler may publish to this or any other topic.
func (t *Topic[E]) Publish(event E) {
	t.mu.Lock()
	handlers := make([]func(E), len(t.handlers))
	copy(handlers, t.handlers)
	t.mu.Unlock()

	for _, handler := range handlers {
		handler(event)
	}
}
