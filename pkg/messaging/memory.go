// Copyright © 2025 jackelyj <dreamerlyj@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.
//

package messaging

import (
	"context"
	"sync"
)

// MemoryBus is an in-process EventPublisher used by tests and by local
// single-binary runs. It records every published event and optionally
// forwards them to registered handlers synchronously.
type MemoryBus struct {
	mu        sync.Mutex
	closed    bool
	published []PublishedEvent
	handlers  map[string][]Handler

	// FailPublish, when set, makes Publish return this error for event
	// types present in the set. Used to exercise publish-failure paths.
	failTypes map[string]error
}

// PublishedEvent pairs an event with the exchange it was published to.
type PublishedEvent struct {
	Exchange string
	Event    *Event
}

// NewMemoryBus creates an empty in-memory bus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{
		handlers:  make(map[string][]Handler),
		failTypes: make(map[string]error),
	}
}

// Publish records the event and dispatches it to handlers subscribed to
// its event type. Handler errors are returned to the publisher, which is
// stricter than a real broker; tests rely on it.
func (b *MemoryBus) Publish(ctx context.Context, exchange string, event *Event) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrPublisherClosed
	}
	if err, ok := b.failTypes[event.EventType]; ok {
		b.mu.Unlock()
		return err
	}
	b.published = append(b.published, PublishedEvent{Exchange: exchange, Event: event})
	handlers := append([]Handler(nil), b.handlers[event.EventType]...)
	b.mu.Unlock()

	for _, h := range handlers {
		if err := h(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

// Close marks the bus closed.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// On registers a synchronous handler for an event type.
func (b *MemoryBus) On(eventType string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// FailOn makes future publishes of the given event type fail with err.
func (b *MemoryBus) FailOn(eventType string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failTypes[eventType] = err
}

// Published returns a copy of everything published so far.
func (b *MemoryBus) Published() []PublishedEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]PublishedEvent(nil), b.published...)
}

// PublishedOfType filters the published events by event type.
func (b *MemoryBus) PublishedOfType(eventType string) []PublishedEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []PublishedEvent
	for _, p := range b.published {
		if p.Event.EventType == eventType {
			out = append(out, p)
		}
	}
	return out
}

var _ EventPublisher = (*MemoryBus)(nil)
