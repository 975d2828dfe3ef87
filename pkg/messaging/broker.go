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
	"errors"
)

var (
	// ErrPublisherClosed indicates a publish after Close.
	ErrPublisherClosed = errors.New("event publisher is closed")

	// ErrSubscriberClosed indicates a subscribe after Close.
	ErrSubscriberClosed = errors.New("event subscriber is closed")
)

// Handler processes one delivered event. Returning an error tells the
// transport the message was not processed; an at-least-once transport will
// redeliver it.
type Handler func(ctx context.Context, event *Event) error

// EventPublisher is the outbound half of the event bus port. The routing
// key of the published message is the event's type. Implementations must
// be safe for concurrent use.
type EventPublisher interface {
	// Publish sends the event to the named topic exchange.
	Publish(ctx context.Context, exchange string, event *Event) error

	// Close releases transport resources.
	Close() error
}

// SubscriptionConfig names the durable binding a subscriber consumes from.
type SubscriptionConfig struct {
	// Exchange is the topic exchange to bind against.
	Exchange string `json:"exchange" yaml:"exchange"`

	// Queue is the durable, named queue owned by this consumer group.
	Queue string `json:"queue" yaml:"queue"`

	// RoutingKey is the binding pattern, e.g. "order.*".
	RoutingKey string `json:"routing_key" yaml:"routing_key"`
}

// EventSubscriber is the inbound half of the event bus port. Subscribe
// blocks, dispatching deliveries to the handler until the context is
// cancelled or the transport fails permanently.
type EventSubscriber interface {
	Subscribe(ctx context.Context, config SubscriptionConfig, handler Handler) error
	Close() error
}
