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

package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/streadway/amqp"

	"github.com/shopmesh/shopmesh/pkg/messaging"
)

type rabbitPublisher struct {
	config Config

	mu       sync.Mutex
	conn     *amqp.Connection
	channel  *amqp.Channel
	declared map[string]bool
	closed   bool
}

// NewPublisher creates an EventPublisher over RabbitMQ. The connection is
// established lazily on the first publish, so constructing a publisher
// never blocks service startup on the broker being reachable.
func NewPublisher(config Config) (messaging.EventPublisher, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &rabbitPublisher{
		config:   config.withDefaults(),
		declared: make(map[string]bool),
	}, nil
}

// Publish sends the event to a durable topic exchange with the event type
// as routing key, persistent delivery mode.
func (p *rabbitPublisher) Publish(ctx context.Context, exchange string, event *messaging.Event) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", event.EventType, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return messaging.ErrPublisherClosed
	}
	if err := p.ensureChannel(exchange); err != nil {
		return err
	}

	err = p.channel.Publish(exchange, event.EventType, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.EventID,
		Timestamp:    event.OccurredAt,
		Type:         event.EventType,
		Body:         body,
	})
	if err != nil {
		// Drop the channel so the next publish redials.
		p.teardownLocked()
		return fmt.Errorf("publish %s to %s: %w", event.EventType, exchange, err)
	}
	return nil
}

// ensureChannel dials and declares the exchange if needed. Caller holds mu.
func (p *rabbitPublisher) ensureChannel(exchange string) error {
	if p.channel == nil {
		conn, err := amqp.Dial(p.config.URL)
		if err != nil {
			return fmt.Errorf("dial rabbitmq: %w", err)
		}
		ch, err := conn.Channel()
		if err != nil {
			_ = conn.Close()
			return fmt.Errorf("open channel: %w", err)
		}
		p.conn = conn
		p.channel = ch
		p.declared = make(map[string]bool)
	}

	if !p.declared[exchange] {
		if err := p.channel.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
			p.teardownLocked()
			return fmt.Errorf("declare exchange %s: %w", exchange, err)
		}
		p.declared[exchange] = true
	}
	return nil
}

func (p *rabbitPublisher) teardownLocked() {
	if p.channel != nil {
		_ = p.channel.Close()
		p.channel = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

func (p *rabbitPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.teardownLocked()
	return nil
}
