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
	"time"

	"github.com/streadway/amqp"
	"go.uber.org/zap"

	"github.com/shopmesh/shopmesh/pkg/logger"
	"github.com/shopmesh/shopmesh/pkg/messaging"
)

type rabbitSubscriber struct {
	config Config

	mu     sync.Mutex
	closed bool
}

// NewSubscriber creates an EventSubscriber over RabbitMQ. Subscribe blocks
// until the context is cancelled, redialing with a fixed delay whenever the
// connection drops, so a consumer outliving a broker restart keeps its
// durable queue and resumes where it left off.
func NewSubscriber(config Config) (messaging.EventSubscriber, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &rabbitSubscriber{config: config.withDefaults()}, nil
}

func (s *rabbitSubscriber) Subscribe(ctx context.Context, cfg messaging.SubscriptionConfig, handler messaging.Handler) error {
	log := logger.GetLogger()

	for {
		s.mu.Lock()
		closed := s.closed
		s.mu.Unlock()
		if closed {
			return messaging.ErrSubscriberClosed
		}

		err := s.consumeOnce(ctx, cfg, handler)
		if err == nil || ctx.Err() != nil {
			return ctx.Err()
		}

		log.Warn("rabbitmq consume loop ended, reconnecting",
			zap.String("queue", cfg.Queue),
			zap.Error(err),
			zap.Duration("delay", s.config.ReconnectDelay))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.config.ReconnectDelay):
		}
	}
}

// consumeOnce runs one connection's consume loop until the channel closes
// or the context is cancelled.
func (s *rabbitSubscriber) consumeOnce(ctx context.Context, cfg messaging.SubscriptionConfig, handler messaging.Handler) error {
	conn, err := amqp.Dial(s.config.URL)
	if err != nil {
		return fmt.Errorf("dial rabbitmq: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	if err := ch.Qos(s.config.Prefetch, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}
	if err := ch.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", cfg.Exchange, err)
	}
	if _, err := ch.QueueDeclare(cfg.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", cfg.Queue, err)
	}
	if err := ch.QueueBind(cfg.Queue, cfg.RoutingKey, cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind %s to %s (%s): %w", cfg.Queue, cfg.Exchange, cfg.RoutingKey, err)
	}

	deliveries, err := ch.Consume(cfg.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", cfg.Queue, err)
	}

	log := logger.GetLogger()
	log.Info("consuming",
		zap.String("exchange", cfg.Exchange),
		zap.String("queue", cfg.Queue),
		zap.String("routing_key", cfg.RoutingKey))

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed for queue %s", cfg.Queue)
			}
			s.dispatch(ctx, ch, d, handler)
		}
	}
}

// dispatch decodes one delivery and applies at-least-once semantics: the
// message is acked only after the handler returns without error, and a
// handler error requeues it. A payload that cannot be decoded is rejected
// without requeue since redelivering it can never succeed.
func (s *rabbitSubscriber) dispatch(ctx context.Context, ch *amqp.Channel, d amqp.Delivery, handler messaging.Handler) {
	log := logger.GetLogger()

	var event messaging.Event
	if err := json.Unmarshal(d.Body, &event); err != nil {
		log.Error("dropping undecodable message",
			zap.String("routing_key", d.RoutingKey),
			zap.Error(err))
		_ = ch.Nack(d.DeliveryTag, false, false)
		return
	}
	if event.EventType == "" {
		event.EventType = d.RoutingKey
	}

	if err := handler(ctx, &event); err != nil {
		log.Warn("handler failed, requeueing",
			zap.String("event_type", event.EventType),
			zap.String("event_id", event.EventID),
			zap.Bool("redelivered", d.Redelivered),
			zap.Error(err))
		_ = ch.Nack(d.DeliveryTag, false, true)
		return
	}
	_ = ch.Ack(d.DeliveryTag, false)
}

func (s *rabbitSubscriber) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
