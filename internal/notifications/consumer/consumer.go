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

// Package consumer turns order lifecycle events into notification mail.
// Notification loss is acceptable: a mail that cannot be sent is logged and
// the event acked, so a broken SMTP server never backs up the queue.
package consumer

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/shopmesh/shopmesh/internal/notifications/email"
	"github.com/shopmesh/shopmesh/pkg/logger"
	"github.com/shopmesh/shopmesh/pkg/messaging"
)

// QueueOrders is the durable queue this consumer owns on the orders
// exchange.
const QueueOrders = "notifications.orders"

// Consumer sends one mail per order lifecycle event.
type Consumer struct {
	sender email.Sender
}

// New creates the consumer.
func New(sender email.Sender) *Consumer {
	return &Consumer{sender: sender}
}

// Start binds the consumer to the orders exchange and blocks dispatching
// deliveries until the context is cancelled.
func (c *Consumer) Start(ctx context.Context, subscriber messaging.EventSubscriber) error {
	return subscriber.Subscribe(ctx, messaging.SubscriptionConfig{
		Exchange:   messaging.ExchangeOrders,
		Queue:      QueueOrders,
		RoutingKey: "order.*",
	}, c.Handle)
}

// Handle processes one order event. It always returns nil: unknown event
// types and send failures are logged, and the delivery is acked either way.
func (c *Consumer) Handle(ctx context.Context, event *messaging.Event) error {
	log := logger.GetLogger()

	var subject, body string
	orderID := event.String("order_id")
	switch event.EventType {
	case messaging.EventTypeOrderCreated:
		subject = fmt.Sprintf("Order %s received", orderID)
		body = fmt.Sprintf(
			"We received your order %s (total %d cents) and started processing it.",
			orderID, event.Int64("total_cents"))
	case messaging.EventTypeOrderPaid:
		subject = fmt.Sprintf("Order %s paid", orderID)
		body = fmt.Sprintf(
			"Your payment of %d cents for order %s was received.",
			event.Int64("amount_cents"), orderID)
	case messaging.EventTypeOrderCancelled:
		subject = fmt.Sprintf("Order %s cancelled", orderID)
		body = fmt.Sprintf(
			"Your order %s was cancelled. Reason: %s",
			orderID, event.String("reason"))
	default:
		log.Warn("unexpected event on notifications queue",
			zap.String("event_type", event.EventType),
			zap.String("event_id", event.EventID))
		return nil
	}

	to := recipient(event.String("user_id"))
	if err := c.sender.Send(ctx, to, subject, body); err != nil {
		log.Error("notification mail failed",
			zap.String("event_type", event.EventType),
			zap.String("order_id", orderID),
			zap.String("to", to),
			zap.Error(err))
		return nil
	}

	log.Info("notification sent",
		zap.String("event_type", event.EventType),
		zap.String("order_id", orderID),
		zap.String("to", to))
	return nil
}

// recipient derives the notification address from the user id. A real
// deployment would project user emails from the users service; the address
// scheme here matches what the dev mail catcher expects.
func recipient(userID string) string {
	return fmt.Sprintf("user-%s@example.com", userID)
}
