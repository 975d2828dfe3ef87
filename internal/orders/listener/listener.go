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

// Package listener consumes saga step-outcome events and feeds them into
// the saga coordinator. Inventory and payment workers publish
// saga.step.completed / saga.step.failed; this is the choreography's return
// path into the orders service.
package listener

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shopmesh/shopmesh/internal/orders/model"
	"github.com/shopmesh/shopmesh/internal/orders/repository"
	"github.com/shopmesh/shopmesh/pkg/logger"
	"github.com/shopmesh/shopmesh/pkg/messaging"
	"github.com/shopmesh/shopmesh/pkg/saga"
)

// QueueSagaSteps is the durable queue this consumer owns.
const QueueSagaSteps = "orders.saga-steps"

// Listener advances sagas from step-outcome events and reflects terminal
// saga states back onto the order row.
type Listener struct {
	coordinator *saga.Coordinator
	orders      repository.OrderRepository
}

// New creates the listener.
func New(coordinator *saga.Coordinator, orders repository.OrderRepository) *Listener {
	return &Listener{coordinator: coordinator, orders: orders}
}

// Start binds the listener to the saga exchange and blocks dispatching
// deliveries until the context is cancelled.
func (l *Listener) Start(ctx context.Context, subscriber messaging.EventSubscriber) error {
	return subscriber.Subscribe(ctx, messaging.SubscriptionConfig{
		Exchange:   messaging.ExchangeSaga,
		Queue:      QueueSagaSteps,
		RoutingKey: "saga.step.*",
	}, l.Handle)
}

// Handle processes one step-outcome event. Malformed events are logged and
// dropped (returning nil acks them; requeueing cannot fix a bad payload).
func (l *Listener) Handle(ctx context.Context, event *messaging.Event) error {
	log := logger.GetLogger()

	var success bool
	switch event.EventType {
	case messaging.EventTypeStepCompleted:
		success = true
	case messaging.EventTypeStepFailed:
		success = false
	default:
		log.Warn("unexpected event on saga step queue",
			zap.String("event_type", event.EventType),
			zap.String("event_id", event.EventID))
		return nil
	}

	sagaID := event.String("saga_id")
	step, err := saga.ParseStep(event.String("step"))
	if sagaID == "" || err != nil {
		log.Warn("malformed step outcome event",
			zap.String("event_id", event.EventID),
			zap.String("saga_id", sagaID),
			zap.String("step", event.String("step")))
		return nil
	}

	payload, _ := event.Payload["payload"].(map[string]interface{})
	if err := l.coordinator.AdvanceSaga(ctx, sagaID, step, success, payload); err != nil {
		return err
	}
	return l.syncOrderStatus(ctx, sagaID)
}

// syncOrderStatus mirrors a terminal saga state onto the order: Completed
// confirms it, Compensated cancels it. Non-terminal states leave the order
// pending. Missing orders are logged, not failed, so the event still acks.
func (l *Listener) syncOrderStatus(ctx context.Context, sagaID string) error {
	s, err := l.coordinator.GetSaga(ctx, sagaID)
	if err != nil {
		// Unknown saga advances are no-ops; nothing to mirror.
		return nil
	}

	var status string
	switch s.Status {
	case saga.StatusCompleted:
		status = model.StatusConfirmed
	case saga.StatusCompensated:
		status = model.StatusCancelled
	default:
		return nil
	}

	orderID, err := uuid.Parse(s.OrderID)
	if err != nil {
		logger.GetLogger().Warn("saga carries malformed order id",
			zap.String("saga_id", sagaID),
			zap.String("order_id", s.OrderID))
		return nil
	}
	if err := l.orders.UpdateStatus(ctx, orderID, status); err != nil {
		logger.GetLogger().Warn("order status update failed",
			zap.String("saga_id", sagaID),
			zap.String("order_id", s.OrderID),
			zap.String("status", status),
			zap.Error(err))
	}
	return nil
}
