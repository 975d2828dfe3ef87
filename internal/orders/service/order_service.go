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

package service

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

// OrderService owns order creation and the saga it opens per order.
type OrderService interface {
	Create(ctx context.Context, userID string, req model.CreateOrderRequest) (*model.Order, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Order, error)
	GetSaga(ctx context.Context, sagaID string) (*saga.Saga, error)
}

type orderService struct {
	orders      repository.OrderRepository
	coordinator *saga.Coordinator
	publisher   messaging.EventPublisher
}

// NewOrderService creates the order service.
func NewOrderService(orders repository.OrderRepository, coordinator *saga.Coordinator, publisher messaging.EventPublisher) OrderService {
	return &orderService{
		orders:      orders,
		coordinator: coordinator,
		publisher:   publisher,
	}
}

// Create persists the order, opens its fulfillment saga, and announces it
// on the orders exchange. The announcement is best-effort: a failed publish
// is logged but the order stays persisted, the saga listener simply never
// hears step outcomes for it until the broker recovers.
func (s *orderService) Create(ctx context.Context, userID string, req model.CreateOrderRequest) (*model.Order, error) {
	items := make([]messaging.OrderItem, 0, len(req.Items))
	var total int64
	for _, it := range req.Items {
		items = append(items, messaging.OrderItem{
			SKU:            it.SKU,
			Quantity:       it.Quantity,
			UnitPriceCents: it.UnitPriceCents,
		})
		total += int64(it.Quantity) * it.UnitPriceCents
	}

	order := &model.Order{
		ID:         uuid.New(),
		UserID:     userID,
		Status:     model.StatusPending,
		TotalCents: total,
	}
	if err := order.SetItems(items); err != nil {
		return nil, err
	}
	if err := s.orders.Create(ctx, order); err != nil {
		return nil, err
	}

	sagaID, err := s.coordinator.CreateSaga(ctx, order.ID.String(), userID, items)
	if err != nil {
		return nil, err
	}
	order.SagaID = sagaID
	if err := s.orders.SetSagaID(ctx, order.ID, sagaID); err != nil {
		return nil, err
	}

	event := messaging.NewOrderCreatedEvent(order.ID.String(), userID, total, items)
	if err := s.publisher.Publish(ctx, messaging.ExchangeOrders, event); err != nil {
		logger.GetLogger().Error("order.created publish failed",
			zap.String("order_id", order.ID.String()),
			zap.Error(err))
	}
	return order, nil
}

func (s *orderService) Get(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	return s.orders.GetByID(ctx, id)
}

func (s *orderService) GetSaga(ctx context.Context, sagaID string) (*saga.Saga, error) {
	return s.coordinator.GetSaga(ctx, sagaID)
}
