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
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/shopmesh/shopmesh/internal/orders/model"
	"github.com/shopmesh/shopmesh/pkg/messaging"
	"github.com/shopmesh/shopmesh/pkg/saga"
)

type mockOrderRepository struct {
	mock.Mock
}

func (m *mockOrderRepository) Create(ctx context.Context, order *model.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *mockOrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	args := m.Called(ctx, id)
	if o := args.Get(0); o != nil {
		return o.(*model.Order), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockOrderRepository) GetBySagaID(ctx context.Context, sagaID string) (*model.Order, error) {
	args := m.Called(ctx, sagaID)
	if o := args.Get(0); o != nil {
		return o.(*model.Order), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockOrderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *mockOrderRepository) SetSagaID(ctx context.Context, id uuid.UUID, sagaID string) error {
	args := m.Called(ctx, id, sagaID)
	return args.Error(0)
}

func newTestService(t *testing.T, repo *mockOrderRepository, bus *messaging.MemoryBus) OrderService {
	t.Helper()
	coordinator, err := saga.NewCoordinator(saga.Config{Publisher: bus})
	require.NoError(t, err)
	return NewOrderService(repo, coordinator, bus)
}

func createRequest() model.CreateOrderRequest {
	return model.CreateOrderRequest{
		Items: []model.OrderItemRequest{
			{SKU: "sku-A", Quantity: 2, UnitPriceCents: 1500},
			{SKU: "sku-B", Quantity: 1, UnitPriceCents: 700},
		},
	}
}

func TestCreatePersistsOrderAndOpensSaga(t *testing.T) {
	repo := &mockOrderRepository{}
	repo.On("Create", mock.Anything, mock.Anything).Return(nil)
	repo.On("SetSagaID", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	bus := messaging.NewMemoryBus()

	svc := newTestService(t, repo, bus)
	order, err := svc.Create(context.Background(), "user-1", createRequest())
	require.NoError(t, err)

	assert.Equal(t, model.StatusPending, order.Status)
	assert.Equal(t, int64(2*1500+700), order.TotalCents)
	require.NotEmpty(t, order.SagaID)

	s, err := svc.GetSaga(context.Background(), order.SagaID)
	require.NoError(t, err)
	assert.Equal(t, saga.StatusPending, s.Status)
	assert.Equal(t, order.ID.String(), s.OrderID)
	assert.Equal(t, "user-1", s.UserID)

	created := bus.PublishedOfType(messaging.EventTypeOrderCreated)
	require.Len(t, created, 1)
	assert.Equal(t, messaging.ExchangeOrders, created[0].Exchange)
	assert.Equal(t, order.ID.String(), created[0].Event.String("order_id"))
	assert.Equal(t, order.TotalCents, created[0].Event.Int64("total_cents"))
	repo.AssertExpectations(t)
}

func TestCreateSurvivesPublishFailure(t *testing.T) {
	repo := &mockOrderRepository{}
	repo.On("Create", mock.Anything, mock.Anything).Return(nil)
	repo.On("SetSagaID", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	bus := messaging.NewMemoryBus()
	bus.FailOn(messaging.EventTypeOrderCreated, errors.New("broker down"))

	svc := newTestService(t, repo, bus)
	order, err := svc.Create(context.Background(), "user-1", createRequest())
	require.NoError(t, err)
	assert.NotEmpty(t, order.SagaID)
}

func TestCreateStopsOnRepositoryError(t *testing.T) {
	repo := &mockOrderRepository{}
	repo.On("Create", mock.Anything, mock.Anything).Return(errors.New("db down"))
	bus := messaging.NewMemoryBus()

	svc := newTestService(t, repo, bus)
	_, err := svc.Create(context.Background(), "user-1", createRequest())
	require.Error(t, err)
	assert.Empty(t, bus.Published())
}

func TestGetSagaUnknown(t *testing.T) {
	svc := newTestService(t, &mockOrderRepository{}, messaging.NewMemoryBus())
	_, err := svc.GetSaga(context.Background(), "nope")
	assert.ErrorIs(t, err, saga.ErrSagaNotFound)
}
