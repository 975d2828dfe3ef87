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

package listener

import (
	"context"
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

type fixture struct {
	listener    *Listener
	coordinator *saga.Coordinator
	repo        *mockOrderRepository
	bus         *messaging.MemoryBus
	orderID     uuid.UUID
	sagaID      string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	bus := messaging.NewMemoryBus()
	coordinator, err := saga.NewCoordinator(saga.Config{Publisher: bus})
	require.NoError(t, err)

	orderID := uuid.New()
	items := []messaging.OrderItem{{SKU: "sku-A", Quantity: 1, UnitPriceCents: 100}}
	sagaID, err := coordinator.CreateSaga(context.Background(), orderID.String(), "user-1", items)
	require.NoError(t, err)

	repo := &mockOrderRepository{}
	return &fixture{
		listener:    New(coordinator, repo),
		coordinator: coordinator,
		repo:        repo,
		bus:         bus,
		orderID:     orderID,
		sagaID:      sagaID,
	}
}

func (f *fixture) step(t *testing.T, step saga.Step, success bool) {
	t.Helper()
	var event *messaging.Event
	if success {
		event = messaging.NewStepCompletedEvent(f.sagaID, string(step), nil)
	} else {
		event = messaging.NewStepFailedEvent(f.sagaID, string(step), "boom")
	}
	require.NoError(t, f.listener.Handle(context.Background(), event))
}

func TestHandleAdvancesThroughCompletion(t *testing.T) {
	f := newFixture(t)
	f.repo.On("UpdateStatus", mock.Anything, f.orderID, model.StatusConfirmed).Return(nil)

	f.step(t, saga.StepReserveInventory, true)
	f.step(t, saga.StepChargePayment, true)

	s, err := f.coordinator.GetSaga(context.Background(), f.sagaID)
	require.NoError(t, err)
	assert.Equal(t, saga.StatusRunning, s.Status)
	f.repo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)

	f.step(t, saga.StepConfirmOrder, true)

	s, err = f.coordinator.GetSaga(context.Background(), f.sagaID)
	require.NoError(t, err)
	assert.Equal(t, saga.StatusCompleted, s.Status)
	f.repo.AssertExpectations(t)
}

func TestHandleFailureCancelsOrder(t *testing.T) {
	f := newFixture(t)
	f.repo.On("UpdateStatus", mock.Anything, f.orderID, model.StatusCancelled).Return(nil)

	f.step(t, saga.StepReserveInventory, true)
	f.step(t, saga.StepChargePayment, false)

	s, err := f.coordinator.GetSaga(context.Background(), f.sagaID)
	require.NoError(t, err)
	assert.Equal(t, saga.StatusCompensated, s.Status)

	releases := f.bus.PublishedOfType(messaging.EventTypeInventoryRelease)
	require.Len(t, releases, 1)
	assert.Equal(t, f.orderID.String(), releases[0].Event.String("order_id"))
	f.repo.AssertExpectations(t)
}

func TestHandleUnknownSagaAcks(t *testing.T) {
	f := newFixture(t)
	event := messaging.NewStepCompletedEvent("no-such-saga", string(saga.StepConfirmOrder), nil)
	assert.NoError(t, f.listener.Handle(context.Background(), event))
}

func TestHandleUnknownStepAcks(t *testing.T) {
	f := newFixture(t)
	event := messaging.NewStepCompletedEvent(f.sagaID, "ship_unicorns", nil)
	assert.NoError(t, f.listener.Handle(context.Background(), event))

	s, err := f.coordinator.GetSaga(context.Background(), f.sagaID)
	require.NoError(t, err)
	assert.Empty(t, s.Steps)
}

func TestHandleUnexpectedEventTypeAcks(t *testing.T) {
	f := newFixture(t)
	event := messaging.NewOrderPaidEvent(f.orderID.String(), "user-1", 100)
	assert.NoError(t, f.listener.Handle(context.Background(), event))
}

func TestHandleOrderUpdateFailureStillAcks(t *testing.T) {
	f := newFixture(t)
	f.repo.On("UpdateStatus", mock.Anything, f.orderID, model.StatusConfirmed).
		Return(assert.AnError)

	f.step(t, saga.StepReserveInventory, true)
	f.step(t, saga.StepChargePayment, true)
	f.step(t, saga.StepConfirmOrder, true)
	f.repo.AssertExpectations(t)
}
