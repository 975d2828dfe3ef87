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

// OrderItem is the item shape carried by order and inventory events.
type OrderItem struct {
	SKU            string `json:"sku"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

// NewOrderCreatedEvent announces a freshly persisted order.
func NewOrderCreatedEvent(orderID, userID string, totalCents int64, items []OrderItem) *Event {
	return NewEvent(EventTypeOrderCreated, map[string]interface{}{
		"order_id":    orderID,
		"user_id":     userID,
		"total_cents": totalCents,
		"items":       items,
	})
}

// NewOrderPaidEvent announces a completed payment for an order.
func NewOrderPaidEvent(orderID, userID string, amountCents int64) *Event {
	return NewEvent(EventTypeOrderPaid, map[string]interface{}{
		"order_id":     orderID,
		"user_id":      userID,
		"amount_cents": amountCents,
	})
}

// NewOrderCancelledEvent announces a cancelled order.
func NewOrderCancelledEvent(orderID, userID, reason string) *Event {
	return NewEvent(EventTypeOrderCancelled, map[string]interface{}{
		"order_id": orderID,
		"user_id":  userID,
		"reason":   reason,
	})
}

// NewInventoryReleaseEvent is the compensation for a completed inventory
// reservation. Consumers must treat it as idempotent: releasing already
// released stock is a no-op on their side.
func NewInventoryReleaseEvent(orderID string, items []OrderItem) *Event {
	return NewEvent(EventTypeInventoryRelease, map[string]interface{}{
		"order_id": orderID,
		"items":    items,
	})
}

// NewPaymentRefundEvent is the compensation for a completed payment charge.
// Consumers must treat it as idempotent.
func NewPaymentRefundEvent(orderID, userID string) *Event {
	return NewEvent(EventTypePaymentRefund, map[string]interface{}{
		"order_id": orderID,
		"user_id":  userID,
	})
}

// NewStepCompletedEvent reports a successful saga step.
func NewStepCompletedEvent(sagaID, step string, payload map[string]interface{}) *Event {
	return NewEvent(EventTypeStepCompleted, map[string]interface{}{
		"saga_id": sagaID,
		"step":    step,
		"payload": payload,
	})
}

// NewStepFailedEvent reports a failed saga step and triggers compensation.
func NewStepFailedEvent(sagaID, step, reason string) *Event {
	return NewEvent(EventTypeStepFailed, map[string]interface{}{
		"saga_id": sagaID,
		"step":    step,
		"reason":  reason,
	})
}
