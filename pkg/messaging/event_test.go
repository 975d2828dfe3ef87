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
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEvent_GeneratesIdentityAndTimestamp(t *testing.T) {
	e := NewEvent(EventTypeOrderCreated, map[string]interface{}{"order_id": "o-1"})

	assert.Equal(t, EventTypeOrderCreated, e.EventType)
	assert.NotEmpty(t, e.EventID)
	assert.False(t, e.OccurredAt.IsZero())

	other := NewEvent(EventTypeOrderCreated, nil)
	assert.NotEqual(t, e.EventID, other.EventID)
}

func TestEvent_WireFormatIsFlat(t *testing.T) {
	e := NewOrderCreatedEvent("o-1", "u-1", 2500, []OrderItem{{SKU: "sku-A", Quantity: 2, UnitPriceCents: 1250}})

	body, err := json.Marshal(e)
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &raw))

	// Payload fields sit next to the envelope fields, no nesting.
	assert.Equal(t, "order.created", raw["event_type"])
	assert.Equal(t, "o-1", raw["order_id"])
	assert.Equal(t, "u-1", raw["user_id"])
	assert.EqualValues(t, 2500, raw["total_cents"])
	assert.NotEmpty(t, raw["event_id"])
	assert.NotEmpty(t, raw["occurred_at"])
}

func TestEvent_UnmarshalFillsMissingEnvelope(t *testing.T) {
	// A minimal producer sends only the type and domain fields.
	var e Event
	require.NoError(t, json.Unmarshal([]byte(`{"event_type":"order.paid","order_id":"o-2","amount_cents":900}`), &e))

	assert.Equal(t, "order.paid", e.EventType)
	assert.NotEmpty(t, e.EventID, "missing event_id is generated")
	assert.False(t, e.OccurredAt.IsZero(), "missing occurred_at is generated")
	assert.Equal(t, "o-2", e.String("order_id"))
	assert.Equal(t, int64(900), e.Int64("amount_cents"))
}

func TestMemoryBus_RecordsAndDispatches(t *testing.T) {
	bus := NewMemoryBus()

	var seen []string
	bus.On(EventTypePaymentRefund, func(_ context.Context, e *Event) error {
		seen = append(seen, e.String("order_id"))
		return nil
	})

	require.NoError(t, bus.Publish(context.Background(), ExchangeSaga, NewPaymentRefundEvent("o-3", "u-3")))
	require.NoError(t, bus.Publish(context.Background(), ExchangeSaga, NewInventoryReleaseEvent("o-3", nil)))

	assert.Equal(t, []string{"o-3"}, seen)
	assert.Len(t, bus.Published(), 2)
	assert.Len(t, bus.PublishedOfType(EventTypePaymentRefund), 1)
}

func TestMemoryBus_FailOnAndClose(t *testing.T) {
	bus := NewMemoryBus()
	boom := errors.New("broker down")
	bus.FailOn(EventTypeInventoryRelease, boom)

	err := bus.Publish(context.Background(), ExchangeSaga, NewInventoryReleaseEvent("o-4", nil))
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, bus.Published(), "failed publishes are not recorded")

	require.NoError(t, bus.Close())
	err = bus.Publish(context.Background(), ExchangeSaga, NewPaymentRefundEvent("o-4", "u-4"))
	assert.ErrorIs(t, err, ErrPublisherClosed)
}
