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

// Package messaging defines the event envelope shared by all shopmesh
// services and the publish/subscribe port the saga coordinator and the
// event consumers are written against. The RabbitMQ adapter lives in the
// rabbitmq subpackage; an in-memory bus for tests lives in memory.go.
package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types published and consumed across the platform. The routing key
// of a published message always equals its event type.
const (
	EventTypeOrderCreated   = "order.created"
	EventTypeOrderPaid      = "order.paid"
	EventTypeOrderCancelled = "order.cancelled"

	EventTypeInventoryRelease = "inventory.release"
	EventTypePaymentRefund    = "payment.refund"

	EventTypeStepCompleted = "saga.step.completed"
	EventTypeStepFailed    = "saga.step.failed"
)

// Exchange names. Deployment configuration may override them per service;
// these are the defaults every service agrees on.
const (
	ExchangeOrders = "orders"
	ExchangeSaga   = "saga"
)

// Event is the wire envelope for every message crossing the bus. Events are
// pure data: an event type, a unique id, a timestamp, and event-specific
// payload fields. On the wire the payload fields sit flat next to the
// envelope fields in a single JSON object.
type Event struct {
	EventType  string
	EventID    string
	OccurredAt time.Time
	Payload    map[string]interface{}
}

// NewEvent builds an event of the given type, generating the event id and
// timestamp. The payload map is used as-is; callers must not mutate it
// afterwards.
func NewEvent(eventType string, payload map[string]interface{}) *Event {
	if payload == nil {
		payload = map[string]interface{}{}
	}
	return &Event{
		EventType:  eventType,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
}

// envelope keys reserved for the Event itself; payload fields never shadow
// them.
const (
	keyEventType  = "event_type"
	keyEventID    = "event_id"
	keyOccurredAt = "occurred_at"
)

// MarshalJSON flattens the payload next to the envelope fields, matching
// the format all consumers bind against.
func (e *Event) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(e.Payload)+3)
	for k, v := range e.Payload {
		if k == keyEventType || k == keyEventID || k == keyOccurredAt {
			continue
		}
		out[k] = v
	}
	out[keyEventType] = e.EventType
	out[keyEventID] = e.EventID
	out[keyOccurredAt] = e.OccurredAt.Format(time.RFC3339Nano)
	return json.Marshal(out)
}

// UnmarshalJSON splits the flat wire object back into envelope and payload.
// Missing event_id and occurred_at are generated, so events published by
// minimal producers are still well-formed.
func (e *Event) UnmarshalJSON(data []byte) error {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if v, ok := raw[keyEventType].(string); ok {
		e.EventType = v
	}
	if v, ok := raw[keyEventID].(string); ok && v != "" {
		e.EventID = v
	} else {
		e.EventID = uuid.NewString()
	}
	if v, ok := raw[keyOccurredAt].(string); ok {
		if ts, err := time.Parse(time.RFC3339Nano, v); err == nil {
			e.OccurredAt = ts
		}
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}

	delete(raw, keyEventType)
	delete(raw, keyEventID)
	delete(raw, keyOccurredAt)
	e.Payload = raw
	return nil
}

// String returns the value of a string payload field, or "" when absent.
func (e *Event) String(key string) string {
	v, _ := e.Payload[key].(string)
	return v
}

// Int64 returns the value of a numeric payload field, or 0 when absent.
// JSON numbers decode as float64, so both forms are accepted.
func (e *Event) Int64(key string) int64 {
	switch v := e.Payload[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	default:
		return 0
	}
}

// Bool returns the value of a boolean payload field.
func (e *Event) Bool(key string) bool {
	v, _ := e.Payload[key].(bool)
	return v
}
