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

// Package saga implements the choreography-based saga that coordinates the
// order fulfillment transaction across services. The coordinator owns saga
// instances, advances them on step-outcome events, and publishes
// compensating events through the messaging port when a step fails.
package saga

import (
	"fmt"
	"time"

	"github.com/shopmesh/shopmesh/pkg/messaging"
)

// Status is the lifecycle state of one saga instance.
type Status string

const (
	// StatusPending indicates the saga was created but no step outcome has
	// arrived yet.
	StatusPending Status = "pending"

	// StatusRunning indicates at least one step succeeded and more remain.
	StatusRunning Status = "running"

	// StatusCompleted indicates every required step has a successful record.
	StatusCompleted Status = "completed"

	// StatusFailed indicates the saga was abandoned without compensation
	// being attempted. Surfaced for operators; the coordinator itself always
	// attempts compensation, so it never assigns this state.
	StatusFailed Status = "failed"

	// StatusCompensating indicates a step failed and compensating events
	// are being published. The transition into this state is one-way.
	StatusCompensating Status = "compensating"

	// StatusCompensated indicates the compensation traversal finished.
	StatusCompensated Status = "compensated"
)

// IsTerminal reports whether no further forward progress is possible.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCompensated || s == StatusFailed
}

// String implements fmt.Stringer.
func (s Status) String() string {
	return string(s)
}

// Step identifies one forward step of the order fulfillment saga.
type Step string

const (
	// StepReserveInventory reserves stock for the order's items.
	StepReserveInventory Step = "reserve_inventory"

	// StepChargePayment charges the customer.
	StepChargePayment Step = "charge_payment"

	// StepConfirmOrder marks the order confirmed; the terminal forward step,
	// it has no compensation.
	StepConfirmOrder Step = "confirm_order"
)

// RequiredSteps returns the step set a saga must complete, in forward order.
func RequiredSteps() []Step {
	return []Step{StepReserveInventory, StepChargePayment, StepConfirmOrder}
}

// ParseStep validates a wire-format step name.
func ParseStep(name string) (Step, error) {
	switch Step(name) {
	case StepReserveInventory, StepChargePayment, StepConfirmOrder:
		return Step(name), nil
	default:
		return "", fmt.Errorf("unknown saga step %q", name)
	}
}

// StepRecord is one appended step outcome. Records are immutable once
// appended; their slice order is the delivery order of the outcomes.
type StepRecord struct {
	Step    Step                   `json:"step"`
	Success bool                   `json:"success"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// Compensation records one compensating event the coordinator published (or
// attempted to publish) for a completed step.
type Compensation struct {
	Step      Step   `json:"step"`
	EventType string `json:"event_type"`
	Published bool   `json:"published"`
}

// Saga is the state of one distributed order-creation transaction. Values
// returned by the coordinator are deep-copied snapshots; mutating them does
// not affect the stored instance.
type Saga struct {
	SagaID  string                `json:"saga_id"`
	OrderID string                `json:"order_id"`
	UserID  string                `json:"user_id"`
	Items   []messaging.OrderItem `json:"items"`

	Status        Status         `json:"status"`
	Steps         []StepRecord   `json:"steps"`
	Compensations []Compensation `json:"compensations"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// completedSteps returns the step names recorded successful, preserving the
// order of their first successful record.
func (s *Saga) completedSteps() []Step {
	seen := make(map[Step]bool, len(s.Steps))
	var out []Step
	for _, rec := range s.Steps {
		if rec.Success && !seen[rec.Step] {
			seen[rec.Step] = true
			out = append(out, rec.Step)
		}
	}
	return out
}

// hasAllRequired reports whether every required step has a successful record.
func (s *Saga) hasAllRequired() bool {
	done := make(map[Step]bool, len(s.Steps))
	for _, rec := range s.Steps {
		if rec.Success {
			done[rec.Step] = true
		}
	}
	for _, step := range RequiredSteps() {
		if !done[step] {
			return false
		}
	}
	return true
}

// clone deep-copies the saga for snapshot reads.
func (s *Saga) clone() *Saga {
	cp := *s
	cp.Items = append([]messaging.OrderItem(nil), s.Items...)
	cp.Steps = make([]StepRecord, len(s.Steps))
	for i, rec := range s.Steps {
		cp.Steps[i] = rec
		if rec.Payload != nil {
			payload := make(map[string]interface{}, len(rec.Payload))
			for k, v := range rec.Payload {
				payload[k] = v
			}
			cp.Steps[i].Payload = payload
		}
	}
	cp.Compensations = append([]Compensation(nil), s.Compensations...)
	return &cp
}
