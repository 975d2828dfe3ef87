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

package saga

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shopmesh/shopmesh/pkg/logger"
	"github.com/shopmesh/shopmesh/pkg/messaging"
)

// ErrEventPublisherRequired indicates a coordinator was configured without
// an event publisher.
var ErrEventPublisherRequired = errors.New("event publisher is required")

// Config holds the coordinator dependencies.
type Config struct {
	// Store holds the saga instances. Defaults to the in-memory store.
	Store Store

	// Publisher is required; compensating events go through it.
	Publisher messaging.EventPublisher

	// Exchange is the topic exchange compensating events are published to.
	// Defaults to messaging.ExchangeSaga.
	Exchange string
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Publisher == nil {
		return ErrEventPublisherRequired
	}
	return nil
}

// Coordinator owns saga instances for this process. It is constructed once
// at startup and shared by the order handler (CreateSaga) and the event
// listener (AdvanceSaga).
type Coordinator struct {
	store     Store
	publisher messaging.EventPublisher
	exchange  string
}

// NewCoordinator creates a coordinator from the given configuration.
func NewCoordinator(config Config) (*Coordinator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	store := config.Store
	if store == nil {
		store = NewMemoryStore()
	}
	exchange := config.Exchange
	if exchange == "" {
		exchange = messaging.ExchangeSaga
	}
	return &Coordinator{
		store:     store,
		publisher: config.Publisher,
		exchange:  exchange,
	}, nil
}

// CreateSaga allocates a new saga for one order-creation attempt and stores
// it in Pending state. Saga ids are uuids, so concurrent creation cannot
// collide.
func (c *Coordinator) CreateSaga(ctx context.Context, orderID, userID string, items []messaging.OrderItem) (string, error) {
	now := time.Now().UTC()
	s := &Saga{
		SagaID:    uuid.NewString(),
		OrderID:   orderID,
		UserID:    userID,
		Items:     append([]messaging.OrderItem(nil), items...),
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := c.store.Create(ctx, s); err != nil {
		return "", err
	}

	logger.GetLogger().Info("saga created",
		zap.String("saga_id", s.SagaID),
		zap.String("order_id", orderID))
	return s.SagaID, nil
}

// AdvanceSaga records a step outcome and moves the saga's state machine.
//
// An unknown saga id is logged and ignored: under at-least-once delivery
// and process restarts, outcome events for sagas this process never created
// are expected, not fatal. (The events are not buffered for late-created
// sagas; a durable store closes that window.)
//
// A failed step flips the saga to Compensating and runs the compensation
// traversal synchronously, so the caller observes the saga only after
// compensation has been attempted. The flip is one-way: outcomes arriving
// after it only append to the step log and never resurrect the saga.
func (c *Coordinator) AdvanceSaga(ctx context.Context, sagaID string, step Step, success bool, payload map[string]interface{}) error {
	log := logger.GetLogger()

	err := c.store.Update(ctx, sagaID, func(s *Saga) error {
		s.Steps = append(s.Steps, StepRecord{Step: step, Success: success, Payload: payload})

		if !success {
			if s.Status == StatusCompensating || s.Status == StatusCompensated {
				// Compensation already ran; a duplicate failure outcome must
				// not publish a second round of compensating events.
				log.Warn("step failure on already compensated saga",
					zap.String("saga_id", sagaID),
					zap.String("step", string(step)))
				return nil
			}

			log.Warn("saga step failed, starting compensation",
				zap.String("saga_id", sagaID),
				zap.String("step", string(step)))
			s.Status = StatusCompensating
			c.compensate(ctx, s)
			s.Status = StatusCompensated
			return nil
		}

		if s.Status == StatusCompensating || s.Status == StatusCompensated {
			// Late-arriving success after a failure; record it, nothing more.
			return nil
		}

		if s.hasAllRequired() {
			s.Status = StatusCompleted
			log.Info("saga completed", zap.String("saga_id", sagaID))
		} else {
			s.Status = StatusRunning
		}
		return nil
	})

	if errors.Is(err, ErrSagaNotFound) {
		log.Warn("step outcome for unknown saga",
			zap.String("saga_id", sagaID),
			zap.String("step", string(step)))
		return nil
	}
	return err
}

// compensate publishes one compensating event per successfully completed
// step, traversing the completed steps in reverse of their append order.
// Publishing is best-effort: a failed publish is logged and recorded, and
// the traversal continues — the consumers' idempotence makes partial
// compensation preferable to halting.
func (c *Coordinator) compensate(ctx context.Context, s *Saga) {
	log := logger.GetLogger()

	completed := s.completedSteps()
	for i := len(completed) - 1; i >= 0; i-- {
		var event *messaging.Event
		switch completed[i] {
		case StepReserveInventory:
			event = messaging.NewInventoryReleaseEvent(s.OrderID, s.Items)
		case StepChargePayment:
			event = messaging.NewPaymentRefundEvent(s.OrderID, s.UserID)
		case StepConfirmOrder:
			// Terminal forward step, nothing downstream to undo.
			continue
		default:
			// Callers can append records with steps outside the enum; there
			// is no compensating event to publish for them.
			log.Warn("no compensation for unrecognized step",
				zap.String("saga_id", s.SagaID),
				zap.String("step", string(completed[i])))
			continue
		}

		err := c.publisher.Publish(ctx, c.exchange, event)
		if err != nil {
			log.Error("compensation publish failed",
				zap.String("saga_id", s.SagaID),
				zap.String("step", string(completed[i])),
				zap.String("event_type", event.EventType),
				zap.Error(err))
		} else {
			log.Info("compensation published",
				zap.String("saga_id", s.SagaID),
				zap.String("step", string(completed[i])),
				zap.String("event_type", event.EventType))
		}
		s.Compensations = append(s.Compensations, Compensation{
			Step:      completed[i],
			EventType: event.EventType,
			Published: err == nil,
		})
	}
}

// GetSaga returns a read-only snapshot of the saga, or ErrSagaNotFound.
func (c *Coordinator) GetSaga(ctx context.Context, sagaID string) (*Saga, error) {
	return c.store.Get(ctx, sagaID)
}
