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

// Package resilience implements the circuit breaker that guards synchronous
// calls between shopmesh services, and the registry that owns one breaker
// per downstream dependency.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/shopmesh/shopmesh/pkg/logger"
)

// State represents the current state of a circuit breaker.
type State string

const (
	// StateClosed indicates normal operation; calls pass through.
	StateClosed State = "closed"

	// StateOpen indicates the downstream is considered unhealthy; calls are
	// rejected without being attempted.
	StateOpen State = "open"

	// StateHalfOpen indicates the breaker is probing whether the downstream
	// has recovered.
	StateHalfOpen State = "half_open"
)

var (
	// ErrCircuitOpen is the sentinel wrapped by CircuitOpenError; callers can
	// errors.Is against it to distinguish fast rejections from downstream
	// failures.
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrProbeInFlight indicates a half-open breaker already has its probe
	// call in flight and no further calls are admitted until it resolves.
	ErrProbeInFlight = errors.New("circuit breaker probe already in flight")
)

// CircuitOpenError is returned when a call is rejected because the circuit
// is open. RetryAfter carries the remaining cooldown.
type CircuitOpenError struct {
	Name       string
	RetryAfter time.Duration
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit %q is open, rejecting request (retry in %s)", e.Name, e.RetryAfter.Round(100*time.Millisecond))
}

// Unwrap makes the error match errors.Is(err, ErrCircuitOpen).
func (e *CircuitOpenError) Unwrap() error {
	return ErrCircuitOpen
}

// Config holds the tunables of a single circuit breaker.
type Config struct {
	// FailureThreshold is the number of consecutive failures in the closed
	// state that opens the circuit. Must be >= 1.
	FailureThreshold int `json:"failure_threshold" yaml:"failure_threshold"`

	// RecoveryTimeout is how long the circuit stays open before a probe is
	// allowed through. Must be > 0.
	RecoveryTimeout time.Duration `json:"recovery_timeout" yaml:"recovery_timeout"`

	// SuccessThreshold is the number of consecutive successes in the
	// half-open state that closes the circuit. Must be >= 1.
	SuccessThreshold int `json:"success_threshold" yaml:"success_threshold"`

	// OnStateChange, when set, is invoked after every state transition with
	// the breaker name and the old and new states.
	OnStateChange func(name string, from, to State) `json:"-" yaml:"-"`
}

// DefaultConfig returns the configuration used when a breaker is created
// without explicit tuning.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		RecoveryTimeout:  30 * time.Second,
		SuccessThreshold: 2,
	}
}

// Validate checks the configuration invariants.
func (c Config) Validate() error {
	if c.FailureThreshold < 1 {
		return errors.New("failure threshold must be at least 1")
	}
	if c.RecoveryTimeout <= 0 {
		return errors.New("recovery timeout must be positive")
	}
	if c.SuccessThreshold < 1 {
		return errors.New("success threshold must be at least 1")
	}
	return nil
}

// Stats is a read-only snapshot of a breaker, exposed for monitoring.
type Stats struct {
	Name         string `json:"name"`
	State        State  `json:"state"`
	FailureCount int    `json:"failure_count"`
	SuccessCount int    `json:"success_count"`
}

// CircuitBreaker guards calls to one named downstream dependency.
//
// The mutex covers only the breaker's own bookkeeping: admission is decided
// and state transitions applied under the lock, but the wrapped operation
// itself runs unlocked so one slow downstream call does not serialize every
// caller behind it.
type CircuitBreaker struct {
	name   string
	config Config

	mu           sync.Mutex
	state        State
	failureCount int
	successCount int
	openedAt     time.Time
	probing      bool

	// clock is swappable in tests.
	clock func() time.Time
}

// NewCircuitBreaker creates a breaker for the named dependency.
func NewCircuitBreaker(name string, config Config) (*CircuitBreaker, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("circuit %q: %w", name, err)
	}
	return &CircuitBreaker{
		name:   name,
		config: config,
		state:  StateClosed,
		clock:  time.Now,
	}, nil
}

// Name returns the dependency name this breaker guards.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// Execute runs the operation through the breaker. A rejected call returns
// *CircuitOpenError (or ErrProbeInFlight) without invoking the operation;
// a downstream failure is recorded and returned unchanged.
func (cb *CircuitBreaker) Execute(ctx context.Context, operation func() error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if err := cb.beforeCall(); err != nil {
		return err
	}

	// A panicking operation must still release the probe slot and count as
	// a failure, or a half-open breaker would reject everything forever.
	defer func() {
		if r := recover(); r != nil {
			cb.afterCall(false)
			panic(r)
		}
	}()

	err := operation()
	cb.afterCall(err == nil)
	return err
}

// ExecuteWithResult runs an operation returning a value through the breaker.
func ExecuteWithResult[T any](ctx context.Context, cb *CircuitBreaker, operation func() (T, error)) (T, error) {
	var zero T

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	default:
	}

	if err := cb.beforeCall(); err != nil {
		return zero, err
	}

	defer func() {
		if r := recover(); r != nil {
			cb.afterCall(false)
			panic(r)
		}
	}()

	result, err := operation()
	cb.afterCall(err == nil)
	return result, err
}

// beforeCall decides admission and applies the open->half-open transition in
// a single critical section, so at most one probe is ever in flight.
func (cb *CircuitBreaker) beforeCall() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		elapsed := cb.clock().Sub(cb.openedAt)
		if elapsed < cb.config.RecoveryTimeout {
			return &CircuitOpenError{
				Name:       cb.name,
				RetryAfter: cb.config.RecoveryTimeout - elapsed,
			}
		}
		cb.transition(StateHalfOpen)
		cb.successCount = 0
		cb.probing = true
	case StateHalfOpen:
		if cb.probing {
			return ErrProbeInFlight
		}
		cb.probing = true
	}
	return nil
}

// afterCall records the outcome of an admitted call.
func (cb *CircuitBreaker) afterCall(success bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.probing = false
	if success {
		cb.onSuccess()
	} else {
		cb.onFailure()
	}
}

func (cb *CircuitBreaker) onSuccess() {
	cb.failureCount = 0

	if cb.state == StateHalfOpen {
		cb.successCount++
		if cb.successCount >= cb.config.SuccessThreshold {
			cb.transition(StateClosed)
			cb.successCount = 0
		}
	}
}

func (cb *CircuitBreaker) onFailure() {
	cb.failureCount++
	cb.successCount = 0

	switch cb.state {
	case StateClosed:
		if cb.failureCount >= cb.config.FailureThreshold {
			cb.transition(StateOpen)
			cb.openedAt = cb.clock()
		}
	case StateHalfOpen:
		// A failed probe reopens immediately; probe progress is discarded.
		cb.transition(StateOpen)
		cb.openedAt = cb.clock()
	}
}

// transition must be called with the mutex held.
func (cb *CircuitBreaker) transition(to State) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to

	logger.GetLogger().Info("circuit breaker state change",
		zap.String("circuit", cb.name),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.Int("failure_count", cb.failureCount))

	if cb.config.OnStateChange != nil {
		cb.config.OnStateChange(cb.name, from, to)
	}
}

// GetState returns the current state.
func (cb *CircuitBreaker) GetState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Stats returns a read-only snapshot for monitoring.
func (cb *CircuitBreaker) Stats() Stats {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return Stats{
		Name:         cb.name,
		State:        cb.state,
		FailureCount: cb.failureCount,
		SuccessCount: cb.successCount,
	}
}
