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

package resilience

import (
	"context"
	"errors"
)

// Executor is the thin adapter business code uses to run an outbound call
// through the circuit breaker named after the downstream dependency. It is
// what the gateway and the inter-service clients hold instead of touching
// the registry directly.
type Executor struct {
	registry *Registry
	metrics  *Metrics
}

// NewExecutor creates an executor over the given registry.
func NewExecutor(registry *Registry, metrics *Metrics) *Executor {
	return &Executor{registry: registry, metrics: metrics}
}

// Registry exposes the underlying registry for the monitoring endpoints.
func (e *Executor) Registry() *Registry {
	return e.registry
}

// Do runs the operation through the breaker for the named dependency,
// creating the breaker with the supplied (or default) configuration on
// first use.
func (e *Executor) Do(ctx context.Context, name string, operation func() error, config ...Config) error {
	cb := e.registry.GetBreaker(name, config...)
	err := cb.Execute(ctx, operation)
	e.record(name, err)
	return err
}

// Call runs an operation returning a value through the named breaker.
func Call[T any](ctx context.Context, e *Executor, name string, operation func() (T, error), config ...Config) (T, error) {
	cb := e.registry.GetBreaker(name, config...)
	result, err := ExecuteWithResult(ctx, cb, operation)
	e.record(name, err)
	return result, err
}

func (e *Executor) record(name string, err error) {
	if e.metrics == nil {
		return
	}
	if errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrProbeInFlight) {
		e.metrics.RecordRejection(name)
		return
	}
	e.metrics.RecordRequest(name)
}
