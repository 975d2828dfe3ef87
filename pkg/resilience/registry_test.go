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
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_GetBreakerReturnsSameInstance(t *testing.T) {
	registry := NewRegistry(nil)

	first := registry.GetBreaker("payments")
	second := registry.GetBreaker("payments")
	assert.Same(t, first, second)

	other := registry.GetBreaker("inventory")
	assert.NotSame(t, first, other)
}

func TestRegistry_FirstConfigWins(t *testing.T) {
	registry := NewRegistry(nil)

	first := registry.GetBreaker("payments", Config{
		FailureThreshold: 1,
		RecoveryTimeout:  time.Second,
		SuccessThreshold: 1,
	})

	// Later configuration for the same name is ignored.
	second := registry.GetBreaker("payments", Config{
		FailureThreshold: 99,
		RecoveryTimeout:  time.Hour,
		SuccessThreshold: 99,
	})
	require.Same(t, first, second)

	_ = second.Execute(context.Background(), func() error { return errDownstream })
	assert.Equal(t, StateOpen, second.GetState())
}

func TestRegistry_ConcurrentGetOrCreate(t *testing.T) {
	registry := NewRegistry(nil)

	const callers = 50
	instances := make([]*CircuitBreaker, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			instances[i] = registry.GetBreaker("users")
		}(i)
	}
	wg.Wait()

	for i := 1; i < callers; i++ {
		assert.Same(t, instances[0], instances[i])
	}
}

func TestRegistry_InvalidConfigFallsBackToDefaults(t *testing.T) {
	registry := NewRegistry(nil)

	cb := registry.GetBreaker("broken", Config{FailureThreshold: -1})
	require.NotNil(t, cb)
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestRegistry_Snapshots(t *testing.T) {
	registry := NewRegistry(nil)
	registry.GetBreaker("users")
	registry.GetBreaker("inventory")
	registry.GetBreaker("payments")

	snaps := registry.Snapshots()
	require.Len(t, snaps, 3)
	assert.Equal(t, "inventory", snaps[0].Name)
	assert.Equal(t, "payments", snaps[1].Name)
	assert.Equal(t, "users", snaps[2].Name)
	for _, s := range snaps {
		assert.Equal(t, StateClosed, s.State)
	}
}

func TestExecutor_Do(t *testing.T) {
	registry := NewRegistry(nil)
	executor := NewExecutor(registry, nil)

	ctx := context.Background()
	require.NoError(t, executor.Do(ctx, "users", func() error { return nil }))

	err := executor.Do(ctx, "users", func() error { return errDownstream })
	assert.ErrorIs(t, err, errDownstream)
	assert.Equal(t, 1, registry.GetBreaker("users").Stats().FailureCount)
}

func TestExecutor_Call(t *testing.T) {
	registry := NewRegistry(nil)
	executor := NewExecutor(registry, nil)

	cfg := Config{FailureThreshold: 1, RecoveryTimeout: time.Minute, SuccessThreshold: 1}

	got, err := Call(context.Background(), executor, "users", func() (int, error) {
		return 42, nil
	}, cfg)
	require.NoError(t, err)
	assert.Equal(t, 42, got)

	_, err = Call(context.Background(), executor, "users", func() (int, error) {
		return 0, errDownstream
	})
	require.ErrorIs(t, err, errDownstream)

	// The breaker opened on that single failure; the next call fast-fails.
	invoked := false
	_, err = Call(context.Background(), executor, "users", func() (int, error) {
		invoked = true
		return 0, nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, invoked)
}
