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
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_CreateAndGet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	s := &Saga{SagaID: "s-1", OrderID: "o-1", Status: StatusPending}
	require.NoError(t, store.Create(ctx, s))

	err := store.Create(ctx, &Saga{SagaID: "s-1"})
	assert.ErrorIs(t, err, ErrSagaExists)

	got, err := store.Get(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, "o-1", got.OrderID)

	_, err = store.Get(ctx, "s-2")
	assert.ErrorIs(t, err, ErrSagaNotFound)
}

func TestMemoryStore_GetReturnsSnapshot(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, &Saga{SagaID: "s-1", Status: StatusPending}))

	snap, err := store.Get(ctx, "s-1")
	require.NoError(t, err)

	// Mutating the snapshot must not leak into the store.
	snap.Status = StatusCompleted
	snap.Steps = append(snap.Steps, StepRecord{Step: StepConfirmOrder, Success: true})

	fresh, err := store.Get(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, fresh.Status)
	assert.Empty(t, fresh.Steps)
}

func TestMemoryStore_UpdateNotFound(t *testing.T) {
	store := NewMemoryStore()

	err := store.Update(context.Background(), "missing", func(s *Saga) error { return nil })
	assert.ErrorIs(t, err, ErrSagaNotFound)
}

func TestMemoryStore_ConcurrentUpdatesAreSerialized(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, &Saga{SagaID: "s-1", Status: StatusPending}))

	const writers = 100
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.Update(ctx, "s-1", func(s *Saga) error {
				s.Steps = append(s.Steps, StepRecord{Step: StepReserveInventory, Success: true})
				return nil
			})
		}()
	}
	wg.Wait()

	got, err := store.Get(ctx, "s-1")
	require.NoError(t, err)
	assert.Len(t, got.Steps, writers, "no appended record may be lost")
}
