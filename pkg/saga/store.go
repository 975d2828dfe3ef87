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
	"sync"
	"time"
)

var (
	// ErrSagaNotFound indicates the saga id is not present in the store.
	ErrSagaNotFound = errors.New("saga not found")

	// ErrSagaExists indicates a Create collided with an existing id.
	ErrSagaExists = errors.New("saga already exists")
)

// Store holds saga instances keyed by saga id. Mutations to one saga are
// serialized relative to each other; the contract is written so a durable,
// key-addressable implementation with conditional updates can replace the
// in-memory one without changing the coordinator.
type Store interface {
	// Create inserts a new saga.
	Create(ctx context.Context, s *Saga) error

	// Get returns a deep-copied snapshot, or ErrSagaNotFound.
	Get(ctx context.Context, sagaID string) (*Saga, error)

	// Update applies fn to the stored saga under that saga's exclusive
	// lock. fn runs with other mutations of the same saga excluded;
	// different sagas never block each other.
	Update(ctx context.Context, sagaID string, fn func(s *Saga) error) error
}

// memoryStore is the reference in-memory ledger. All saga state is lost on
// restart and there is no cross-instance consistency; production
// deployments substitute a durable Store.
type memoryStore struct {
	mu    sync.RWMutex
	sagas map[string]*sagaEntry
}

// sagaEntry pairs a saga with its per-saga mutation lock.
type sagaEntry struct {
	mu   sync.Mutex
	saga *Saga
}

// NewMemoryStore creates an empty in-memory saga store.
func NewMemoryStore() Store {
	return &memoryStore{sagas: make(map[string]*sagaEntry)}
}

func (m *memoryStore) Create(_ context.Context, s *Saga) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sagas[s.SagaID]; ok {
		return ErrSagaExists
	}
	m.sagas[s.SagaID] = &sagaEntry{saga: s.clone()}
	return nil
}

func (m *memoryStore) Get(_ context.Context, sagaID string) (*Saga, error) {
	m.mu.RLock()
	entry, ok := m.sagas[sagaID]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrSagaNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.saga.clone(), nil
}

func (m *memoryStore) Update(_ context.Context, sagaID string, fn func(s *Saga) error) error {
	m.mu.RLock()
	entry, ok := m.sagas[sagaID]
	m.mu.RUnlock()
	if !ok {
		return ErrSagaNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if err := fn(entry.saga); err != nil {
		return err
	}
	entry.saga.UpdatedAt = time.Now().UTC()
	return nil
}
