package state

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store. Records live until deleted.
type MemoryStore[T any] struct {
	mu      sync.RWMutex
	records map[Key]T
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore[T any]() *MemoryStore[T] {
	return &MemoryStore[T]{records: make(map[Key]T)}
}

// Get returns a copy of the record stored under key.
func (m *MemoryStore[T]) Get(_ context.Context, key Key) (T, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.records[key]
	return v, ok, nil
}

// Set creates or overwrites the record for key.
func (m *MemoryStore[T]) Set(_ context.Context, key Key, value T) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[key] = value
	return nil
}

// Delete removes the record for key.
func (m *MemoryStore[T]) Delete(_ context.Context, key Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, key)
	return nil
}

// Len reports the number of stored records.
func (m *MemoryStore[T]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// Clear drops every record, used on shutdown.
func (m *MemoryStore[T]) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.records)
}
