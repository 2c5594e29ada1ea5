package cache

import (
	"context"
	"sync"
)

// MemoryBackend keeps entries in a map guarded by a mutex.
type MemoryBackend[V any] struct {
	mu      sync.RWMutex
	entries map[string]Entry[V]
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend[V any]() *MemoryBackend[V] {
	return &MemoryBackend[V]{entries: make(map[string]Entry[V])}
}

func (m *MemoryBackend[V]) Load(ctx context.Context, key string) (Entry[V], bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.entries[key]
	return entry, ok, nil
}

func (m *MemoryBackend[V]) Save(ctx context.Context, key string, entry Entry[V]) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = entry
	return nil
}

func (m *MemoryBackend[V]) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}
