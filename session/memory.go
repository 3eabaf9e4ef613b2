package session

import (
	"context"
	"sync"
)

// MemoryStorage is an in-process [Storage] for tests and throwaway consoles.
type MemoryStorage struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemoryStorage returns an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{data: make(map[string]string)}
}

func (m *MemoryStorage) Read(_ context.Context, keys ...string) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if v, ok := m.data[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func (m *MemoryStorage) Write(_ context.Context, b Batch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for k, v := range b.Set {
		m.data[k] = v
	}
	for _, k := range b.Delete {
		delete(m.data, k)
	}
	return nil
}

// Put stores a raw value, bypassing the codec.
func (m *MemoryStorage) Put(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
}

// Len returns the number of stored keys.
func (m *MemoryStorage) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
