package database

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store. The zero value is not usable; call
// NewMemoryStore.
type MemoryStore struct {
	mu         sync.RWMutex
	entries    map[string][]byte
	quotaBytes int64
	used       int64
}

// NewMemoryStore returns an empty store. quotaBytes <= 0 means unlimited.
func NewMemoryStore(quotaBytes int64) *MemoryStore {
	return &MemoryStore{
		entries:    make(map[string][]byte),
		quotaBytes: quotaBytes,
	}
}

// Get returns a copy of the value stored under key.
func (m *MemoryStore) Get(_ context.Context, ns Namespace, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.entries[PhysicalKey(ns, key)]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

// Set stores a copy of value under key.
func (m *MemoryStore) Set(_ context.Context, ns Namespace, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	physical := PhysicalKey(ns, key)
	prev := int64(len(m.entries[physical]))
	next := m.used - prev + int64(len(value))
	if m.quotaBytes > 0 && next > m.quotaBytes {
		return &StorageError{Op: "set", Namespace: ns, Err: ErrQuotaExceeded}
	}

	v := make([]byte, len(value))
	copy(v, value)
	m.entries[physical] = v
	m.used = next
	return nil
}

// Len returns the number of stored entries across all namespaces.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
