package session

import (
	"context"
	"errors"
	"sync"
)

// ErrKeyNotFound is returned by KeySpace.Get for absent keys
var ErrKeyNotFound = errors.New("key not found")

// KeySpace is a flat string key/value store.
// Reads and writes are not synchronized across callers: a read followed by a
// write may overwrite a concurrent writer.
type KeySpace interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// MemoryKeySpace is an in-process KeySpace. Thread-safe.
type MemoryKeySpace struct {
	values map[string]string
	mu     sync.RWMutex
}

// NewMemoryKeySpace creates an empty in-memory key space
func NewMemoryKeySpace() *MemoryKeySpace {
	return &MemoryKeySpace{values: make(map[string]string)}
}

// Get returns the value stored under key
func (m *MemoryKeySpace) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.values[key]
	if !ok {
		return "", ErrKeyNotFound
	}
	return v, nil
}

// Set stores value under key
func (m *MemoryKeySpace) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.values[key] = value
	return nil
}

// Len returns the number of stored keys
func (m *MemoryKeySpace) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.values)
}
