package cache

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Provider defines the key-value operations the marker store needs. The
// SetNX primitive is what makes completion markers safe under concurrent
// re-delivery of the same experiment.
type Provider interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Del(ctx context.Context, key string) error
	Close() error
}

// ErrCacheMiss signals that a key was not found.
var ErrCacheMiss = errors.New("cache miss")

// MemoryProvider is an in-process Provider used when no external marker
// store is configured. Markers then survive only for the lifetime of the
// worker, which is acceptable for single-instance deployments.
type MemoryProvider struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	value   []byte
	expires time.Time
}

// NewMemoryProvider creates an empty in-process provider.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{entries: make(map[string]memoryEntry)}
}

func (m *MemoryProvider) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok || entry.expired() {
		delete(m.entries, key)
		return nil, ErrCacheMiss
	}
	value := make([]byte, len(entry.value))
	copy(value, entry.value)
	return value, nil
}

func (m *MemoryProvider) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = newMemoryEntry(value, ttl)
	return nil
}

func (m *MemoryProvider) SetNX(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entry, ok := m.entries[key]; ok && !entry.expired() {
		return false, nil
	}
	m.entries[key] = newMemoryEntry(value, ttl)
	return true, nil
}

func (m *MemoryProvider) Del(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *MemoryProvider) Close() error { return nil }

func newMemoryEntry(value []byte, ttl time.Duration) memoryEntry {
	entry := memoryEntry{value: make([]byte, len(value))}
	copy(entry.value, value)
	if ttl > 0 {
		entry.expires = time.Now().Add(ttl)
	}
	return entry
}

func (e memoryEntry) expired() bool {
	return !e.expires.IsZero() && time.Now().After(e.expires)
}
