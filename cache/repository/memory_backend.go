package repository

import (
	"context"
	"path"
	"sync"
	"time"

	"github.com/AzielCF/az-admin/cache/domain"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryBackend implements domain.Backend in process memory. It is used when
// Valkey is disabled and as the backend in tests.
type MemoryBackend struct {
	mu    sync.RWMutex
	store map[string]memoryEntry
	now   func() time.Time
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		store: make(map[string]memoryEntry),
		now:   time.Now,
	}
}

// SetClock overrides the time source used for TTL checks.
func (m *MemoryBackend) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *MemoryBackend) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	e, ok := m.store[key]
	now := m.now()
	m.mu.RUnlock()

	if !ok {
		return nil, domain.ErrMiss
	}
	if !e.expiresAt.IsZero() && !now.Before(e.expiresAt) {
		m.mu.Lock()
		if cur, still := m.store[key]; still && cur.expiresAt.Equal(e.expiresAt) {
			delete(m.store, key)
		}
		m.mu.Unlock()
		return nil, domain.ErrMiss
	}

	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, nil
}

func (m *MemoryBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := make([]byte, len(value))
	copy(stored, value)

	e := memoryEntry{value: stored}
	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	}
	m.store[key] = e
	return nil
}

func (m *MemoryBackend) Keys(ctx context.Context, pattern string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	var keys []string
	for k, e := range m.store {
		if !e.expiresAt.IsZero() && !now.Before(e.expiresAt) {
			delete(m.store, k)
			continue
		}
		ok, err := path.Match(pattern, k)
		if err != nil {
			return nil, err
		}
		if ok {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (m *MemoryBackend) DeleteMany(ctx context.Context, keys ...string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for _, k := range keys {
		if _, ok := m.store[k]; ok {
			delete(m.store, k)
			n++
		}
	}
	return n, nil
}

func (m *MemoryBackend) Ping(ctx context.Context) error {
	return nil
}

// Len returns the number of stored entries, expired or not.
func (m *MemoryBackend) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.store)
}
