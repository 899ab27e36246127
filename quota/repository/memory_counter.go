package repository

import (
	"context"
	"sync"
	"time"
)

type window struct {
	count     int
	expiresAt time.Time
}

// MemoryCounter implements domain.Counter for a single process.
type MemoryCounter struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

func (m *MemoryCounter) Take(ctx context.Context, key string, limit int, ttl time.Duration) (int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	w, ok := m.windows[key]
	if !ok || !now.Before(w.expiresAt) {
		w = &window{expiresAt: now.Add(ttl)}
		m.windows[key] = w
	}
	if w.count >= limit {
		return w.count, false, nil
	}
	w.count++
	return w.count, true, nil
}

func (m *MemoryCounter) Peek(ctx context.Context, key string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.windows[key]
	if !ok || !m.now().Before(w.expiresAt) {
		return 0, nil
	}
	return w.count, nil
}

// Sweep drops expired windows and returns how many were removed.
func (m *MemoryCounter) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for k, w := range m.windows {
		if !now.Before(w.expiresAt) {
			delete(m.windows, k)
			removed++
		}
	}
	return removed
}
