// Package kvstore provides expiring key-value stores for session state.
package kvstore

import (
	"context"
	"sync"
	"time"
)

type memoryItem struct {
	value     string
	expiresAt time.Time // zero means no expiry
}

// Memory is an in-process expiring store. State is lost on restart.
type Memory struct {
	mu    sync.Mutex
	items map[string]memoryItem
	now   func() time.Time
}

// NewMemory creates an in-memory store using the wall clock
func NewMemory() *Memory {
	return NewMemoryWithClock(time.Now)
}

// NewMemoryWithClock creates an in-memory store reading time from now
func NewMemoryWithClock(now func() time.Time) *Memory {
	return &Memory{
		items: make(map[string]memoryItem),
		now:   now,
	}
}

// Get retrieves a value; expired entries are removed and reported absent
func (m *Memory) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, exists := m.items[key]
	if !exists {
		return "", false, nil
	}

	if m.expired(item) {
		delete(m.items, key)
		return "", false, nil
	}

	return item.value, true, nil
}

// Set stores a value with TTL
func (m *Memory) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	item := memoryItem{value: value}
	if ttl > 0 {
		item.expiresAt = m.now().Add(ttl)
	}
	m.items[key] = item

	return nil
}

// PurgeExpired drops every expired entry and returns how many were removed
func (m *Memory) PurgeExpired(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, item := range m.items {
		if m.expired(item) {
			delete(m.items, key)
			removed++
		}
	}

	return removed, nil
}

// Close is a no-op
func (m *Memory) Close() error {
	return nil
}

func (m *Memory) expired(item memoryItem) bool {
	return !item.expiresAt.IsZero() && !m.now().Before(item.expiresAt)
}
