// Package cache provides the durable, capacity-bounded local key-value store
// drafts are cached in between sessions.
package cache

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
)

// ErrQuotaExceeded is returned by Set when the write would exceed the
// configured capacity. Callers treat it as a silent no-op.
var ErrQuotaExceeded = eris.New("cache: quota exceeded")

// Cache is a byte-oriented key-value store.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Close() error
}

// Memory is an in-process Cache bounded by total value size. A zero
// maxBytes means unbounded.
type Memory struct {
	mu       sync.RWMutex
	data     map[string][]byte
	size     int64
	maxBytes int64
}

// NewMemory creates a Memory cache.
func NewMemory(maxBytes int64) *Memory {
	return &Memory{data: make(map[string][]byte), maxBytes: maxBytes}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	next := m.size - int64(len(m.data[key])) + int64(len(value))
	if m.maxBytes > 0 && next > m.maxBytes {
		return eris.Wrapf(ErrQuotaExceeded, "set %s: %d bytes over limit %d", key, next, m.maxBytes)
	}
	m.data[key] = append([]byte(nil), value...)
	m.size = next
	return nil
}

func (m *Memory) Close() error { return nil }
