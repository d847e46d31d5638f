package store

import (
	"context"
	"sync"
	"time"
)

// Memory is a thread-safe in-process Store.
type Memory struct {
	mu     sync.RWMutex
	counts map[string]int
	events []Event // oldest first, at most MaxHistory
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{counts: make(map[string]int)}
}

func (m *Memory) LoadCounts(context.Context) (map[string]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]int, len(m.counts))
	for k, v := range m.counts {
		out[k] = v
	}
	return out, nil
}

func (m *Memory) SaveCount(_ context.Context, signal string, count int, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[signal] = count
	return nil
}

func (m *Memory) AppendEvent(_ context.Context, e Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	if len(m.events) > MaxHistory {
		m.events = m.events[len(m.events)-MaxHistory:]
	}
	return nil
}

func (m *Memory) Events(_ context.Context, limit int) ([]Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit <= 0 || limit > len(m.events) {
		limit = len(m.events)
	}
	out := make([]Event, 0, limit)
	for i := len(m.events) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.events[i])
	}
	return out, nil
}

func (m *Memory) Close() error { return nil }
