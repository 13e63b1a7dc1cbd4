package ratelimit

import (
	"sync"
	"time"
)

type memoryEntry struct {
	count   int
	resetAt time.Time
}

// MemoryWindow is a small in-process fixed-window counter used while Redis
// is unreachable. It is deliberately stricter than the Redis quotas since
// each process counts in isolation.
type MemoryWindow struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	now     func() time.Time
}

func NewMemoryWindow() *MemoryWindow {
	return &MemoryWindow{
		entries: make(map[string]*memoryEntry),
		now:     time.Now,
	}
}

// Check counts one hit against key's window. Expired entries are pruned
// opportunistically on each call.
func (m *MemoryWindow) Check(key string, limit int, window time.Duration) Decision {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for k, e := range m.entries {
		if now.After(e.resetAt) {
			delete(m.entries, k)
		}
	}

	e, ok := m.entries[key]
	if !ok {
		e = &memoryEntry{resetAt: now.Add(window)}
		m.entries[key] = e
	}
	e.count++

	d := Decision{
		Limit:     limit,
		Remaining: limit - e.count,
		Reset:     e.resetAt,
		Scope:     "degraded",
		Degraded:  true,
	}
	if d.Remaining < 0 {
		d.Remaining = 0
	}
	if e.count > limit {
		d.RetryAfter = e.resetAt.Sub(now)
		return d
	}
	d.Allowed = true
	return d
}
