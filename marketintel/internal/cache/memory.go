package cache

import (
	"context"
	"sync"
	"time"
)

// DefaultMaxEntries bounds a Memory cache created without WithMaxEntries.
const DefaultMaxEntries = 10000

// Memory is an in-process Cache for single-node deployments without Redis.
// It holds at most maxEntries keys: a write that would exceed the bound
// first sweeps expired entries, then evicts the entry closest to expiry.
type Memory struct {
	mu         sync.Mutex
	entries    map[string]memoryEntry
	maxEntries int
	now        func() time.Time
}

type memoryEntry struct {
	value   string
	expires time.Time // zero: never
}

// MemoryOption configures a Memory cache.
type MemoryOption func(*Memory)

// WithMaxEntries caps the number of keys held. n <= 0 keeps the default.
func WithMaxEntries(n int) MemoryOption {
	return func(m *Memory) {
		if n > 0 {
			m.maxEntries = n
		}
	}
}

// NewMemory creates an empty in-process cache.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{entries: make(map[string]memoryEntry), maxEntries: DefaultMaxEntries, now: time.Now}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Get implements Cache. Expired entries are dropped on read.
func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return "", false, nil
	}
	if e.expired(m.now()) {
		delete(m.entries, key)
		return "", false, nil
	}
	return e.value, true, nil
}

// Set implements Cache.
func (m *Memory) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if _, ok := m.entries[key]; !ok && len(m.entries) >= m.maxEntries {
		m.makeRoom(now)
	}
	e := memoryEntry{value: value}
	if ttl > 0 {
		e.expires = now.Add(ttl)
	}
	m.entries[key] = e
	return nil
}

// Delete implements Cache.
func (m *Memory) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.entries, k)
	}
	return nil
}

// Len reports the number of keys held, expired or not.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// makeRoom drops every expired entry; if none were expired it evicts the
// entry that expires soonest, never-expiring entries last. Caller holds mu.
func (m *Memory) makeRoom(now time.Time) {
	for k, e := range m.entries {
		if e.expired(now) {
			delete(m.entries, k)
		}
	}
	if len(m.entries) < m.maxEntries {
		return
	}
	var victim string
	var victimExp time.Time
	found := false
	for k, e := range m.entries {
		switch {
		case !found:
		case e.expires.IsZero():
			continue
		case !victimExp.IsZero() && !e.expires.Before(victimExp):
			continue
		}
		victim, victimExp, found = k, e.expires, true
	}
	if found {
		delete(m.entries, victim)
	}
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expires.IsZero() && !now.Before(e.expires)
}
