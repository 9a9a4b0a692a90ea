// Package memory is a process-local key-value store for development and
// tests. Its contents do not survive a restart and are not shared between
// replicas.
package memory

import (
	"context"
	"sync"
	"time"
)

// sweepInterval bounds how often Put scans for expired entries. Keys such as
// past days' quota counters are never read again, so Get alone would not
// reclaim them.
const sweepInterval = time.Minute

type entry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

type Store struct {
	mu      sync.RWMutex
	entries   map[string]entry
	now       func() time.Time
	lastSweep time.Time
}

func NewStore() *Store {
	return &Store{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// NewStoreWithClock is used by tests that need to move time forward.
func NewStoreWithClock(now func() time.Time) *Store {
	s := NewStore()
	s.now = now
	return s
}

func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}
	if !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt) {
		s.mu.Lock()
		// Re-check: a concurrent Put may have replaced the entry.
		if cur, ok := s.entries[key]; ok && cur.expiresAt.Equal(e.expiresAt) {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return nil, false, nil
	}

	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, true, nil
}

func (s *Store) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	now := s.now()
	e := entry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = now.Add(ttl)
	}

	s.mu.Lock()
	s.entries[key] = e
	if now.Sub(s.lastSweep) >= sweepInterval {
		s.sweepLocked(now)
	}
	s.mu.Unlock()
	return nil
}

func (s *Store) sweepLocked(now time.Time) {
	for k, e := range s.entries {
		if !e.expiresAt.IsZero() && !now.Before(e.expiresAt) {
			delete(s.entries, k)
		}
	}
	s.lastSweep = now
}

// Namespace returns a view of s whose keys cannot collide with other
// namespaces of the same store.
func (s *Store) Namespace(name string) *Namespace {
	return &Namespace{store: s, prefix: name + ":"}
}

type Namespace struct {
	store  *Store
	prefix string
}

func (n *Namespace) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return n.store.Get(ctx, n.prefix+key)
}

func (n *Namespace) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return n.store.Put(ctx, n.prefix+key, value, ttl)
}
