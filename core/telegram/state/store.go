package state

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/facetbot/core/logger"
)

type entry[T any] struct {
	value    T
	lastSeen time.Time
}

// Store holds one value per chat. The map is guarded; the values are not, so callers
// must confine each value to a single goroutine (see Mailboxes).
type Store[T any] struct {
	mu    sync.RWMutex
	items map[int64]*entry[T]
	ttl   time.Duration
	now   func() time.Time
}

// NewStore returns a store whose entries expire after ttl of inactivity. A ttl <= 0
// keeps entries forever.
func NewStore[T any](ttl time.Duration) *Store[T] {
	return &Store[T]{
		items: make(map[int64]*entry[T]),
		ttl:   ttl,
		now:   time.Now,
	}
}

func (s *Store[T]) expired(e *entry[T], now time.Time) bool {
	return s.ttl > 0 && now.Sub(e.lastSeen) > s.ttl
}

// GetOrCreate returns the live value for key, creating it when missing or expired.
func (s *Store[T]) GetOrCreate(key int64, create func() T) T {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.items[key]; ok && !s.expired(e, now) {
		e.lastSeen = now
		return e.value
	}
	e := &entry[T]{value: create(), lastSeen: now}
	s.items[key] = e
	return e.value
}

// Get returns the live value for key without touching it.
func (s *Store[T]) Get(key int64) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.items[key]
	if !ok || s.expired(e, s.now()) {
		var zero T
		return zero, false
	}
	return e.value, true
}

// Delete removes key.
func (s *Store[T]) Delete(key int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
}

// Len returns the number of stored entries, expired ones included until swept.
func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Sweep drops expired entries and returns how many were removed.
func (s *Store[T]) Sweep() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for k, e := range s.items {
		if s.expired(e, now) {
			delete(s.items, k)
			removed++
		}
	}
	return removed
}

// RunJanitor sweeps every interval until ctx is done.
func (s *Store[T]) RunJanitor(ctx context.Context, every time.Duration) {
	if s.ttl <= 0 || every <= 0 {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := s.Sweep(); n > 0 {
				logger.Debug(ctx, logger.CompTG, "state.sweep",
					slog.String("status", "ok"),
					slog.Int("count", n),
				)
			}
		}
	}
}
