// Package views counts how often each catalog leaf record is opened.
package views

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
)

// ErrUnknownBackend is returned by Open for an unsupported backend name.
var ErrUnknownBackend = errors.New("views: unknown backend")

// Stat is the view count of one record.
type Stat struct {
	ID    int64  `db:"id"`
	Label string `db:"label"`
	Views int64  `db:"views"`
}

// Counter increments and reports view counts. Increments for the same id are
// serialized by the implementation; different ids never block each other.
type Counter interface {
	Increment(ctx context.Context, id int64) error
	Top(ctx context.Context, n int) ([]Stat, error)
}

// MemoryCounter keeps counts in process memory.
type MemoryCounter struct {
	counts sync.Map // int64 -> *atomic.Int64
}

// NewMemoryCounter returns an empty counter.
func NewMemoryCounter() *MemoryCounter { return &MemoryCounter{} }

// Increment adds one view to id.
func (m *MemoryCounter) Increment(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("views: increment %d: %w", id, err)
	}
	v, _ := m.counts.LoadOrStore(id, new(atomic.Int64))
	v.(*atomic.Int64).Add(1)
	return nil
}

// Count returns the current count of id.
func (m *MemoryCounter) Count(id int64) int64 {
	v, ok := m.counts.Load(id)
	if !ok {
		return 0
	}
	return v.(*atomic.Int64).Load()
}

// Top returns the n most viewed ids, highest first.
func (m *MemoryCounter) Top(_ context.Context, n int) ([]Stat, error) {
	var out []Stat
	m.counts.Range(func(k, v any) bool {
		out = append(out, Stat{ID: k.(int64), Views: v.(*atomic.Int64).Load()})
		return true
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Views != out[j].Views {
			return out[i].Views > out[j].Views
		}
		return out[i].ID < out[j].ID
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out, nil
}
