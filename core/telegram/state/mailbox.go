package state

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/m3rciful/facetbot/core/logger"
)

var (
	// ErrMailboxFull is returned when a chat already has the maximum number of queued jobs.
	ErrMailboxFull = errors.New("state: mailbox full")
	// ErrMailboxesClosed is returned after Close.
	ErrMailboxesClosed = errors.New("state: mailboxes closed")
)

// DefaultMailboxSize bounds the pending jobs of a single chat.
const DefaultMailboxSize = 16

type mailbox struct {
	jobs []func()
}

// Mailboxes runs jobs in FIFO order per key with at most one job in flight per key.
// Keys are independent: each active key gets its own goroutine, which exits once its
// queue is drained.
type Mailboxes struct {
	mu     sync.Mutex
	boxes  map[int64]*mailbox
	size   int
	closed bool
	wg     sync.WaitGroup
}

// NewMailboxes returns mailboxes holding at most size pending jobs per key.
func NewMailboxes(size int) *Mailboxes {
	if size <= 0 {
		size = DefaultMailboxSize
	}
	return &Mailboxes{boxes: make(map[int64]*mailbox), size: size}
}

// Submit queues job for key.
func (m *Mailboxes) Submit(key int64, job func()) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrMailboxesClosed
	}
	box, ok := m.boxes[key]
	if !ok {
		box = &mailbox{}
		m.boxes[key] = box
		m.wg.Add(1)
		go m.drain(key, box)
	}
	if len(box.jobs) >= m.size {
		m.mu.Unlock()
		return fmt.Errorf("%w: key %d", ErrMailboxFull, key)
	}
	box.jobs = append(box.jobs, job)
	m.mu.Unlock()
	return nil
}

func (m *Mailboxes) drain(key int64, box *mailbox) {
	defer m.wg.Done()
	for {
		m.mu.Lock()
		if len(box.jobs) == 0 {
			delete(m.boxes, key)
			m.mu.Unlock()
			return
		}
		job := box.jobs[0]
		box.jobs[0] = nil
		box.jobs = box.jobs[1:]
		m.mu.Unlock()

		m.run(key, job)
	}
}

func (m *Mailboxes) run(key int64, job func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error(context.Background(), logger.CompTG, "state.mailbox.panic",
				slog.String("status", "fail"),
				slog.Int64("chat_id", key),
				slog.Any("err", r),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()
	job()
}

// Active returns the number of keys with queued or running jobs.
func (m *Mailboxes) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.boxes)
}

// Close stops accepting jobs and waits for queued ones to finish or ctx to end.
func (m *Mailboxes) Close(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
