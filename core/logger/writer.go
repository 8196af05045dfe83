package logger

import (
	"bufio"
	"errors"
	"io"
	"log/slog"
	"sync"
)

type sink struct {
	w   *bufio.Writer
	min slog.Level
}

type entry struct {
	level slog.Level
	line  []byte
}

// asyncWriter fans lines out to several sinks from one goroutine. Each sink
// only receives lines at or above its own minimum level.
type asyncWriter struct {
	queue    chan entry
	flushReq chan chan error
	done     chan struct{}
	once     sync.Once

	mu    sync.Mutex
	sinks []sink
	err   error
}

func newAsyncWriter() *asyncWriter {
	aw := &asyncWriter{
		queue:    make(chan entry, 256),
		flushReq: make(chan chan error),
		done:     make(chan struct{}),
	}
	go aw.loop()
	return aw
}

// attach registers dst for lines at or above min.
func (w *asyncWriter) attach(dst io.Writer, min slog.Level) *asyncWriter {
	if dst == nil {
		return w
	}
	w.mu.Lock()
	w.sinks = append(w.sinks, sink{w: bufio.NewWriterSize(dst, 64*1024), min: min})
	w.mu.Unlock()
	return w
}

func (w *asyncWriter) loop() {
	for {
		select {
		case e, ok := <-w.queue:
			if !ok {
				_ = w.flushAll()
				close(w.done)
				return
			}
			w.setErr(w.writeAll(e))
		case ack := <-w.flushReq:
			ack <- w.flushAll()
		}
	}
}

// Write queues a copy of p. It blocks when the queue is full rather than drop lines.
func (w *asyncWriter) Write(level slog.Level, p []byte) error {
	if err := w.getErr(); err != nil {
		return err
	}
	if len(p) == 0 {
		return nil
	}
	w.queue <- entry{level: level, line: append([]byte(nil), p...)}
	return nil
}

// Flush blocks until every queued line reached the sinks.
func (w *asyncWriter) Flush() error {
	ack := make(chan error, 1)
	select {
	case w.flushReq <- ack:
		return errors.Join(<-ack, w.getErr())
	case <-w.done:
		return w.getErr()
	}
}

// Close drains the queue and returns the first write error.
func (w *asyncWriter) Close() error {
	w.once.Do(func() { close(w.queue) })
	<-w.done
	return w.getErr()
}

func (w *asyncWriter) writeAll(e entry) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, s := range w.sinks {
		if e.level < s.min {
			continue
		}
		if _, err := s.w.Write(e.line); err != nil {
			return err
		}
		if err := s.w.Flush(); err != nil {
			return err
		}
	}
	return nil
}

func (w *asyncWriter) flushAll() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	var errs []error
	for _, s := range w.sinks {
		errs = append(errs, s.w.Flush())
	}
	return errors.Join(errs...)
}

func (w *asyncWriter) getErr() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

func (w *asyncWriter) setErr(err error) {
	if err == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err == nil {
		w.err = err
	}
}
