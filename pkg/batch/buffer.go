// Package batch coalesces high-frequency messages into batches bounded by
// a time window and a maximum size.
package batch

import (
	"sync"
	"time"
)

// Defaults for the comment pipeline.
const (
	DefaultWindow  = 100 * time.Millisecond
	DefaultMaxSize = 10
)

// Item is one queued message and the account it came from.
type Item[T any] struct {
	AccountID string
	Message   T
}

// Handler receives a non-empty batch in insertion order.
// It must not call Flush on the same buffer.
type Handler[T any] func(batch []Item[T])

// Option configures a Buffer.
type Option func(*settings)

type settings struct {
	window  time.Duration
	maxSize int
}

// WithWindow sets how long the first queued message may wait before a flush.
func WithWindow(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.window = d
		}
	}
}

// WithMaxSize sets the queue length that triggers an immediate flush.
func WithMaxSize(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.maxSize = n
		}
	}
}

// Buffer queues messages and hands them to a Handler in batches.
// At most one flush timer is outstanding at a time.
type Buffer[T any] struct {
	mu    sync.Mutex
	queue []Item[T]
	timer *time.Timer
	gen   uint64 // bumped whenever the outstanding timer is invalidated

	// flushMu serializes deliveries so batches reach the handler in order.
	flushMu sync.Mutex

	window  time.Duration
	maxSize int
	handler Handler[T]
}

// NewBuffer creates a buffer that delivers to handler.
func NewBuffer[T any](handler Handler[T], opts ...Option) *Buffer[T] {
	s := settings{window: DefaultWindow, maxSize: DefaultMaxSize}
	for _, opt := range opts {
		opt(&s)
	}
	return &Buffer[T]{
		window:  s.window,
		maxSize: s.maxSize,
		handler: handler,
	}
}

// Add queues a message. Reaching the size threshold flushes synchronously,
// otherwise a flush is scheduled one window after the first queued message.
func (b *Buffer[T]) Add(accountID string, msg T) {
	b.mu.Lock()
	b.queue = append(b.queue, Item[T]{AccountID: accountID, Message: msg})
	if len(b.queue) >= b.maxSize {
		b.mu.Unlock()
		b.Flush()
		return
	}
	if b.timer == nil {
		b.gen++
		gen := b.gen
		b.timer = time.AfterFunc(b.window, func() { b.flushTimer(gen) })
	}
	b.mu.Unlock()
}

// Flush delivers everything queued now. It never calls the handler with an empty batch.
func (b *Buffer[T]) Flush() {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	b.mu.Lock()
	batch := b.takeLocked()
	b.mu.Unlock()

	b.deliver(batch)
}

func (b *Buffer[T]) flushTimer(gen uint64) {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	b.mu.Lock()
	if gen != b.gen {
		// Superseded by a size flush, an explicit Flush or Clear
		b.mu.Unlock()
		return
	}
	batch := b.takeLocked()
	b.mu.Unlock()

	b.deliver(batch)
}

// takeLocked cancels the outstanding timer and empties the queue.
func (b *Buffer[T]) takeLocked() []Item[T] {
	b.stopTimerLocked()
	batch := b.queue
	b.queue = nil
	return batch
}

func (b *Buffer[T]) stopTimerLocked() {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.gen++
}

func (b *Buffer[T]) deliver(batch []Item[T]) {
	if len(batch) == 0 || b.handler == nil {
		return
	}
	b.handler(batch)
}

// Clear cancels the outstanding timer and drops the queue without delivering it.
func (b *Buffer[T]) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopTimerLocked()
	b.queue = nil
}

// Len returns the number of queued messages.
func (b *Buffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}
