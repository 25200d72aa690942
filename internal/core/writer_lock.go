package core

// writer_lock.go serializes writes.
//
// Loads, index rebuilds and drops all take the single writer slot. A writer
// that cannot get the slot within maxWait fails with ErrWriterBusy. Reads
// never take the slot.
//
// On shutdown, Close refuses new writers and WaitForDrain blocks until the
// active writer finishes.

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrWriterBusy is returned when another write holds the slot past the wait
// timeout. Clients should retry after a short delay.
var ErrWriterBusy = errors.New("writer busy: another write is in progress")

// ErrWriterClosed is returned by Acquire after Close.
var ErrWriterClosed = errors.New("writer closed: shutting down")

// DefaultWriterWait is how long to wait for the slot before rejecting.
const DefaultWriterWait = 30 * time.Second

// WriterLock is a semaphore with a single slot.
type WriterLock struct {
	slot      chan struct{}
	closed    chan struct{}
	closeOnce sync.Once
	maxWait   time.Duration

	mu        sync.RWMutex
	operation string
	since     time.Time
}

// NewWriterLock creates a lock whose waiters give up after maxWait.
func NewWriterLock(maxWait time.Duration) *WriterLock {
	if maxWait <= 0 {
		maxWait = DefaultWriterWait
	}
	return &WriterLock{
		slot:    make(chan struct{}, 1),
		closed:  make(chan struct{}),
		maxWait: maxWait,
	}
}

// Acquire takes the writer slot for operation.
// The caller MUST call Release() when the write completes (use defer).
func (l *WriterLock) Acquire(ctx context.Context, operation string) error {
	if l.isClosed() {
		return ErrWriterClosed
	}

	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	select {
	case l.slot <- struct{}{}:
		if l.isClosed() {
			<-l.slot
			return ErrWriterClosed
		}
		l.hold(operation)
		return nil

	case <-l.closed:
		return ErrWriterClosed

	case <-waitCtx.Done():
		// Caller cancellation wins over our own timeout.
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrWriterBusy
	}
}

// TryAcquire takes the slot without blocking.
func (l *WriterLock) TryAcquire(operation string) bool {
	if l.isClosed() {
		return false
	}
	select {
	case l.slot <- struct{}{}:
		if l.isClosed() {
			<-l.slot
			return false
		}
		l.hold(operation)
		return true
	default:
		return false
	}
}

func (l *WriterLock) hold(operation string) {
	l.mu.Lock()
	l.operation = operation
	l.since = time.Now()
	l.mu.Unlock()
}

// Release frees the slot.
// Must be called exactly once for each successful Acquire/TryAcquire.
func (l *WriterLock) Release() {
	l.mu.Lock()
	l.operation = ""
	l.since = time.Time{}
	l.mu.Unlock()

	<-l.slot
}

// Close makes every later Acquire fail with ErrWriterClosed and wakes
// waiting writers. The active writer, if any, runs to completion.
func (l *WriterLock) Close() {
	l.closeOnce.Do(func() { close(l.closed) })
}

func (l *WriterLock) isClosed() bool {
	select {
	case <-l.closed:
		return true
	default:
		return false
	}
}

// Busy reports whether a write is in progress.
func (l *WriterLock) Busy() bool {
	return len(l.slot) > 0
}

// WaitForDrain blocks until no write is active or ctx is cancelled.
func (l *WriterLock) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if !l.Busy() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// WriterStatus is a snapshot of the lock.
type WriterStatus struct {
	Busy      bool      `json:"busy"`
	Operation string    `json:"operation,omitempty"`
	Since     time.Time `json:"since,omitzero"`
}

// Status returns the current lock state for monitoring.
func (l *WriterLock) Status() WriterStatus {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return WriterStatus{
		Busy:      l.Busy(),
		Operation: l.operation,
		Since:     l.since,
	}
}
