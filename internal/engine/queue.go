package engine

import (
	"sync"
	"time"
)

// pollQueue is the thread-safe FIFO behind one poller.
//
// The queue is unbounded so that notifying never blocks the engine while it
// holds its mutex. Pushes come from any goroutine; Poll is expected to be
// called from the single worker draining the poller.
//
// The queue uses a channel for signaling so a blocked Poll can be woken by
// Push, Cancel and Close alike.
type pollQueue[T any] struct {
	mu        sync.Mutex
	items     []T
	cancelled bool
	closed    bool
	signal    chan struct{} // Signals a state change (buffered, size 1)
}

func newPollQueue[T any]() *pollQueue[T] {
	return &pollQueue[T]{signal: make(chan struct{}, 1)}
}

// Push appends items to the back of the queue.
// Returns false if the queue is closed.
func (q *pollQueue[T]) Push(items ...T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.items = append(q.items, items...)
	q.wake()
	return true
}

// Poll removes and returns every queued item, blocking until at least one
// is available. A pending cancel wins over queued items and is consumed by
// the call that observes it.
func (q *pollQueue[T]) Poll() ([]T, error) {
	for {
		if items, done, err := q.take(); done {
			return items, err
		}
		<-q.signal
	}
}

// PollTimeout is Poll giving up after timeout. timedOut is true when
// nothing arrived in time. A timeout <= 0 checks the queue once.
func (q *pollQueue[T]) PollTimeout(timeout time.Duration) (items []T, timedOut bool, err error) {
	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}
	for {
		if items, done, err := q.take(); done {
			return items, false, err
		}
		if deadline == nil {
			return nil, true, nil
		}
		select {
		case <-q.signal:
		case <-deadline:
			return nil, true, nil
		}
	}
}

// take returns the queue state for one poll attempt; done is false when
// there is nothing to report yet.
func (q *pollQueue[T]) take() ([]T, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	switch {
	case q.closed:
		return nil, true, ErrInvalidHandle
	case q.cancelled:
		q.cancelled = false
		return nil, true, ErrPollCancelled
	case len(q.items) > 0:
		out := q.items
		q.items = nil
		return out, true, nil
	}
	return nil, false, nil
}

// Cancel makes the current or next Poll return ErrPollCancelled.
func (q *pollQueue[T]) Cancel() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.cancelled = true
	q.wake()
}

// Len returns the number of queued items.
func (q *pollQueue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close drops queued items and makes every Poll return ErrInvalidHandle.
// Wakes any blocked waiter by closing the signal channel.
func (q *pollQueue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return // Already closed
	}
	q.closed = true
	q.items = nil
	close(q.signal)
}

// wake signals without blocking; the buffer of 1 coalesces signals.
// Caller must hold q.mu.
func (q *pollQueue[T]) wake() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}
