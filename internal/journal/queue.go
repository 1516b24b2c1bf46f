package journal

import (
	"errors"
	"sync"
)

// Errors
var (
	ErrQueueClosed = errors.New("queue closed")
	ErrQueueFull   = errors.New("queue full")
)

// Queue is a thread-safe FIFO ring that doubles its capacity when it reaches
// 70% full, up to an optional limit.
type Queue[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	ring   []T
	head   int
	size   int
	limit  int // 0 means unbounded
	closed bool

	pushed  int64
	popped  int64
	rejects int64
	grows   int
}

// QueueStats contains queue statistics.
type QueueStats struct {
	Len      int
	Capacity int
	Pushed   int64
	Popped   int64
	Rejected int64
	Grows    int
}

// NewQueue creates a queue with the given initial capacity. A positive limit
// caps the number of queued items.
func NewQueue[T any](initial, limit int) *Queue[T] {
	if initial < 1 {
		initial = 1
	}
	if limit > 0 && initial > limit {
		initial = limit
	}
	q := &Queue[T]{
		ring:  make([]T, initial),
		limit: limit,
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends an item.
func (q *Queue[T]) Push(item T) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}
	if q.limit > 0 && q.size >= q.limit {
		q.rejects++
		return ErrQueueFull
	}

	threshold := max(len(q.ring)*70/100, 1)
	if q.size+1 >= threshold {
		q.grow()
	}

	q.ring[(q.head+q.size)%len(q.ring)] = item
	q.size++
	q.pushed++

	q.cond.Signal()
	return nil
}

// Pop removes the oldest item, blocking until one is available. It returns
// false once the queue is closed and empty.
func (q *Queue[T]) Pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.size == 0 && !q.closed {
		q.cond.Wait()
	}
	if q.size == 0 {
		var zero T
		return zero, false
	}
	return q.take(), true
}

// TryPop removes the oldest item without blocking.
func (q *Queue[T]) TryPop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.size == 0 {
		var zero T
		return zero, false
	}
	return q.take(), true
}

// Drain removes up to n items (all when n <= 0) in FIFO order.
func (q *Queue[T]) Drain(n int) []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.size == 0 {
		return nil
	}
	if n <= 0 || n > q.size {
		n = q.size
	}

	out := make([]T, n)
	for i := range out {
		out[i] = q.take()
	}
	return out
}

// Close stops accepting items and wakes blocked Pop calls. Queued items stay
// available.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.cond.Broadcast()
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

// Stats returns queue statistics.
func (q *Queue[T]) Stats() QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return QueueStats{
		Len:      q.size,
		Capacity: len(q.ring),
		Pushed:   q.pushed,
		Popped:   q.popped,
		Rejected: q.rejects,
		Grows:    q.grows,
	}
}

// take must be called with the lock held and size > 0.
func (q *Queue[T]) take() T {
	var zero T
	item := q.ring[q.head]
	q.ring[q.head] = zero
	q.head = (q.head + 1) % len(q.ring)
	q.size--
	q.popped++
	return item
}

// grow doubles the ring, unwrapping it so head is 0. Must be called with the
// lock held.
func (q *Queue[T]) grow() {
	next := len(q.ring) * 2
	if q.limit > 0 && next > q.limit {
		next = q.limit
	}
	if next <= len(q.ring) {
		return
	}

	ring := make([]T, next)
	n := copy(ring, q.ring[q.head:min(q.head+q.size, len(q.ring))])
	if n < q.size {
		copy(ring[n:], q.ring[:q.size-n])
	}

	q.ring = ring
	q.head = 0
	q.grows++
}
