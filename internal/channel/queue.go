package channel

import (
	"context"
	"sync"
)

// Queue is an unbounded FIFO shared by one or more producers and a single
// consumer. The ring grows by doubling once it reaches 70% occupancy, so a
// producer never blocks on a slow consumer.
type Queue[T any] struct {
	mu       sync.Mutex
	ring     []T
	head     int
	tail     int
	count    int
	capacity int
	closed   bool

	// ready holds at most one pending wake-up for the consumer.
	ready chan struct{}
	done  chan struct{}

	pushed  int64
	popped  int64
	resizes int
}

// NewQueue creates a queue with the given initial capacity.
func NewQueue[T any](initialCapacity int) *Queue[T] {
	if initialCapacity < 1 {
		initialCapacity = 1
	}
	return &Queue[T]{
		ring:     make([]T, initialCapacity),
		capacity: initialCapacity,
		ready:    make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// Push appends an item. Returns false if the queue is closed.
func (q *Queue[T]) Push(item T) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}

	threshold := (q.capacity * 70) / 100
	if threshold < 1 {
		threshold = 1
	}
	if q.count+1 >= threshold {
		q.grow()
	}

	q.ring[q.tail] = item
	q.tail = (q.tail + 1) % q.capacity
	q.count++
	q.pushed++
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
	return true
}

// TryPop removes the oldest item without blocking.
func (q *Queue[T]) TryPop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.popLocked()
}

// Pop blocks until an item is available, the queue is closed and drained,
// or ctx is done.
func (q *Queue[T]) Pop(ctx context.Context) (T, bool) {
	for {
		if item, ok := q.TryPop(); ok {
			return item, true
		}

		select {
		case <-q.ready:
		case <-q.done:
			// Items pushed before Close are still delivered.
			return q.TryPop()
		case <-ctx.Done():
			var zero T
			return zero, false
		}
	}
}

// Close stops accepting new items. Pending items can still be popped.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.done)
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Stats returns queue statistics.
func (q *Queue[T]) Stats() QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return QueueStats{
		Count:       q.count,
		Capacity:    q.capacity,
		TotalPushed: q.pushed,
		TotalPopped: q.popped,
		ResizeCount: q.resizes,
	}
}

// QueueStats contains queue statistics.
type QueueStats struct {
	Count       int   `json:"count"`
	Capacity    int   `json:"capacity"`
	TotalPushed int64 `json:"total_pushed"`
	TotalPopped int64 `json:"total_popped"`
	ResizeCount int   `json:"resize_count"`
}

// popLocked must be called with mu held.
func (q *Queue[T]) popLocked() (T, bool) {
	var zero T
	if q.count == 0 {
		return zero, false
	}
	item := q.ring[q.head]
	q.ring[q.head] = zero // drop reference for GC
	q.head = (q.head + 1) % q.capacity
	q.count--
	q.popped++
	return item, true
}

// grow doubles the ring. Must be called with mu held.
func (q *Queue[T]) grow() {
	next := make([]T, q.capacity*2)
	if q.count > 0 {
		if q.head < q.tail {
			copy(next, q.ring[q.head:q.tail])
		} else {
			n := copy(next, q.ring[q.head:])
			copy(next[n:], q.ring[:q.tail])
		}
	}
	q.ring = next
	q.head = 0
	q.tail = q.count
	q.capacity *= 2
	q.resizes++
}
