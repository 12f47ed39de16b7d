package channel

import (
	"context"
)

// DefaultQueueSize is the initial capacity used by NewPair.
const DefaultQueueSize = 64

// Publisher is the write end of a channel. Publish never blocks.
type Publisher[T any] struct {
	q *Queue[T]
}

// Listener is the read end of a channel.
type Listener[T any] struct {
	q *Queue[T]
}

// NewPair creates a connected publisher and listener.
func NewPair[T any]() (*Publisher[T], *Listener[T]) {
	q := NewQueue[T](DefaultQueueSize)
	return &Publisher[T]{q: q}, &Listener[T]{q: q}
}

// Publish enqueues msg. Returns false once the channel is closed.
func (p *Publisher[T]) Publish(msg T) bool {
	return p.q.Push(msg)
}

// Close closes the channel. Messages already published are still delivered.
func (p *Publisher[T]) Close() {
	p.q.Close()
}

// Stats returns statistics for the underlying queue.
func (p *Publisher[T]) Stats() QueueStats {
	return p.q.Stats()
}

// OnMessage calls fn for each message, one at a time and in publish order,
// until ctx is done or the channel is closed and drained.
func (l *Listener[T]) OnMessage(ctx context.Context, fn func(T)) {
	for {
		msg, ok := l.Next(ctx)
		if !ok {
			return
		}
		fn(msg)
	}
}

// Next returns the next message, blocking until one is available. A message
// already queued is returned even when ctx is done.
func (l *Listener[T]) Next(ctx context.Context) (T, bool) {
	return l.q.Pop(ctx)
}
