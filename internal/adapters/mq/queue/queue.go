// Package queue provides the bounded per-session outbox that decouples
// partition broadcasts from socket writes.
//
// Enqueue never blocks. A session whose consumer falls behind loses frames
// instead of stalling the partition that broadcasts to it.
package queue

import (
	"sync"

	"github.com/okian/hantei/pkg/metrics"
)

const defaultCapacity = 64

// Frame is one encoded outbound message.
type Frame = []byte

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a frame. It returns ErrQueueFull when the buffer is full
	// and ErrQueueClosed after Close.
	Enqueue(f Frame) error

	// Dequeue returns the channel frames are delivered on. The channel is
	// closed by Close once the remaining frames are drained.
	Dequeue() <-chan Frame

	// Len returns the current number of buffered frames.
	Len() int

	// Close stops accepting frames. It is safe to call more than once.
	Close() error

	// IsClosed returns true if the queue has been closed.
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	frames   chan Frame
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.frames = make(chan Frame, q.capacity)
	return q
}

// Enqueue adds a frame to the queue without blocking.
func (q *InMemoryQueue) Enqueue(f Frame) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.frames <- f:
		return nil
	default:
		metrics.RecordFrameDropped()
		return ErrQueueFull
	}
}

// Dequeue returns the receive side of the buffer.
func (q *InMemoryQueue) Dequeue() <-chan Frame {
	return q.frames
}

// Len returns the current number of buffered frames.
func (q *InMemoryQueue) Len() int {
	return len(q.frames)
}

// Capacity returns the buffer size.
func (q *InMemoryQueue) Capacity() int {
	return q.capacity
}

// Close stops the queue. Frames already buffered stay readable.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.frames)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
