// Package worker drains outbound frame queues into client connections.
//
// Each connection gets one Writer so that a slow peer only ever stalls its
// own goroutine.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/hantei/internal/adapters/mq/queue"
	"github.com/okian/hantei/pkg/logger"
	"github.com/okian/hantei/pkg/metrics"
)

// Queue defines how writers receive frames.
type Queue interface {
	Dequeue() <-chan queue.Frame
}

// Sink writes one frame to the peer.
type Sink interface {
	WriteFrame(frame []byte) error
}

// Writer moves frames from a Queue to a Sink until the queue closes.
type Writer struct {
	queue Queue
	sink  Sink
	name  string

	// Logging
	logger logger.Logger
}

// NewWriter creates a new writer with configuration options.
func NewWriter(q Queue, sink Sink, opts ...Option) *Writer {
	w := &Writer{
		queue: q,
		sink:  sink,
		name:  "writer",
	}

	for _, opt := range opts {
		opt(w)
	}

	if w.logger == nil {
		w.logger = logger.Get().Named(w.name)
	}
	return w
}

// Run writes frames until the queue is closed and drained, ctx is cancelled
// or a write fails. A drained queue returns nil.
func (w *Writer) Run(ctx context.Context) error {
	frames := w.queue.Dequeue()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frame, ok := <-frames:
			if !ok {
				return nil
			}
			if err := w.write(frame); err != nil {
				w.logger.Debug(ctx, "write failed", logger.Error(err))
				return err
			}
		}
	}
}

func (w *Writer) write(frame []byte) error {
	start := time.Now()
	if err := w.sink.WriteFrame(frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	metrics.RecordFrameSent(float64(time.Since(start).Microseconds()) / 1000)
	return nil
}
