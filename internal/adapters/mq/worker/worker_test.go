package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	queue "github.com/okian/hantei/internal/adapters/mq/queue"
	worker "github.com/okian/hantei/internal/adapters/mq/worker"
	logging "github.com/okian/hantei/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

type mockSink struct {
	mu      sync.Mutex
	written []string
	failOn  string
}

func (m *mockSink) WriteFrame(frame []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn != "" && string(frame) == m.failOn {
		return errors.New("connection reset")
	}
	m.written = append(m.written, string(frame))
	return nil
}

func (m *mockSink) frames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.written...)
}

func TestWriter(t *testing.T) {
	if err := logging.Init(); err != nil {
		t.Fatal(err)
	}

	convey.Convey("Given a writer over an outbox", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(8))
		sink := &mockSink{}
		w := worker.NewWriter(q, sink, worker.WithName("writer-test"))

		convey.Convey("When frames are queued and the outbox is closed", func() {
			convey.So(q.Enqueue(queue.Frame("one")), convey.ShouldBeNil)
			convey.So(q.Enqueue(queue.Frame("two")), convey.ShouldBeNil)
			convey.So(q.Close(), convey.ShouldBeNil)

			err := w.Run(context.Background())

			convey.Convey("Then every frame should be written in order before Run returns", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(sink.frames(), convey.ShouldResemble, []string{"one", "two"})
			})
		})

		convey.Convey("When a write fails", func() {
			sink.failOn = "bad"
			_ = q.Enqueue(queue.Frame("good"))
			_ = q.Enqueue(queue.Frame("bad"))
			_ = q.Enqueue(queue.Frame("never"))

			err := w.Run(context.Background())

			convey.Convey("Then Run should stop with the error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(sink.frames(), convey.ShouldResemble, []string{"good"})
			})
		})

		convey.Convey("When the context is cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			convey.Convey("Then Run should return the context error", func() {
				convey.So(errors.Is(w.Run(ctx), context.Canceled), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the context is cancelled while Run waits for frames", func() {
			ctx, cancel := context.WithCancel(context.Background())
			result := make(chan error, 1)
			go func() { result <- w.Run(ctx) }()
			time.Sleep(10 * time.Millisecond)
			cancel()

			convey.Convey("Then Run should return without writing", func() {
				select {
				case err := <-result:
					convey.So(errors.Is(err, context.Canceled), convey.ShouldBeTrue)
				case <-time.After(time.Second):
					t.Fatal("Run did not return after cancel")
				}
				convey.So(sink.frames(), convey.ShouldBeEmpty)
			})
		})
	})
}
