// Package ws serves the referee and display protocol over websockets.
package ws

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/okian/hantei/internal/adapters/mq/queue"
	"github.com/okian/hantei/internal/adapters/mq/worker"
	service "github.com/okian/hantei/internal/app"
	"github.com/okian/hantei/pkg/logger"
	"github.com/okian/hantei/pkg/metrics"
)

// Default transport limits.
const (
	defaultReadLimit    = 4096
	defaultWriteTimeout = 5 * time.Second
	defaultOutboxSize   = 64
	defaultRate         = 20
	defaultBurst        = 40
	bufferSize          = 1024
)

// Handler upgrades HTTP requests and runs one session per connection.
type Handler struct {
	svc      *service.Service
	upgrader websocket.Upgrader

	readLimit    int64
	writeTimeout time.Duration
	outboxSize   int
	rate         rate.Limit
	burst        int

	logger logger.Logger
}

// NewHandler creates a websocket handler bound to svc.
func NewHandler(svc *service.Service, opts ...Option) *Handler {
	h := &Handler{
		svc: svc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  bufferSize,
			WriteBufferSize: bufferSize,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		readLimit:    defaultReadLimit,
		writeTimeout: defaultWriteTimeout,
		outboxSize:   defaultOutboxSize,
		rate:         defaultRate,
		burst:        defaultBurst,
	}

	for _, opt := range opts {
		opt(h)
	}

	if h.logger == nil {
		h.logger = logger.Get().Named("ws")
	}
	return h
}

// ServeHTTP implements http.Handler. It blocks for the connection lifetime.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	wsConn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error.
		h.logger.Debug(r.Context(), "upgrade failed",
			logger.String("remote", r.RemoteAddr),
			logger.Error(err))
		return
	}
	h.serve(r.Context(), wsConn, r.RemoteAddr)
}

func (h *Handler) serve(ctx context.Context, wsConn *websocket.Conn, remote string) {
	c := &conn{
		ws:           wsConn,
		outbox:       queue.NewInMemoryQueue(queue.WithCapacity(h.outboxSize)),
		writeTimeout: h.writeTimeout,
	}
	sess := h.svc.Connect(ctx, c, remote)
	log := h.logger.With(logger.String("session", sess.ID()))

	wsConn.SetReadLimit(h.readLimit)
	wsConn.SetPongHandler(func(string) error {
		h.svc.MarkAlive(sess)
		return nil
	})

	writer := worker.NewWriter(c.outbox, c, worker.WithLogger(log))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := writer.Run(gctx)
		if err == nil {
			c.sayGoodbye()
		}
		_ = wsConn.Close()
		return err
	})
	g.Go(func() error {
		defer func() { _ = c.Close() }()
		return h.readLoop(gctx, wsConn, sess, log)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Debug(ctx, "connection ended", logger.Error(err))
	}
	h.svc.Disconnect(context.WithoutCancel(ctx), sess)
}

func (h *Handler) readLoop(ctx context.Context, wsConn *websocket.Conn, sess *service.Session, log logger.Logger) error {
	limiter := rate.NewLimiter(h.rate, h.burst)
	for {
		_, data, err := wsConn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived) {
				log.Debug(ctx, "read failed", logger.Error(err))
			}
			return nil
		}

		if !limiter.Allow() {
			metrics.RecordFrameRejected("rate_limited")
			continue
		}

		// Errors are logged and counted by the service; the session stays
		// open unless the service closed it.
		_ = h.svc.HandleFrame(ctx, sess, data)
		if sess.Closed() {
			return nil
		}
	}
}
