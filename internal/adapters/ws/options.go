package ws

import (
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/okian/hantei/pkg/logger"
)

// Option applies a configuration option to the Handler.
type Option func(*Handler)

// WithReadLimit caps the size of one inbound frame.
func WithReadLimit(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.readLimit = n
		}
	}
}

// WithWriteTimeout bounds every frame and control write.
func WithWriteTimeout(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.writeTimeout = d
		}
	}
}

// WithOutboxSize sets how many outbound frames may wait per session.
func WithOutboxSize(n int) Option {
	return func(h *Handler) {
		if n > 0 {
			h.outboxSize = n
		}
	}
}

// WithRateLimit shapes inbound frames per session. Frames beyond the bucket
// are dropped.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(h *Handler) {
		if perSecond > 0 && burst > 0 {
			h.rate = rate.Limit(perSecond)
			h.burst = burst
		}
	}
}

// WithCheckOrigin replaces the permissive origin check.
func WithCheckOrigin(fn func(*http.Request) bool) Option {
	return func(h *Handler) {
		if fn != nil {
			h.upgrader.CheckOrigin = fn
		}
	}
}

// WithLogger sets the handler logger.
func WithLogger(l logger.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}
