package licensing

import (
	"time"

	"github.com/okian/hantei/pkg/logger"
)

// Option applies a configuration option to the Gate.
type Option func(*Gate)

// WithAdminKey sets the reserved key that bypasses the referee ceiling.
func WithAdminKey(key string) Option {
	return func(g *Gate) { g.adminKey = key }
}

// WithTimeout bounds a single resolver call.
func WithTimeout(d time.Duration) Option {
	return func(g *Gate) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithLogger sets the gate logger.
func WithLogger(l logger.Logger) Option {
	return func(g *Gate) {
		if l != nil {
			g.logger = l
		}
	}
}
