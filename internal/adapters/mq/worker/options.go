package worker

import (
	"github.com/okian/hantei/pkg/logger"
)

// Option applies a configuration option to the Writer.
type Option func(*Writer)

// WithName sets the writer name for identification and logging.
func WithName(name string) Option {
	return func(w *Writer) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the writer.
func WithLogger(l logger.Logger) Option {
	return func(w *Writer) {
		if l != nil {
			w.logger = l
		}
	}
}
