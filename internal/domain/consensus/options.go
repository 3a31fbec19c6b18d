package consensus

import (
	"time"

	"github.com/okian/hantei/internal/domain/dedupe"
)

// Option applies a configuration option to the Aggregator.
type Option func(*Aggregator)

// WithWindow sets the trailing window in which agreeing signals are grouped.
func WithWindow(d time.Duration) Option {
	return func(a *Aggregator) {
		if d > 0 {
			a.window = d
		}
	}
}

// WithCooldown sets how long a confirmation record blocks re-firing.
func WithCooldown(d time.Duration) Option {
	return func(a *Aggregator) {
		if d > 0 {
			a.cooldown = d
		}
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		if now != nil {
			a.now = now
		}
	}
}

// WithRecords supplies the confirmation-record store.
func WithRecords(d dedupe.Deduper) Option {
	return func(a *Aggregator) {
		if d != nil {
			a.records = d
		}
	}
}
