package service

import (
	"time"

	"github.com/okian/hantei/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithPlans sets the source of referee ceilings.
func WithPlans(p PlanSource) Option {
	return func(s *Service) {
		if p != nil {
			s.plans = p
		}
	}
}

// WithWindow sets the trailing consensus window.
func WithWindow(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.window = d
		}
	}
}

// WithCooldown sets how long a confirmation blocks re-firing.
func WithCooldown(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.cooldown = d
		}
	}
}

// WithHeartbeatInterval sets the liveness probe period.
func WithHeartbeatInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.heartbeat = d
		}
	}
}

// WithSweepInterval sets the aggregator purge period.
func WithSweepInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.sweep = d
		}
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}
