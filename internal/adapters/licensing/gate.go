package licensing

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/okian/hantei/pkg/logger"
	"github.com/okian/hantei/pkg/metrics"
)

const defaultTimeout = 2 * time.Second

// Lookup outcome labels.
const (
	outcomeResolved    = "resolved"
	outcomeAdmin       = "admin"
	outcomeAnonymous   = "anonymous"
	outcomeInvalid     = "invalid"
	outcomeUnavailable = "unavailable"
)

// Gate turns licence keys into plans. It never fails: unknown keys and an
// unreachable resolver both yield the free plan.
type Gate struct {
	resolver Resolver
	free     Plan
	adminKey string
	timeout  time.Duration
	logger   logger.Logger

	sf singleflight.Group
}

// NewGate constructs a Gate around resolver. free is the fail-closed plan.
func NewGate(resolver Resolver, free Plan, opts ...Option) *Gate {
	g := &Gate{
		resolver: resolver,
		free:     free,
		timeout:  defaultTimeout,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = logger.Get().Named("licensing")
	}
	return g
}

// Free returns the fail-closed plan.
func (g *Gate) Free() Plan { return g.free }

// Plan resolves key. Concurrent lookups of the same key share one call to the
// resolver, which is detached from any single caller's cancellation.
func (g *Gate) Plan(ctx context.Context, key string) Plan {
	switch {
	case key == "":
		metrics.RecordLicenceLookup(outcomeAnonymous, 0)
		return g.free
	case g.adminKey != "" && key == g.adminKey:
		metrics.RecordLicenceLookup(outcomeAdmin, 0)
		return Plan{Name: PlanAdmin, Unlimited: true}
	}

	v, err, _ := g.sf.Do(key, func() (any, error) {
		start := time.Now()
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.timeout)
		defer cancel()

		plan, err := g.resolver.Resolve(rctx, key)
		latency := float64(time.Since(start).Milliseconds())
		switch {
		case err == nil:
			metrics.RecordLicenceLookup(outcomeResolved, latency)
		case errors.Is(err, ErrInvalidLicense):
			metrics.RecordLicenceLookup(outcomeInvalid, latency)
		default:
			metrics.RecordLicenceLookup(outcomeUnavailable, latency)
		}
		return plan, err
	})
	if err != nil {
		g.logger.Warn(ctx, "licence rejected, using free plan",
			logger.String("plan", g.free.Name),
			logger.Error(err))
		return g.free
	}
	return v.(Plan)
}
