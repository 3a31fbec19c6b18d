// Package licensing resolves licence keys to plans and gates referee
// admission against each plan's ceiling.
package licensing

import (
	"context"
	"fmt"
	"time"
)

// PlanAdmin names the plan granted to the reserved administrator key.
const PlanAdmin = "admin"

// Plan is the capacity policy attached to a partition.
type Plan struct {
	Name        string
	MaxReferees int
	Unlimited   bool
}

// Admits reports whether one more referee fits when current are registered.
func (p Plan) Admits(current int) bool {
	return p.Unlimited || current < p.MaxReferees
}

// Limit returns the referee ceiling reported to rejected clients, -1 when
// the plan has none.
func (p Plan) Limit() int {
	if p.Unlimited {
		return -1
	}
	return p.MaxReferees
}

// Resolver maps a licence key to its plan.
type Resolver interface {
	Resolve(ctx context.Context, key string) (Plan, error)
}

// StaticResolver answers from an in-process licence table.
type StaticResolver struct {
	plans    map[string]int
	licenses map[string]string
	latency  time.Duration
}

// NewStaticResolver builds a resolver from plan ceilings and a key -> plan
// table. latency, when positive, delays every answer to mimic a remote check.
func NewStaticResolver(plans map[string]int, licenses map[string]string, latency time.Duration) *StaticResolver {
	r := &StaticResolver{
		plans:    make(map[string]int, len(plans)),
		licenses: make(map[string]string, len(licenses)),
		latency:  latency,
	}
	for k, v := range plans {
		r.plans[k] = v
	}
	for k, v := range licenses {
		r.licenses[k] = v
	}
	return r
}

// Resolve implements Resolver.
func (r *StaticResolver) Resolve(ctx context.Context, key string) (Plan, error) {
	if r.latency > 0 {
		t := time.NewTimer(r.latency)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return Plan{}, fmt.Errorf("%w: %w", ErrResolverUnavailable, ctx.Err())
		case <-t.C:
		}
	}

	name, ok := r.licenses[key]
	if !ok {
		return Plan{}, ErrInvalidLicense
	}
	limit, ok := r.plans[name]
	if !ok {
		return Plan{}, fmt.Errorf("%w: unknown plan %q", ErrInvalidLicense, name)
	}
	return Plan{Name: name, MaxReferees: limit}, nil
}
