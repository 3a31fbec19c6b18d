// Package consensus turns independent referee signals into confirmed scoring
// events. An Aggregator holds the trailing-window signal queue and the
// confirmation records of one partition.
package consensus

import (
	"context"
	"time"

	"github.com/okian/hantei/internal/domain/dedupe"
	"github.com/okian/hantei/internal/domain/model"
)

// Default timing constants.
const (
	DefaultWindow   = 5 * time.Second
	DefaultCooldown = 5 * time.Second
)

// RequiredConfirmations returns how many distinct referees must agree on a
// signature when n referees are registered in the partition.
//
//	n <= 1 -> 1, n == 2 -> 2, n == 3 -> 2, n >= 4 -> 3
func RequiredConfirmations(n int) int {
	switch {
	case n <= 1:
		return 1
	case n <= 3:
		return 2
	default:
		return 3
	}
}

// Outcome reports what an Ingest call did with the signal.
type Outcome int

const (
	// Pending means the signal was queued and its group is below threshold.
	Pending Outcome = iota
	// Confirmed means the signal completed a group and a Confirmation was produced.
	Confirmed
	// Debounced means the signature already had a live confirmation record.
	Debounced
)

func (o Outcome) String() string {
	switch o {
	case Confirmed:
		return "confirmed"
	case Debounced:
		return "debounced"
	default:
		return "pending"
	}
}

// SweepResult summarises one Sweep call.
type SweepResult struct {
	Purged         int
	RecordsCleared int
	Remaining      int
}

// Aggregator is not safe for concurrent use; the owning partition serialises
// access to it.
type Aggregator struct {
	window   time.Duration
	cooldown time.Duration
	now      func() time.Time
	queue    []model.Signal
	records  dedupe.Deduper
}

// New constructs an Aggregator.
func New(opts ...Option) *Aggregator {
	a := &Aggregator{
		window:   DefaultWindow,
		cooldown: DefaultCooldown,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.records == nil {
		a.records = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(0))
	}
	return a
}

// Ingest records a signal from refereeID and evaluates its signature against
// the threshold for the given referee count. At most one Confirmation is
// returned per live confirmation record.
func (a *Aggregator) Ingest(ctx context.Context, refereeID string, sig model.Signature, referees int) (model.Confirmation, Outcome) {
	now := a.now()
	key := sig.String()

	if a.records.Live(ctx, key, now) {
		// A late corroboration of an already confirmed action keeps the
		// record alive for another cooldown instead of queueing.
		a.records.Extend(ctx, key, now.Add(a.cooldown))
		return model.Confirmation{}, Debounced
	}

	a.queue = append(a.queue, model.Signal{RefereeID: refereeID, Signature: sig, ObservedAt: now})

	required := RequiredConfirmations(referees)
	group := a.group(sig, now)
	if len(group) < required {
		return model.Confirmation{}, Pending
	}

	a.records.Record(ctx, key, now.Add(a.cooldown))
	a.drop(sig)

	return model.Confirmation{
		Signature:   sig,
		Referees:    group,
		Required:    required,
		ConfirmedAt: now,
	}, Confirmed
}

// group returns the distinct referees that sent sig within the window ending
// at now, in first-seen order.
func (a *Aggregator) group(sig model.Signature, now time.Time) []string {
	cutoff := now.Add(-a.window)
	seen := make(map[string]struct{}, 4)
	refs := make([]string, 0, 4)
	for _, s := range a.queue {
		if s.Signature != sig || s.ObservedAt.Before(cutoff) {
			continue
		}
		if _, dup := seen[s.RefereeID]; dup {
			continue
		}
		seen[s.RefereeID] = struct{}{}
		refs = append(refs, s.RefereeID)
	}
	return refs
}

// drop removes every queued signal with signature sig.
func (a *Aggregator) drop(sig model.Signature) {
	kept := a.queue[:0]
	for _, s := range a.queue {
		if s.Signature != sig {
			kept = append(kept, s)
		}
	}
	clear(a.queue[len(kept):])
	a.queue = kept
}

// Sweep purges signals older than the window and expired confirmation
// records. Once the queue is empty every record is cleared.
func (a *Aggregator) Sweep(ctx context.Context) SweepResult {
	now := a.now()
	cutoff := now.Add(-a.window)

	kept := a.queue[:0]
	for _, s := range a.queue {
		if !s.ObservedAt.Before(cutoff) {
			kept = append(kept, s)
		}
	}
	purged := len(a.queue) - len(kept)
	clear(a.queue[len(kept):])
	a.queue = kept

	cleared := a.records.Expire(ctx, now)
	if len(a.queue) == 0 {
		cleared += a.records.Clear(ctx)
	}

	return SweepResult{Purged: purged, RecordsCleared: cleared, Remaining: len(a.queue)}
}

// Queued returns the number of queued signals.
func (a *Aggregator) Queued() int { return len(a.queue) }

// Records returns the number of confirmation records held.
func (a *Aggregator) Records() int64 { return a.records.Size() }

// Idle reports whether the aggregator holds no state at all.
func (a *Aggregator) Idle() bool { return len(a.queue) == 0 && a.records.Size() == 0 }
