// Package dedupe tracks confirmation records so that a scoring action is
// emitted at most once while its record is live.
package dedupe

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Deduper records confirmed ids with an expiry.
type Deduper interface {
	// Record stores id until the given expiry, replacing any earlier record.
	Record(ctx context.Context, id string, until time.Time)

	// Live reports whether id has a record that has not expired at now.
	Live(ctx context.Context, id string, now time.Time) bool

	// Extend moves a live record's expiry forward to until. Earlier values
	// and unknown ids are ignored.
	Extend(ctx context.Context, id string, until time.Time)

	// Expire drops every record whose expiry is at or before now and returns
	// how many were dropped.
	Expire(ctx context.Context, now time.Time) int

	// Clear drops every record and returns how many were dropped.
	Clear(ctx context.Context) int

	Size() int64
}

// inMemoryDeduper implements Deduper with a map of expiries.
// For bounded mode (maxSize > 0) the record closest to expiry is evicted
// when a new id would exceed the bound.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]time.Time
	maxSize int
	size    atomic.Int64
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: 1024,
	}

	for _, opt := range opts {
		opt(d)
	}

	d.seen = make(map[string]time.Time)
	return d
}

func (d *inMemoryDeduper) Record(_ context.Context, id string, until time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[id]; ok {
		d.seen[id] = until
		return
	}

	if d.maxSize > 0 && len(d.seen) >= d.maxSize {
		d.evictSoonest()
	}
	d.seen[id] = until
	d.size.Add(1)
}

func (d *inMemoryDeduper) Live(_ context.Context, id string, now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	exp, ok := d.seen[id]
	return ok && now.Before(exp)
}

func (d *inMemoryDeduper) Extend(_ context.Context, id string, until time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if exp, ok := d.seen[id]; ok && until.After(exp) {
		d.seen[id] = until
	}
}

func (d *inMemoryDeduper) Expire(_ context.Context, now time.Time) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	dropped := 0
	for id, exp := range d.seen {
		if !now.Before(exp) {
			delete(d.seen, id)
			dropped++
		}
	}
	d.size.Add(int64(-dropped))
	return dropped
}

func (d *inMemoryDeduper) Clear(_ context.Context) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := len(d.seen)
	clear(d.seen)
	d.size.Store(0)
	return n
}

// evictSoonest removes the record closest to expiry.
// Must be called with d.mu held.
func (d *inMemoryDeduper) evictSoonest() {
	var (
		victim string
		first  time.Time
		found  bool
	)
	for id, exp := range d.seen {
		if !found || exp.Before(first) {
			victim, first, found = id, exp, true
		}
	}
	if found {
		delete(d.seen, victim)
		d.size.Add(-1)
	}
}

// Size returns the current number of records.
func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}
