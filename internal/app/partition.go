package service

import (
	"cmp"
	"slices"
	"sync"

	"github.com/okian/hantei/internal/adapters/licensing"
	"github.com/okian/hantei/internal/domain/consensus"
	"github.com/okian/hantei/internal/domain/model"
)

// partition is one isolated scoring session. Every field below mu is
// guarded by it, including the aggregator.
type partition struct {
	key string

	mu       sync.Mutex
	members  map[string]*Session
	referees int
	plan     licensing.Plan
	planSet  bool
	agg      *consensus.Aggregator
	joins    uint64
}

func newPartition(key string, agg *consensus.Aggregator) *partition {
	return &partition{
		key:     key,
		members: make(map[string]*Session),
		agg:     agg,
	}
}

// roster lists referee members in join order. Caller holds p.mu.
func (p *partition) roster() []model.RosterEntry {
	type joined struct {
		seq   uint64
		entry model.RosterEntry
	}
	refs := make([]joined, 0, p.referees)
	for _, s := range p.members {
		s.mu.RLock()
		isRef, seq := s.role == model.RoleReferee, s.joinSeq
		s.mu.RUnlock()
		if isRef {
			refs = append(refs, joined{seq: seq, entry: s.rosterEntry()})
		}
	}
	slices.SortFunc(refs, func(a, b joined) int { return cmp.Compare(a.seq, b.seq) })

	out := make([]model.RosterEntry, len(refs))
	for i, r := range refs {
		out[i] = r.entry
	}
	return out
}

// broadcast queues frame on every member accepted by match. Caller holds p.mu.
func (p *partition) broadcast(frame []byte, match func(*Session) bool) int {
	sent := 0
	for _, s := range p.members {
		if match != nil && !match(s) {
			continue
		}
		if err := s.conn.Send(frame); err == nil {
			sent++
		}
	}
	return sent
}

func isReferee(s *Session) bool { return s.Role() == model.RoleReferee }

func isDisplay(s *Session) bool { return s.Role() == model.RoleDisplay }
