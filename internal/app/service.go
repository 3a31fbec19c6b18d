// Package service owns sessions and partitions: it admits clients, routes
// their messages into per-partition consensus and fans results back out.
package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/hantei/internal/adapters/licensing"
	"github.com/okian/hantei/internal/domain/consensus"
	"github.com/okian/hantei/internal/domain/model"
	"github.com/okian/hantei/pkg/logger"
	"github.com/okian/hantei/pkg/metrics"
)

// Default timing, matching the consensus window.
const (
	defaultHeartbeat = 5 * time.Second
	defaultSweep     = 5 * time.Second
)

// PlanSource resolves the referee ceiling for a partition key.
type PlanSource interface {
	Plan(ctx context.Context, key string) licensing.Plan
}

type fixedPlan licensing.Plan

func (f fixedPlan) Plan(context.Context, string) licensing.Plan { return licensing.Plan(f) }

// Service implements the referee relay.
type Service struct {
	mu         sync.RWMutex
	sessions   map[string]*Session
	partitions map[string]*partition
	roles      map[model.Role]int

	plans     PlanSource
	window    time.Duration
	cooldown  time.Duration
	heartbeat time.Duration
	sweep     time.Duration
	now       func() time.Time

	confirmations atomic.Int64
	judgeActions  atomic.Int64
	evictions     atomic.Int64

	// State
	lifecycle sync.Mutex
	started   bool
	stopCh    chan struct{}
	wg        sync.WaitGroup

	// Logging
	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		sessions:   make(map[string]*Session),
		partitions: make(map[string]*partition),
		roles:      make(map[model.Role]int, len(model.Roles)),
		plans:      fixedPlan{Name: "free", MaxReferees: 1},
		window:     consensus.DefaultWindow,
		cooldown:   consensus.DefaultCooldown,
		heartbeat:  defaultHeartbeat,
		sweep:      defaultSweep,
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("relay")
	}
	return s
}

// Start launches the liveness monitor and the sweeper.
func (s *Service) Start(ctx context.Context) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if s.started {
		return nil
	}

	s.stopCh = make(chan struct{})
	s.wg.Add(2)
	go s.runEvery(ctx, s.heartbeat, s.CheckLiveness)
	go s.runEvery(ctx, s.sweep, s.Sweep)

	s.started = true
	s.logger.Info(ctx, "relay started",
		logger.Duration("window", s.window),
		logger.Duration("cooldown", s.cooldown),
		logger.Duration("heartbeat", s.heartbeat),
		logger.Duration("sweep", s.sweep),
	)
	return nil
}

// Stop halts the background loops and terminates every session.
func (s *Service) Stop() {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping relay...")

	close(s.stopCh)
	s.wg.Wait()

	for _, sess := range s.snapshot() {
		s.terminate(ctx, sess)
	}

	s.started = false
	s.logger.Info(ctx, "relay stopped")
}

func (s *Service) runEvery(ctx context.Context, every time.Duration, fn func(context.Context)) {
	defer s.wg.Done()

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}

// Connect creates an unclassified session for a freshly accepted connection.
func (s *Service) Connect(ctx context.Context, conn Conn, remote string) *Session {
	sess := newSession(conn, remote, s.now())

	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.roles[model.RoleUnclassified]++
	metrics.UpdateSessions(model.RoleUnclassified.String(), s.roles[model.RoleUnclassified])
	s.mu.Unlock()

	s.logger.Debug(ctx, "session connected",
		logger.String("session", sess.id),
		logger.String("remote", remote))
	return sess
}

// Disconnect removes sess from the service and its partition and broadcasts
// the updated roster. Only the first call has any effect.
func (s *Service) Disconnect(ctx context.Context, sess *Session) {
	if !sess.closed.CompareAndSwap(false, true) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, sess.id)
	role, p := sess.membership()
	s.roles[role]--
	metrics.UpdateSessions(role.String(), s.roles[role])

	if p == nil {
		s.logger.Debug(ctx, "session disconnected",
			logger.String("session", sess.id),
			logger.String("remote", sess.Remote()))
		return
	}

	p.mu.Lock()
	delete(p.members, sess.id)
	if role == model.RoleReferee {
		p.referees--
	}
	empty := len(p.members) == 0
	if empty {
		delete(s.partitions, p.key)
		metrics.UpdatePartitions(len(s.partitions))
	} else {
		s.broadcastRoster(ctx, p)
	}
	p.mu.Unlock()

	s.logger.Info(ctx, "session left partition",
		logger.String("session", sess.id),
		logger.String("device", sess.DeviceID()),
		logger.String("role", role.String()),
		logger.String("partition", p.key),
		logger.Bool("partitionDropped", empty))
}

// terminate force-closes sess. Safe to call concurrently with an in-flight
// frame from the same session and with the transport's own disconnect.
func (s *Service) terminate(ctx context.Context, sess *Session) {
	s.Disconnect(ctx, sess)
	if err := sess.conn.Close(); err != nil {
		s.logger.Debug(ctx, "close failed", logger.String("session", sess.id), logger.Error(err))
	}
}

// MarkAlive records a heartbeat reply.
func (s *Service) MarkAlive(sess *Session) {
	sess.alive.Store(true)
	sess.touch(s.now())
}

// Session looks up a live session by id.
func (s *Service) Session(id string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

func (s *Service) snapshot() []*Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	return out
}

func (s *Service) partitionSnapshot() []*partition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*partition, 0, len(s.partitions))
	for _, p := range s.partitions {
		out = append(out, p)
	}
	return out
}

// Roster returns the referee roster of key, or nil when no such partition.
func (s *Service) Roster(key string) []model.RosterEntry {
	s.mu.RLock()
	p, ok := s.partitions[key]
	s.mu.RUnlock()
	if !ok {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.roster()
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.lifecycle.Lock()
	started := s.started
	s.lifecycle.Unlock()

	s.mu.RLock()
	sessions := make(map[string]int, len(s.roles))
	for _, r := range model.Roles {
		sessions[r.String()] = s.roles[r]
	}
	total := len(s.sessions)
	s.mu.RUnlock()

	var queued, records, referees int
	parts := s.partitionSnapshot()
	for _, p := range parts {
		p.mu.Lock()
		queued += p.agg.Queued()
		records += int(p.agg.Records())
		referees += p.referees
		p.mu.Unlock()
	}

	return map[string]any{
		"started":             started,
		"sessions":            total,
		"sessionsByRole":      sessions,
		"partitions":          len(parts),
		"referees":            referees,
		"queuedSignals":       queued,
		"confirmationRecords": records,
		"confirmations":       s.confirmations.Load(),
		"judgeActions":        s.judgeActions.Load(),
		"evictions":           s.evictions.Load(),
	}
}
