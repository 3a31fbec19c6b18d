package service

import (
	"context"

	"github.com/okian/hantei/pkg/logger"
	"github.com/okian/hantei/pkg/metrics"
)

// CheckLiveness runs one heartbeat round. A session that has not answered
// the previous probe is terminated; every other session is marked unproven
// and probed again.
func (s *Service) CheckLiveness(ctx context.Context) {
	evicted := 0
	for _, sess := range s.snapshot() {
		if !sess.alive.CompareAndSwap(true, false) {
			s.evict(ctx, sess, "no heartbeat reply")
			evicted++
			continue
		}
		if err := sess.conn.Ping(); err != nil {
			s.logger.Debug(ctx, "heartbeat probe failed",
				logger.String("session", sess.id),
				logger.Error(err))
			s.evict(ctx, sess, "probe failed")
			evicted++
		}
	}
	if evicted > 0 {
		s.logger.Info(ctx, "liveness round evicted sessions", logger.Int("evicted", evicted))
	}
}

func (s *Service) evict(ctx context.Context, sess *Session, reason string) {
	if sess.Closed() {
		return
	}
	s.evictions.Add(1)
	metrics.RecordEviction()
	s.logger.Debug(ctx, "evicting session",
		logger.String("session", sess.id),
		logger.String("remote", sess.Remote()),
		logger.String("device", sess.DeviceID()),
		logger.String("reason", reason))
	s.terminate(ctx, sess)
}

// Sweep purges aged signals from every partition and clears confirmation
// records of partitions whose queue has drained.
func (s *Service) Sweep(ctx context.Context) {
	purged, cleared := 0, 0
	for _, p := range s.partitionSnapshot() {
		p.mu.Lock()
		res := p.agg.Sweep(ctx)
		p.mu.Unlock()

		purged += res.Purged
		cleared += res.RecordsCleared
	}
	metrics.RecordSignalsPurged(purged)
	if purged > 0 || cleared > 0 {
		s.logger.Debug(ctx, "sweep finished",
			logger.Int("purged", purged),
			logger.Int("recordsCleared", cleared))
	}
}
