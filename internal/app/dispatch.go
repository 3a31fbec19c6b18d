package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/hantei/internal/adapters/licensing"
	"github.com/okian/hantei/internal/domain/consensus"
	"github.com/okian/hantei/internal/domain/model"
	"github.com/okian/hantei/internal/domain/protocol"
	"github.com/okian/hantei/pkg/logger"
	"github.com/okian/hantei/pkg/metrics"
)

// HandleFrame decodes one inbound frame from sess and acts on it. Returned
// errors describe why a frame was dropped; the session stays open unless the
// error is ErrCapacityExceeded.
func (s *Service) HandleFrame(ctx context.Context, sess *Session, data []byte) error {
	if sess.Closed() {
		return ErrSessionClosed
	}
	sess.touch(s.now())

	msg, err := protocol.Decode(data)
	if err != nil {
		metrics.RecordFrameRejected(protocol.Reason(err))
		s.logger.Debug(ctx, "dropping frame",
			logger.String("session", sess.id),
			logger.Error(err))
		return err
	}

	switch m := msg.(type) {
	case protocol.RegisterReferee:
		err = s.registerReferee(ctx, sess, m)
	case protocol.RegisterDisplay:
		err = s.registerDisplay(ctx, sess, m)
	case protocol.Signal:
		err = s.ingest(ctx, sess, m)
	case protocol.JudgeAction:
		err = s.relayJudgeAction(ctx, sess, m)
	case protocol.GetRoster:
		err = s.sendRoster(ctx, sess)
	case protocol.ResetConnections:
		err = s.resetConnections(ctx, sess)
	}

	if err != nil {
		metrics.RecordFrameRejected(rejectReason(err))
		s.logger.Debug(ctx, "frame not acted upon",
			logger.String("session", sess.id),
			logger.String("action", msg.Action()),
			logger.Error(err))
	}
	return err
}

func partitionKey(licenseKey string) string {
	if licenseKey == "" {
		return model.DefaultPartition
	}
	return licenseKey
}

func (s *Service) registerDisplay(ctx context.Context, sess *Session, m protocol.RegisterDisplay) error {
	key := partitionKey(m.LicenseKey)

	s.mu.Lock()
	if sess.Closed() {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if sess.Role() != model.RoleUnclassified {
		s.mu.Unlock()
		return ErrAlreadyRegistered
	}
	p := s.partitionLocked(key)
	p.mu.Lock()
	sess.assign(model.RoleDisplay, m.DeviceID, p)
	p.members[sess.id] = sess
	s.moveRoleLocked(model.RoleUnclassified, model.RoleDisplay)
	s.sendTo(ctx, sess, protocol.NewRoster(p.roster()))
	p.mu.Unlock()
	s.mu.Unlock()

	metrics.RecordRegistration(model.RoleDisplay.String())
	s.logger.Info(ctx, "display registered",
		logger.String("session", sess.id),
		logger.String("device", m.DeviceID),
		logger.String("partition", key))
	return nil
}

func (s *Service) registerReferee(ctx context.Context, sess *Session, m protocol.RegisterReferee) error {
	if sess.Role() != model.RoleUnclassified {
		return ErrAlreadyRegistered
	}
	key := partitionKey(m.LicenseKey)

	// The plan is cached on the partition on first referee registration;
	// resolve it outside every lock when no cached plan exists yet.
	plan, cached := s.cachedPlan(key)
	if !cached {
		plan = s.plans.Plan(ctx, m.LicenseKey)
	}

	s.mu.Lock()
	if sess.Closed() {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if sess.Role() != model.RoleUnclassified {
		s.mu.Unlock()
		return ErrAlreadyRegistered
	}
	p := s.partitionLocked(key)
	p.mu.Lock()
	if !p.planSet {
		p.plan, p.planSet = plan, true
	}
	plan = p.plan

	if !plan.Admits(p.referees) {
		current := p.referees
		if len(p.members) == 0 {
			delete(s.partitions, key)
			metrics.UpdatePartitions(len(s.partitions))
		}
		p.mu.Unlock()
		s.mu.Unlock()

		metrics.RecordCapacityRejection(plan.Name)
		s.logger.Warn(ctx, "referee rejected, partition at capacity",
			logger.String("session", sess.id),
			logger.String("partition", key),
			logger.String("plan", plan.Name),
			logger.Int("limit", plan.Limit()),
			logger.Int("referees", current))
		s.sendTo(ctx, sess, protocol.NewCapacityError(plan.Name, plan.Limit()))
		s.terminate(ctx, sess)
		return fmt.Errorf("%w: plan %s allows %d", ErrCapacityExceeded, plan.Name, plan.Limit())
	}

	sess.assign(model.RoleReferee, m.DeviceID, p)
	p.members[sess.id] = sess
	p.referees++
	s.moveRoleLocked(model.RoleUnclassified, model.RoleReferee)
	s.broadcastRoster(ctx, p)
	referees := p.referees
	p.mu.Unlock()
	s.mu.Unlock()

	metrics.RecordRegistration(model.RoleReferee.String())
	s.logger.Info(ctx, "referee registered",
		logger.String("session", sess.id),
		logger.String("device", m.DeviceID),
		logger.String("partition", key),
		logger.String("plan", plan.Name),
		logger.Int("referees", referees))
	return nil
}

func (s *Service) cachedPlan(key string) (licensing.Plan, bool) {
	s.mu.RLock()
	p, ok := s.partitions[key]
	s.mu.RUnlock()
	if !ok {
		return licensing.Plan{}, false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.plan, p.planSet
}

// partitionLocked returns the partition for key, creating it if needed.
// Caller holds s.mu for writing.
func (s *Service) partitionLocked(key string) *partition {
	if p, ok := s.partitions[key]; ok {
		return p
	}
	p := newPartition(key, consensus.New(
		consensus.WithWindow(s.window),
		consensus.WithCooldown(s.cooldown),
		consensus.WithClock(s.now),
	))
	s.partitions[key] = p
	metrics.UpdatePartitions(len(s.partitions))
	return p
}

// moveRoleLocked updates per-role accounting. Caller holds s.mu.
func (s *Service) moveRoleLocked(from, to model.Role) {
	s.roles[from]--
	s.roles[to]++
	metrics.UpdateSessions(from.String(), s.roles[from])
	metrics.UpdateSessions(to.String(), s.roles[to])
}

// registered returns the session's partition when it is still a member.
func registered(sess *Session) (model.Role, *partition, error) {
	role, p := sess.membership()
	if p == nil || role == model.RoleUnclassified {
		return role, nil, ErrNotRegistered
	}
	return role, p, nil
}

func (s *Service) ingest(ctx context.Context, sess *Session, m protocol.Signal) error {
	role, p, err := registered(sess)
	if err != nil {
		return err
	}
	if role != model.RoleReferee {
		return ErrForbidden
	}

	sig := model.Signature{Target: model.Target(m.Target), Category: m.Category, Magnitude: m.Magnitude}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.members[sess.id]; !ok {
		return ErrNotRegistered
	}
	metrics.RecordSignalIngested(m.Target)

	conf, outcome := p.agg.Ingest(ctx, sess.id, sig, p.referees)
	switch outcome {
	case consensus.Debounced:
		metrics.RecordSignalDebounced()
	case consensus.Confirmed:
		s.confirmations.Add(1)
		metrics.RecordConfirmation(len(conf.Referees))
		frame, err := protocol.Encode(protocol.NewConfirmedScore(sig))
		if err != nil {
			return err
		}
		displays := p.broadcast(frame, isDisplay)
		s.logger.Info(ctx, "score confirmed",
			logger.String("partition", p.key),
			logger.String("signature", sig.String()),
			logger.Int("agreement", len(conf.Referees)),
			logger.Int("required", conf.Required),
			logger.Int("displays", displays))
	case consensus.Pending:
		s.logger.Debug(ctx, "signal pending",
			logger.String("partition", p.key),
			logger.String("signature", sig.String()),
			logger.String("referee", sess.id))
	}
	return nil
}

func (s *Service) relayJudgeAction(ctx context.Context, sess *Session, m protocol.JudgeAction) error {
	role, p, err := registered(sess)
	if err != nil {
		return err
	}
	if role != model.RoleDisplay {
		return ErrForbidden
	}

	p.mu.Lock()
	sent := p.broadcast(m.Raw, func(o *Session) bool { return o != sess })
	p.mu.Unlock()

	s.judgeActions.Add(1)
	metrics.RecordJudgeAction(m.Kind)
	s.logger.Info(ctx, "judge action relayed",
		logger.String("partition", p.key),
		logger.String("kind", m.Kind),
		logger.String("target", m.Target),
		logger.Int("magnitude", m.Magnitude),
		logger.Int("recipients", sent))
	return nil
}

func (s *Service) sendRoster(ctx context.Context, sess *Session) error {
	_, p, err := registered(sess)
	if err != nil {
		return err
	}
	p.mu.Lock()
	roster := p.roster()
	p.mu.Unlock()
	s.sendTo(ctx, sess, protocol.NewRoster(roster))
	return nil
}

func (s *Service) resetConnections(ctx context.Context, sess *Session) error {
	role, p, err := registered(sess)
	if err != nil {
		return err
	}
	if role != model.RoleDisplay {
		return ErrForbidden
	}

	p.mu.Lock()
	victims := make([]*Session, 0, p.referees)
	for _, m := range p.members {
		if isReferee(m) {
			victims = append(victims, m)
		}
	}
	p.mu.Unlock()

	for _, v := range victims {
		s.terminate(ctx, v)
	}

	s.logger.Info(ctx, "referee connections reset",
		logger.String("partition", p.key),
		logger.String("by", sess.id),
		logger.Int("closed", len(victims)))
	return nil
}

// broadcastRoster sends the current roster to every member. Caller holds p.mu.
func (s *Service) broadcastRoster(ctx context.Context, p *partition) {
	frame, err := protocol.Encode(protocol.NewRoster(p.roster()))
	if err != nil {
		s.logger.Error(ctx, "encode roster", logger.Error(err))
		return
	}
	p.broadcast(frame, nil)
}

func (s *Service) sendTo(ctx context.Context, sess *Session, v any) {
	frame, err := protocol.Encode(v)
	if err != nil {
		s.logger.Error(ctx, "encode frame", logger.Error(err))
		return
	}
	if err := sess.conn.Send(frame); err != nil {
		s.logger.Debug(ctx, "send failed", logger.String("session", sess.id), logger.Error(err))
	}
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, ErrNotRegistered):
		return "unregistered"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrAlreadyRegistered):
		return "already_registered"
	case errors.Is(err, ErrCapacityExceeded):
		return "capacity"
	case errors.Is(err, ErrSessionClosed):
		return "closed"
	default:
		return "other"
	}
}
