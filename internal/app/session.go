package service

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/okian/hantei/internal/domain/model"
)

// Conn is the outbound half of a client connection.
type Conn interface {
	// Send queues one encoded frame without blocking.
	Send(frame []byte) error
	// Ping sends a heartbeat probe.
	Ping() error
	// Close terminates the connection. It must be safe to call repeatedly.
	Close() error
}

// Session is the server-side view of one connected client.
type Session struct {
	id     string
	remote string
	conn   Conn

	alive    atomic.Bool
	lastSeen atomic.Int64
	closed   atomic.Bool

	mu        sync.RWMutex
	role      model.Role
	deviceID  string
	partition *partition
	joinSeq   uint64
}

func newSession(conn Conn, remote string, now time.Time) *Session {
	s := &Session{
		id:     uuid.NewString(),
		remote: remote,
		conn:   conn,
	}
	s.alive.Store(true)
	s.touch(now)
	return s
}

// ID returns the opaque session id. Referees are identified by it.
func (s *Session) ID() string { return s.id }

// Remote returns the peer address recorded at connect time.
func (s *Session) Remote() string { return s.remote }

// Role returns the session role.
func (s *Session) Role() model.Role {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.role
}

// DeviceID returns the client-supplied device id.
func (s *Session) DeviceID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.deviceID
}

// PartitionKey returns the partition the session registered to, or "".
func (s *Session) PartitionKey() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.partition == nil {
		return ""
	}
	return s.partition.key
}

// Alive reports the liveness flag.
func (s *Session) Alive() bool { return s.alive.Load() }

// LastSeen returns the time of the last inbound frame or heartbeat reply.
func (s *Session) LastSeen() time.Time { return time.Unix(0, s.lastSeen.Load()).UTC() }

// Closed reports whether the session has been torn down.
func (s *Session) Closed() bool { return s.closed.Load() }

func (s *Session) touch(now time.Time) { s.lastSeen.Store(now.UnixNano()) }

func (s *Session) membership() (model.Role, *partition) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.role, s.partition
}

// assign sets the registration fields. Caller holds p.mu.
func (s *Session) assign(role model.Role, deviceID string, p *partition) {
	p.joins++
	s.mu.Lock()
	defer s.mu.Unlock()
	s.role = role
	s.deviceID = deviceID
	s.partition = p
	s.joinSeq = p.joins
}

func (s *Session) rosterEntry() model.RosterEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return model.RosterEntry{
		RefereeID: s.id,
		DeviceID:  s.deviceID,
		Status:    model.RosterStatusConnected,
		LastSeen:  time.Unix(0, s.lastSeen.Load()).UTC(),
	}
}
