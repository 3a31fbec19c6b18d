// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"time"
)

// DefaultPartition scopes sessions that registered without a licence key.
// It is a named partition rather than an empty key so an unlicensed match
// never shares state with a licensed one by accident.
const DefaultPartition = "unlicensed"

// Role classifies a session. A session starts Unclassified and is assigned
// Referee or Display exactly once by a registration message.
type Role int

const (
	RoleUnclassified Role = iota
	RoleReferee
	RoleDisplay
)

func (r Role) String() string {
	switch r {
	case RoleReferee:
		return "referee"
	case RoleDisplay:
		return "display"
	default:
		return "unclassified"
	}
}

// Roles lists every role, used for per-role accounting.
var Roles = []Role{RoleUnclassified, RoleReferee, RoleDisplay}

// Target identifies one of the two contestants.
type Target string

const (
	TargetRed  Target = "red"
	TargetBlue Target = "blue"
)

// Signature identifies "the same physical scoring action". Signals that
// share a signature compete for the same agreement threshold.
type Signature struct {
	Target    Target
	Category  string
	Magnitude int
}

func (s Signature) String() string {
	return fmt.Sprintf("%s:%s:%d", s.Target, s.Category, s.Magnitude)
}

// Signal is one referee's unconfirmed report of a scoring action.
type Signal struct {
	RefereeID  string
	Signature  Signature
	ObservedAt time.Time
}

// Confirmation is the verdict emitted when a signature reaches agreement.
type Confirmation struct {
	Signature   Signature
	Referees    []string
	Required    int
	ConfirmedAt time.Time
}

// RosterEntry describes one referee session of a partition.
type RosterEntry struct {
	RefereeID string    `json:"refereeId"`
	DeviceID  string    `json:"deviceId,omitempty"`
	Status    string    `json:"status"`
	LastSeen  time.Time `json:"lastSeen"`
}

// RosterStatusConnected is the status of every registered referee session.
const RosterStatusConnected = "connected"
