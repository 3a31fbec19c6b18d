package protocol

import (
	"encoding/json"

	"github.com/okian/hantei/internal/domain/model"
)

// Roster lists the referee sessions of a partition.
type Roster struct {
	Action  string              `json:"action"`
	Entries []model.RosterEntry `json:"entries"`
}

// ConfirmedScore announces a signature that reached agreement.
type ConfirmedScore struct {
	Action    string `json:"action"`
	Target    string `json:"target"`
	Magnitude int    `json:"magnitude"`
}

// CapacityError tells a referee the partition's plan ceiling was reached.
type CapacityError struct {
	Action string `json:"action"`
	Plan   string `json:"plan"`
	Limit  int    `json:"limit"`
}

// NewRoster builds a roster frame. A nil slice encodes as an empty list.
func NewRoster(entries []model.RosterEntry) Roster {
	if entries == nil {
		entries = []model.RosterEntry{}
	}
	return Roster{Action: ActionRoster, Entries: entries}
}

// NewConfirmedScore builds a confirmation frame for sig.
func NewConfirmedScore(sig model.Signature) ConfirmedScore {
	return ConfirmedScore{Action: ActionConfirmedScore, Target: string(sig.Target), Magnitude: sig.Magnitude}
}

// NewCapacityError builds a capacity rejection frame.
func NewCapacityError(plan string, limit int) CapacityError {
	return CapacityError{Action: ActionCapacityError, Plan: plan, Limit: limit}
}

// Encode marshals an outbound frame.
func Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}
