// Package protocol defines the messages exchanged with referee and display
// clients. Inbound frames decode into a closed set of variants; anything else
// is rejected explicitly.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Inbound actions.
const (
	ActionRegisterReferee  = "register_referee"
	ActionRegisterDisplay  = "register_display"
	ActionSignal           = "signal"
	ActionJudgeAction      = "judge_action"
	ActionGetRoster        = "get_roster"
	ActionResetConnections = "reset_connections"
)

// Outbound actions.
const (
	ActionRoster         = "roster"
	ActionConfirmedScore = "confirmed_score"
	ActionCapacityError  = "capacity_error"
)

// Judge action kinds.
const (
	KindScore   = "score"
	KindPenalty = "penalty"
)

var validate = validator.New()

// Inbound is implemented by every message a client may send.
type Inbound interface {
	Action() string
	inbound()
}

// RegisterReferee asks to join a partition as a referee.
type RegisterReferee struct {
	DeviceID   string `json:"deviceId" validate:"required,max=128"`
	LicenseKey string `json:"licenseKey" validate:"omitempty,max=256"`
}

// RegisterDisplay asks to join a partition as a display client.
type RegisterDisplay struct {
	DeviceID   string `json:"deviceId" validate:"required,max=128"`
	LicenseKey string `json:"licenseKey" validate:"omitempty,max=256"`
}

// Signal is a referee's scoring call.
type Signal struct {
	Target    string `json:"target" validate:"required,oneof=red blue"`
	Category  string `json:"category" validate:"required,printascii,max=32"`
	Magnitude int    `json:"magnitude" validate:"min=1,max=10"`
}

// JudgeAction is a trusted direct score or penalty adjustment. Raw keeps the
// original frame so it can be relayed verbatim.
type JudgeAction struct {
	Kind      string `json:"kind" validate:"required,oneof=score penalty"`
	Target    string `json:"target" validate:"required,oneof=red blue"`
	Magnitude int    `json:"magnitude" validate:"ne=0,min=-10,max=10"`
	Raw       []byte `json:"-"`
}

// GetRoster requests the partition roster.
type GetRoster struct{}

// ResetConnections force-closes every referee of the caller's partition.
type ResetConnections struct{}

func (RegisterReferee) Action() string  { return ActionRegisterReferee }
func (RegisterDisplay) Action() string  { return ActionRegisterDisplay }
func (Signal) Action() string           { return ActionSignal }
func (JudgeAction) Action() string      { return ActionJudgeAction }
func (GetRoster) Action() string        { return ActionGetRoster }
func (ResetConnections) Action() string { return ActionResetConnections }

func (RegisterReferee) inbound()  {}
func (RegisterDisplay) inbound()  {}
func (Signal) inbound()           {}
func (JudgeAction) inbound()      {}
func (GetRoster) inbound()        {}
func (ResetConnections) inbound() {}

type envelope struct {
	Action string `json:"action"`
}

// Decode parses one inbound frame.
func Decode(data []byte) (Inbound, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	switch env.Action {
	case ActionRegisterReferee:
		return decodeAs[RegisterReferee](data)
	case ActionRegisterDisplay:
		return decodeAs[RegisterDisplay](data)
	case ActionSignal:
		return decodeAs[Signal](data)
	case ActionJudgeAction:
		msg, err := decodeAs[JudgeAction](data)
		if err != nil {
			return nil, err
		}
		msg.Raw = append([]byte(nil), data...)
		return msg, nil
	case ActionGetRoster:
		return GetRoster{}, nil
	case ActionResetConnections:
		return ResetConnections{}, nil
	case "":
		return nil, fmt.Errorf("%w: missing action", ErrMalformed)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, env.Action)
	}
}

func decodeAs[T Inbound](data []byte) (T, error) {
	var msg T
	if err := json.Unmarshal(data, &msg); err != nil {
		return msg, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if err := validate.Struct(msg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return msg, fmt.Errorf("%w: %s failed %q", ErrInvalidMessage, verrs[0].Field(), verrs[0].Tag())
		}
		return msg, fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	return msg, nil
}

// Reason maps a decode error to a short label for metrics and logs.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrUnknownAction):
		return "unknown_action"
	case errors.Is(err, ErrInvalidMessage):
		return "invalid"
	case errors.Is(err, ErrMalformed):
		return "malformed"
	default:
		return "other"
	}
}
