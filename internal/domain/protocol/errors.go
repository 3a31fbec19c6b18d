package protocol

import "errors"

// Sentinel kinds for protocol errors.
var (
	// ErrMalformed marks a frame that is not a JSON object of the expected shape.
	ErrMalformed = errors.New("malformed message")
	// ErrUnknownAction marks a well-formed frame whose action is not part of the protocol.
	ErrUnknownAction = errors.New("unknown action")
	// ErrInvalidMessage marks a frame whose fields fail validation.
	ErrInvalidMessage = errors.New("invalid message")
)
