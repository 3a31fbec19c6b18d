package service

import "errors"

// Sentinel kinds returned by HandleFrame. None of them is fatal to the
// session; the transport logs and moves on.
var (
	ErrCapacityExceeded  = errors.New("referee capacity exceeded")
	ErrNotRegistered     = errors.New("session not registered")
	ErrAlreadyRegistered = errors.New("session already registered")
	ErrForbidden         = errors.New("action not permitted for role")
	ErrSessionClosed     = errors.New("session closed")
)
