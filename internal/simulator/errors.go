package simulator

import "errors"

// Sentinel errors returned by Run.
var (
	ErrInvalidConfig = errors.New("invalid simulator config")
	ErrUnhealthy     = errors.New("relay is not healthy")
	ErrNoReply       = errors.New("no reply from relay")
	ErrMismatch      = errors.New("confirmation count mismatch")
)
