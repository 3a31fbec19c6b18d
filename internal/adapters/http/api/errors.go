package api

import "errors"

// Sentinel kinds for API errors.
var (
	ErrServe      = errors.New("http serve failed")
	ErrMethod     = errors.New("method not allowed")
	ErrNotStarted = errors.New("relay not started")
)
