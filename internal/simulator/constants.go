package simulator

import "time"

// Defaults used by the referee-sim command.
const (
	DefaultBaseURL  = "http://localhost:8080"
	DefaultWSPath   = "/ws"
	DefaultReferees = 3
	DefaultAgree    = 2
	DefaultSignals  = 5
	DefaultInterval = 200 * time.Millisecond
	DefaultTimeout  = 5 * time.Second
)

const (
	inboxSize = 256
	// settleDelay is how long the display keeps listening when no
	// confirmation is expected.
	settleDelay = 500 * time.Millisecond
)

// Each round plays a distinct signature so no round is debounced by an
// earlier one.
var (
	targets    = []string{"red", "blue"}
	categories = []string{"trunk", "head", "punch"}
	maxRounds  = len(targets) * len(categories) * 10
)
