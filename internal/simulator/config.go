package simulator

import (
	"fmt"
	"time"
)

// Config holds configuration for one simulated bout.
type Config struct {
	BaseURL    string        // HTTP base URL of the relay
	WSPath     string        // websocket route on the relay
	LicenseKey string        // licence shared by display and referees
	Referees   int           // referees to connect
	Agree      int           // referees that send each signal
	Signals    int           // scoring rounds to play
	Interval   time.Duration // pause between rounds
	Timeout    time.Duration // per-step deadline
	Verbose    bool          // log every frame
}

// Stats holds the outcome of a bout.
type Stats struct {
	RefereesAdmitted int
	RefereesRejected int
	Required         int
	SignalsSent      int
	Expected         int
	Confirmations    int
	StartTime        time.Time
	EndTime          time.Time
	Duration         time.Duration
}

// Validate checks the scenario is playable.
func (c *Config) Validate() error {
	switch {
	case c.BaseURL == "":
		return fmt.Errorf("%w: base url must not be empty", ErrInvalidConfig)
	case c.Referees < 1:
		return fmt.Errorf("%w: at least one referee is required", ErrInvalidConfig)
	case c.Agree < 0 || c.Agree > c.Referees:
		return fmt.Errorf("%w: agree must be between 0 and %d", ErrInvalidConfig, c.Referees)
	case c.Signals < 0 || c.Signals > maxRounds:
		return fmt.Errorf("%w: signals must be between 0 and %d", ErrInvalidConfig, maxRounds)
	case c.Timeout <= 0:
		return fmt.Errorf("%w: timeout must be positive", ErrInvalidConfig)
	}
	return nil
}
