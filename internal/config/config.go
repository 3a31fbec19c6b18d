// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load layers defaults, an optional YAML file and HANTEI_ env vars.
// - External errors are wrapped with this package's sentinel errors.
package config

import (
	"time"
)

// Default plan names. The free plan is the fail-closed ceiling.
const (
	PlanFree  = "free"
	PlanBasic = "basic"
	PlanElite = "elite"

	// FreeCeiling is the referee limit of the free plan. Unknown or
	// unverifiable keys fall back to it, so it is not configurable.
	FreeCeiling = 1
)

// License describes one entry of the static licence table.
type License struct {
	Plan string `koanf:"plan"`
}

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the slog handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// WSPath is the route that upgrades to the referee/display protocol.
	WSPath string `koanf:"ws_path"`

	// WindowMS is the trailing window in which agreeing signals are grouped.
	WindowMS int `koanf:"window_ms"`

	// CooldownMS is how long a confirmation record blocks re-firing.
	CooldownMS int `koanf:"cooldown_ms"`

	// HeartbeatIntervalMS is the liveness probe period.
	HeartbeatIntervalMS int `koanf:"heartbeat_interval_ms"`

	// SweepIntervalMS is the aggregator purge period.
	SweepIntervalMS int `koanf:"sweep_interval_ms"`

	// OutboxSize bounds the per-session outbound frame buffer.
	OutboxSize int `koanf:"outbox_size"`

	// ReadLimitBytes caps a single inbound frame.
	ReadLimitBytes int64 `koanf:"read_limit_bytes"`

	// WriteTimeoutMS bounds each frame write.
	WriteTimeoutMS int `koanf:"write_timeout_ms"`

	// MessageRate and MessageBurst shape the per-session inbound token bucket.
	MessageRate  float64 `koanf:"message_rate"`
	MessageBurst int     `koanf:"message_burst"`

	// MetricsEnabled switches Prometheus recording on or off.
	MetricsEnabled bool `koanf:"metrics_enabled"`

	// LicensingURL points at the external licensing service. Empty selects
	// the static licence table below.
	LicensingURL string `koanf:"licensing_url"`

	// LicensingTimeoutMS bounds one licence resolution.
	LicensingTimeoutMS int `koanf:"licensing_timeout_ms"`

	// LicensingLatencyMS simulates verification latency for the static table.
	LicensingLatencyMS int `koanf:"licensing_latency_ms"`

	// AdminLicenseKey is the reserved key that bypasses the referee ceiling.
	AdminLicenseKey string `koanf:"admin_license_key"`

	// Plans maps a plan name to its referee ceiling. A configured table
	// replaces the defaults; the free plan is always present.
	Plans map[string]int `koanf:"plans"`

	// Licenses is the static licence table keyed by licence key. A configured
	// table replaces the demo keys.
	Licenses map[string]License `koanf:"licenses"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		Addr:                ":8080",
		WSPath:              "/ws",
		WindowMS:            5000,
		CooldownMS:          5000,
		HeartbeatIntervalMS: 5000,
		SweepIntervalMS:     5000,
		OutboxSize:          64,
		ReadLimitBytes:      4096,
		WriteTimeoutMS:      5000,
		MessageRate:         20,
		MessageBurst:        40,
		MetricsEnabled:      true,
		LicensingTimeoutMS:  2000,
		Plans: map[string]int{
			PlanFree:  FreeCeiling,
			PlanBasic: 4,
			PlanElite: 4,
		},
		Licenses: map[string]License{
			"basic-key-123": {Plan: PlanBasic},
			"elite-key-456": {Plan: PlanElite},
		},
	}
}

// Window returns WindowMS as a duration.
func (c *Config) Window() time.Duration { return ms(c.WindowMS) }

// Cooldown returns CooldownMS as a duration.
func (c *Config) Cooldown() time.Duration { return ms(c.CooldownMS) }

// HeartbeatInterval returns HeartbeatIntervalMS as a duration.
func (c *Config) HeartbeatInterval() time.Duration { return ms(c.HeartbeatIntervalMS) }

// SweepInterval returns SweepIntervalMS as a duration.
func (c *Config) SweepInterval() time.Duration { return ms(c.SweepIntervalMS) }

// WriteTimeout returns WriteTimeoutMS as a duration.
func (c *Config) WriteTimeout() time.Duration { return ms(c.WriteTimeoutMS) }

// LicensingTimeout returns LicensingTimeoutMS as a duration.
func (c *Config) LicensingTimeout() time.Duration { return ms(c.LicensingTimeoutMS) }

// LicensingLatency returns LicensingLatencyMS as a duration.
func (c *Config) LicensingLatency() time.Duration { return ms(c.LicensingLatencyMS) }

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }
