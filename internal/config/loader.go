package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment override, e.g. HANTEI_ADDR.
const EnvPrefix = "HANTEI_"

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if HANTEI_CONFIG is set
//  3. env (prefix HANTEI_)
func Load(_ context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv(EnvPrefix + "CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// HANTEI_WINDOW_MS -> window_ms. Underscores are preserved to match the
	// flat koanf tags on the struct.
	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.ToLower(s)
		return strings.TrimPrefix(s, strings.ToLower(EnvPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := *base
	// Decoding merges into existing maps, so configured tables start empty
	// instead of inheriting the demo entries.
	if k.Exists("plans") {
		cfg.Plans = make(map[string]int)
	}
	if k.Exists("licenses") {
		cfg.Licenses = make(map[string]License)
	}
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}
	if cfg.Plans == nil {
		cfg.Plans = make(map[string]int)
	}
	if _, ok := cfg.Plans[PlanFree]; !ok {
		cfg.Plans[PlanFree] = FreeCeiling
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks invariants the relay depends on.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case !strings.HasPrefix(c.WSPath, "/"):
		return fmt.Errorf("%w: ws_path must start with /", ErrInvalidConfig)
	case c.WindowMS <= 0:
		return fmt.Errorf("%w: window_ms must be positive", ErrInvalidConfig)
	case c.CooldownMS <= 0:
		return fmt.Errorf("%w: cooldown_ms must be positive", ErrInvalidConfig)
	case c.HeartbeatIntervalMS <= 0:
		return fmt.Errorf("%w: heartbeat_interval_ms must be positive", ErrInvalidConfig)
	case c.SweepIntervalMS <= 0:
		return fmt.Errorf("%w: sweep_interval_ms must be positive", ErrInvalidConfig)
	}
	if c.Plans[PlanFree] != FreeCeiling {
		return fmt.Errorf("%w: plan %q must allow exactly %d referee", ErrInvalidConfig, PlanFree, FreeCeiling)
	}
	for name, ceiling := range c.Plans {
		if ceiling < 1 {
			return fmt.Errorf("%w: plan %q must allow at least one referee", ErrInvalidConfig, name)
		}
	}
	for key, lic := range c.Licenses {
		if _, ok := c.Plans[lic.Plan]; !ok {
			return fmt.Errorf("%w: licence %q references unknown plan %q", ErrInvalidConfig, key, lic.Plan)
		}
	}
	return nil
}
