package config_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/okian/hantei/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

var configEnvVars = []string{
	"HANTEI_CONFIG",
	"HANTEI_ADDR",
	"HANTEI_WS_PATH",
	"HANTEI_WINDOW_MS",
	"HANTEI_COOLDOWN_MS",
	"HANTEI_HEARTBEAT_INTERVAL_MS",
	"HANTEI_OUTBOX_SIZE",
	"HANTEI_ADMIN_LICENSE_KEY",
	"HANTEI_LICENSING_URL",
}

func clearConfigEnvVars() {
	for _, k := range configEnvVars {
		_ = os.Unsetenv(k)
	}
}

func createTempConfigFile(content string) string {
	f, err := os.CreateTemp("", "hantei-config-*.yaml")
	if err != nil {
		panic(err)
	}
	defer func() { _ = f.Close() }()
	if _, err := f.WriteString(content); err != nil {
		panic(err)
	}
	return f.Name()
}

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()
		defer clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.WindowMS, convey.ShouldEqual, 5000)
				convey.So(cfg.OutboxSize, convey.ShouldEqual, 64)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("HANTEI_ADDR", ":9090")
			_ = os.Setenv("HANTEI_WINDOW_MS", "3000")
			_ = os.Setenv("HANTEI_ADMIN_LICENSE_KEY", "root-key")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.WindowMS, convey.ShouldEqual, 3000)
				convey.So(cfg.AdminLicenseKey, convey.ShouldEqual, "root-key")
				convey.So(cfg.CooldownMS, convey.ShouldEqual, 5000)
			})
		})

		convey.Convey("When loading config with a YAML file", func() {
			tmpFile := createTempConfigFile(`
addr: ":7070"
window_ms: 4000
heartbeat_interval_ms: 2500
plans:
  basic: 6
licenses:
  club-key-789:
    plan: basic
`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("HANTEI_CONFIG", tmpFile)

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from the file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
				convey.So(cfg.WindowMS, convey.ShouldEqual, 4000)
				convey.So(cfg.HeartbeatIntervalMS, convey.ShouldEqual, 2500)
				convey.So(cfg.Plans["basic"], convey.ShouldEqual, 6)
				convey.So(cfg.Licenses["club-key-789"].Plan, convey.ShouldEqual, "basic")
			})

			convey.Convey("And the configured tables should replace the defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Licenses, convey.ShouldNotContainKey, "basic-key-123")
				convey.So(cfg.Licenses, convey.ShouldNotContainKey, "elite-key-456")
				convey.So(cfg.Plans, convey.ShouldNotContainKey, config.PlanElite)
				convey.So(cfg.Plans[config.PlanFree], convey.ShouldEqual, config.FreeCeiling)
			})
		})

		convey.Convey("When the file defines its own plan and licence", func() {
			tmpFile := createTempConfigFile(`
plans:
  pro: 9
licenses:
  pro-key:
    plan: pro
`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("HANTEI_CONFIG", tmpFile)

			cfg, err := config.Load(ctx)

			convey.Convey("Then only the configured licence should resolve", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Licenses, convey.ShouldResemble, map[string]config.License{"pro-key": {Plan: "pro"}})
				convey.So(cfg.Plans, convey.ShouldResemble, map[string]int{"pro": 9, config.PlanFree: 1})
			})
		})

		convey.Convey("When the file defines plans but no licences", func() {
			tmpFile := createTempConfigFile(`
plans:
  free: 1
  basic: 2
  elite: 8
`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("HANTEI_CONFIG", tmpFile)

			cfg, err := config.Load(ctx)

			convey.Convey("Then the default licences should still apply", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Plans[config.PlanElite], convey.ShouldEqual, 8)
				convey.So(cfg.Licenses["basic-key-123"].Plan, convey.ShouldEqual, config.PlanBasic)
			})
		})

		convey.Convey("When both file and environment variables are set", func() {
			tmpFile := createTempConfigFile(`
addr: ":7070"
window_ms: 4000
`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("HANTEI_CONFIG", tmpFile)
			_ = os.Setenv("HANTEI_ADDR", ":6060")

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should win", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":6060")
				convey.So(cfg.WindowMS, convey.ShouldEqual, 4000)
			})
		})

		convey.Convey("When the YAML file is invalid", func() {
			tmpFile := createTempConfigFile(`invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("HANTEI_CONFIG", tmpFile)

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(cfg, convey.ShouldBeNil)
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the file does not exist", func() {
			_ = os.Setenv("HANTEI_CONFIG", "/non/existent/file.yaml")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When a numeric variable is not a number", func() {
			_ = os.Setenv("HANTEI_OUTBOX_SIZE", "lots")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the window is not positive", func() {
			_ = os.Setenv("HANTEI_WINDOW_MS", "0")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(cfg, convey.ShouldBeNil)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "window_ms")
			})
		})

		convey.Convey("When the ws path is malformed", func() {
			_ = os.Setenv("HANTEI_WS_PATH", "ws")

			_, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		for _, tc := range []struct {
			name string
			yaml string
			want string
		}{
			{"the free plan admits nobody", "plans:\n  free: 0\n  pro: 9\n", `"free"`},
			{"the free plan admits several referees", "plans:\n  free: 3\n", `"free"`},
			{"a paid plan admits nobody", "plans:\n  pro: 0\n", `"pro"`},
			{"a paid plan is negative", "plans:\n  basic: -2\n", `"basic"`},
		} {
			convey.Convey("When "+tc.name, func() {
				tmpFile := createTempConfigFile(tc.yaml)
				defer func() { _ = os.Remove(tmpFile) }()
				_ = os.Setenv("HANTEI_CONFIG", tmpFile)

				cfg, err := config.Load(ctx)

				convey.Convey("Then the plan table should be rejected", func() {
					convey.So(cfg, convey.ShouldBeNil)
					convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
					convey.So(err.Error(), convey.ShouldContainSubstring, tc.want)
				})
			})
		}

		convey.Convey("When a licence references an unknown plan", func() {
			tmpFile := createTempConfigFile(`
licenses:
  odd-key:
    plan: platinum
`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("HANTEI_CONFIG", tmpFile)

			_, err := config.Load(ctx)

			convey.Convey("Then it should be rejected", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "platinum")
			})
		})
	})
}
