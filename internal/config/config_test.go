package config_test

import (
	"errors"
	"testing"
	"time"

	"github.com/okian/hantei/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
			convey.So(cfg.WSPath, convey.ShouldEqual, "/ws")
			convey.So(cfg.Window(), convey.ShouldEqual, 5*time.Second)
			convey.So(cfg.Cooldown(), convey.ShouldEqual, 5*time.Second)
			convey.So(cfg.HeartbeatInterval(), convey.ShouldEqual, 5*time.Second)
			convey.So(cfg.SweepInterval(), convey.ShouldEqual, 5*time.Second)
			convey.So(cfg.Plans[config.PlanFree], convey.ShouldEqual, 1)
			convey.So(cfg.Plans[config.PlanBasic], convey.ShouldEqual, 4)
			convey.So(cfg.Licenses["elite-key-456"].Plan, convey.ShouldEqual, config.PlanElite)
			convey.So(cfg.MetricsEnabled, convey.ShouldBeTrue)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("When the free ceiling is raised", func() {
			cfg.Plans[config.PlanFree] = 2

			convey.Convey("Then validation should fail", func() {
				convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the free plan is missing", func() {
			delete(cfg.Plans, config.PlanFree)

			convey.Convey("Then validation should fail", func() {
				convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})
	})
}
