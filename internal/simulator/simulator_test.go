package simulator

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/okian/hantei/internal/adapters/http/api"
	"github.com/okian/hantei/internal/adapters/licensing"
	"github.com/okian/hantei/internal/adapters/ws"
	service "github.com/okian/hantei/internal/app"
	"github.com/okian/hantei/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func newRelay(start bool) (*httptest.Server, *service.Service) {
	gate := licensing.NewGate(
		licensing.NewStaticResolver(map[string]int{"free": 1, "basic": 4}, map[string]string{"basic-key-123": "basic"}, 0),
		licensing.Plan{Name: "free", MaxReferees: 1},
	)
	svc := service.New(service.WithPlans(gate))
	if start {
		_ = svc.Start(context.Background())
	}
	mux := http.NewServeMux()
	api.NewServer(svc, ws.NewHandler(svc)).Register(context.Background(), mux, DefaultWSPath)
	return httptest.NewServer(mux), svc
}

func scenario(url string, referees, agree, signals int) *Config {
	return &Config{
		BaseURL:    url,
		WSPath:     DefaultWSPath,
		LicenseKey: "basic-key-123",
		Referees:   referees,
		Agree:      agree,
		Signals:    signals,
		Interval:   10 * time.Millisecond,
		Timeout:    2 * time.Second,
	}
}

func TestRun(t *testing.T) {
	Convey("Given a running relay", t, func() {
		srv, svc := newRelay(true)
		defer srv.Close()
		defer svc.Stop()
		ctx := context.Background()

		Convey("When two of three referees agree on every round", func() {
			stats, err := Run(ctx, scenario(srv.URL, 3, 2, 3))

			Convey("Then every round should be confirmed exactly once", func() {
				So(err, ShouldBeNil)
				So(stats.RefereesAdmitted, ShouldEqual, 3)
				So(stats.Required, ShouldEqual, 2)
				So(stats.SignalsSent, ShouldEqual, 6)
				So(stats.Expected, ShouldEqual, 3)
				So(stats.Confirmations, ShouldEqual, 3)
			})
		})

		Convey("When five referees join a four-referee licence", func() {
			stats, err := Run(ctx, scenario(srv.URL, 5, 2, 2))

			Convey("Then one should be refused and two votes should not be enough", func() {
				So(err, ShouldBeNil)
				So(stats.RefereesAdmitted, ShouldEqual, 4)
				So(stats.RefereesRejected, ShouldEqual, 1)
				So(stats.Required, ShouldEqual, 3)
				So(stats.Expected, ShouldEqual, 0)
				So(stats.Confirmations, ShouldEqual, 0)
			})
		})

		Convey("When a lone unlicensed referee signals", func() {
			cfg := scenario(srv.URL, 1, 1, 2)
			cfg.LicenseKey = ""
			stats, err := Run(ctx, cfg)

			Convey("Then each signal should confirm on its own", func() {
				So(err, ShouldBeNil)
				So(stats.Required, ShouldEqual, 1)
				So(stats.Confirmations, ShouldEqual, 2)
			})
		})
	})

	Convey("Given a relay that has not started", t, func() {
		srv, _ := newRelay(false)
		defer srv.Close()

		Convey("When the simulation runs", func() {
			_, err := Run(context.Background(), scenario(srv.URL, 1, 1, 1))

			Convey("Then the health check should fail", func() {
				So(errors.Is(err, ErrUnhealthy), ShouldBeTrue)
			})
		})
	})
}

func TestConfigValidate(t *testing.T) {
	Convey("Given scenario configurations", t, func() {
		ok := scenario("http://localhost:8080", 3, 2, 5)
		So(ok.Validate(), ShouldBeNil)

		bad := []*Config{
			scenario("", 3, 2, 5),
			scenario("http://x", 0, 0, 5),
			scenario("http://x", 3, 4, 5),
			scenario("http://x", 3, 2, maxRounds+1),
		}
		noTimeout := scenario("http://x", 3, 2, 5)
		noTimeout.Timeout = 0
		bad = append(bad, noTimeout)

		for _, cfg := range bad {
			err := cfg.Validate()
			So(errors.Is(err, ErrInvalidConfig), ShouldBeTrue)
		}
	})
}

func TestRoundFrame(t *testing.T) {
	Convey("Given every playable round", t, func() {
		seen := make(map[frame]bool, maxRounds)
		for i := range maxRounds {
			f := roundFrame(i)
			So(seen[f], ShouldBeFalse)
			So(f.Magnitude, ShouldBeBetweenOrEqual, 1, 10)
			seen[f] = true
		}
	})
}

func TestWSURL(t *testing.T) {
	Convey("Given relay base URLs", t, func() {
		u, err := wsURL("http://localhost:8080", "/ws")
		So(err, ShouldBeNil)
		So(u, ShouldEqual, "ws://localhost:8080/ws")

		u, err = wsURL("https://relay.example/", "/ws")
		So(err, ShouldBeNil)
		So(u, ShouldEqual, "wss://relay.example/ws")

		_, err = wsURL("://bad", "/ws")
		So(errors.Is(err, ErrInvalidConfig), ShouldBeTrue)
	})
}
