package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options on a private registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then it should register its collectors", func() {
				So(manager, ShouldNotBeNil)
				manager.confirmations.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				So(len(families), ShouldBeGreaterThan, 0)
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithMetricPrefix("x"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithMetricsEnabled(true),
				WithRefreshInterval(10*time.Second),
				WithCustomLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then metric names should carry namespace, subsystem and prefix", func() {
				manager.confirmations.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)

				names := make([]string, 0, len(families))
				for _, f := range families {
					names = append(names, f.GetName())
				}
				So(names, ShouldContain, "test_unit_x_confirmations_total")
			})
		})

		Convey("When recording is disabled and the refresh interval is set", func() {
			manager := NewManager(
				WithPrometheusRegistry(prometheus.NewRegistry()),
				WithMetricsEnabled(false),
				WithRefreshInterval(3*time.Second),
			)

			Convey("Then the manager should report both", func() {
				So(manager.Enabled(), ShouldBeFalse)
				So(manager.RefreshInterval(), ShouldEqual, 3*time.Second)
			})
		})

		Convey("When no refresh interval is given", func() {
			manager := NewManager(WithPrometheusRegistry(prometheus.NewRegistry()))

			Convey("Then the default should apply", func() {
				So(manager.Enabled(), ShouldBeTrue)
				So(manager.RefreshInterval(), ShouldEqual, defaultRefreshInterval)
				So(RefreshInterval(), ShouldEqual, defaultRefreshInterval)
			})
		})

		Convey("When the same registry is used twice", func() {
			registry := prometheus.NewRegistry()
			NewManager(WithPrometheusRegistry(registry))

			Convey("Then registration should panic on duplicates", func() {
				So(func() { NewManager(WithPrometheusRegistry(registry)) }, ShouldPanic)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("When recording consensus metrics", func() {
			beforeConfirm := testutil.ToFloat64(globalManager.confirmations)
			beforePurged := testutil.ToFloat64(globalManager.signalsPurged)
			beforeRed := testutil.ToFloat64(globalManager.signalsIngested.WithLabelValues("red"))

			RecordConfirmation(2)
			RecordSignalsPurged(3)
			RecordSignalsPurged(0)
			RecordSignalIngested("red")
			RecordSignalDebounced()

			Convey("Then the counters should move", func() {
				So(testutil.ToFloat64(globalManager.confirmations), ShouldEqual, beforeConfirm+1)
				So(testutil.ToFloat64(globalManager.signalsPurged), ShouldEqual, beforePurged+3)
				So(testutil.ToFloat64(globalManager.signalsIngested.WithLabelValues("red")), ShouldEqual, beforeRed+1)
			})
		})

		Convey("When updating session gauges", func() {
			UpdateSessions("referee", 4)
			UpdatePartitions(2)

			Convey("Then the gauges should reflect the values", func() {
				So(testutil.ToFloat64(globalManager.sessions.WithLabelValues("referee")), ShouldEqual, 4)
				So(testutil.ToFloat64(globalManager.partitions), ShouldEqual, 2)
			})
		})

		Convey("When recording the remaining helpers", func() {
			So(func() {
				RecordJudgeAction("penalty")
				RecordRegistration("display")
				RecordCapacityRejection("free")
				RecordEviction()
				RecordFrameRejected("malformed")
				RecordFrameDropped()
				RecordFrameSent(0.4)
				RecordLicenceLookup("ok", 12)
				RecordHTTPRequest("/stats", "GET", "200")
				RecordHTTPRequestDuration("/stats", "GET", "200", 1.5)
				UpdateSystemMemoryUsage(1024)
				UpdateSystemGoroutineCount(10)
			}, ShouldNotPanic)
		})

		Convey("When recording is switched off", func() {
			SetEnabled(false)
			defer SetEnabled(true)

			beforeEvictions := testutil.ToFloat64(globalManager.evictions)
			beforePartitions := testutil.ToFloat64(globalManager.partitions)
			RecordEviction()
			UpdatePartitions(int(beforePartitions) + 7)

			Convey("Then counters and gauges should stay put", func() {
				So(testutil.ToFloat64(globalManager.evictions), ShouldEqual, beforeEvictions)
				So(testutil.ToFloat64(globalManager.partitions), ShouldEqual, beforePartitions)
			})
		})

		Convey("Then the custom registry should be exposed", func() {
			So(GetRegistry(), ShouldNotBeNil)
		})
	})
}
