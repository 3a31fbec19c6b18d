package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/okian/hantei/internal/adapters/http/api"
	"github.com/okian/hantei/pkg/metrics"
	. "github.com/smartystreets/goconvey/convey"
)

type mockStatsProvider struct {
	stats map[string]any
}

func (m *mockStatsProvider) GetStats() map[string]any {
	return m.stats
}

func newMux(stats map[string]any) *http.ServeMux {
	ws := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	server := api.NewServer(&mockStatsProvider{stats: stats}, ws)
	mux := http.NewServeMux()
	server.Register(context.Background(), mux, "/ws")
	return mux
}

func serve(mux *http.ServeMux, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func TestServer_Register(t *testing.T) {
	Convey("Given a new API server for a running relay", t, func() {
		mux := newMux(map[string]any{"started": true, "sessions": 3, "partitions": 1})

		Convey("Then the websocket route should reach the protocol handler", func() {
			So(serve(mux, http.MethodGet, "/ws").Code, ShouldEqual, http.StatusTeapot)
		})

		Convey("Then health should report ok", func() {
			w := serve(mux, http.MethodGet, "/healthz")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"status":"ok"`)
		})

		Convey("Then stats should be served as JSON", func() {
			w := serve(mux, http.MethodGet, "/stats")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Header().Get("Content-Type"), ShouldStartWith, "application/json")

			var body map[string]any
			So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
			So(body["sessions"], ShouldEqual, 3)
			So(body["partitions"], ShouldEqual, 1)
		})

		Convey("Then stats should refuse writes", func() {
			w := serve(mux, http.MethodPost, "/stats")
			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
			So(w.Body.String(), ShouldContainSubstring, "method_not_allowed")
		})

		Convey("Then metrics should expose the relay registry", func() {
			metrics.RecordConfirmation(2)
			w := serve(mux, http.MethodGet, "/metrics")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "hantei_relay_confirmations_total")
		})

		Convey("Then the board page should be served", func() {
			w := serve(mux, http.MethodGet, "/board")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "register_display")
		})
	})

	Convey("Given a relay that has not started", t, func() {
		mux := newMux(map[string]any{"started": false})

		Convey("Then health should report unavailable", func() {
			w := serve(mux, http.MethodGet, "/healthz")
			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
			So(strings.Contains(w.Body.String(), "not_started"), ShouldBeTrue)
		})
	})

	Convey("Given a nil mux", t, func() {
		server := api.NewServer(&mockStatsProvider{}, http.NotFoundHandler())

		Convey("Then registering should panic", func() {
			So(func() { server.Register(context.Background(), nil, "/ws") }, ShouldPanic)
		})
	})
}

func TestMetricsMiddleware(t *testing.T) {
	Convey("Given a wrapped handler that fails", t, func() {
		h := api.MetricsMiddleware(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "nope", http.StatusBadRequest)
		}, "test")

		Convey("Then the status should pass through", func() {
			w := httptest.NewRecorder()
			h(w, httptest.NewRequest(http.MethodGet, "/test", nil))
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}
