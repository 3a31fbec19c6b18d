// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"
)

// Server wires HTTP routes around the websocket endpoint.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	metricsHandler http.Handler
	boardHandler   *boardHandler
	ws             http.Handler
}

// NewServer creates a new API server with all handlers. ws serves the
// referee and display protocol.
func NewServer(statsProvider StatsProvider, ws http.Handler) *Server {
	return &Server{
		healthHandler:  NewHealthHandler(statsProvider),
		statsHandler:   NewStatsHandler(statsProvider),
		metricsHandler: NewMetricsHandler(),
		boardHandler:   newBoardHandler(),
		ws:             ws,
	}
}

// Register attaches all HTTP routes to mux. The websocket route is not
// wrapped by MetricsMiddleware since it is held open for the whole session.
func (s *Server) Register(_ context.Context, mux *http.ServeMux, wsPath string) {
	if mux == nil {
		panic("mux is nil")
	}

	mux.Handle(wsPath, s.ws)
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.Handle("/metrics", s.metricsHandler)
	mux.HandleFunc("/board", s.boardHandler.HandleBoard)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
