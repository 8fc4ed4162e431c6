// Package api exposes the attack map over HTTP: event ingest, the attack
// log, rendered frames and operational endpoints.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/httprate"

	"github.com/okian/attackmap/internal/animation/panel"
	"github.com/okian/attackmap/internal/domain/dedupe"
	"github.com/okian/attackmap/internal/domain/feed"
	"github.com/okian/attackmap/internal/domain/model"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	dedupe.Deduper

	// Enqueue pushes an attack for async processing. Returns false on backpressure.
	Enqueue(ctx context.Context, e model.AttackEvent) bool

	// Log returns up to limit attack log entries, newest first.
	Log(limit int) []feed.Entry

	// Frame samples the animation.
	Frame() panel.Frame
}

// Server wires HTTP routes for the attack map.
type Server struct {
	healthHandler    *HealthHandler
	statsHandler     *StatsHandler
	eventsHandler    *EventsHandler
	logHandler       *LogHandler
	frameHandler     *FrameHandler
	dashboardHandler *dashboardHandler
	ratePerMinute    int
}

// NewServer creates a new API server with all handlers. ratePerMinute bounds
// POST /events per client IP; zero disables the limit.
func NewServer(deps Dependencies, statsProvider StatsProvider, ratePerMinute int) *Server {
	return &Server{
		healthHandler:    NewHealthHandler(),
		statsHandler:     NewStatsHandler(statsProvider),
		eventsHandler:    NewEventsHandler(deps),
		logHandler:       NewLogHandler(deps),
		frameHandler:     NewFrameHandler(deps),
		dashboardHandler: newDashboardHandler(),
		ratePerMinute:    ratePerMinute,
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	events := http.Handler(MetricsMiddleware(s.eventsHandler.HandlePostEvent, "events"))
	if s.ratePerMinute > 0 {
		events = httprate.LimitByIP(s.ratePerMinute, time.Minute)(events)
	}

	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/dashboard", s.dashboardHandler.HandleDashboard)
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.Handle("/events", events)
	mux.HandleFunc("/log", MetricsMiddleware(s.logHandler.HandleGetLog, "log"))
	mux.HandleFunc("/frame", MetricsMiddleware(s.frameHandler.HandleFrame, "frame"))
	mux.HandleFunc("/map.svg", MetricsMiddleware(s.frameHandler.HandleSVG, "map"))
}

type ackResponse struct {
	Status     string `json:"status"`
	Accepted   int    `json:"accepted"`
	Duplicates int    `json:"duplicates"`
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
