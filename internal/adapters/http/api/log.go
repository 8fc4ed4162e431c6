package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/okian/attackmap/internal/domain/feed"
)

const (
	defaultLogLimit = 50
	maxLogLimit     = 1000
)

// LogSource provides the attack log.
type LogSource interface {
	Log(limit int) []feed.Entry
}

// LogHandler serves GET /log.
type LogHandler struct {
	source LogSource
}

// NewLogHandler creates a new log handler.
func NewLogHandler(source LogSource) *LogHandler {
	return &LogHandler{source: source}
}

// HandleGetLog returns the newest attacks first. ?limit= defaults to 50.
func (h *LogHandler) HandleGetLog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	limit := defaultLogLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: limit must be a positive integer", ErrBadRequest))
			return
		}
		limit = min(n, maxLogLimit)
	}
	entries := h.source.Log(limit)
	if entries == nil {
		entries = []feed.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}
