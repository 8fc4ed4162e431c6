package api

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/okian/attackmap/internal/adapters/stream"
	"github.com/okian/attackmap/internal/domain/dedupe"
	"github.com/okian/attackmap/internal/domain/model"
	"github.com/okian/attackmap/pkg/metrics"
)

const maxEventBody = 1 << 20

// EventDependencies defines the interface for event processing dependencies.
type EventDependencies interface {
	dedupe.Deduper
	Enqueue(ctx context.Context, e model.AttackEvent) bool
}

// EventsHandler handles event requests.
type EventsHandler struct {
	deps EventDependencies
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(deps EventDependencies) *EventsHandler {
	return &EventsHandler{deps: deps}
}

// HandlePostEvent handles POST /events. The body is one attack or an array
// of attacks; they are queued in order. Events with an event_id are
// deduplicated, the rest always count as new.
func (h *EventsHandler) HandlePostEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxEventBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}
	events, err := stream.Decode(body)
	if err != nil {
		metrics.RecordEventRejected("invalid")
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}

	ack := ackResponse{Status: "accepted"}
	for _, ev := range events {
		metrics.RecordEventReceived("http")
		if ev.EventID != "" && h.deps.SeenAndRecord(r.Context(), ev.EventID) {
			metrics.RecordEventDuplicate()
			ack.Duplicates++
			continue
		}
		if ok := h.deps.Enqueue(r.Context(), ev); !ok {
			if ev.EventID != "" {
				h.deps.Unrecord(r.Context(), ev.EventID)
			}
			writeError(w, http.StatusTooManyRequests, "backpressure",
				fmt.Errorf("%w: accepted %d of %d", ErrBackpressure, ack.Accepted, len(events)))
			return
		}
		ack.Accepted++
	}

	if ack.Accepted == 0 && ack.Duplicates > 0 {
		ack.Status = "duplicate"
		writeJSON(w, http.StatusOK, ack)
		return
	}
	writeJSON(w, http.StatusAccepted, ack)
}
