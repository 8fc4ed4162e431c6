package api

import (
	"net/http"

	"github.com/okian/attackmap/internal/adapters/render/svg"
	"github.com/okian/attackmap/internal/animation/panel"
)

// FrameSource samples the animation.
type FrameSource interface {
	Frame() panel.Frame
}

// FrameHandler serves the current frame as JSON or SVG.
type FrameHandler struct {
	source FrameSource
}

// NewFrameHandler creates a new frame handler.
func NewFrameHandler(source FrameSource) *FrameHandler {
	return &FrameHandler{source: source}
}

// HandleFrame handles GET /frame.
func (h *FrameHandler) HandleFrame(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, h.source.Frame())
}

// HandleSVG handles GET /map.svg.
func (h *FrameHandler) HandleSVG(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "no-store")
	_ = svg.Render(w, h.source.Frame())
}
