package handlers

import (
	"net/http"
)

type RootHandler struct{}

func NewRootHandler() *RootHandler {
	return &RootHandler{}
}

func (h *RootHandler) Index(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":        "mini-metro-display",
		"description": "Live multi-modal transit departures board",
		"endpoints": map[string]string{
			"GET /":          "API information",
			"GET /health":    "Health check",
			"GET /api/board": "Current departures board snapshot",
			"GET /metrics":   "Prometheus metrics",
		},
	})
}

func (h *RootHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]any{
		"error":   "Route not found",
		"message": "Check the root endpoint (/) for available routes",
	})
}
