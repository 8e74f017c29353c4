package handlers

import (
	"net/http"
	"time"
)

type HealthHandler struct {
	startTime time.Time
	engine    SnapshotProvider
}

func NewHealthHandler(engine SnapshotProvider) *HealthHandler {
	return &HealthHandler{startTime: time.Now(), engine: engine}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	snap := h.engine.Snapshot()

	status := "OK"
	if snap.Unavailable {
		status = "DEGRADED"
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":          status,
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
		"uptime":          time.Since(h.startTime).String(),
		"last_refresh":    snap.GeneratedAt.Format(time.RFC3339),
		"board_available": !snap.Unavailable,
	})
}
