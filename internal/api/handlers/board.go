package handlers

import (
	"net/http"
	"time"

	"github.com/TonyTwoStep/mini-metro-display/internal/geo"
	"github.com/TonyTwoStep/mini-metro-display/internal/models"
)

// SnapshotProvider abstracts the refresh engine for testability.
type SnapshotProvider interface {
	Snapshot() models.Snapshot
}

type BoardHandler struct {
	engine SnapshotProvider

	// now is injectable for tests
	now func() time.Time
}

func NewBoardHandler(engine SnapshotProvider) *BoardHandler {
	return &BoardHandler{engine: engine, now: time.Now}
}

// departureView is one display row on the board
type departureView struct {
	StopName           string  `json:"stop_name"`
	StopDistanceMeters float64 `json:"stop_distance_meters"`
	StopDistanceMiles  float64 `json:"stop_distance_miles"`
	Route              string  `json:"route"`
	Mode               string  `json:"mode"`
	Headsign           string  `json:"headsign"`
	Departure          string  `json:"departure"`
	MinutesAway        int     `json:"minutes_away"`
	Countdown          string  `json:"countdown"`
	Provenance         string  `json:"provenance"`
}

// GetBoard returns the latest snapshot in display-ready form. An
// unavailable snapshot is served with its reason so the renderer can mark
// the board stale instead of showing a silently empty list.
func (h *BoardHandler) GetBoard(w http.ResponseWriter, r *http.Request) {
	snap := h.engine.Snapshot()
	now := h.now()

	views := make([]departureView, 0, len(snap.Departures))
	for _, dep := range snap.Departures {
		views = append(views, departureView{
			StopName:           dep.StopName,
			StopDistanceMeters: dep.StopDistanceMeters,
			StopDistanceMiles:  geo.MetersToMiles(dep.StopDistanceMeters),
			Route:              SimplifyRouteName(dep.RouteName),
			Mode:               string(dep.Mode),
			Headsign:           dep.Headsign,
			Departure:          dep.Departure.Format(time.RFC3339),
			MinutesAway:        dep.MinutesAway(now),
			Countdown:          Countdown(dep, now),
			Provenance:         string(dep.Provenance),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"generated_at": snap.GeneratedAt.Format(time.RFC3339),
		"unavailable":  snap.Unavailable,
		"reason":       snap.Reason,
		"count":        len(views),
		"departures":   views,
	})
}
