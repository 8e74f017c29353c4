package board

import (
	"sort"
	"time"

	"github.com/TonyTwoStep/mini-metro-display/internal/models"
)

// BuildSnapshot assembles the final cross-stop, cross-mode board from the
// per-stop reconciled lists. The union is re-sorted with the same tie-break
// the reconciler uses, so the result is deterministic regardless of the
// order per-stop results arrived in. maxEntries of 0 means unlimited.
//
// Identical inputs produce an identical snapshot apart from GeneratedAt.
func BuildSnapshot(stops []models.Stop, perStop map[string][]models.CanonicalDeparture, maxEntries int, now time.Time) models.Snapshot {
	var all []models.CanonicalDeparture
	// Iterate the stop slice, not the map, for deterministic concatenation
	for _, stop := range stops {
		all = append(all, perStop[stop.ID]...)
	}

	all = dedupeByTrip(all)

	sort.SliceStable(all, func(i, j int) bool {
		if !all[i].Departure.Equal(all[j].Departure) {
			return all[i].Departure.Before(all[j].Departure)
		}
		if all[i].RouteID != all[j].RouteID {
			return all[i].RouteID < all[j].RouteID
		}
		return all[i].Headsign < all[j].Headsign
	})

	if maxEntries > 0 && len(all) > maxEntries {
		all = all[:maxEntries]
	}

	return models.Snapshot{
		Departures:  all,
		GeneratedAt: now,
	}
}

// dedupeByTrip collapses rows describing the same physical trip observed at
// more than one monitored stop, keeping the stop nearest the origin. Rows
// without a trip identifier cannot be paired safely and pass through as-is.
func dedupeByTrip(all []models.CanonicalDeparture) []models.CanonicalDeparture {
	index := make(map[string]int, len(all))
	out := all[:0:0]
	for _, dep := range all {
		if dep.TripID == "" {
			out = append(out, dep)
			continue
		}
		if i, ok := index[dep.TripID]; ok {
			if dep.StopDistanceMeters < out[i].StopDistanceMeters {
				out[i] = dep
			}
			continue
		}
		index[dep.TripID] = len(out)
		out = append(out, dep)
	}
	return out
}

// UnavailableSnapshot marks the board as lacking data, which the display
// must distinguish from a truly empty timetable. The previous departures are
// carried along so the renderer can keep showing stale-but-valid data.
func UnavailableSnapshot(reason string, previous models.Snapshot, now time.Time) models.Snapshot {
	return models.Snapshot{
		Departures:  previous.Departures,
		GeneratedAt: now,
		Unavailable: true,
		Reason:      reason,
	}
}
