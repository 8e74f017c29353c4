package board

import (
	"log/slog"
	"sort"
	"time"

	"github.com/TonyTwoStep/mini-metro-display/internal/models"
)

// DefaultMatchTolerance is the window used to pair a scheduled entry with a
// realtime entry when neither carries a trip identifier.
const DefaultMatchTolerance = 2 * time.Minute

// Matcher decides whether a scheduled record and a realtime record describe
// the same physical departure. The pairing heuristic is approximate when
// trip identifiers are absent, so it lives behind this single replaceable
// function with a tunable tolerance.
type Matcher func(scheduled, realtime models.DepartureRecord) bool

// MatchWithTolerance builds the default matcher: trip identifiers win when
// both are present; otherwise records pair on route, destination, and
// scheduled times within the tolerance window.
func MatchWithTolerance(tolerance time.Duration) Matcher {
	return func(scheduled, realtime models.DepartureRecord) bool {
		if scheduled.TripID != "" && realtime.TripID != "" {
			return scheduled.TripID == realtime.TripID
		}
		if scheduled.RouteID == "" || scheduled.RouteID != realtime.RouteID {
			return false
		}
		// Realtime feeds frequently omit the headsign; an empty one is a
		// wildcard rather than a mismatch
		if scheduled.Headsign != "" && realtime.Headsign != "" && scheduled.Headsign != realtime.Headsign {
			return false
		}
		if scheduled.Scheduled == nil {
			return false
		}
		rtTime := realtime.Scheduled
		if rtTime == nil {
			rtTime = realtime.Estimated
		}
		if rtTime == nil {
			return false
		}
		diff := rtTime.Sub(*scheduled.Scheduled)
		if diff < 0 {
			diff = -diff
		}
		return diff <= tolerance
	}
}

// Reconciler merges scheduled and realtime departure records for one stop
// into a single canonical, time-ordered list
type Reconciler struct {
	Match Matcher
}

// NewReconciler creates a reconciler with the default matching heuristic
func NewReconciler() *Reconciler {
	return &Reconciler{Match: MatchWithTolerance(DefaultMatchTolerance)}
}

// Reconcile produces the canonical departure list for one stop. now is
// injected rather than read internally so the merge is deterministic.
// Departures strictly before now are discarded; a board never shows a
// departure that has already left. Malformed records are dropped
// individually, never fatally.
func (r *Reconciler) Reconcile(stop models.Stop, scheduled, realtime []models.DepartureRecord, now time.Time) []models.CanonicalDeparture {
	scheduled = validRecords(stop, scheduled)
	realtime = validRecords(stop, realtime)

	used := make([]bool, len(realtime))
	var result []models.CanonicalDeparture

	for _, sched := range scheduled {
		matched := false
		for i, rt := range realtime {
			if used[i] || !r.Match(sched, rt) {
				continue
			}
			used[i] = true
			matched = true
			result = append(result, canonical(stop, merge(sched, rt), models.ProvenanceRealtime))
			break
		}
		if matched {
			continue
		}

		// Some providers deliver an estimate inline with the schedule;
		// that still counts as live confirmation
		if sched.Estimated != nil {
			result = append(result, canonical(stop, sched, models.ProvenanceRealtime))
		} else {
			result = append(result, canonical(stop, sched, models.ProvenanceScheduled))
		}
	}

	// Unmatched realtime entries are trusted: the live feed knows about
	// departures the timetable does not
	for i, rt := range realtime {
		if !used[i] {
			result = append(result, canonical(stop, rt, models.ProvenanceRealtime))
		}
	}

	filtered := result[:0]
	for _, dep := range result {
		if dep.Departure.Before(now) {
			continue
		}
		filtered = append(filtered, dep)
	}
	result = filtered

	sort.SliceStable(result, func(i, j int) bool {
		if !result[i].Departure.Equal(result[j].Departure) {
			return result[i].Departure.Before(result[j].Departure)
		}
		if result[i].RouteID != result[j].RouteID {
			return result[i].RouteID < result[j].RouteID
		}
		return result[i].Headsign < result[j].Headsign
	})

	return result
}

func validRecords(stop models.Stop, records []models.DepartureRecord) []models.DepartureRecord {
	valid := records[:0:0]
	for _, record := range records {
		if !record.Valid() {
			slog.Warn("dropping invalid departure record",
				"stop_id", stop.ID,
				"route_id", record.RouteID,
				"trip_id", record.TripID,
			)
			continue
		}
		valid = append(valid, record)
	}
	return valid
}

// merge folds a matched realtime record into its scheduled counterpart. The
// realtime estimate is authoritative for the time; descriptive fields come
// from whichever side has them.
func merge(sched, rt models.DepartureRecord) models.DepartureRecord {
	out := sched
	out.Source = models.SourceBoth
	if rt.Estimated != nil {
		out.Estimated = rt.Estimated
	} else {
		out.Estimated = rt.Scheduled
	}
	if out.Headsign == "" {
		out.Headsign = rt.Headsign
	}
	if out.RouteName == "" {
		out.RouteName = rt.RouteName
	}
	if out.TripID == "" {
		out.TripID = rt.TripID
	}
	return out
}

func canonical(stop models.Stop, record models.DepartureRecord, prov models.Provenance) models.CanonicalDeparture {
	when := record.Scheduled
	if prov == models.ProvenanceRealtime && record.Estimated != nil {
		when = record.Estimated
	}
	if when == nil {
		when = record.Estimated
	}

	name := record.RouteName
	if name == "" {
		name = record.RouteID
	}

	return models.CanonicalDeparture{
		StopID:             stop.ID,
		StopName:           stop.Name,
		StopDistanceMeters: stop.DistanceMeters,
		RouteID:            record.RouteID,
		RouteName:          name,
		Mode:               record.Mode,
		Headsign:           record.Headsign,
		TripID:             record.TripID,
		Departure:          *when,
		Provenance:         prov,
	}
}
