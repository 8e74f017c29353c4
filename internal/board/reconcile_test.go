package board

import (
	"testing"
	"time"

	"github.com/TonyTwoStep/mini-metro-display/internal/models"
)

var testStop = models.Stop{
	ID:             "s1",
	Name:           "Main St",
	DistanceMeters: 120,
}

func tm(t *testing.T, clock string) time.Time {
	t.Helper()
	parsed, err := time.Parse("2006-01-02 15:04", "2026-08-31 "+clock)
	if err != nil {
		t.Fatalf("parse time %q: %v", clock, err)
	}
	return parsed
}

func tp(t *testing.T, clock string) *time.Time {
	t.Helper()
	parsed := tm(t, clock)
	return &parsed
}

func TestReconcileTripIDMatch(t *testing.T) {
	rec := NewReconciler()
	now := tm(t, "10:00")

	scheduled := []models.DepartureRecord{
		{StopID: "s1", RouteID: "r1", TripID: "t1", Headsign: "Downtown", Scheduled: tp(t, "10:05"), Source: models.SourceScheduled},
	}
	realtime := []models.DepartureRecord{
		{StopID: "s1", RouteID: "r1", TripID: "t1", Estimated: tp(t, "10:07"), Source: models.SourceRealtime},
	}

	got := rec.Reconcile(testStop, scheduled, realtime, now)

	if len(got) != 1 {
		t.Fatalf("expected exactly one departure, got %d", len(got))
	}
	if !got[0].Departure.Equal(tm(t, "10:07")) {
		t.Errorf("expected realtime estimate 10:07 to win, got %v", got[0].Departure)
	}
	if got[0].Provenance != models.ProvenanceRealtime {
		t.Errorf("expected realtime-confirmed provenance, got %s", got[0].Provenance)
	}
	if got[0].Headsign != "Downtown" {
		t.Errorf("expected headsign carried from schedule, got %q", got[0].Headsign)
	}
	if got[0].TripID != "t1" {
		t.Errorf("expected trip id carried onto the canonical departure, got %q", got[0].TripID)
	}
}

func TestReconcileTripIDMatchSymmetric(t *testing.T) {
	// The merge result must not depend on which list a matching record
	// appeared in first
	rec := NewReconciler()
	now := tm(t, "10:00")

	sched := models.DepartureRecord{StopID: "s1", RouteID: "r1", TripID: "t1", Scheduled: tp(t, "10:05"), Source: models.SourceScheduled}
	rt := models.DepartureRecord{StopID: "s1", RouteID: "r1", TripID: "t1", Estimated: tp(t, "10:07"), Source: models.SourceRealtime}

	a := rec.Reconcile(testStop, []models.DepartureRecord{sched}, []models.DepartureRecord{rt}, now)
	b := rec.Reconcile(testStop,
		[]models.DepartureRecord{{StopID: "s1", RouteID: "r1", TripID: "t1", Scheduled: tp(t, "10:05"), Source: models.SourceScheduled}},
		[]models.DepartureRecord{{StopID: "s1", RouteID: "r1", TripID: "t1", Estimated: tp(t, "10:07"), Source: models.SourceRealtime}},
		now)

	if len(a) != 1 || len(b) != 1 {
		t.Fatalf("expected one departure each, got %d and %d", len(a), len(b))
	}
	if a[0].Provenance != models.ProvenanceRealtime || b[0].Provenance != models.ProvenanceRealtime {
		t.Errorf("both merges should be realtime-confirmed, got %s and %s", a[0].Provenance, b[0].Provenance)
	}
	if !a[0].Departure.Equal(b[0].Departure) {
		t.Errorf("merge result differs: %v vs %v", a[0].Departure, b[0].Departure)
	}
}

func TestReconcileDiscardsDepartedEntries(t *testing.T) {
	rec := NewReconciler()
	now := tm(t, "10:11")

	scheduled := []models.DepartureRecord{
		{StopID: "s1", RouteID: "r2", Scheduled: tp(t, "10:10"), Source: models.SourceScheduled},
	}

	got := rec.Reconcile(testStop, scheduled, nil, now)
	if len(got) != 0 {
		t.Fatalf("expected already-departed entry discarded, got %d departures", len(got))
	}
}

func TestReconcileKeepsEntryAtExactlyNow(t *testing.T) {
	rec := NewReconciler()
	now := tm(t, "10:10")

	scheduled := []models.DepartureRecord{
		{StopID: "s1", RouteID: "r2", Scheduled: tp(t, "10:10"), Source: models.SourceScheduled},
	}

	got := rec.Reconcile(testStop, scheduled, nil, now)
	if len(got) != 1 {
		t.Fatalf("departure at now is not yet gone, expected it kept, got %d", len(got))
	}
}

func TestReconcileHeuristicMatch(t *testing.T) {
	tests := []struct {
		name      string
		rtTime    string
		rtRoute   string
		rtHead    string
		wantCount int
		wantProv  models.Provenance
	}{
		{
			name:      "within tolerance merges",
			rtTime:    "10:06",
			rtRoute:   "r1",
			rtHead:    "Downtown",
			wantCount: 1,
			wantProv:  models.ProvenanceRealtime,
		},
		{
			name:      "outside tolerance stays separate",
			rtTime:    "10:09",
			rtRoute:   "r1",
			rtHead:    "Downtown",
			wantCount: 2,
		},
		{
			name:      "different route stays separate",
			rtTime:    "10:06",
			rtRoute:   "r9",
			rtHead:    "Downtown",
			wantCount: 2,
		},
		{
			name:      "different headsign stays separate",
			rtTime:    "10:06",
			rtRoute:   "r1",
			rtHead:    "Uptown",
			wantCount: 2,
		},
		{
			name:      "empty realtime headsign is a wildcard",
			rtTime:    "10:06",
			rtRoute:   "r1",
			rtHead:    "",
			wantCount: 1,
			wantProv:  models.ProvenanceRealtime,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := NewReconciler()
			now := tm(t, "10:00")

			scheduled := []models.DepartureRecord{
				{StopID: "s1", RouteID: "r1", Headsign: "Downtown", Scheduled: tp(t, "10:05"), Source: models.SourceScheduled},
			}
			realtime := []models.DepartureRecord{
				{StopID: "s1", RouteID: tt.rtRoute, Headsign: tt.rtHead, Estimated: tp(t, tt.rtTime), Source: models.SourceRealtime},
			}

			got := rec.Reconcile(testStop, scheduled, realtime, now)
			if len(got) != tt.wantCount {
				t.Fatalf("expected %d departures, got %d", tt.wantCount, len(got))
			}
			if tt.wantCount == 1 && got[0].Provenance != tt.wantProv {
				t.Errorf("expected provenance %s, got %s", tt.wantProv, got[0].Provenance)
			}
		})
	}
}

func TestReconcileUnmatchedEntries(t *testing.T) {
	rec := NewReconciler()
	now := tm(t, "10:00")

	scheduled := []models.DepartureRecord{
		{StopID: "s1", RouteID: "r1", Scheduled: tp(t, "10:05"), Source: models.SourceScheduled},
	}
	realtime := []models.DepartureRecord{
		{StopID: "s1", RouteID: "r2", TripID: "t9", Estimated: tp(t, "10:03"), Source: models.SourceRealtime},
	}

	got := rec.Reconcile(testStop, scheduled, realtime, now)
	if len(got) != 2 {
		t.Fatalf("expected 2 departures, got %d", len(got))
	}

	// Sorted ascending: the unscheduled realtime entry at 10:03 first
	if got[0].RouteID != "r2" || got[0].Provenance != models.ProvenanceRealtime {
		t.Errorf("expected trusted realtime-only entry first, got %+v", got[0])
	}
	if got[1].RouteID != "r1" || got[1].Provenance != models.ProvenanceScheduled {
		t.Errorf("expected scheduled-only entry second, got %+v", got[1])
	}
}

func TestReconcileInlineEstimateConfirms(t *testing.T) {
	// Providers that deliver estimates inline with the schedule count as
	// live confirmation even with no separate realtime record
	rec := NewReconciler()
	now := tm(t, "10:00")

	scheduled := []models.DepartureRecord{
		{StopID: "s1", RouteID: "r1", Scheduled: tp(t, "10:05"), Estimated: tp(t, "10:08"), Source: models.SourceBoth},
	}

	got := rec.Reconcile(testStop, scheduled, nil, now)
	if len(got) != 1 {
		t.Fatalf("expected 1 departure, got %d", len(got))
	}
	if got[0].Provenance != models.ProvenanceRealtime {
		t.Errorf("inline estimate should confirm, got %s", got[0].Provenance)
	}
	if !got[0].Departure.Equal(tm(t, "10:08")) {
		t.Errorf("estimate should win over schedule, got %v", got[0].Departure)
	}
}

func TestReconcileDropsInvalidRecords(t *testing.T) {
	rec := NewReconciler()
	now := tm(t, "10:00")

	scheduled := []models.DepartureRecord{
		{StopID: "s1", RouteID: "bad"}, // no time at all
		{StopID: "s1", RouteID: "r1", Scheduled: tp(t, "10:05"), Source: models.SourceScheduled},
	}

	got := rec.Reconcile(testStop, scheduled, nil, now)
	if len(got) != 1 {
		t.Fatalf("invalid record should be dropped without aborting, got %d departures", len(got))
	}
	if got[0].RouteID != "r1" {
		t.Errorf("surviving record should be r1, got %s", got[0].RouteID)
	}
}

func TestReconcileOrderingDeterministic(t *testing.T) {
	rec := NewReconciler()
	now := tm(t, "10:00")

	scheduled := []models.DepartureRecord{
		{StopID: "s1", RouteID: "rB", Headsign: "X", Scheduled: tp(t, "10:05"), Source: models.SourceScheduled},
		{StopID: "s1", RouteID: "rA", Headsign: "Z", Scheduled: tp(t, "10:05"), Source: models.SourceScheduled},
		{StopID: "s1", RouteID: "rA", Headsign: "Y", Scheduled: tp(t, "10:05"), Source: models.SourceScheduled},
	}

	got := rec.Reconcile(testStop, scheduled, nil, now)
	if len(got) != 3 {
		t.Fatalf("expected 3 departures, got %d", len(got))
	}

	wantOrder := []string{"rA-Y", "rA-Z", "rB-X"}
	for i, want := range wantOrder {
		key := got[i].RouteID + "-" + got[i].Headsign
		if key != want {
			t.Errorf("position %d: expected %s, got %s", i, want, key)
		}
	}
}
