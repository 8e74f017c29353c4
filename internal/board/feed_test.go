package board

import (
	"reflect"
	"testing"
	"time"

	"github.com/TonyTwoStep/mini-metro-display/internal/models"
)

func feedFixture(t *testing.T) ([]models.Stop, map[string][]models.CanonicalDeparture) {
	t.Helper()

	stops := []models.Stop{
		{ID: "s1", Name: "Main St", DistanceMeters: 120},
		{ID: "s2", Name: "Broad Ave", DistanceMeters: 480},
	}
	perStop := map[string][]models.CanonicalDeparture{
		"s1": {
			{StopID: "s1", RouteID: "r1", Headsign: "North", Departure: tm(t, "10:10"), Provenance: models.ProvenanceScheduled},
			{StopID: "s1", RouteID: "r2", Headsign: "South", Departure: tm(t, "10:03"), Provenance: models.ProvenanceRealtime},
		},
		"s2": {
			{StopID: "s2", RouteID: "r3", Headsign: "East", Departure: tm(t, "10:05"), Provenance: models.ProvenanceRealtime},
		},
	}
	return stops, perStop
}

func TestBuildSnapshotOrdersAcrossStops(t *testing.T) {
	stops, perStop := feedFixture(t)
	snap := BuildSnapshot(stops, perStop, 0, tm(t, "10:00"))

	if snap.Unavailable {
		t.Fatal("successful build must not be marked unavailable")
	}
	want := []string{"r2", "r3", "r1"}
	if len(snap.Departures) != len(want) {
		t.Fatalf("expected %d departures, got %d", len(want), len(snap.Departures))
	}
	for i, routeID := range want {
		if snap.Departures[i].RouteID != routeID {
			t.Errorf("position %d: expected %s, got %s", i, routeID, snap.Departures[i].RouteID)
		}
	}
}

func TestBuildSnapshotIdempotent(t *testing.T) {
	stops, perStop := feedFixture(t)
	now := tm(t, "10:00")

	a := BuildSnapshot(stops, perStop, 0, now)
	b := BuildSnapshot(stops, perStop, 0, now)

	if !reflect.DeepEqual(a, b) {
		t.Error("identical inputs must yield an identical snapshot")
	}
}

func TestBuildSnapshotTruncates(t *testing.T) {
	stops, perStop := feedFixture(t)
	snap := BuildSnapshot(stops, perStop, 2, tm(t, "10:00"))

	if len(snap.Departures) != 2 {
		t.Fatalf("expected truncation to 2 entries, got %d", len(snap.Departures))
	}
	// Truncation keeps the soonest departures
	if snap.Departures[0].RouteID != "r2" || snap.Departures[1].RouteID != "r3" {
		t.Errorf("expected [r2 r3], got [%s %s]", snap.Departures[0].RouteID, snap.Departures[1].RouteID)
	}
}

func TestBuildSnapshotDeduplicatesTripsAcrossStops(t *testing.T) {
	// The same trip calls at both monitored stops; one board row, at the
	// stop nearest the origin
	stops := []models.Stop{
		{ID: "s1", Name: "Main St", DistanceMeters: 120},
		{ID: "s2", Name: "Broad Ave", DistanceMeters: 480},
	}
	perStop := map[string][]models.CanonicalDeparture{
		"s1": {
			{StopID: "s1", StopDistanceMeters: 120, RouteID: "r1", Headsign: "North", TripID: "t100", Departure: tm(t, "10:10")},
		},
		"s2": {
			{StopID: "s2", StopDistanceMeters: 480, RouteID: "r1", Headsign: "North", TripID: "t100", Departure: tm(t, "10:12")},
		},
	}

	snap := BuildSnapshot(stops, perStop, 0, tm(t, "10:00"))

	if len(snap.Departures) != 1 {
		t.Fatalf("expected same trip collapsed to 1 row, got %d", len(snap.Departures))
	}
	if snap.Departures[0].StopID != "s1" {
		t.Errorf("expected the nearer stop to win, got %s", snap.Departures[0].StopID)
	}
	if !snap.Departures[0].Departure.Equal(tm(t, "10:10")) {
		t.Errorf("expected the nearer stop's time, got %v", snap.Departures[0].Departure)
	}
}

func TestBuildSnapshotKeepsRowsWithoutTripIDs(t *testing.T) {
	// Without trip identifiers two rows cannot be proven to be the same
	// trip, even on the same route
	stops := []models.Stop{
		{ID: "s1", DistanceMeters: 120},
		{ID: "s2", DistanceMeters: 480},
	}
	perStop := map[string][]models.CanonicalDeparture{
		"s1": {{StopID: "s1", StopDistanceMeters: 120, RouteID: "r1", Headsign: "North", Departure: tm(t, "10:10")}},
		"s2": {{StopID: "s2", StopDistanceMeters: 480, RouteID: "r1", Headsign: "North", Departure: tm(t, "10:12")}},
	}

	snap := BuildSnapshot(stops, perStop, 0, tm(t, "10:00"))

	if len(snap.Departures) != 2 {
		t.Fatalf("expected unidentified rows kept separate, got %d", len(snap.Departures))
	}
}

func TestBuildSnapshotEmptyIsNotUnavailable(t *testing.T) {
	snap := BuildSnapshot(nil, nil, 0, time.Now())

	if snap.Unavailable {
		t.Error("a truly empty board is a success, not an unavailable state")
	}
	if len(snap.Departures) != 0 {
		t.Errorf("expected no departures, got %d", len(snap.Departures))
	}
}

func TestUnavailableSnapshotKeepsPreviousDepartures(t *testing.T) {
	stops, perStop := feedFixture(t)
	previous := BuildSnapshot(stops, perStop, 0, tm(t, "10:00"))

	snap := UnavailableSnapshot("all stop fetches failed", previous, tm(t, "10:02"))

	if !snap.Unavailable {
		t.Fatal("expected unavailable flag set")
	}
	if snap.Reason == "" {
		t.Error("unavailable snapshot must carry a reason")
	}
	if len(snap.Departures) != len(previous.Departures) {
		t.Errorf("stale departures should ride along, got %d of %d", len(snap.Departures), len(previous.Departures))
	}
}

func TestCanonicalDepartureMinutesAway(t *testing.T) {
	dep := models.CanonicalDeparture{Departure: tm(t, "10:07")}

	if got := dep.MinutesAway(tm(t, "10:00")); got != 7 {
		t.Errorf("expected 7 minutes away, got %d", got)
	}
	if got := dep.MinutesAway(tm(t, "10:07")); got != 0 {
		t.Errorf("expected 0 minutes away, got %d", got)
	}
}
