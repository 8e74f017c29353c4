// Package models defines shared data types
package models

import "time"

// Coordinate is a point on the globe in floating point degrees
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether the coordinate is a usable lat/lon pair
func (c Coordinate) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

// Mode identifies a mode of transit, mapped from GTFS route_type values
type Mode string

const (
	ModeTram       Mode = "tram"
	ModeSubway     Mode = "subway"
	ModeTrain      Mode = "train"
	ModeBus        Mode = "bus"
	ModeFerry      Mode = "ferry"
	ModeCableCar   Mode = "cable_car"
	ModeAerialLift Mode = "aerial_lift"
	ModeFunicular  Mode = "funicular"
	ModeTrolleybus Mode = "trolleybus"
	ModeMonorail   Mode = "monorail"
	ModePlane      Mode = "plane"
	ModeUnknown    Mode = "unknown"
)

// ModeFromRouteType maps a GTFS route_type integer onto a Mode.
// Extended route types (100+) collapse onto their base category.
func ModeFromRouteType(routeType int) Mode {
	switch routeType {
	case 0:
		return ModeTram
	case 1:
		return ModeSubway
	case 2:
		return ModeTrain
	case 3:
		return ModeBus
	case 4:
		return ModeFerry
	case 5:
		return ModeCableCar
	case 6:
		return ModeAerialLift
	case 7:
		return ModeFunicular
	case 11:
		return ModeTrolleybus
	case 12:
		return ModeMonorail
	}
	switch {
	case routeType >= 100 && routeType < 200:
		return ModeTrain
	case routeType >= 200 && routeType < 300:
		return ModeBus
	case routeType >= 400 && routeType < 500:
		return ModeSubway
	case routeType >= 700 && routeType < 800:
		return ModeBus
	case routeType >= 900 && routeType < 1000:
		return ModeTram
	case routeType >= 1000 && routeType < 1100:
		return ModeFerry
	case routeType >= 1100 && routeType < 1200:
		return ModePlane
	}
	return ModeUnknown
}

// Stop is a physical boarding location discovered near the origin
type Stop struct {
	ID             string     `json:"stop_id"`
	Name           string     `json:"stop_name"`
	Coordinate     Coordinate `json:"coordinate"`
	Modes          []Mode     `json:"modes,omitempty"`
	DistanceMeters float64    `json:"distance_meters"`
}

// Route is a named service serving one or more discovered stops
type Route struct {
	ID        string   `json:"route_id"`
	Name      string   `json:"route_name"`
	ShortName string   `json:"route_short_name,omitempty"`
	Mode      Mode     `json:"mode"`
	StopIDs   []string `json:"stop_ids,omitempty"`
}

// DisplayName prefers the short name when the provider supplies one
func (r Route) DisplayName() string {
	if r.ShortName != "" {
		return r.ShortName
	}
	return r.Name
}

// Source tags where a raw departure record came from
type Source string

const (
	SourceScheduled Source = "scheduled"
	SourceRealtime  Source = "realtime"
	SourceBoth      Source = "both"
)

// DepartureRecord is a raw departure entry for one stop, straight from a
// provider. Either Scheduled or Estimated may be nil, never both.
type DepartureRecord struct {
	StopID    string
	RouteID   string
	RouteName string
	Mode      Mode
	Headsign  string
	TripID    string
	Scheduled *time.Time
	Estimated *time.Time
	Source    Source
}

// Valid reports whether the record carries at least one usable time
func (d DepartureRecord) Valid() bool {
	return d.StopID != "" && (d.Scheduled != nil || d.Estimated != nil)
}

// Provenance records whether a canonical departure time was confirmed live
type Provenance string

const (
	ProvenanceScheduled Provenance = "scheduled-only"
	ProvenanceRealtime  Provenance = "realtime-confirmed"
)

// CanonicalDeparture is the reconciled, display-ready departure unit. TripID
// is kept so the board can recognize the same physical trip observed at more
// than one monitored stop.
type CanonicalDeparture struct {
	StopID             string     `json:"stop_id"`
	StopName           string     `json:"stop_name"`
	StopDistanceMeters float64    `json:"stop_distance_meters"`
	RouteID            string     `json:"route_id"`
	RouteName          string     `json:"route_name"`
	Mode               Mode       `json:"mode"`
	Headsign           string     `json:"headsign"`
	TripID             string     `json:"trip_id,omitempty"`
	Departure          time.Time  `json:"departure"`
	Provenance         Provenance `json:"provenance"`
}

// MinutesAway derives minutes until departure at read time
func (c CanonicalDeparture) MinutesAway(now time.Time) int {
	return int(c.Departure.Sub(now).Minutes())
}

// Snapshot is one immutable board refresh result. A new snapshot replaces
// the previous one wholesale; consumers never see a partially built board.
type Snapshot struct {
	Departures  []CanonicalDeparture `json:"departures"`
	GeneratedAt time.Time            `json:"generated_at"`
	Unavailable bool                 `json:"unavailable"`
	Reason      string               `json:"reason,omitempty"`
}
