// Package board is the departure aggregation engine: it resolves the stops
// and routes around an origin, reconciles scheduled and realtime departure
// records into one canonical timeline per stop, and assembles the ordered
// snapshot the display consumes.
package board

import (
	"context"
	"fmt"
	"sort"

	"github.com/TonyTwoStep/mini-metro-display/internal/geo"
	"github.com/TonyTwoStep/mini-metro-display/internal/models"
)

// StopSource abstracts stop/route discovery for testability
type StopSource interface {
	StopsNear(ctx context.Context, origin models.Coordinate, radiusMeters float64) ([]models.Stop, error)
	RoutesNear(ctx context.Context, origin models.Coordinate, radiusMeters float64) ([]models.Route, error)
}

// Index holds the resolved set of stops within the search radius and the
// routes serving them, ranked by distance from the origin. Immutable once
// resolved; a fresh resolution replaces it wholesale.
type Index struct {
	Stops  []models.Stop
	Routes []models.Route

	routesByID map[string]models.Route
}

// ResolveIndex discovers the stops within radiusMeters of origin and the
// routes serving them. Stops are deduplicated by ID, hard-filtered to the
// radius (providers over-return), and sorted ascending by distance with a
// stop-ID tie-break so resolution is deterministic.
func ResolveIndex(ctx context.Context, src StopSource, origin models.Coordinate, radiusMeters float64) (*Index, error) {
	if radiusMeters <= 0 {
		return nil, fmt.Errorf("search radius must be positive, got %f", radiusMeters)
	}
	if !origin.Valid() {
		return nil, fmt.Errorf("invalid origin coordinate %+v", origin)
	}

	rawStops, err := src.StopsNear(ctx, origin, radiusMeters)
	if err != nil {
		return nil, fmt.Errorf("resolving stops: %w", err)
	}

	seen := make(map[string]bool, len(rawStops))
	retained := make(map[string]bool, len(rawStops))
	var stops []models.Stop
	for _, stop := range rawStops {
		if stop.ID == "" || seen[stop.ID] {
			continue
		}
		seen[stop.ID] = true

		stop.DistanceMeters = geo.Haversine(origin, stop.Coordinate)
		if stop.DistanceMeters > radiusMeters {
			continue
		}
		retained[stop.ID] = true
		stops = append(stops, stop)
	}

	sort.Slice(stops, func(i, j int) bool {
		if stops[i].DistanceMeters != stops[j].DistanceMeters {
			return stops[i].DistanceMeters < stops[j].DistanceMeters
		}
		return stops[i].ID < stops[j].ID
	})

	rawRoutes, err := src.RoutesNear(ctx, origin, radiusMeters)
	if err != nil {
		return nil, fmt.Errorf("resolving routes: %w", err)
	}

	seenRoutes := make(map[string]bool, len(rawRoutes))
	var routes []models.Route
	for _, route := range rawRoutes {
		if route.ID == "" || seenRoutes[route.ID] {
			continue
		}
		seenRoutes[route.ID] = true

		// Keep only the stop references that survived the radius filter
		var served []string
		for _, stopID := range route.StopIDs {
			if retained[stopID] {
				served = append(served, stopID)
			}
		}
		route.StopIDs = served
		routes = append(routes, route)
	}

	sort.Slice(routes, func(i, j int) bool { return routes[i].ID < routes[j].ID })

	idx := &Index{
		Stops:      stops,
		Routes:     routes,
		routesByID: make(map[string]models.Route, len(routes)),
	}
	for _, route := range routes {
		idx.routesByID[route.ID] = route
	}
	return idx, nil
}

// RouteByID looks up a resolved route
func (idx *Index) RouteByID(id string) (models.Route, bool) {
	route, ok := idx.routesByID[id]
	return route, ok
}
