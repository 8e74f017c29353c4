// Package transit talks to the transit data providers: the Transitland REST
// API for stops, routes and scheduled departures, and a GTFS-RT feed for
// live estimates.
package transit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/TonyTwoStep/mini-metro-display/internal/cache"
	"github.com/TonyTwoStep/mini-metro-display/internal/models"
)

const (
	defaultTransitlandURL = "https://transit.land/api/v2/rest"
	resultLimit           = 100
)

// TransitlandClient fetches stops, routes and scheduled departures from the
// Transitland v2 REST API
type TransitlandClient struct {
	apiKey     string
	baseURL    string
	client     *http.Client
	loc        *time.Location
	stopsCache *cache.Cache[[]models.Stop]
	depsCache  *cache.Cache[[]models.DepartureRecord]
}

// NewTransitlandClient creates a client. loc is the timezone scheduled
// departure times are interpreted in; nil means local time.
func NewTransitlandClient(apiKey string, timeout, cacheTTL time.Duration, loc *time.Location) *TransitlandClient {
	if loc == nil {
		loc = time.Local
	}
	return &TransitlandClient{
		apiKey:     apiKey,
		baseURL:    defaultTransitlandURL,
		client:     &http.Client{Timeout: timeout},
		loc:        loc,
		stopsCache: cache.New[[]models.Stop](cacheTTL),
		depsCache:  cache.New[[]models.DepartureRecord](cacheTTL),
	}
}

// SetBaseURL overrides the API endpoint, used in tests
func (c *TransitlandClient) SetBaseURL(u string) {
	c.baseURL = u
}

// StopsNear returns all stops within radiusMeters of origin. Distances are
// not computed here; the index owns distance ranking and filtering.
func (c *TransitlandClient) StopsNear(ctx context.Context, origin models.Coordinate, radiusMeters float64) ([]models.Stop, error) {
	cacheKey := fmt.Sprintf("stops:%.4f,%.4f,%.0f", origin.Lat, origin.Lon, radiusMeters)
	return c.stopsCache.GetOrFill(cacheKey, func() ([]models.Stop, error) {
		var result stopsResponse
		if err := c.get(ctx, "/stops", nearbyParams(origin, radiusMeters), &result); err != nil {
			return nil, err
		}

		var stops []models.Stop
		for _, raw := range result.Stops {
			if raw.OnestopID == "" || len(raw.Geometry.Coordinates) < 2 {
				slog.Warn("dropping malformed stop record", "stop", raw.StopName)
				continue
			}
			stops = append(stops, models.Stop{
				ID:   raw.OnestopID,
				Name: raw.StopName,
				Coordinate: models.Coordinate{
					// GeoJSON order is lon, lat
					Lat: raw.Geometry.Coordinates[1],
					Lon: raw.Geometry.Coordinates[0],
				},
			})
		}
		return stops, nil
	})
}

// RoutesNear returns all routes serving the area within radiusMeters of
// origin, with the stop IDs each route serves.
func (c *TransitlandClient) RoutesNear(ctx context.Context, origin models.Coordinate, radiusMeters float64) ([]models.Route, error) {
	var result routesResponse
	if err := c.get(ctx, "/routes", nearbyParams(origin, radiusMeters), &result); err != nil {
		return nil, err
	}

	var routes []models.Route
	for _, raw := range result.Routes {
		if raw.OnestopID == "" {
			slog.Warn("dropping malformed route record", "route", raw.RouteLongName)
			continue
		}
		route := models.Route{
			ID:        raw.OnestopID,
			Name:      raw.RouteLongName,
			ShortName: raw.RouteShortName,
			Mode:      models.ModeFromRouteType(raw.RouteType),
		}
		for _, rs := range raw.RouteStops {
			if rs.Stop.OnestopID != "" {
				route.StopIDs = append(route.StopIDs, rs.Stop.OnestopID)
			}
		}
		routes = append(routes, route)
	}
	return routes, nil
}

// Departures returns the scheduled departure records for one stop over the
// next window. Entries carrying a live estimate keep it on the record so the
// reconciler can prefer Transitland's own estimate when the GTFS-RT feed has
// nothing for the trip.
func (c *TransitlandClient) Departures(ctx context.Context, stopID string, window time.Duration) ([]models.DepartureRecord, error) {
	return c.depsCache.GetOrFill(stopID, func() ([]models.DepartureRecord, error) {
		params := url.Values{}
		params.Set("next", fmt.Sprintf("%d", int(window.Seconds())))

		var result departuresResponse
		if err := c.get(ctx, "/stops/"+url.PathEscape(stopID)+"/departures", params, &result); err != nil {
			return nil, err
		}

		var records []models.DepartureRecord
		for _, stop := range result.Stops {
			for _, raw := range stop.Departures {
				record, err := c.parseDeparture(stopID, raw)
				if err != nil {
					slog.Warn("dropping malformed departure record", "stop_id", stopID, "err", err)
					continue
				}
				records = append(records, record)
			}
		}
		return records, nil
	})
}

func (c *TransitlandClient) parseDeparture(stopID string, raw rawDeparture) (models.DepartureRecord, error) {
	times := raw.Departure
	if times.Scheduled == "" && times.Estimated == "" {
		times = raw.Arrival
	}

	record := models.DepartureRecord{
		StopID:    stopID,
		RouteID:   raw.Trip.Route.OnestopID,
		RouteName: raw.Trip.Route.RouteShortName,
		Mode:      models.ModeFromRouteType(raw.Trip.Route.RouteType),
		Headsign:  raw.Trip.TripHeadsign,
		TripID:    raw.Trip.ID.String(),
		Source:    models.SourceScheduled,
	}
	if record.RouteName == "" {
		record.RouteName = raw.Trip.Route.RouteLongName
	}

	if times.Scheduled != "" {
		t, err := parseServiceTime(raw.ServiceDate, times.Scheduled, c.loc)
		if err != nil {
			return models.DepartureRecord{}, err
		}
		record.Scheduled = &t
	}
	if times.Estimated != "" {
		t, err := parseServiceTime(raw.ServiceDate, times.Estimated, c.loc)
		if err != nil {
			return models.DepartureRecord{}, err
		}
		record.Estimated = &t
		record.Source = models.SourceBoth
		if record.Scheduled == nil {
			record.Source = models.SourceRealtime
		}
	}

	if !record.Valid() {
		return models.DepartureRecord{}, fmt.Errorf("departure has neither scheduled nor estimated time")
	}
	return record, nil
}

func (c *TransitlandClient) get(ctx context.Context, path string, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("apikey", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetching %s: %w: %w", path, ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("fetching %s: %w", path, ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetching %s: status %d: %w", path, resp.StatusCode, ErrSourceUnavailable)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("parsing %s response: %w: %w", path, ErrSourceUnavailable, err)
	}
	return nil
}

func nearbyParams(origin models.Coordinate, radiusMeters float64) url.Values {
	params := url.Values{}
	params.Set("lat", fmt.Sprintf("%f", origin.Lat))
	params.Set("lon", fmt.Sprintf("%f", origin.Lon))
	params.Set("radius", fmt.Sprintf("%.0f", radiusMeters))
	params.Set("limit", fmt.Sprintf("%d", resultLimit))
	return params
}

// API response structures

type stopsResponse struct {
	Stops []struct {
		OnestopID string `json:"onestop_id"`
		StopName  string `json:"stop_name"`
		Geometry  struct {
			Coordinates []float64 `json:"coordinates"`
		} `json:"geometry"`
	} `json:"stops"`
}

type routesResponse struct {
	Routes []struct {
		OnestopID      string `json:"onestop_id"`
		RouteShortName string `json:"route_short_name"`
		RouteLongName  string `json:"route_long_name"`
		RouteType      int    `json:"route_type"`
		RouteStops     []struct {
			Stop struct {
				OnestopID string `json:"onestop_id"`
			} `json:"stop"`
		} `json:"route_stops"`
	} `json:"routes"`
}

type departureTimes struct {
	Scheduled string `json:"scheduled"`
	Estimated string `json:"estimated"`
}

type rawDeparture struct {
	ServiceDate string         `json:"service_date"`
	Arrival     departureTimes `json:"arrival"`
	Departure   departureTimes `json:"departure"`
	Trip        struct {
		ID           json.Number `json:"id"`
		TripHeadsign string      `json:"trip_headsign"`
		Route        struct {
			OnestopID      string `json:"onestop_id"`
			RouteShortName string `json:"route_short_name"`
			RouteLongName  string `json:"route_long_name"`
			RouteType      int    `json:"route_type"`
		} `json:"route"`
	} `json:"trip"`
}

type departuresResponse struct {
	Stops []struct {
		Departures []rawDeparture `json:"departures"`
	} `json:"stops"`
}
