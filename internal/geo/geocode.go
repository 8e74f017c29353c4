package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/TonyTwoStep/mini-metro-display/internal/models"
)

const defaultNominatimURL = "https://nominatim.openstreetmap.org/search"

// ErrAddressNotFound means the geocoder returned no results for the address.
// This is fatal at startup; retrying without a corrected address is pointless.
var ErrAddressNotFound = errors.New("address not found")

// Geocoder resolves a human-readable address into a Coordinate via the
// Nominatim search API
type Geocoder struct {
	baseURL string
	client  *http.Client
}

// NewGeocoder creates a geocoder with the given HTTP timeout
func NewGeocoder(timeout time.Duration) *Geocoder {
	return &Geocoder{
		baseURL: defaultNominatimURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type nominatimResult struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// Locate resolves an address to a coordinate. The first result wins.
func (g *Geocoder) Locate(ctx context.Context, address string) (models.Coordinate, error) {
	params := url.Values{}
	params.Set("format", "json")
	params.Set("q", address)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return models.Coordinate{}, fmt.Errorf("building geocode request: %w", err)
	}
	req.Header.Set("User-Agent", "mini-metro-display")

	resp, err := g.client.Do(req)
	if err != nil {
		return models.Coordinate{}, fmt.Errorf("geocoding %q: %w", address, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.Coordinate{}, fmt.Errorf("geocoder returned status %d", resp.StatusCode)
	}

	var results []nominatimResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return models.Coordinate{}, fmt.Errorf("parsing geocode response: %w", err)
	}

	if len(results) == 0 {
		return models.Coordinate{}, fmt.Errorf("geocoding %q: %w", address, ErrAddressNotFound)
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return models.Coordinate{}, fmt.Errorf("parsing geocode latitude: %w", err)
	}
	lon, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return models.Coordinate{}, fmt.Errorf("parsing geocode longitude: %w", err)
	}

	coord := models.Coordinate{Lat: lat, Lon: lon}
	if !coord.Valid() {
		return models.Coordinate{}, fmt.Errorf("geocoder returned invalid coordinate %v: %w", coord, ErrAddressNotFound)
	}
	return coord, nil
}

// SetBaseURL overrides the Nominatim endpoint, used in tests
func (g *Geocoder) SetBaseURL(u string) {
	g.baseURL = u
}
