// Package geo resolves addresses to coordinates and measures distances
package geo

import (
	"math"

	"github.com/TonyTwoStep/mini-metro-display/internal/models"
)

const earthRadiusMeters = 6371000

// Haversine calculates the great-circle distance in meters between two points
func Haversine(a, b models.Coordinate) float64 {
	lat1Rad := a.Lat * math.Pi / 180
	lat2Rad := b.Lat * math.Pi / 180
	deltaLat := (b.Lat - a.Lat) * math.Pi / 180
	deltaLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLon/2)*math.Sin(deltaLon/2)

	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusMeters * c
}

// MetersToMiles converts meters to miles
func MetersToMiles(meters float64) float64 {
	return meters / 1609.344
}
