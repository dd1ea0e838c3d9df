package geo

import (
	"github.com/paulmach/orb"
	geodist "github.com/paulmach/orb/geo"
)

// MetersPerNauticalMile is the exact SI definition.
const MetersPerNauticalMile = 1852.0

// DistanceMeters returns the great-circle distance between two lat/lon
// points in meters.
func DistanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	return geodist.DistanceHaversine(orb.Point{lon1, lat1}, orb.Point{lon2, lat2})
}

// DistanceNM returns the great-circle distance in nautical miles.
func DistanceNM(lat1, lon1, lat2, lon2 float64) float64 {
	return DistanceMeters(lat1, lon1, lat2, lon2) / MetersPerNauticalMile
}
