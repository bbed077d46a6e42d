package geo

import (
	"github.com/golang/geo/s2"
)

// EarthRadiusMeters is the mean Earth radius used for angle to distance conversion.
const EarthRadiusMeters = 6371008.8

// Box is an axis-aligned rectangle in degrees.
type Box struct {
	LatMin, LatMax float64
	LngMin, LngMax float64
}

// BoxAround returns the box extending tolerance degrees on each side of a point.
// It is a degree box, not a geodesic circle.
func BoxAround(lat, lng, tolerance float64) Box {
	return Box{
		LatMin: lat - tolerance,
		LatMax: lat + tolerance,
		LngMin: lng - tolerance,
		LngMax: lng + tolerance,
	}
}

// Contains reports whether the point lies inside the box, edges included.
func (b Box) Contains(lat, lng float64) bool {
	return lat >= b.LatMin && lat <= b.LatMax && lng >= b.LngMin && lng <= b.LngMax
}

// DistanceMeters returns the great-circle distance between two points.
func DistanceMeters(lat1, lng1, lat2, lng2 float64) float64 {
	a := s2.LatLngFromDegrees(lat1, lng1)
	b := s2.LatLngFromDegrees(lat2, lng2)
	return a.Distance(b).Radians() * EarthRadiusMeters
}

// CellToken returns the s2 cell token of a point at the given level.
func CellToken(lat, lng float64, level int) string {
	return s2.CellIDFromLatLng(s2.LatLngFromDegrees(lat, lng)).Parent(level).ToToken()
}
