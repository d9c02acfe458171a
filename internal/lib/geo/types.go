package geo

import "errors"

// Point represents a geographic coordinate
type Point struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
}

// Unit selects the unit PathLength reports in
type Unit int

const (
	Meters Unit = iota
	Kilometers
)

// ErrDegenerateGeometry is returned when a geodesic path is requested between
// inputs that do not define one (identical endpoints, too few vertices).
var ErrDegenerateGeometry = errors.New("degenerate geometry")

// Earth's mean radius in meters
const earthRadius = 6371000
