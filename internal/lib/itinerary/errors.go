package itinerary

import "errors"

var (
	// ErrMalformedSection marks an upstream leg missing a required field
	ErrMalformedSection = errors.New("malformed route section")
	// ErrEmptyRoute is returned when no usable section remains to build a route from
	ErrEmptyRoute = errors.New("route has no usable sections")
	// ErrNoAirportFound is returned when either end of a flight has no airport
	ErrNoAirportFound = errors.New("no airport found")
)
