package itinerary

import (
	"context"
	"fmt"
	"math"
	"time"
	_ "time/tzdata"

	"github.com/dpup/tripplan/server/internal/lib/airports"
	"github.com/dpup/tripplan/server/internal/lib/flexpolyline"
	"github.com/dpup/tripplan/server/internal/lib/geo"
)

// FlightPathVertices is the number of great-circle vertices in a synthesized flight polyline
const FlightPathVertices = 64

const (
	shortHaulLimitKm    = 2000.0
	shortHaulSpeedKmh   = 600.0
	longHaulSpeedKmh    = 800.0
	durationGranularity = 15 * time.Minute
)

// AirportResolver picks the airport serving a coordinate
type AirportResolver interface {
	ClosestAirport(ctx context.Context, p geo.Point) (*airports.Record, error)
}

// FlightSynthesizer fabricates a flight itinerary between the airports
// nearest two coordinates. It holds no mutable state.
type FlightSynthesizer struct {
	Airports AirportResolver
	// Now anchors trips that have no time constraint
	Now func() time.Time
}

// NewFlightSynthesizer creates a synthesizer using the wall clock
func NewFlightSynthesizer(resolver AirportResolver) *FlightSynthesizer {
	return &FlightSynthesizer{Airports: resolver, Now: time.Now}
}

// Synthesize builds a three-section flight route: an idle leg at the origin
// airport, the flight, and an idle leg at the destination airport.
func (f *FlightSynthesizer) Synthesize(ctx context.Context, start, end geo.Point, constraint *TimeConstraint) (*Route, error) {
	from, err := f.resolve(ctx, start, "origin")
	if err != nil {
		return nil, err
	}
	to, err := f.resolve(ctx, end, "destination")
	if err != nil {
		return nil, err
	}
	if from.ID == to.ID {
		return nil, fmt.Errorf("%w: origin and destination both resolve to %s, use a ground modality",
			geo.ErrDegenerateGeometry, from.IATA)
	}

	path, err := geo.GreatCircle(from.Location, to.Location, FlightPathVertices)
	if err != nil {
		return nil, fmt.Errorf("failed to build flight path %s-%s: %w", from.IATA, to.IATA, err)
	}
	polyline, err := flexpolyline.Encode(path, flexpolyline.DefaultPrecision)
	if err != nil {
		return nil, fmt.Errorf("failed to encode flight path: %w", err)
	}

	distanceKm := geo.PathLength(path, geo.Kilometers)
	duration := EstimateFlightDuration(distanceKm)

	originZone, originLoc := loadZone(from.Timezone)
	destZone, destLoc := loadZone(to.Timezone)
	departure, arrival := f.schedule(constraint, duration, originLoc, destLoc)

	origin, err := NewAirportSection(from, EventDeparture, departure)
	if err != nil {
		return nil, err
	}
	destination, err := NewAirportSection(to, EventArrival, arrival)
	if err != nil {
		return nil, err
	}
	flight := NewFlightSection(from, to, polyline, distanceKm, departure, arrival)

	return Aggregate([]Section{origin, flight, destination}, ModalityFlight, Zones{Start: originZone, End: destZone})
}

func (f *FlightSynthesizer) resolve(ctx context.Context, p geo.Point, end string) (*airports.Record, error) {
	rec, err := f.Airports.ClosestAirport(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("%w near %s (%.4f, %.4f): %w", ErrNoAirportFound, end, p.Latitude, p.Longitude, err)
	}
	if rec == nil {
		return nil, fmt.Errorf("%w near %s (%.4f, %.4f)", ErrNoAirportFound, end, p.Latitude, p.Longitude)
	}
	return rec, nil
}

// schedule fixes one end of the flight in its own airport's zone and derives
// the other end in the opposite airport's zone.
func (f *FlightSynthesizer) schedule(c *TimeConstraint, d time.Duration, origin, dest *time.Location) (time.Time, time.Time) {
	if c != nil && c.Type == ConstraintArrive {
		arrival := c.Instant.In(dest)
		return arrival.Add(-d).In(origin), arrival
	}

	var departure time.Time
	if c != nil && c.Type == ConstraintDepart {
		departure = c.Instant.In(origin)
	} else {
		departure = f.now().Truncate(time.Minute).In(origin)
	}
	return departure, departure.Add(d).In(dest)
}

func (f *FlightSynthesizer) now() time.Time {
	if f.Now == nil {
		return time.Now()
	}
	return f.Now()
}

// EstimateFlightDuration converts a great-circle distance into a conservative
// block time: 600 km/h below 2000 km and 800 km/h beyond, rounded up to the
// next quarter hour. Exact quarter hours are kept as is.
func EstimateFlightDuration(distanceKm float64) time.Duration {
	speed := longHaulSpeedKmh
	if distanceKm < shortHaulLimitKm {
		speed = shortHaulSpeedKmh
	}
	minutes := distanceKm * 60 / speed
	step := durationGranularity.Minutes()
	return time.Duration(math.Ceil(minutes/step)*step) * time.Minute
}

// loadZone resolves an IANA zone name, falling back to UTC for unknown names
func loadZone(name string) (string, *time.Location) {
	if name == "" {
		return "UTC", time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return "UTC", time.UTC
	}
	return name, loc
}
