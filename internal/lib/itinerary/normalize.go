package itinerary

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dpup/prefab/logging"
	"github.com/google/uuid"

	"github.com/dpup/tripplan/server/internal/lib/airports"
	"github.com/dpup/tripplan/server/internal/lib/flexpolyline"
	"github.com/dpup/tripplan/server/internal/lib/geo"
)

// NormalizeSection converts one raw upstream leg into a Section. Errors wrap
// ErrMalformedSection.
func NormalizeSection(raw json.RawMessage) (Section, error) {
	var s Section
	if err := json.Unmarshal(raw, &s); err != nil {
		return Section{}, fmt.Errorf("%w: %w", ErrMalformedSection, err)
	}
	if err := validateSection(&s); err != nil {
		return Section{}, fmt.Errorf("%w: %w", ErrMalformedSection, err)
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return s, nil
}

func validateSection(s *Section) error {
	if s.Transport.TransportMode() == "" {
		return fmt.Errorf("section %q has no transport mode", s.ID)
	}
	if s.Departure.Time.IsZero() || s.Arrival.Time.IsZero() {
		return fmt.Errorf("section %q is missing departure or arrival time", s.ID)
	}
	if s.Departure.Time.After(s.Arrival.Time) {
		return fmt.Errorf("section %q departs after it arrives", s.ID)
	}
	if !s.Departure.Place.Location.IsValid() || !s.Arrival.Place.Location.IsValid() {
		return fmt.Errorf("section %q has an invalid place location", s.ID)
	}
	if s.Polyline == "" {
		return fmt.Errorf("section %q has no polyline", s.ID)
	}
	if _, err := flexpolyline.Decode(s.Polyline); err != nil {
		return fmt.Errorf("section %q: %w", s.ID, err)
	}
	return nil
}

// NormalizeSections normalizes legs in travel order, dropping any that are
// malformed. It fails with ErrEmptyRoute only when nothing survives.
func NormalizeSections(ctx context.Context, raws []json.RawMessage) ([]Section, error) {
	ctx = logging.EnsureLogger(ctx)
	sections := make([]Section, 0, len(raws))
	for i, raw := range raws {
		s, err := NormalizeSection(raw)
		if err != nil {
			logging.Warnw(ctx, "Dropping malformed route section", "index", i, "error", err)
			continue
		}
		sections = append(sections, s)
	}
	if len(sections) == 0 {
		return nil, fmt.Errorf("%w: %d of %d sections malformed", ErrEmptyRoute, len(raws), len(raws))
	}
	return sections, nil
}

// NewAirportSection builds a zero-duration idle leg at an airport, used before
// and after a synthesized flight
func NewAirportSection(rec *airports.Record, event AirportEvent, at time.Time) (Section, error) {
	polyline, err := flexpolyline.Encode([]geo.Point{rec.Location}, flexpolyline.DefaultPrecision)
	if err != nil {
		return Section{}, err
	}
	stop := Stop{Time: at, Place: airportPlace(rec)}
	return Section{
		ID:        uuid.NewString(),
		Type:      SectionAirport,
		Departure: stop,
		Arrival:   stop,
		Polyline:  polyline,
		Transport: AirportTransport{
			Mode:     modeIdle,
			Event:    event,
			IATA:     rec.IATA,
			Name:     rec.Name,
			City:     rec.City,
			Country:  rec.Country,
			Timezone: rec.Timezone,
		},
	}, nil
}

// NewFlightSection builds the flight leg between two airports from an
// already-encoded polyline
func NewFlightSection(from, to *airports.Record, polyline string, distanceKm float64, departure, arrival time.Time) Section {
	return Section{
		ID:        uuid.NewString(),
		Type:      SectionFlight,
		Departure: Stop{Time: departure, Place: airportPlace(from)},
		Arrival:   Stop{Time: arrival, Place: airportPlace(to)},
		Polyline:  polyline,
		Transport: FlightTransport{
			Mode:       modeFlight,
			Name:       from.IATA + "-" + to.IATA,
			From:       from.IATA,
			To:         to.IATA,
			DistanceKm: distanceKm,
		},
	}
}

func airportPlace(rec *airports.Record) Place {
	return Place{
		ID:       rec.ID,
		Code:     rec.IATA,
		Name:     rec.Name,
		Type:     PlaceAirport,
		Location: rec.Location,
	}
}
