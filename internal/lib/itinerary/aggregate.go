package itinerary

import (
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/dpup/tripplan/server/internal/lib/flexpolyline"
	"github.com/dpup/tripplan/server/internal/lib/geo"
)

// Aggregate assembles a Route from sections already in travel order.
//
// Distance covers every section. Departure and duration come from the first
// and last sections by position; sections are never sorted or searched for the
// earliest or latest instant.
func Aggregate(sections []Section, modality Modality, zones Zones) (*Route, error) {
	if len(sections) == 0 {
		return nil, ErrEmptyRoute
	}

	total := 0.0
	for _, s := range sections {
		points, err := flexpolyline.Decode(s.Polyline)
		if err != nil {
			return nil, fmt.Errorf("section %q: %w", s.ID, err)
		}
		total += geo.PathLength(points, geo.Meters)
	}

	first, last := sections[0], sections[len(sections)-1]
	elapsed := last.Arrival.Time.Sub(first.Departure.Time)

	return &Route{
		ID:            uuid.NewString(),
		Modality:      modality,
		Sections:      sections,
		TotalDistance: total,
		DepartureTime: first.Departure.Time,
		Duration:      int(math.Round(elapsed.Minutes())),
		Zones:         zones,
	}, nil
}
