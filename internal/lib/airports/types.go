package airports

import (
	"context"
	"errors"

	"github.com/dpup/tripplan/server/internal/lib/geo"
)

// TypeAirport is the only record type eligible as a flight endpoint
const TypeAirport = "airport"

// CandidatePoolSize is how many geometrically nearest airports compete on weight
const CandidatePoolSize = 5

// ErrDataUnavailable signals an empty or unreachable reference dataset
var ErrDataUnavailable = errors.New("airport data unavailable")

// Record is one row of the read-only airport reference dataset
type Record struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	City     string    `json:"city"`
	Country  string    `json:"country"`
	IATA     string    `json:"iata,omitempty"`
	Type     string    `json:"type"`
	Location geo.Point `json:"location"`
	Weight   float64   `json:"weight"`
	Timezone string    `json:"timezone"`
}

// Eligible reports whether the record can serve as a flight endpoint
func (r Record) Eligible() bool {
	return r.Type == TypeAirport && r.IATA != ""
}

// Repository is read-only access to the airport dataset
type Repository interface {
	// Nearest returns up to limit eligible airports ordered nearest first by
	// the planar metric in PlanarDistance.
	Nearest(ctx context.Context, p geo.Point, limit int) ([]Record, error)

	// Zone returns the IANA time zone of the record closest to p, of any type.
	Zone(ctx context.Context, p geo.Point) (string, error)
}
