package airports

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/dpup/tripplan/server/internal/lib/geo"
)

// Resolver picks flight endpoints from a Repository
type Resolver struct {
	repo Repository
}

// NewResolver creates a Resolver backed by repo
func NewResolver(repo Repository) *Resolver {
	return &Resolver{repo: repo}
}

// ClosestAirport returns the most important airport among the
// CandidatePoolSize nearest to p. Weight beats raw distance inside the pool so
// a major hub wins over a marginally closer airstrip; equal weights keep the
// nearer airport.
func (r *Resolver) ClosestAirport(ctx context.Context, p geo.Point) (*Record, error) {
	candidates, err := r.repo.Nearest(ctx, p, CandidatePoolSize)
	if err != nil {
		return nil, unavailable(err)
	}
	if len(candidates) == 0 {
		return nil, ErrDataUnavailable
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Weight > best.Weight {
			best = c
		}
	}
	return &best, nil
}

// Zone returns the IANA time zone name in effect near p
func (r *Resolver) Zone(ctx context.Context, p geo.Point) (string, error) {
	zone, err := r.repo.Zone(ctx, p)
	if err != nil {
		return "", unavailable(err)
	}
	return zone, nil
}

// unavailable tags repository failures with ErrDataUnavailable unless the
// repository already did
func unavailable(err error) error {
	if errors.Is(err, ErrDataUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrDataUnavailable, err)
}

// PlanarDistance is the squared equirectangular distance between two points in
// degrees, with longitude scaled by the cosine of the mean latitude. It orders
// candidates correctly at airport spacing and is far cheaper than haversine.
func PlanarDistance(a, b geo.Point) float64 {
	dLat := a.Latitude - b.Latitude
	dLng := math.Abs(a.Longitude - b.Longitude)
	if dLng > 180 {
		dLng = 360 - dLng
	}
	dLng *= math.Cos((a.Latitude + b.Latitude) / 2 * math.Pi / 180)
	return dLat*dLat + dLng*dLng
}
