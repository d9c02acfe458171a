package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/dpup/tripplan/server/internal/lib/geo"
	"github.com/dpup/tripplan/server/internal/lib/itinerary"
)

// RouteCache stores planned routes keyed by request
type RouteCache struct {
	store Store
	ttl   time.Duration
}

// NewRouteCache wraps store, expiring entries after ttl
func NewRouteCache(store Store, ttl time.Duration) *RouteCache {
	return &RouteCache{store: store, ttl: ttl}
}

// RouteKey identifies a planning request. Coordinates are rounded to about a
// meter so repeated clicks on the same spot share an entry.
func RouteKey(modality itinerary.Modality, start, end geo.Point, constraint *itinerary.TimeConstraint) string {
	when := "now"
	if constraint != nil {
		when = string(constraint.Type) + "@" + constraint.Instant.UTC().Format(time.RFC3339)
	}
	return fmt.Sprintf("routes:%s:%.5f,%.5f:%.5f,%.5f:%s",
		modality, start.Latitude, start.Longitude, end.Latitude, end.Longitude, when)
}

// Get returns cached routes for key
func (r *RouteCache) Get(ctx context.Context, key string) ([]*itinerary.Route, bool, error) {
	var routes []*itinerary.Route
	found, err := r.store.Get(ctx, key, &routes)
	if err != nil || !found {
		return nil, false, err
	}
	return routes, true, nil
}

// Set caches routes under key
func (r *RouteCache) Set(ctx context.Context, key string, routes []*itinerary.Route) error {
	return r.store.Set(ctx, key, routes, r.ttl)
}
