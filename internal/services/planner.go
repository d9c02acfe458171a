package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dpup/prefab/logging"

	"github.com/dpup/tripplan/server/internal/cache"
	"github.com/dpup/tripplan/server/internal/clients/here"
	"github.com/dpup/tripplan/server/internal/lib/airports"
	"github.com/dpup/tripplan/server/internal/lib/geo"
	"github.com/dpup/tripplan/server/internal/lib/itinerary"
	"github.com/dpup/tripplan/server/internal/publisher"
)

// defaultZone stamps route ends whose time zone cannot be resolved
const defaultZone = "UTC"

var (
	// ErrUpstream wraps failures of the routing provider
	ErrUpstream = errors.New("routing provider unavailable")
	// ErrInvalidRequest is returned for requests that cannot be planned
	ErrInvalidRequest = errors.New("invalid route request")
	// ErrFlightTooShort rejects flights between points closer than the
	// configured minimum
	ErrFlightTooShort = errors.New("trip too short to fly")
)

// RouteRequester fetches multimodal routes from the routing provider
type RouteRequester interface {
	Routes(ctx context.Context, q here.Query) (*here.RoutesResponse, error)
}

// AirportLookup resolves airports and time zones near a coordinate
type AirportLookup interface {
	ClosestAirport(ctx context.Context, p geo.Point) (*airports.Record, error)
	Zone(ctx context.Context, p geo.Point) (string, error)
}

// PlannerMetrics receives planning counters
type PlannerMetrics interface {
	UpstreamObserve(outcome string, d time.Duration)
	SectionsDroppedAdd(n int)
	RouteSkippedInc()
	PlannedAdd(modality string, n int)
	PlanFailedInc(modality string)
	CacheHitInc()
	CacheMissInc()
}

// EventPublisher announces planned routes
type EventPublisher interface {
	PublishRoutePlanned(evt publisher.RoutePlannedEvent) error
}

// Planner answers route requests, either through the routing provider or by
// synthesizing a flight. It holds no mutable state of its own.
type Planner struct {
	here     RouteRequester
	airports AirportLookup
	flights  *itinerary.FlightSynthesizer

	// Optional collaborators; nil disables them.
	Cache   *cache.RouteCache
	Metrics PlannerMetrics
	Events  EventPublisher

	Alternatives        int
	FlightMinDistanceKm float64
}

// NewPlanner creates a planner over the routing provider and airport data
func NewPlanner(requester RouteRequester, lookup AirportLookup) *Planner {
	return &Planner{
		here:     requester,
		airports: lookup,
		flights:  itinerary.NewFlightSynthesizer(lookup),
	}
}

// PlanRequest is a single route-planning request
type PlanRequest struct {
	Start    geo.Point                 `json:"start"`
	End      geo.Point                 `json:"end"`
	Modality itinerary.Modality        `json:"modality"`
	Time     *itinerary.TimeConstraint `json:"time,omitempty"`
}

// Validate checks coordinates, modality and time constraint
func (r *PlanRequest) Validate() error {
	if !r.Start.IsValid() || !r.End.IsValid() {
		return fmt.Errorf("%w: coordinates out of range", ErrInvalidRequest)
	}
	if !r.Modality.Valid() {
		return fmt.Errorf("%w: unknown modality %q", ErrInvalidRequest, r.Modality)
	}
	if r.Time != nil {
		if err := r.Time.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
	}
	return nil
}

// PlanResult holds the routes for a request
type PlanResult struct {
	Routes    []*itinerary.Route
	FromCache bool
}

// Plan dispatches on modality: flights are synthesized locally, everything
// else goes to the routing provider. Results are cached and announced when
// those collaborators are configured.
func (p *Planner) Plan(ctx context.Context, req PlanRequest) (*PlanResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	ctx = logging.EnsureLogger(ctx)

	key := cache.RouteKey(req.Modality, req.Start, req.End, req.Time)
	if routes, ok := p.cached(ctx, key); ok {
		p.announce(ctx, req, routes, true)
		return &PlanResult{Routes: routes, FromCache: true}, nil
	}

	var (
		routes []*itinerary.Route
		err    error
	)
	if req.Modality == itinerary.ModalityFlight {
		routes, err = p.planFlight(ctx, req)
	} else {
		routes, err = p.RequestRoutes(ctx, req.Start, req.End, req.Modality, req.Time)
	}
	if err != nil {
		if p.Metrics != nil {
			p.Metrics.PlanFailedInc(string(req.Modality))
		}
		return nil, err
	}

	if p.Metrics != nil {
		p.Metrics.PlannedAdd(string(req.Modality), len(routes))
	}
	if p.Cache != nil && len(routes) > 0 {
		if err := p.Cache.Set(ctx, key, routes); err != nil {
			logging.Warnw(ctx, "Failed to cache routes", "key", key, "error", err)
		}
	}
	p.announce(ctx, req, routes, false)

	return &PlanResult{Routes: routes}, nil
}

func (p *Planner) planFlight(ctx context.Context, req PlanRequest) ([]*itinerary.Route, error) {
	if p.FlightMinDistanceKm > 0 {
		meters, err := geo.PointToPoint(req.Start, req.End)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
		if km := meters / 1000; km < p.FlightMinDistanceKm {
			return nil, fmt.Errorf("%w: %.0f km is under the %.0f km minimum", ErrFlightTooShort, km, p.FlightMinDistanceKm)
		}
	}
	route, err := p.SynthesizeFlight(ctx, req.Start, req.End, req.Time)
	if err != nil {
		return nil, err
	}
	return []*itinerary.Route{route}, nil
}

// SynthesizeFlight builds a flight itinerary between the airports serving
// start and end
func (p *Planner) SynthesizeFlight(ctx context.Context, start, end geo.Point, constraint *itinerary.TimeConstraint) (*itinerary.Route, error) {
	route, err := p.flights.Synthesize(ctx, start, end, constraint)
	if err != nil {
		return nil, fmt.Errorf("failed to synthesize flight: %w", err)
	}
	return route, nil
}

// RequestRoutes asks the routing provider for routes and normalizes them. An
// empty upstream answer yields an empty slice. Routes whose every section is
// malformed are skipped; if that leaves nothing the call fails with
// itinerary.ErrEmptyRoute.
func (p *Planner) RequestRoutes(ctx context.Context, start, end geo.Point, modality itinerary.Modality, constraint *itinerary.TimeConstraint) ([]*itinerary.Route, error) {
	if modality == itinerary.ModalityFlight || !modality.Valid() {
		return nil, fmt.Errorf("%w: modality %q is not served by the routing provider", ErrInvalidRequest, modality)
	}
	ctx = logging.EnsureLogger(ctx)

	q := p.query(start, end, modality, constraint)
	began := time.Now()
	resp, err := p.here.Routes(ctx, q)
	p.observeUpstream(err, time.Since(began))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}

	routes := make([]*itinerary.Route, 0, len(resp.Routes))
	if len(resp.Routes) == 0 {
		return routes, nil
	}

	zones := itinerary.Zones{
		Start: p.zone(ctx, start),
		End:   p.zone(ctx, end),
	}

	for _, upstream := range resp.Routes {
		sections, err := itinerary.NormalizeSections(ctx, upstream.Sections)
		if p.Metrics != nil {
			p.Metrics.SectionsDroppedAdd(len(upstream.Sections) - len(sections))
		}
		if errors.Is(err, itinerary.ErrEmptyRoute) {
			logging.Warnw(ctx, "Skipping route with no usable sections", "upstreamId", upstream.ID)
			if p.Metrics != nil {
				p.Metrics.RouteSkippedInc()
			}
			continue
		}
		if err != nil {
			return nil, err
		}

		route, err := itinerary.Aggregate(sections, modality, zones)
		if err != nil {
			return nil, fmt.Errorf("failed to aggregate route %s: %w", upstream.ID, err)
		}
		routes = append(routes, route)
	}

	if len(routes) == 0 {
		return nil, fmt.Errorf("%w: all %d upstream routes were malformed", itinerary.ErrEmptyRoute, len(resp.Routes))
	}
	return routes, nil
}

func (p *Planner) query(start, end geo.Point, modality itinerary.Modality, constraint *itinerary.TimeConstraint) here.Query {
	q := here.Query{
		Origin:       start,
		Destination:  end,
		Alternatives: p.Alternatives,
	}
	switch modality {
	case itinerary.ModalityPedestrian:
		q.DisableTransit = true
	case itinerary.ModalityCar:
		q.DisableTransit = true
		q.Vehicle = true
	}
	if constraint != nil {
		q.At = constraint.Instant
		q.ArriveBy = constraint.Type == itinerary.ConstraintArrive
	}
	return q
}

func (p *Planner) zone(ctx context.Context, pt geo.Point) string {
	name, err := p.airports.Zone(ctx, pt)
	if err != nil || name == "" {
		logging.Warnw(ctx, "No time zone for route end, using UTC", "lat", pt.Latitude, "lng", pt.Longitude, "error", err)
		return defaultZone
	}
	return name
}

func (p *Planner) cached(ctx context.Context, key string) ([]*itinerary.Route, bool) {
	if p.Cache == nil {
		return nil, false
	}
	routes, found, err := p.Cache.Get(ctx, key)
	if err != nil {
		logging.Warnw(ctx, "Route cache read failed", "key", key, "error", err)
	}
	if p.Metrics != nil {
		if found {
			p.Metrics.CacheHitInc()
		} else {
			p.Metrics.CacheMissInc()
		}
	}
	return routes, found
}

func (p *Planner) announce(ctx context.Context, req PlanRequest, routes []*itinerary.Route, fromCache bool) {
	if p.Events == nil || len(routes) == 0 {
		return
	}
	evt := publisher.RoutePlannedEvent{
		Modality:  string(req.Modality),
		RouteIDs:  make([]string, len(routes)),
		Start:     [2]float64{req.Start.Latitude, req.Start.Longitude},
		End:       [2]float64{req.End.Latitude, req.End.Longitude},
		ZoneStart: routes[0].Zones.Start,
		ZoneEnd:   routes[0].Zones.End,
		FromCache: fromCache,
		PlannedAt: time.Now().UTC(),
	}
	for i, r := range routes {
		evt.RouteIDs[i] = r.ID
	}
	if err := p.Events.PublishRoutePlanned(evt); err != nil {
		logging.Warnw(ctx, "Failed to publish route.planned", "error", err)
	}
}

func (p *Planner) observeUpstream(err error, d time.Duration) {
	if p.Metrics == nil {
		return
	}
	outcome := "ok"
	switch {
	case errors.Is(err, here.ErrRateLimited):
		outcome = "rate_limited"
	case err != nil:
		outcome = "error"
	}
	p.Metrics.UpstreamObserve(outcome, d)
}
