package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/dpup/prefab/logging"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"google.golang.org/grpc/codes"

	"github.com/dpup/tripplan/server/internal/clients/here"
	"github.com/dpup/tripplan/server/internal/lib/airports"
	"github.com/dpup/tripplan/server/internal/lib/export"
	"github.com/dpup/tripplan/server/internal/lib/flexpolyline"
	"github.com/dpup/tripplan/server/internal/lib/geo"
	"github.com/dpup/tripplan/server/internal/lib/itinerary"
	"github.com/dpup/tripplan/server/internal/storage"
)

// Geometry output formats for POST /api/v1/routes
const (
	GeometryEncoded = "encoded"
	GeometryPoints  = "points"
	GeometryGoogle  = "google"
)

const maxBodyBytes = 1 << 20

// ErrStorageDisabled is returned by itinerary endpoints when no database is configured
var ErrStorageDisabled = errors.New("itinerary storage is not configured")

// RouteSummarizer writes short descriptions of routes
type RouteSummarizer interface {
	Enabled() bool
	Summarize(ctx context.Context, route *itinerary.Route) (string, error)
}

// ItineraryRepository persists routes into projects
type ItineraryRepository interface {
	Save(ctx context.Context, req storage.SaveRequest) (*storage.Entry, error)
	List(ctx context.Context, projectID string) ([]storage.Entry, error)
}

// Handlers serves the JSON API
type Handlers struct {
	Planner     *Planner
	Airports    AirportLookup
	Summarizer  RouteSummarizer
	Itineraries ItineraryRepository
}

type routesRequest struct {
	PlanRequest
	Geometry  string `json:"geometry,omitempty"`
	Summarize bool   `json:"summarize,omitempty"`
}

type routesResponse struct {
	Routes    []routeView `json:"routes"`
	FromCache bool        `json:"fromCache"`
}

type routeView struct {
	*itinerary.Route
	Summary  string            `json:"summary,omitempty"`
	Geometry []sectionGeometry `json:"geometry,omitempty"`
}

type sectionGeometry struct {
	SectionID string      `json:"sectionId"`
	Points    []geo.Point `json:"points,omitempty"`
	Google    string      `json:"google,omitempty"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Routes handles POST /api/v1/routes
func (h *Handlers) Routes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req routesRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	switch req.Geometry {
	case "", GeometryEncoded, GeometryPoints, GeometryGoogle:
	default:
		writeError(w, r, fmt.Errorf("%w: unknown geometry format %q", ErrInvalidRequest, req.Geometry))
		return
	}

	result, err := h.Planner.Plan(r.Context(), req.PlanRequest)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := routesResponse{Routes: make([]routeView, 0, len(result.Routes)), FromCache: result.FromCache}
	for _, route := range result.Routes {
		view := routeView{Route: route}
		if req.Geometry == GeometryPoints || req.Geometry == GeometryGoogle {
			view.Geometry, err = renderGeometry(route, req.Geometry)
			if err != nil {
				writeError(w, r, err)
				return
			}
		}
		if req.Summarize && h.Summarizer != nil && h.Summarizer.Enabled() {
			if view.Summary, err = h.Summarizer.Summarize(r.Context(), route); err != nil {
				logging.Warnw(logging.EnsureLogger(r.Context()), "Route summary failed", "routeId", route.ID, "error", err)
			}
		}
		resp.Routes = append(resp.Routes, view)
	}

	writeJSON(w, r, http.StatusOK, resp)
}

func renderGeometry(route *itinerary.Route, format string) ([]sectionGeometry, error) {
	out := make([]sectionGeometry, len(route.Sections))
	for i, s := range route.Sections {
		points, err := flexpolyline.Decode(s.Polyline)
		if err != nil {
			return nil, fmt.Errorf("section %s: %w", s.ID, err)
		}
		out[i].SectionID = s.ID
		if format == GeometryGoogle {
			out[i].Google = geo.EncodeGooglePolyline(points)
		} else {
			out[i].Points = points
		}
	}
	return out, nil
}

// ClosestAirport handles GET /api/v1/airports/closest?lat=&lng=
func (h *Handlers) ClosestAirport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, r, http.MethodGet)
		return
	}

	lat, errLat := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lng, errLng := strconv.ParseFloat(r.URL.Query().Get("lng"), 64)
	if errLat != nil || errLng != nil {
		writeError(w, r, fmt.Errorf("%w: lat and lng must be numbers", ErrInvalidRequest))
		return
	}
	p, err := geo.NewPoint(lat, lng)
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: %w", ErrInvalidRequest, err))
		return
	}

	rec, err := h.Airports.ClosestAirport(r.Context(), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, rec)
}

// RouteKML handles POST /api/v1/routes/kml. The body is a route as returned
// by POST /api/v1/routes.
func (h *Handlers) RouteKML(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, r, http.MethodPost)
		return
	}

	var route itinerary.Route
	if err := decodeBody(w, r, &route); err != nil {
		writeError(w, r, err)
		return
	}
	if len(route.Sections) == 0 {
		writeError(w, r, fmt.Errorf("%w: route has no sections", ErrInvalidRequest))
		return
	}

	var buf bytes.Buffer
	if err := export.WriteRouteKML(&buf, &route); err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.google-earth.kml+xml")
	w.Header().Set("Content-Disposition", `attachment; filename="route.kml"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// Itinerary handles POST and GET /api/v1/projects/itinerary
func (h *Handlers) Itinerary(w http.ResponseWriter, r *http.Request) {
	if h.Itineraries == nil {
		writeError(w, r, ErrStorageDisabled)
		return
	}

	switch r.Method {
	case http.MethodPost:
		var req storage.SaveRequest
		if err := decodeBody(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		entry, err := h.Itineraries.Save(r.Context(), req)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusCreated, entry)

	case http.MethodGet:
		entries, err := h.Itineraries.List(r.Context(), r.URL.Query().Get("projectId"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, map[string]any{"entries": entries})

	default:
		writeMethodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return nil
}

// errorCode maps domain errors onto gRPC codes so HTTP statuses follow the
// gateway's conventions
func errorCode(err error) codes.Code {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, ErrFlightTooShort),
		errors.Is(err, geo.ErrDegenerateGeometry),
		errors.Is(err, flexpolyline.ErrDecode),
		errors.Is(err, itinerary.ErrMalformedSection),
		errors.Is(err, storage.ErrMissingProject),
		errors.Is(err, storage.ErrUnknownSection):
		return codes.InvalidArgument
	case errors.Is(err, itinerary.ErrNoAirportFound),
		errors.Is(err, itinerary.ErrEmptyRoute):
		return codes.NotFound
	case errors.Is(err, ErrUpstream),
		errors.Is(err, here.ErrRateLimited),
		errors.Is(err, airports.ErrDataUnavailable):
		return codes.Unavailable
	case errors.Is(err, ErrStorageDisabled):
		return codes.Unimplemented
	}
	return codes.Internal
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := errorCode(err)
	if code == codes.Internal {
		logging.Errorw(logging.EnsureLogger(r.Context()), "Request failed", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, r, runtime.HTTPStatusFromCode(code), errorResponse{Code: code.String(), Message: err.Error()})
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Errorw(logging.EnsureLogger(r.Context()), "Failed to write response", "path", r.URL.Path, "error", err)
	}
}

func writeMethodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	for _, m := range allowed {
		w.Header().Add("Allow", m)
	}
	writeJSON(w, r, http.StatusMethodNotAllowed, errorResponse{
		Code:    codes.Unimplemented.String(),
		Message: "method not allowed",
	})
}
