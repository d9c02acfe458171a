package here

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/dpup/tripplan/server/internal/lib/geo"
)

// DefaultBaseURL is the HERE Intermodal Routing API v8 host
const DefaultBaseURL = "https://intermodal.router.hereapi.com"

var (
	// ErrRateLimited is returned when HERE answers 429
	ErrRateLimited = errors.New("rate limit exceeded")
	// ErrUnauthorized is returned when HERE rejects the API key
	ErrUnauthorized = errors.New("invalid HERE API key")
)

// HTTPDoer is satisfied by *http.Client and test doubles
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client provides access to the HERE Intermodal Routing API
type Client struct {
	apiKey     string
	baseURL    string
	httpClient HTTPDoer
}

// NewClient creates a HERE client. An empty baseURL selects DefaultBaseURL
// and a zero timeout selects 30 seconds.
func NewClient(apiKey, baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return NewClientWithHTTPDoer(apiKey, baseURL, &http.Client{Timeout: timeout})
}

// NewClientWithHTTPDoer creates a client that sends requests through doer
func NewClientWithHTTPDoer(apiKey, baseURL string, doer HTTPDoer) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: doer,
	}
}

// Query parameterizes a single routing request
type Query struct {
	Origin      geo.Point
	Destination geo.Point

	// DisableTransit keeps the search to walking or driving
	DisableTransit bool
	// Vehicle drives the entire route instead of walking between transit legs
	Vehicle bool

	// At is the departure time, or the arrival time when ArriveBy is set.
	// A zero At lets HERE plan from now.
	At       time.Time
	ArriveBy bool

	Alternatives int
}

// RoutesResponse is the subset of the HERE response this service reads
type RoutesResponse struct {
	Routes  []Route         `json:"routes"`
	Notices json.RawMessage `json:"notices,omitempty"`
}

// Route is one upstream route. Sections stay raw so a malformed leg can be
// dropped without rejecting its siblings.
type Route struct {
	ID       string            `json:"id"`
	Sections []json.RawMessage `json:"sections"`
}

// Routes requests multimodal routes between two points. An empty route list
// is a valid answer and is not reported as an error.
func (c *Client) Routes(ctx context.Context, q Query) (*RoutesResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v8/routes?"+c.values(q).Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, ErrRateLimited
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, ErrUnauthorized
	case resp.StatusCode >= 400:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, string(body))
	}

	var response RoutesResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &response, nil
}

// values builds the query string. Taxi and rented vehicles are always
// disabled; an empty enable value switches a mode off.
func (c *Client) values(q Query) url.Values {
	v := url.Values{}
	v.Set("apiKey", c.apiKey)
	v.Set("origin", formatPoint(q.Origin))
	v.Set("destination", formatPoint(q.Destination))
	v.Set("return", "polyline")
	v.Set("taxi[enable]", "")
	v.Set("rented[enable]", "")
	if q.DisableTransit {
		v.Set("transit[enable]", "")
	}
	if q.Vehicle {
		v.Set("vehicle[enable]", "entireRoute")
		v.Set("vehicle[modes]", "car")
	}
	if !q.At.IsZero() {
		if q.ArriveBy {
			v.Set("arrivalTime", q.At.Format(time.RFC3339))
		} else {
			v.Set("departureTime", q.At.Format(time.RFC3339))
		}
	}
	if q.Alternatives > 0 {
		v.Set("alternatives", strconv.Itoa(q.Alternatives))
	}
	return v
}

func formatPoint(p geo.Point) string {
	return strconv.FormatFloat(p.Latitude, 'f', -1, 64) + "," + strconv.FormatFloat(p.Longitude, 'f', -1, 64)
}
