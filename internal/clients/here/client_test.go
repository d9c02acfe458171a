package here

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dpup/tripplan/server/internal/lib/geo"
)

// MockHTTPDoer is a mock implementation of HTTPDoer
type MockHTTPDoer struct {
	mock.Mock
}

func (m *MockHTTPDoer) Do(req *http.Request) (*http.Response, error) {
	args := m.Called(req)
	resp, _ := args.Get(0).(*http.Response)
	return resp, args.Error(1)
}

func loadTestFixture(t *testing.T, filename string) string {
	data, err := os.ReadFile("testdata/" + filename)
	require.NoError(t, err, "Failed to load test fixture %s", filename)
	return string(data)
}

func createMockResponse(statusCode int, body string) *http.Response {
	return &http.Response{
		StatusCode: statusCode,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}
}

var (
	seattle = geo.Point{Latitude: 47.60621, Longitude: -122.33207}
	uw      = geo.Point{Latitude: 47.6553, Longitude: -122.3035}
)

func TestRoutes_Success(t *testing.T) {
	mockHTTP := &MockHTTPDoer{}
	mockHTTP.On("Do", mock.AnythingOfType("*http.Request")).Return(
		createMockResponse(200, loadTestFixture(t, "seattle_transit.json")), nil)

	client := NewClientWithHTTPDoer("test-api-key", "https://intermodal.example.com", mockHTTP)

	resp, err := client.Routes(context.Background(), Query{Origin: seattle, Destination: uw})
	require.NoError(t, err)
	require.Len(t, resp.Routes, 1)
	assert.Equal(t, "route-1", resp.Routes[0].ID)
	require.Len(t, resp.Routes[0].Sections, 2)
	assert.Contains(t, string(resp.Routes[0].Sections[1]), `"lightRail"`)

	mockHTTP.AssertExpectations(t)
}

func TestRoutes_NoRoutesIsNotAnError(t *testing.T) {
	mockHTTP := &MockHTTPDoer{}
	mockHTTP.On("Do", mock.AnythingOfType("*http.Request")).Return(
		createMockResponse(200, `{"routes": [], "notices": [{"title": "No route found", "code": "noRouteFound"}]}`), nil)

	client := NewClientWithHTTPDoer("test-api-key", "", mockHTTP)

	resp, err := client.Routes(context.Background(), Query{Origin: seattle, Destination: uw})
	require.NoError(t, err)
	assert.Empty(t, resp.Routes)
	assert.NotEmpty(t, resp.Notices)
}

func TestRoutes_RequestFormat(t *testing.T) {
	tests := []struct {
		name   string
		query  Query
		want   map[string]string
		absent []string
	}{
		{
			name:  "transit departing",
			query: Query{Origin: seattle, Destination: uw, At: time.Date(2024, 6, 1, 10, 0, 0, 0, time.FixedZone("PDT", -7*3600))},
			want: map[string]string{
				"origin":        "47.60621,-122.33207",
				"destination":   "47.6553,-122.3035",
				"departureTime": "2024-06-01T10:00:00-07:00",
				"return":        "polyline",
				"taxi[enable]":  "",
				"apiKey":        "test-api-key",
			},
			absent: []string{"arrivalTime", "transit[enable]", "vehicle[enable]", "alternatives"},
		},
		{
			name:  "pedestrian arriving",
			query: Query{Origin: seattle, Destination: uw, DisableTransit: true, ArriveBy: true, At: time.Date(2024, 6, 1, 17, 0, 0, 0, time.UTC)},
			want: map[string]string{
				"arrivalTime":     "2024-06-01T17:00:00Z",
				"transit[enable]": "",
				"rented[enable]":  "",
			},
			absent: []string{"departureTime"},
		},
		{
			name:  "car with alternatives",
			query: Query{Origin: seattle, Destination: uw, DisableTransit: true, Vehicle: true, Alternatives: 2},
			want: map[string]string{
				"vehicle[enable]": "entireRoute",
				"vehicle[modes]":  "car",
				"alternatives":    "2",
			},
			absent: []string{"departureTime", "arrivalTime"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var capturedRequest *http.Request
			mockHTTP := &MockHTTPDoer{}
			mockHTTP.On("Do", mock.AnythingOfType("*http.Request")).Run(func(args mock.Arguments) {
				capturedRequest = args.Get(0).(*http.Request)
			}).Return(createMockResponse(200, `{"routes": []}`), nil)

			client := NewClientWithHTTPDoer("test-api-key", "https://intermodal.example.com", mockHTTP)
			_, err := client.Routes(context.Background(), tt.query)
			require.NoError(t, err)

			require.NotNil(t, capturedRequest)
			assert.Equal(t, http.MethodGet, capturedRequest.Method)
			assert.Equal(t, "/v8/routes", capturedRequest.URL.Path)

			params := capturedRequest.URL.Query()
			for key, value := range tt.want {
				assert.True(t, params.Has(key), "expected %s", key)
				assert.Equal(t, value, params.Get(key), key)
			}
			for _, key := range tt.absent {
				assert.False(t, params.Has(key), "unexpected %s", key)
			}
		})
	}
}

func TestRoutes_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
		wantMsg string
	}{
		{"rate limited", 429, `{"title": "Too Many Requests"}`, ErrRateLimited, "rate limit exceeded"},
		{"unauthorized", 401, `{"error": "Unauthorized"}`, ErrUnauthorized, "invalid HERE API key"},
		{"bad request", 400, `{"title": "Malformed request"}`, nil, "API error 400"},
		{"invalid json", 200, `{"routes": json}`, nil, "failed to decode response"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockHTTP := &MockHTTPDoer{}
			mockHTTP.On("Do", mock.AnythingOfType("*http.Request")).Return(createMockResponse(tt.status, tt.body), nil)

			client := NewClientWithHTTPDoer("test-api-key", "", mockHTTP)
			resp, err := client.Routes(context.Background(), Query{Origin: seattle, Destination: uw})

			assert.Nil(t, resp)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestRoutes_TransportFailure(t *testing.T) {
	mockHTTP := &MockHTTPDoer{}
	mockHTTP.On("Do", mock.AnythingOfType("*http.Request")).Return(nil, errors.New("connection reset"))

	client := NewClientWithHTTPDoer("test-api-key", "", mockHTTP)
	_, err := client.Routes(context.Background(), Query{Origin: seattle, Destination: uw})
	assert.ErrorContains(t, err, "failed to execute request")
}
