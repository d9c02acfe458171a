package summary

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpup/tripplan/server/internal/lib/airports"
	"github.com/dpup/tripplan/server/internal/lib/geo"
	"github.com/dpup/tripplan/server/internal/lib/itinerary"
)

func flightRoute(t *testing.T) *itinerary.Route {
	repo, err := airports.LoadEmbedded()
	require.NoError(t, err)

	f := itinerary.NewFlightSynthesizer(airports.NewResolver(repo))
	f.Now = func() time.Time { return time.Date(2024, 6, 1, 16, 0, 0, 0, time.UTC) }

	route, err := f.Synthesize(context.Background(),
		geo.Point{Latitude: 47.6062, Longitude: -122.3321},
		geo.Point{Latitude: 34.0522, Longitude: -118.2437},
		nil)
	require.NoError(t, err)
	return route
}

func chatServer(t *testing.T, status int, content string, captured *openai.ChatCompletionRequest) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		if captured != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(captured))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error": {"message": "Incorrect API key provided", "type": "invalid_request_error"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  DefaultModel,
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]string{"role": "assistant", "content": content},
				"finish_reason": "stop",
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testSummarizer(srv *httptest.Server) *Summarizer {
	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = srv.URL + "/v1"
	return NewSummarizerWithConfig(cfg, "")
}

func TestSummarize(t *testing.T) {
	var req openai.ChatCompletionRequest
	srv := chatServer(t, http.StatusOK, "  Fly SEA 9:00 AM PDT to LAX 11:45 AM PDT, 2h45m.  ", &req)

	summary, err := testSummarizer(srv).Summarize(context.Background(), flightRoute(t))
	require.NoError(t, err)
	assert.Equal(t, "Fly SEA 9:00 AM PDT to LAX 11:45 AM PDT, 2h45m.", summary)

	assert.Equal(t, DefaultModel, req.Model)
	require.Len(t, req.Messages, 2)
	assert.Contains(t, req.Messages[1].Content, "flight route")
	assert.Contains(t, req.Messages[1].Content, "(SEA)")
}

func TestSummarize_TruncatesLongAnswers(t *testing.T) {
	srv := chatServer(t, http.StatusOK, strings.Repeat("very ", 100), nil)

	summary, err := testSummarizer(srv).Summarize(context.Background(), flightRoute(t))
	require.NoError(t, err)
	assert.Len(t, summary, maxSummaryLength)
	assert.True(t, strings.HasSuffix(summary, "..."))
}

func TestSummarize_TruncatesOnRuneBoundary(t *testing.T) {
	srv := chatServer(t, http.StatusOK, strings.Repeat("東京から大阪へ。", 40), nil)

	summary, err := testSummarizer(srv).Summarize(context.Background(), flightRoute(t))
	require.NoError(t, err)
	assert.True(t, utf8.ValidString(summary))
	assert.Equal(t, maxSummaryLength, utf8.RuneCountInString(summary))
	assert.True(t, strings.HasSuffix(summary, "東京から大..."), summary)
}

func TestSummarize_APIError(t *testing.T) {
	srv := chatServer(t, http.StatusUnauthorized, "", nil)

	_, err := testSummarizer(srv).Summarize(context.Background(), flightRoute(t))
	assert.ErrorContains(t, err, "OpenAI API error")
}

func TestSummarize_Disabled(t *testing.T) {
	s := NewSummarizer("", "")
	assert.False(t, s.Enabled())

	_, err := s.Summarize(context.Background(), flightRoute(t))
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestDescribe(t *testing.T) {
	out := Describe(flightRoute(t))
	lines := strings.Split(strings.TrimSpace(out), "\n")

	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "zones America/Los_Angeles to America/Los_Angeles")
	assert.Contains(t, lines[1], "airport (idle)")
	assert.Contains(t, lines[2], "flight (flight) from Seattle-Tacoma International Airport (SEA) at 2024-06-01T09:00:00-07:00")
	assert.Contains(t, lines[3], "Los Angeles International Airport (LAX)")
}
