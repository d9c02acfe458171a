// Package summary produces one-line, traveler-facing descriptions of routes
package summary

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/dpup/tripplan/server/internal/lib/itinerary"
)

// DefaultModel is used when no model is configured
const DefaultModel = openai.GPT4oMini

const maxSummaryLength = 200

// ErrDisabled is returned when no OpenAI API key is configured
var ErrDisabled = errors.New("summaries disabled: no OpenAI API key")

// Summarizer turns routes into short itinerary summaries using OpenAI
type Summarizer struct {
	client *openai.Client
	model  string
}

// NewSummarizer creates a summarizer. An empty apiKey yields a summarizer
// that always returns ErrDisabled.
func NewSummarizer(apiKey, model string) *Summarizer {
	if apiKey == "" {
		return &Summarizer{model: model}
	}
	return NewSummarizerWithConfig(openai.DefaultConfig(apiKey), model)
}

// NewSummarizerWithConfig creates a summarizer with a custom client config
func NewSummarizerWithConfig(cfg openai.ClientConfig, model string) *Summarizer {
	if model == "" {
		model = DefaultModel
	}
	return &Summarizer{client: openai.NewClientWithConfig(cfg), model: model}
}

// Enabled reports whether summaries can be generated
func (s *Summarizer) Enabled() bool {
	return s != nil && s.client != nil
}

// Summarize returns a single sentence describing the route
func (s *Summarizer) Summarize(ctx context.Context, route *itinerary.Route) (string, error) {
	if !s.Enabled() {
		return "", ErrDisabled
	}

	systemPrompt := `You write one-sentence itinerary summaries for a trip planner. Mention the modes of travel, the main stops, the departure and arrival wall-clock times with their local time zones, and the total duration. Stay under 200 characters. Return plain text only.`

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: Describe(route),
			},
		},
		Temperature: 0.3,
		MaxTokens:   120,
	})
	if err != nil {
		return "", fmt.Errorf("OpenAI API error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no response from OpenAI API")
	}

	summary := strings.TrimSpace(resp.Choices[0].Message.Content)
	if summary == "" {
		return "", errors.New("empty summary from OpenAI API")
	}
	if runes := []rune(summary); len(runes) > maxSummaryLength {
		summary = string(runes[:maxSummaryLength-3]) + "..."
	}
	return summary, nil
}

// Describe renders the route as plain text, one line per section. It is the
// prompt given to the model and a readable fallback on its own.
func Describe(route *itinerary.Route) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s route, %.1f km, %d minutes, zones %s to %s\n",
		route.Modality, route.TotalDistance/1000, route.Duration, route.Zones.Start, route.Zones.End)
	for i, s := range route.Sections {
		fmt.Fprintf(&b, "%d. %s (%s) from %s at %s to %s at %s\n",
			i+1, s.Type, mode(s), place(s.Departure.Place), s.Departure.Time.Format(time.RFC3339),
			place(s.Arrival.Place), s.Arrival.Time.Format(time.RFC3339))
	}
	return b.String()
}

func mode(s itinerary.Section) string {
	if s.Transport == nil {
		return "unknown"
	}
	if t, ok := s.Transport.(itinerary.TransitTransport); ok && t.Name != "" {
		return t.Mode + " " + t.Name
	}
	return s.Transport.TransportMode()
}

func place(p itinerary.Place) string {
	switch {
	case p.Name != "" && p.Code != "":
		return p.Name + " (" + p.Code + ")"
	case p.Name != "":
		return p.Name
	case p.Code != "":
		return p.Code
	}
	return fmt.Sprintf("%.4f,%.4f", p.Location.Latitude, p.Location.Longitude)
}
