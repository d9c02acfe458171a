package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/dpup/prefab/logging"
	"github.com/joho/godotenv"

	"github.com/dpup/tripplan/server/internal/lib/airports"
	"github.com/dpup/tripplan/server/internal/lib/geo"
	"github.com/dpup/tripplan/server/internal/lib/itinerary"
	"github.com/dpup/tripplan/server/internal/lib/summary"
)

func main() {
	_ = godotenv.Load()

	var (
		originStr = flag.String("origin", "47.6062,-122.3321", "Origin coordinates (lat,lng)")
		destStr   = flag.String("dest", "40.7128,-74.0060", "Destination coordinates (lat,lng)")
		depart    = flag.String("depart", "", "Departure time, RFC 3339")
		arrive    = flag.String("arrive", "", "Arrival time, RFC 3339")
		summarize = flag.Bool("summarize", false, "Ask OpenAI for a one-line summary (needs PF__SUMMARY__OPENAI_API_KEY)")
	)
	flag.Parse()

	origin, err := parsePoint(*originStr)
	if err != nil {
		log.Fatalf("Invalid origin coordinates: %v", err)
	}
	dest, err := parsePoint(*destStr)
	if err != nil {
		log.Fatalf("Invalid destination coordinates: %v", err)
	}

	constraint, err := parseConstraint(*depart, *arrive)
	if err != nil {
		log.Fatalf("Invalid time constraint: %v", err)
	}

	repo, err := airports.LoadEmbedded()
	if err != nil {
		log.Fatalf("Failed to load airport data: %v", err)
	}
	resolver := airports.NewResolver(repo)
	ctx := logging.EnsureLogger(context.Background())

	for _, p := range []geo.Point{origin, dest} {
		rec, err := resolver.ClosestAirport(ctx, p)
		if err != nil {
			log.Fatalf("No airport near %.4f,%.4f: %v", p.Latitude, p.Longitude, err)
		}
		fmt.Printf("%.4f,%.4f -> %s %s (%s, weight %.0f, %s)\n",
			p.Latitude, p.Longitude, rec.IATA, rec.Name, rec.City, rec.Weight, rec.Timezone)
	}
	fmt.Println()

	route, err := itinerary.NewFlightSynthesizer(resolver).Synthesize(ctx, origin, dest, constraint)
	if err != nil {
		log.Fatalf("Failed to synthesize flight: %v", err)
	}

	fmt.Printf("Flight: %d min, %.0f km\n", route.Duration, route.TotalDistance/1000)
	fmt.Printf("%s", summary.Describe(route))

	if *summarize {
		s := summary.NewSummarizer(os.Getenv("PF__SUMMARY__OPENAI_API_KEY"), "")
		text, err := s.Summarize(ctx, route)
		if err != nil {
			log.Fatalf("Summary failed: %v", err)
		}
		fmt.Printf("\n%s\n", text)
	}
}

func parseConstraint(depart, arrive string) (*itinerary.TimeConstraint, error) {
	switch {
	case depart != "" && arrive != "":
		return nil, fmt.Errorf("use only one of -depart and -arrive")
	case depart != "":
		t, err := time.Parse(time.RFC3339, depart)
		if err != nil {
			return nil, err
		}
		return &itinerary.TimeConstraint{Type: itinerary.ConstraintDepart, Instant: t}, nil
	case arrive != "":
		t, err := time.Parse(time.RFC3339, arrive)
		if err != nil {
			return nil, err
		}
		return &itinerary.TimeConstraint{Type: itinerary.ConstraintArrive, Instant: t}, nil
	}
	return nil, nil
}

func parsePoint(s string) (geo.Point, error) {
	var lat, lng float64
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%f,%f", &lat, &lng); err != nil {
		return geo.Point{}, err
	}
	return geo.NewPoint(lat, lng)
}
