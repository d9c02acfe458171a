package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/dpup/prefab/logging"
	"github.com/joho/godotenv"

	"github.com/dpup/tripplan/server/internal/clients/here"
	"github.com/dpup/tripplan/server/internal/lib/airports"
	"github.com/dpup/tripplan/server/internal/lib/geo"
	"github.com/dpup/tripplan/server/internal/lib/itinerary"
	"github.com/dpup/tripplan/server/internal/services"
)

func main() {
	_ = godotenv.Load()

	var (
		apiKey    = flag.String("api-key", os.Getenv("PF__HERE__API_KEY"), "HERE API key (or set PF__HERE__API_KEY env var)")
		originStr = flag.String("origin", "47.6062,-122.3321", "Origin coordinates (lat,lng)")
		destStr   = flag.String("dest", "47.6553,-122.3035", "Destination coordinates (lat,lng)")
		modality  = flag.String("modality", "transit", "transit, pedestrian or car")
		raw       = flag.Bool("raw", false, "Print normalized routes as JSON")
		help      = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		fmt.Printf("HERE Intermodal Routing Test Tool\n\n")
		fmt.Printf("Requests routes from HERE and prints them after normalization.\n\n")
		fmt.Printf("Usage: %s [options]\n\n", os.Args[0])
		fmt.Printf("Options:\n")
		flag.PrintDefaults()
		fmt.Printf("\nExamples:\n")
		fmt.Printf("  %s -api-key=YOUR_KEY\n", os.Args[0])
		fmt.Printf("  %s -modality=car -origin=\"37.7749,-122.4194\" -dest=\"37.3382,-121.8863\"\n", os.Args[0])
		return
	}

	if *apiKey == "" {
		log.Fatal("HERE API key required. Use -api-key flag or PF__HERE__API_KEY env var (a .env file is read too)")
	}

	origin, err := parsePoint(*originStr)
	if err != nil {
		log.Fatalf("Invalid origin coordinates: %v", err)
	}
	dest, err := parsePoint(*destStr)
	if err != nil {
		log.Fatalf("Invalid destination coordinates: %v", err)
	}

	repo, err := airports.LoadEmbedded()
	if err != nil {
		log.Fatalf("Failed to load airport data: %v", err)
	}

	client := here.NewClient(*apiKey, here.DefaultBaseURL, 30*time.Second)
	planner := services.NewPlanner(client, airports.NewResolver(repo))
	planner.Alternatives = 2

	ctx, cancel := context.WithTimeout(logging.EnsureLogger(context.Background()), 45*time.Second)
	defer cancel()

	fmt.Printf("HERE Routing Test\n")
	fmt.Printf("=================\n")
	fmt.Printf("Origin: %.6f,%.6f\n", origin.Latitude, origin.Longitude)
	fmt.Printf("Destination: %.6f,%.6f\n", dest.Latitude, dest.Longitude)
	fmt.Printf("Modality: %s\n\n", *modality)

	start := time.Now()
	routes, err := planner.RequestRoutes(ctx, origin, dest, itinerary.Modality(*modality), nil)
	if err != nil {
		log.Fatalf("Request failed: %v", err)
	}
	fmt.Printf("Received %d routes in %v\n\n", len(routes), time.Since(start))

	if *raw {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(routes); err != nil {
			log.Fatalf("Failed to encode routes: %v", err)
		}
		return
	}

	for i, r := range routes {
		fmt.Printf("Route %d: %d min, %.2f km, departs %s (%s -> %s)\n",
			i+1, r.Duration, r.TotalDistance/1000, r.DepartureTime.Format(time.RFC3339), r.Zones.Start, r.Zones.End)
		for _, s := range r.Sections {
			fmt.Printf("  %-10s %-12s %s -> %s\n", s.Type, s.Transport.TransportMode(),
				s.Departure.Time.Format("15:04"), s.Arrival.Time.Format("15:04"))
		}
	}
}

func parsePoint(s string) (geo.Point, error) {
	var lat, lng float64
	if _, err := fmt.Sscanf(s, "%f,%f", &lat, &lng); err != nil {
		return geo.Point{}, err
	}
	return geo.NewPoint(lat, lng)
}
