package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"

	"github.com/dpup/prefab"
	"github.com/dpup/prefab/logging"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dpup/tripplan/server/internal/cache"
	"github.com/dpup/tripplan/server/internal/clients/here"
	"github.com/dpup/tripplan/server/internal/config"
	"github.com/dpup/tripplan/server/internal/db"
	"github.com/dpup/tripplan/server/internal/lib/airports"
	"github.com/dpup/tripplan/server/internal/lib/summary"
	"github.com/dpup/tripplan/server/internal/metrics"
	"github.com/dpup/tripplan/server/internal/publisher"
	"github.com/dpup/tripplan/server/internal/services"
	"github.com/dpup/tripplan/server/internal/storage"
)

func main() {
	// Load configuration using Prefab's config system
	appConfig := loadConfig()
	if err := appConfig.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Background work such as cache sweeps logs through this context
	ctx := logging.EnsureLogger(context.Background())
	collector := metrics.NewCollector()

	var pool *pgxpool.Pool
	if appConfig.Storage.PostgresURL != "" {
		var err error
		pool, err = db.ConnectPostgres(ctx, appConfig.Storage.PostgresURL)
		if err != nil {
			log.Fatalf("Failed to connect to Postgres: %v", err)
		}
		defer pool.Close()
	}

	// Airport reference data
	var repo airports.Repository
	switch appConfig.Airports.Source {
	case config.AirportSourcePostgres:
		repo = airports.NewPostgresRepository(pool)
		log.Printf("Airport data: postgres")
	default:
		embedded, err := airports.LoadEmbedded()
		if err != nil {
			log.Fatalf("Failed to load airport data: %v", err)
		}
		repo = embedded
		log.Printf("Airport data: embedded (%d records)", embedded.Len())
	}
	resolver := airports.NewResolver(repo)

	hereClient := here.NewClient(appConfig.Here.APIKey, appConfig.Here.BaseURL, appConfig.Here.Timeout)

	planner := services.NewPlanner(hereClient, resolver)
	planner.Alternatives = appConfig.Here.Alternatives
	planner.FlightMinDistanceKm = appConfig.Routes.FlightMinDistanceKm
	planner.Metrics = collector
	planner.Cache = cache.NewRouteCache(routeStore(ctx, &appConfig.Cache, collector), appConfig.Routes.CacheTTL)

	if appConfig.NATS.URL != "" {
		pub, err := publisher.NewNATSPublisher(appConfig.NATS.URL, appConfig.NATS.SubjectPrefix, collector)
		if err != nil {
			log.Printf("NATS unavailable, route events disabled: %v", err)
		} else {
			defer pub.Close()
			planner.Events = pub
			log.Printf("Publishing route events to %s", appConfig.NATS.URL)
		}
	}

	handlers := &services.Handlers{
		Planner:    planner,
		Airports:   resolver,
		Summarizer: summary.NewSummarizer(appConfig.Summary.OpenAIAPIKey, appConfig.Summary.Model),
	}
	if pool != nil {
		handlers.Itineraries = storage.NewItineraryStore(pool)
	}
	if handlers.Summarizer.Enabled() {
		log.Printf("Route summaries enabled (model: %s)", appConfig.Summary.Model)
	}

	log.Printf("Trip planner route server starting")

	// Server configuration (port, etc.) will be loaded from prefab.yaml/env vars
	server := prefab.New(
		prefab.WithHTTPHandlerFunc("/", homepageHandler),
		prefab.WithHTTPHandlerFunc("/api/v1/routes", handlers.Routes),
		prefab.WithHTTPHandlerFunc("/api/v1/routes/kml", handlers.RouteKML),
		prefab.WithHTTPHandlerFunc("/api/v1/airports/closest", handlers.ClosestAirport),
		prefab.WithHTTPHandlerFunc("/api/v1/projects/itinerary", handlers.Itinerary),
		prefab.WithHTTPHandlerFunc("/metrics", collector.Handler().ServeHTTP),
	)

	// Start the server (blocks until shutdown)
	if err := server.Start(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

// routeStore picks Redis when configured, otherwise an in-memory cache that
// sweeps itself
func routeStore(ctx context.Context, cfg *config.CacheConfig, collector *metrics.Collector) cache.Store {
	if client := db.ConnectRedis(cfg.RedisAddr, cfg.RedisPassword); client != nil {
		log.Printf("Route cache: redis at %s", cfg.RedisAddr)
		return cache.NewRedisStore(client, cfg.KeyPrefix)
	}

	mem := cache.NewCache()
	mem.StartPeriodicCleanup(ctx, cfg.CleanupInterval, collector)
	log.Printf("Route cache: in-memory")
	return mem
}

// loadConfig loads configuration using Prefab's config system
// Configuration is loaded from prefab.yaml and environment variables with PF__ prefix
func loadConfig() *config.Config {
	appConfig := config.DefaultConfig()

	sections := []struct {
		key    string
		target any
	}{
		{"here", &appConfig.Here},
		{"routes", &appConfig.Routes},
		{"airports", &appConfig.Airports},
		{"storage", &appConfig.Storage},
		{"cache", &appConfig.Cache},
		{"nats", &appConfig.NATS},
		{"summary", &appConfig.Summary},
	}
	for _, s := range sections {
		if err := prefab.Config.Unmarshal(s.key, s.target); err != nil {
			log.Fatalf("Failed to unmarshal %s section: %v", s.key, err)
		}
	}

	return appConfig
}

// homepageHandler serves a simple HTML homepage at the server root
func homepageHandler(w http.ResponseWriter, r *http.Request) {
	// Only handle the root path
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	html := `<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <title>tripplan routes</title>
    <style>
        body { font-family: 'Courier New', Consolas, monospace; padding: 20px; line-height: 1.4; }
        .header { font-weight: bold; }
        pre { margin: 0; }
    </style>
</head>
<body>
<pre>
<span class="header">tripplan route server</span>

Plans transit, walking, driving and flight routes between two points and
normalizes them into one itinerary format.

<span class="header">API Endpoints:</span>

  POST /api/v1/routes                 - Plan routes {start, end, modality, time?, geometry?, summarize?}
  POST /api/v1/routes/kml             - Export a planned route as KML
  GET  /api/v1/airports/closest       - Airport serving ?lat=&amp;lng=
  POST /api/v1/projects/itinerary     - Save sections of a route to a project
  GET  /api/v1/projects/itinerary     - List a project's itinerary (?projectId=)
  GET  /metrics                       - Prometheus metrics

<span class="header">Example Usage:</span>
  curl -X POST /api/v1/routes -d '{"start":{"lat":47.6062,"lng":-122.3321},"end":{"lat":34.0522,"lng":-118.2437},"modality":"flight"}'
</pre>
</body>
</html>`

	if _, err := fmt.Fprint(w, html); err != nil {
		slog.Error("Failed to write homepage HTML", "error", err)
	}
}
