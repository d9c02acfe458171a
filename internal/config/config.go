package config

import (
	"errors"
	"fmt"
	"time"
)

// Config represents the complete server configuration. Each section is
// loaded from its own key in prefab.yaml.
type Config struct {
	Here     HereConfig     `yaml:"here"`
	Routes   RoutesConfig   `yaml:"routes"`
	Airports AirportsConfig `yaml:"airports"`
	Storage  StorageConfig  `yaml:"storage"`
	Cache    CacheConfig    `yaml:"cache"`
	NATS     NATSConfig     `yaml:"nats"`
	Summary  SummaryConfig  `yaml:"summary"`
}

// HereConfig holds HERE Intermodal Routing API settings
type HereConfig struct {
	APIKey       string        `yaml:"api_key"`
	BaseURL      string        `yaml:"base_url"`
	Timeout      time.Duration `yaml:"timeout"`
	Alternatives int           `yaml:"alternatives"`
}

// RoutesConfig holds route planning settings
type RoutesConfig struct {
	CacheTTL time.Duration `yaml:"cache_ttl"`
	// FlightMinDistanceKm is the shortest trip the planner offers a flight for
	FlightMinDistanceKm float64 `yaml:"flight_min_distance_km"`
}

// Airport dataset sources
const (
	AirportSourceEmbedded = "embedded"
	AirportSourcePostgres = "postgres"
)

// AirportsConfig selects where the airport reference data comes from. The
// embedded set holds roughly 360 commercial airports worldwide; load the full
// OurAirports export into Postgres for regional coverage.
type AirportsConfig struct {
	Source string `yaml:"source"`
}

// StorageConfig holds the Postgres connection used for itineraries
type StorageConfig struct {
	PostgresURL string `yaml:"postgres_url"`
}

// CacheConfig selects the route cache backend. An empty RedisAddr keeps the
// cache in memory.
type CacheConfig struct {
	RedisAddr       string        `yaml:"redis_addr"`
	RedisPassword   string        `yaml:"redis_password"`
	KeyPrefix       string        `yaml:"key_prefix"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// NATSConfig enables route.planned events when URL is set
type NATSConfig struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// SummaryConfig enables OpenAI itinerary summaries when the key is set
type SummaryConfig struct {
	OpenAIAPIKey string `yaml:"openai_api_key"`
	Model        string `yaml:"model"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Here: HereConfig{
			BaseURL:      "https://intermodal.router.hereapi.com",
			Timeout:      30 * time.Second,
			Alternatives: 2,
		},
		Routes: RoutesConfig{
			CacheTTL:            5 * time.Minute,
			FlightMinDistanceKm: 150,
		},
		Airports: AirportsConfig{
			Source: AirportSourceEmbedded,
		},
		Cache: CacheConfig{
			KeyPrefix:       "tripplan:",
			CleanupInterval: 10 * time.Minute,
		},
		NATS: NATSConfig{
			SubjectPrefix: "tripplan",
		},
		Summary: SummaryConfig{
			Model: "gpt-4o-mini",
		},
	}
}

// Validate checks that required settings are present and consistent
func (c *Config) Validate() error {
	var errs []error
	if c.Here.APIKey == "" {
		errs = append(errs, errors.New("here.api_key is required"))
	}
	if c.Here.Alternatives < 0 || c.Here.Alternatives > 6 {
		errs = append(errs, fmt.Errorf("here.alternatives must be between 0 and 6, got %d", c.Here.Alternatives))
	}
	if c.Routes.CacheTTL < 0 {
		errs = append(errs, errors.New("routes.cache_ttl must not be negative"))
	}
	switch c.Airports.Source {
	case AirportSourceEmbedded:
	case AirportSourcePostgres:
		if c.Storage.PostgresURL == "" {
			errs = append(errs, errors.New("storage.postgres_url is required when airports.source is postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("airports.source must be %q or %q, got %q",
			AirportSourceEmbedded, AirportSourcePostgres, c.Airports.Source))
	}
	if c.Cache.RedisAddr == "" && c.Cache.CleanupInterval <= 0 {
		errs = append(errs, errors.New("cache.cleanup_interval must be positive for the in-memory cache"))
	}
	return errors.Join(errs...)
}
