package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"

	"github.com/taisau/ha-road-speed-limits/internal/domain"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string        `env:"HTTP_ADDR, default=:8080"`
	LogLevel        string        `env:"LOG_LEVEL, default=info"`
	LogFormat       string        `env:"LOG_FORMAT, default=json"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT, default=10s"`

	PollInterval    time.Duration `env:"POLL_INTERVAL, default=5m"`
	ProviderTimeout time.Duration `env:"PROVIDER_TIMEOUT, default=10s"`
	SearchRadius    int           `env:"SEARCH_RADIUS_M, default=50"`
	DataSource      string        `env:"DATA_SOURCE, default=openstreetmap"`
	UnitPreference  string        `env:"UNIT_PREFERENCE, default=km/h"`

	// StaticLocation seeds the location source with a fixed "lat,lon" pair
	// for deployments without a live tracker pushing updates.
	StaticLocation string `env:"STATIC_LOCATION"`

	OverpassURL  string `env:"OVERPASS_URL, default=https://overpass-api.de/api/interpreter"`
	TomTomAPIKey string `env:"TOMTOM_API_KEY"`
	HereAPIKey   string `env:"HERE_API_KEY"`
	SecretsFile  string `env:"SECRETS_FILE"`
	CacheSize    int    `env:"CACHE_SIZE, default=256"`

	// Kafka outcome publishing, enabled when brokers are set.
	KafkaBrokers []string `env:"KAFKA_BROKERS"`
	KafkaTopic   string   `env:"KAFKA_TOPIC, default=road-speed-limits"`
}

// Load reads configuration from environment variables, applying defaults
// where unset, and validates the result.
func Load(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}

	if _, err := cfg.Provider(); err != nil {
		return nil, fmt.Errorf("invalid DATA_SOURCE: %w", err)
	}
	if cfg.UnitPreference != domain.UnitKMH && cfg.UnitPreference != domain.UnitMPH {
		return nil, fmt.Errorf("invalid UNIT_PREFERENCE %q (want km/h or mph)", cfg.UnitPreference)
	}
	if cfg.PollInterval <= 0 {
		return nil, errors.New("POLL_INTERVAL must be positive")
	}
	if cfg.ProviderTimeout <= 0 {
		return nil, errors.New("PROVIDER_TIMEOUT must be positive")
	}
	if cfg.SearchRadius <= 0 {
		return nil, errors.New("SEARCH_RADIUS_M must be positive")
	}
	if cfg.StaticLocation != "" {
		snapshot := &domain.LocationSnapshot{State: cfg.StaticLocation}
		if _, err := domain.ExtractCoordinate(snapshot, nil); err != nil {
			return nil, fmt.Errorf("invalid STATIC_LOCATION: %w", err)
		}
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}

	return &cfg, nil
}

// Provider returns the configured primary provider kind.
func (c *Config) Provider() (domain.ProviderKind, error) {
	return domain.ParseProviderKind(c.DataSource)
}

// KafkaEnabled reports whether outcome publishing is configured.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}
