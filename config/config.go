package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the engine's configuration settings.
type Config struct {
	Postgres      PostgresConfig      `yaml:"postgres"`
	NATS          NATSConfig          `yaml:"nats"`
	HTTP          HTTPConfig          `yaml:"http"`
	Engine        EngineConfig        `yaml:"engine"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// PostgresConfig holds Postgres configuration.
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// NATSConfig holds NATS configuration.
type NATSConfig struct {
	URL string `yaml:"url"`
}

// HTTPConfig holds the API server configuration.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
	// RequestsPerSecond caps the whole API surface; <= 0 disables the
	// throttle.
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// EngineConfig holds scoring and badge maintenance tuning.
type EngineConfig struct {
	// ApplyMaxAttempts bounds optimistic retries on a contended user row.
	ApplyMaxAttempts int           `yaml:"apply_max_attempts"`
	ApplyBackoffBase time.Duration `yaml:"apply_backoff_base"`
	// SnapshotStaleness bounds how old a cached ranking snapshot may be.
	SnapshotStaleness time.Duration `yaml:"snapshot_staleness"`
	// RecomputeInterval is how often open competitive periods are swept.
	RecomputeInterval time.Duration `yaml:"recompute_interval"`
}

// ObservabilityConfig holds configuration for observability components.
type ObservabilityConfig struct {
	// MetricsAddress serves Prometheus metrics when set; empty disables the
	// endpoint.
	MetricsAddress string `yaml:"metrics_address"`
	Environment    string `yaml:"environment"`
	LogLevel       string `yaml:"log_level"`
}

// LoadConfig loads the configuration from a YAML file, with environment
// variables overriding file values. A missing file falls back to environment
// variables only.
func LoadConfig(filename string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(filename)
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Postgres.DSN = v
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}
	if v := os.Getenv("HTTP_REQUESTS_PER_SECOND"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.HTTP.RequestsPerSecond = f
		}
	}
	if v := os.Getenv("APPLY_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Engine.ApplyMaxAttempts = n
		}
	}
	if v := os.Getenv("APPLY_BACKOFF_BASE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Engine.ApplyBackoffBase = d
		}
	}
	if v := os.Getenv("SNAPSHOT_STALENESS"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Engine.SnapshotStaleness = d
		}
	}
	if v := os.Getenv("RECOMPUTE_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Engine.RecomputeInterval = d
		}
	}
	if v := os.Getenv("METRICS_ADDRESS"); v != "" {
		cfg.Observability.MetricsAddress = v
	}
	if v := os.Getenv("ENV"); v != "" {
		cfg.Observability.Environment = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}

	if cfg.Postgres.DSN == "" {
		return nil, fmt.Errorf("postgres DSN not set (config file or DATABASE_URL)")
	}
	if cfg.NATS.URL == "" {
		return nil, fmt.Errorf("NATS URL not set (config file or NATS_URL)")
	}
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if cfg.Engine.RecomputeInterval <= 0 {
		cfg.Engine.RecomputeInterval = time.Minute
	}

	return &cfg, nil
}
