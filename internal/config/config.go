package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds the service configuration.
// Environment variables are parsed from the ROSTERKEEP_ prefix.
type Config struct {
	HTTPPort int    `envconfig:"HTTP_PORT" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// DBDriver selects the storage backend: sqlite or postgres.
	DBDriver    string `envconfig:"DB_DRIVER" default:"sqlite"`
	SQLitePath  string `envconfig:"SQLITE_PATH" default:"rosterkeep.db"`
	PostgresDSN string `envconfig:"POSTGRES_DSN" default:""`

	// Ingest pipeline sizing.
	IngestWorkers int `envconfig:"INGEST_WORKERS" default:"8"`
	IngestBuffer  int `envconfig:"INGEST_BUFFER" default:"256"`

	// Reindex recovery pass.
	ReindexInterval time.Duration `envconfig:"REINDEX_INTERVAL" default:"30s"`
	ReindexBatch    int           `envconfig:"REINDEX_BATCH" default:"100"`
}

// Load parses configuration from the environment and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("ROSTERKEEP", &cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints envconfig cannot express.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case "sqlite":
		if c.SQLitePath == "" {
			return fmt.Errorf("ROSTERKEEP_SQLITE_PATH is required with the sqlite driver")
		}
	case "postgres":
		if c.PostgresDSN == "" {
			return fmt.Errorf("ROSTERKEEP_POSTGRES_DSN is required with the postgres driver")
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER: %s", c.DBDriver)
	}
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP_PORT: %d", c.HTTPPort)
	}
	if c.IngestWorkers <= 0 {
		return fmt.Errorf("INGEST_WORKERS must be positive")
	}
	return nil
}
