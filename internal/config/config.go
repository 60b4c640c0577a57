package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds the configuration for the memory service.
// Environment variables are parsed from the MEMORY_ prefix,
// e.g. MEMORY_HTTP_PORT, MEMORY_POSTGRES_DSN.
type Config struct {
	// Build target selects the deployment shape: local (sqlite) or cloud (postgres).
	BuildTarget string `envconfig:"BUILD_TARGET" default:"cloud"`

	// DBDriver overrides the driver derived from BuildTarget when not "auto".
	DBDriver string `envconfig:"DB_DRIVER" default:"auto"`

	HTTPPort int `envconfig:"HTTP_PORT" default:"8080"`

	// Postgres configuration (pgvector extension required).
	PostgresDSN string `envconfig:"POSTGRES_DSN" default:""`

	// Number of ivfflat partitions for the approximate-nearest-neighbor
	// indexes. Larger values trade recall for query latency.
	VectorIndexLists int `envconfig:"VECTOR_INDEX_LISTS" default:"100"`

	// SQLite configuration (local mode).
	SQLitePath string `envconfig:"SQLITE_PATH" default:"kenny-memory.db"`

	// Embedding configuration. The service only embeds query text when a
	// search request does not carry a caller-computed vector.
	EmbedProvider    string `envconfig:"EMBED_PROVIDER" default:"ollama"`
	OllamaURL        string `envconfig:"OLLAMA_URL" default:"http://localhost:11434"`
	TurnEmbedModel   string `envconfig:"TURN_EMBED_MODEL" default:"nomic-embed-text"`
	MemoryEmbedModel string `envconfig:"MEMORY_EMBED_MODEL" default:"mxbai-embed-large"`

	// Session cache: session-id to conversation resolution.
	SessionCacheSize       int64 `envconfig:"SESSION_CACHE_SIZE" default:"10000"`
	SessionCacheTTLSeconds int   `envconfig:"SESSION_CACHE_TTL_SECONDS" default:"3600"`

	// Retention sweep default age threshold.
	RetentionDays int `envconfig:"RETENTION_DAYS" default:"90"`

	// Health checking.
	HealthIntervalSeconds     int `envconfig:"HEALTH_INTERVAL_SECONDS" default:"30"`
	HealthProbeTimeoutSeconds int `envconfig:"HEALTH_PROBE_TIMEOUT_SECONDS" default:"2"`
}

// ResolveDefaults validates BuildTarget and derives DBDriver when "auto".
func (c *Config) ResolveDefaults() error {
	var defaultDB string
	switch c.BuildTarget {
	case "cloud":
		defaultDB = "postgres"
	case "local":
		defaultDB = "sqlite"
	default:
		return fmt.Errorf("unsupported BUILD_TARGET: %s", c.BuildTarget)
	}

	if c.DBDriver == "" || c.DBDriver == "auto" {
		c.DBDriver = defaultDB
	}

	allowedDB := map[string]bool{"postgres": true, "sqlite": true}
	if !allowedDB[c.DBDriver] {
		return fmt.Errorf("unsupported DB_DRIVER: %s", c.DBDriver)
	}
	if c.DBDriver == "postgres" && c.PostgresDSN == "" {
		return fmt.Errorf("MEMORY_POSTGRES_DSN is required for the postgres driver")
	}
	if c.VectorIndexLists < 1 {
		return fmt.Errorf("MEMORY_VECTOR_INDEX_LISTS must be positive")
	}
	return nil
}

// New creates a new Config by parsing environment variables.
func New() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("MEMORY", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}
	if err := cfg.ResolveDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// HTTPAddr returns the HTTP server bind address.
func (c *Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// SessionCacheTTL returns the session cache TTL as a duration.
func (c *Config) SessionCacheTTL() time.Duration {
	return time.Duration(c.SessionCacheTTLSeconds) * time.Second
}

// RetentionAge returns the default sweep age threshold as a duration.
func (c *Config) RetentionAge() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}
