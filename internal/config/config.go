// Package config loads funcgate configuration.
//
// Values are layered: built-in defaults, then an optional YAML file, then
// FUNCGATE_* environment variables. Command line flags are applied last by
// the CLI.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/jdziat/funcgate/pkg/schedule"
	"github.com/jdziat/funcgate/pkg/security"
)

// EnvPrefix prefixes every environment variable.
const EnvPrefix = "FUNCGATE_"

// Config is the full process configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server" envPrefix:"SERVER_"`
	Canon   CanonConfig   `yaml:"canon" envPrefix:"CANON_"`
	Journal JournalConfig `yaml:"journal" envPrefix:"JOURNAL_"`
	Metrics MetricsConfig `yaml:"metrics" envPrefix:"METRICS_"`
	MCP     MCPConfig     `yaml:"mcp" envPrefix:"MCP_"`
	Log     LogConfig     `yaml:"log" envPrefix:"LOG_"`
}

// ServerConfig configures the HTTP transport.
type ServerConfig struct {
	Addr         string          `yaml:"addr" env:"ADDR"`
	CallTimeout  time.Duration   `yaml:"call_timeout" env:"CALL_TIMEOUT"`
	MaxBodyBytes int64           `yaml:"max_body_bytes" env:"MAX_BODY_BYTES"`
	MaxInFlight  int             `yaml:"max_in_flight" env:"MAX_IN_FLIGHT"`
	RateLimit    RateLimitConfig `yaml:"rate_limit" envPrefix:"RATE_LIMIT_"`
}

// RateLimitConfig configures per-client rate limiting.
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" env:"ENABLED"`
	RPS     float64 `yaml:"rps" env:"RPS"`
	Burst   int     `yaml:"burst" env:"BURST"`
}

// CanonConfig configures result canonicalization.
type CanonConfig struct {
	MaxDepth int `yaml:"max_depth" env:"MAX_DEPTH"`
}

// JournalConfig configures the call journal.
type JournalConfig struct {
	Enabled       bool          `yaml:"enabled" env:"ENABLED"`
	DSN           string        `yaml:"dsn" env:"DSN"`
	Retention     time.Duration `yaml:"retention" env:"RETENTION"`
	PruneSchedule string        `yaml:"prune_schedule" env:"PRUNE_SCHEDULE"`
	Pool          PoolConfig    `yaml:"pool" envPrefix:"POOL_"`
}

// PoolConfig sizes the journal's connection pool. SQLite journals use a
// single connection regardless.
type PoolConfig struct {
	MaxOpenConns    int           `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" env:"CONN_MAX_IDLE_TIME"`
}

// MetricsConfig toggles the /metrics endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled" env:"ENABLED"`
}

// MCPConfig toggles the /mcp endpoint.
type MCPConfig struct {
	Enabled bool `yaml:"enabled" env:"ENABLED"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:         ":5000",
			CallTimeout:  30 * time.Second,
			MaxBodyBytes: security.MaxRequestBodySize,
			MaxInFlight:  64,
			RateLimit: RateLimitConfig{
				Enabled: false,
				RPS:     30,
				Burst:   60,
			},
		},
		Canon: CanonConfig{
			MaxDepth: security.DefaultMaxDepth,
		},
		Journal: JournalConfig{
			Enabled:       false,
			DSN:           "funcgate.db",
			Retention:     7 * 24 * time.Hour,
			PruneSchedule: "@hourly",
			Pool: PoolConfig{
				MaxOpenConns:    10,
				MaxIdleConns:    5,
				ConnMaxLifetime: 5 * time.Minute,
				ConnMaxIdleTime: time.Minute,
			},
		},
		Metrics: MetricsConfig{Enabled: true},
		MCP:     MCPConfig{Enabled: true},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty) and the environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := decodeYAML(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// decodeYAML overlays data onto cfg. Unknown keys are rejected.
func decodeYAML(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate checks the configuration for values that cannot work.
func (c Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Server.Addr) == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Server.CallTimeout <= 0 {
		errs = append(errs, errors.New("server.call_timeout must be positive"))
	}
	if c.Server.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("server.max_body_bytes must be positive"))
	}
	if c.Server.MaxInFlight < 1 || c.Server.MaxInFlight > security.MaxConcurrency {
		errs = append(errs, fmt.Errorf("server.max_in_flight must be between 1 and %d", security.MaxConcurrency))
	}
	if c.Server.RateLimit.Enabled && (c.Server.RateLimit.RPS <= 0 || c.Server.RateLimit.Burst <= 0) {
		errs = append(errs, errors.New("server.rate_limit rps and burst must be positive when enabled"))
	}
	if c.Canon.MaxDepth < 1 || c.Canon.MaxDepth > security.MaxDepth {
		errs = append(errs, fmt.Errorf("canon.max_depth must be between 1 and %d", security.MaxDepth))
	}
	if c.Journal.Enabled {
		if strings.TrimSpace(c.Journal.DSN) == "" {
			errs = append(errs, errors.New("journal.dsn is required when the journal is enabled"))
		}
		if c.Journal.Retention < 0 {
			errs = append(errs, errors.New("journal.retention must not be negative"))
		}
		if _, err := schedule.Parse(c.Journal.PruneSchedule); err != nil {
			errs = append(errs, fmt.Errorf("journal.prune_schedule: %w", err))
		}
		pool := c.Journal.Pool
		if pool.MaxOpenConns < 0 || pool.MaxIdleConns < 0 || pool.ConnMaxLifetime < 0 || pool.ConnMaxIdleTime < 0 {
			errs = append(errs, errors.New("journal.pool settings must not be negative"))
		}
		if pool.MaxOpenConns > 0 && pool.MaxIdleConns > pool.MaxOpenConns {
			errs = append(errs, errors.New("journal.pool.max_idle_conns must not exceed max_open_conns"))
		}
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json", "logfmt":
	default:
		errs = append(errs, fmt.Errorf("log.format %q must be text, json or logfmt", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
