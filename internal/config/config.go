// Package config loads configuration for cmd/api and cmd/dogma-cli with
// a TOML-file-then-env priority cascade, the same shape the SDE-builder
// sibling project uses for its own config.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config is the full configuration surface. Every field has a usable
// default, so an empty TOML file and no environment variables still
// produce a runnable cmd/api against local defaults.
type Config struct {
	HTTP     HTTPConfig     `toml:"http"`
	SDE      SDEConfig      `toml:"sde"`
	Redis    RedisConfig    `toml:"redis"`
	Postgres PostgresConfig `toml:"postgres"`
	Logging  LoggingConfig  `toml:"logging"`
}

// HTTPConfig configures cmd/api's listener.
type HTTPConfig struct {
	Addr string `toml:"addr"`
}

// SDEConfig points at the catalogue SQLite file internal/sde opens.
type SDEConfig struct {
	Path string `toml:"path"`
}

// RedisConfig configures the optional catalogue cache and skill import
// cache. Addr == "" disables both — cmd/api falls back to querying
// internal/sde directly and leaves skill import disabled altogether.
type RedisConfig struct {
	Addr string `toml:"addr"`
}

// PostgresConfig configures the optional audit trail. DSN == "" disables
// auditing entirely.
type PostgresConfig struct {
	DSN string `toml:"dsn"`
}

// LoggingConfig holds the configured log level. Validate checks it;
// cmd/api does not pass it to pkg/logger, which logs at info level.
type LoggingConfig struct {
	Level string `toml:"level"`
}

// Load reads configPath if present, then applies environment variable
// overrides, then validates. A missing configPath is not an error —
// Load proceeds with DefaultConfig() plus whatever env vars are set.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			if _, err := toml.DecodeFile(configPath, &cfg); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", configPath, err)
			}
		}
	}

	applyEnvVars(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DefaultConfig returns the configuration a bare `dogma-cli query` or
// `cmd/api` run against a local dev stack needs.
func DefaultConfig() Config {
	return Config{
		HTTP: HTTPConfig{Addr: ":8080"},
		SDE:  SDEConfig{Path: "./catalogue.sqlite"},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Validate checks constraints Load cannot default its way around.
func (c *Config) Validate() error {
	if c.SDE.Path == "" {
		return fmt.Errorf("config: sde.path is required")
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("config: invalid logging.level %q (must be debug, info, warn, error)", c.Logging.Level)
	}
	return nil
}

func applyEnvVars(cfg *Config) {
	if v := os.Getenv("DOGMA_HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}
	if v := os.Getenv("DOGMA_SDE_PATH"); v != "" {
		cfg.SDE.Path = v
	}
	if v := os.Getenv("DOGMA_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("DOGMA_POSTGRES_DSN"); v != "" {
		cfg.Postgres.DSN = v
	}
	if v := os.Getenv("DOGMA_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}
