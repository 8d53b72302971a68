// Package config centralizes how bookyard reads its configuration. Settings
// come from an optional YAML file (BOOKYARD_CONFIG) with environment variable
// overrides; the resulting struct is passed into each worker's constructor,
// never read from globals.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the runtime configuration shared by every command.
type Config struct {
	Database   DatabaseConfig    `yaml:"database"`
	Redis      RedisConfig       `yaml:"redis"`
	HTTP       HTTPConfig        `yaml:"http"`
	Mill       WorkerConfig      `yaml:"mill"`
	Shuttle    WorkerConfig      `yaml:"shuttle"`
	Retention  RetentionConfig   `yaml:"retention"`
	Staging    StagingConfig     `yaml:"staging"`
	Warehouses []WarehouseConfig `yaml:"warehouses"`
	LogLevel   string            `yaml:"logLevel"`
}

// DatabaseConfig describes the Postgres connection.
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// RedisConfig describes the asynq broker connection.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// HTTPConfig describes the ops endpoint each worker exposes.
type HTTPConfig struct {
	Address string `yaml:"address"`
}

// WorkerConfig holds one polling loop's timing knobs.
type WorkerConfig struct {
	// Interval is the sleep between polling passes.
	Interval time.Duration `yaml:"interval"`
	// PassTimeout bounds a single pass; expiry is transient, not an error.
	PassTimeout time.Duration `yaml:"passTimeout"`
}

// RetentionConfig holds the retention policy knobs.
type RetentionConfig struct {
	// MinAge is how old a prod book must be before retention considers it.
	MinAge time.Duration `yaml:"minAge"`
	// DeletionDelay is the grace period between marking a book to_delete and
	// the sweeper touching its files.
	DeletionDelay time.Duration `yaml:"deletionDelay"`
}

// StagingConfig names the shared staging destination used for non-robust
// titles.
type StagingConfig struct {
	Warehouse string `yaml:"warehouse"`
	Path      string `yaml:"path"`
}

// WarehouseConfig maps a warehouse id to its local base directory. The
// directory is deployment detail, which is why it lives here and not in the
// domain model.
type WarehouseConfig struct {
	ID  string `yaml:"id"`
	Dir string `yaml:"dir"`
}

const (
	defaultAddress       = ":8090"
	defaultMillInterval  = 30 * time.Second
	defaultShuttleTick   = 30 * time.Second
	defaultPassTimeout   = 10 * time.Minute
	defaultMinAge        = 30 * 24 * time.Hour
	defaultDeletionDelay = 7 * 24 * time.Hour
	defaultStagingWh     = "staging"
	defaultStagingPath   = ".staging"
)

// Load reads the YAML file named by BOOKYARD_CONFIG (when present) and applies
// environment overrides on top of the defaults.
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("BOOKYARD_CONFIG"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()

	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("database url is not configured")
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Redis:     RedisConfig{Addr: "127.0.0.1:6379"},
		HTTP:      HTTPConfig{Address: defaultAddress},
		Mill:      WorkerConfig{Interval: defaultMillInterval, PassTimeout: defaultPassTimeout},
		Shuttle:   WorkerConfig{Interval: defaultShuttleTick, PassTimeout: defaultPassTimeout},
		Retention: RetentionConfig{MinAge: defaultMinAge, DeletionDelay: defaultDeletionDelay},
		Staging:   StagingConfig{Warehouse: defaultStagingWh, Path: defaultStagingPath},
		LogLevel:  "info",
	}
}

func (c *Config) applyEnvOverrides() {
	c.Database.URL = readEnv("DATABASE_URL", c.Database.URL)
	c.Redis.Addr = readEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = readEnv("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = parseInt("REDIS_DB", c.Redis.DB)
	c.HTTP.Address = readEnv("BOOKYARD_ADDRESS", c.HTTP.Address)
	c.Mill.Interval = parseDuration("MILL_INTERVAL", c.Mill.Interval)
	c.Mill.PassTimeout = parseDuration("MILL_PASS_TIMEOUT", c.Mill.PassTimeout)
	c.Shuttle.Interval = parseDuration("SHUTTLE_INTERVAL", c.Shuttle.Interval)
	c.Shuttle.PassTimeout = parseDuration("SHUTTLE_PASS_TIMEOUT", c.Shuttle.PassTimeout)
	c.Retention.MinAge = parseDuration("RETENTION_MIN_AGE", c.Retention.MinAge)
	c.Retention.DeletionDelay = parseDuration("DELETION_DELAY", c.Retention.DeletionDelay)
	c.Staging.Warehouse = readEnv("STAGING_WAREHOUSE", c.Staging.Warehouse)
	c.Staging.Path = readEnv("STAGING_PATH", c.Staging.Path)
	c.LogLevel = readEnv("LOG_LEVEL", c.LogLevel)
}

// WarehouseDirs returns the warehouse id -> base dir map for the resolver.
func (c *Config) WarehouseDirs() map[string]string {
	out := make(map[string]string, len(c.Warehouses))
	for _, w := range c.Warehouses {
		out[w.ID] = w.Dir
	}
	return out
}

func readEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func parseInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}

func parseDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			return parsed
		}
	}
	return def
}
