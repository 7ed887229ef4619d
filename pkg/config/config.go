// Package config loads the scraper configuration from a YAML file with
// environment overrides and validates it before a run starts.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dealradar/dealradar/engine/catalog"
)

// Database selects and parameterizes the durable store.
type Database struct {
	// Driver is one of "sqlite", "postgres", or "memory".
	Driver string `yaml:"driver"`
	// Path is the database file for sqlite.
	Path string `yaml:"path"`
	// DSN is the connection string for postgres.
	DSN string `yaml:"dsn"`
}

// Config is the full runtime configuration.
type Config struct {
	Stores   []string `yaml:"stores"`
	Queries  []string `yaml:"queries"`
	MaxPages int      `yaml:"max_pages"`

	RequestsPerMinute    int           `yaml:"requests_per_minute"`
	DelayBetweenRequests time.Duration `yaml:"delay_between_requests"`
	RetryMaxAttempts     int           `yaml:"retry_max_attempts"`
	WorkerConcurrency    int           `yaml:"worker_concurrency"`

	MinDiscountPercentage float64 `yaml:"min_discount_percentage"`
	MinPriceHistoryDays   int     `yaml:"min_price_history_days"`
	BaselineTolerance     float64 `yaml:"baseline_tolerance"`

	ScrapingIntervalHours int `yaml:"scraping_interval_hours"`
	RetentionDays         int `yaml:"retention_days"`

	Database Database `yaml:"database"`
	NATSURL  string   `yaml:"nats_url"`

	MetricsPort int `yaml:"metrics_port"`
	APIPort     int `yaml:"api_port"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Stores:                []string{"falabella"},
		Queries:               []string{"laptop"},
		MaxPages:              3,
		RequestsPerMinute:     12,
		DelayBetweenRequests:  2 * time.Second,
		RetryMaxAttempts:      3,
		WorkerConcurrency:     4,
		MinDiscountPercentage: 15,
		MinPriceHistoryDays:   7,
		BaselineTolerance:     0.05,
		ScrapingIntervalHours: 12,
		RetentionDays:         180,
		Database:              Database{Driver: "sqlite", Path: "dealradar.db"},
		MetricsPort:           9091,
		APIPort:               8080,
	}
}

// Load reads path (optional), applies environment overrides, and
// validates. An empty path loads defaults plus environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv overlays DEALRADAR_* variables on top of the file values.
func (c *Config) applyEnv() {
	if v := os.Getenv("DEALRADAR_DB_DRIVER"); v != "" {
		c.Database.Driver = v
	}
	if v := os.Getenv("DEALRADAR_DB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("DEALRADAR_DB_DSN"); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv("DEALRADAR_NATS_URL"); v != "" {
		c.NATSURL = v
	}
	if v := os.Getenv("DEALRADAR_RPM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.RequestsPerMinute = n
		}
	}
	if v := os.Getenv("DEALRADAR_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.WorkerConcurrency = n
		}
	}
}

// Validate rejects configurations that would misbehave at run time.
// Failures abort startup, never a running cycle.
func (c Config) Validate() error {
	if len(c.Stores) == 0 {
		return &catalog.ConfigError{Option: "stores", Reason: "at least one store is required"}
	}
	if len(c.Queries) == 0 {
		return &catalog.ConfigError{Option: "queries", Reason: "at least one query is required"}
	}
	if c.MaxPages < 1 {
		return &catalog.ConfigError{Option: "max_pages", Reason: "must be at least 1"}
	}
	if c.RequestsPerMinute < 1 {
		return &catalog.ConfigError{Option: "requests_per_minute", Reason: "must be at least 1"}
	}
	if c.DelayBetweenRequests < 0 {
		return &catalog.ConfigError{Option: "delay_between_requests", Reason: "must not be negative"}
	}
	if c.RetryMaxAttempts < 1 {
		return &catalog.ConfigError{Option: "retry_max_attempts", Reason: "must be at least 1"}
	}
	if c.WorkerConcurrency < 1 {
		return &catalog.ConfigError{Option: "worker_concurrency", Reason: "must be at least 1"}
	}
	if c.MinDiscountPercentage < 0 || c.MinDiscountPercentage > 100 {
		return &catalog.ConfigError{Option: "min_discount_percentage", Reason: "must be between 0 and 100"}
	}
	if c.MinPriceHistoryDays < 1 {
		return &catalog.ConfigError{Option: "min_price_history_days", Reason: "must be at least 1"}
	}
	if c.BaselineTolerance <= 0 || c.BaselineTolerance >= 1 {
		return &catalog.ConfigError{Option: "baseline_tolerance", Reason: "must be a fraction between 0 and 1"}
	}
	if c.ScrapingIntervalHours < 1 {
		return &catalog.ConfigError{Option: "scraping_interval_hours", Reason: "must be at least 1"}
	}
	if c.RetentionDays < c.MinPriceHistoryDays {
		return &catalog.ConfigError{Option: "retention_days", Reason: "must cover at least min_price_history_days"}
	}
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return &catalog.ConfigError{Option: "database.path", Reason: "required for the sqlite driver"}
		}
	case "postgres":
		if c.Database.DSN == "" {
			return &catalog.ConfigError{Option: "database.dsn", Reason: "required for the postgres driver"}
		}
	case "memory":
	default:
		return &catalog.ConfigError{Option: "database.driver", Reason: fmt.Sprintf("unknown driver %q", c.Database.Driver)}
	}
	return nil
}

// Interval converts the configured hours into a duration.
func (c Config) Interval() time.Duration {
	return time.Duration(c.ScrapingIntervalHours) * time.Hour
}

// Retention converts the configured days into a duration.
func (c Config) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}
