package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dealradar/dealradar/engine/catalog"
)

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
stores: [falabella, ripley]
queries: [laptop, smartphone]
requests_per_minute: 30
delay_between_requests: 1s
worker_concurrency: 8
database:
  driver: memory
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Stores) != 2 || cfg.Stores[1] != "ripley" {
		t.Errorf("stores = %v", cfg.Stores)
	}
	if cfg.RequestsPerMinute != 30 {
		t.Errorf("rpm = %d", cfg.RequestsPerMinute)
	}
	if cfg.DelayBetweenRequests != time.Second {
		t.Errorf("delay = %v", cfg.DelayBetweenRequests)
	}
	// Untouched fields keep defaults.
	if cfg.RetryMaxAttempts != 3 {
		t.Errorf("retry attempts = %d", cfg.RetryMaxAttempts)
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("DEALRADAR_DB_DRIVER", "memory")
	t.Setenv("DEALRADAR_RPM", "60")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.Driver != "memory" {
		t.Errorf("driver = %q", cfg.Database.Driver)
	}
	if cfg.RequestsPerMinute != 60 {
		t.Errorf("rpm = %d", cfg.RequestsPerMinute)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		option string
	}{
		{"no stores", func(c *Config) { c.Stores = nil }, "stores"},
		{"no queries", func(c *Config) { c.Queries = nil }, "queries"},
		{"zero rpm", func(c *Config) { c.RequestsPerMinute = 0 }, "requests_per_minute"},
		{"negative delay", func(c *Config) { c.DelayBetweenRequests = -time.Second }, "delay_between_requests"},
		{"zero workers", func(c *Config) { c.WorkerConcurrency = 0 }, "worker_concurrency"},
		{"discount over 100", func(c *Config) { c.MinDiscountPercentage = 120 }, "min_discount_percentage"},
		{"tolerance out of range", func(c *Config) { c.BaselineTolerance = 1.5 }, "baseline_tolerance"},
		{"retention below history", func(c *Config) { c.RetentionDays = 2 }, "retention_days"},
		{"unknown driver", func(c *Config) { c.Database.Driver = "oracle" }, "database.driver"},
		{"sqlite without path", func(c *Config) { c.Database.Driver = "sqlite"; c.Database.Path = "" }, "database.path"},
		{"postgres without dsn", func(c *Config) { c.Database.Driver = "postgres" }, "database.dsn"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if !errors.Is(err, catalog.ErrConfig) {
				t.Fatalf("expected config error, got %v", err)
			}
			var ce *catalog.ConfigError
			if !errors.As(err, &ce) || ce.Option != tt.option {
				t.Fatalf("expected option %q, got %v", tt.option, err)
			}
		})
	}
}
