package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/dogwifhat6/supplychain-lens/internal/domain"
)

func validConfig() Config {
	return Config{
		Server:      ServerConfig{Host: "0.0.0.0", Port: 8000},
		Database:    DatabaseConfig{Driver: "sqlite3", DSN: "file::memory:", MaxOpenConns: 20},
		Cache:       CacheConfig{Type: "none"},
		Storage:     StorageConfig{Type: "local", LocalPath: "./data"},
		Pipeline:    PipelineConfig{ConfidenceThreshold: 0.5, MaxDetectionsPerImage: 100, InputSize: 512},
		Persistence: PersistenceConfig{QueueSize: 256, Workers: 4},
		Models:      ModelsConfig{RiskAssessor: AssessorConfig{Type: "baseline"}},
		Logging:     LoggingConfig{Level: "info", Format: "json"},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "bad port", mutate: func(c *Config) { c.Server.Port = 0 }, wantField: "server.port"},
		{name: "tls without domains", mutate: func(c *Config) { c.TLS.Enabled = true }, wantField: "tls.domains"},
		{name: "unknown storage", mutate: func(c *Config) { c.Storage.Type = "ftp" }, wantField: "storage.type"},
		{name: "s3 without bucket", mutate: func(c *Config) { c.Storage.Type = "s3" }, wantField: "storage.s3.bucket"},
		{name: "unknown driver", mutate: func(c *Config) { c.Database.Driver = "mysql" }, wantField: "database.driver"},
		{name: "redis without addr", mutate: func(c *Config) { c.Cache.Type = "redis" }, wantField: "cache.redis.addr"},
		{name: "in-memory badger", mutate: func(c *Config) { c.Cache = CacheConfig{Type: "badger", Badger: BadgerConfig{InMemory: true}} }},
		{name: "threshold above one", mutate: func(c *Config) { c.Pipeline.ConfidenceThreshold = 1.5 }, wantField: "pipeline.confidence_threshold"},
		{name: "negative concurrency", mutate: func(c *Config) { c.Pipeline.MaxConcurrentProcessing = -1 }, wantField: "pipeline.max_concurrent_processing"},
		{name: "remote assessor without endpoint", mutate: func(c *Config) { c.Models.RiskAssessor.Type = "remote" }, wantField: "models.risk_assessor.endpoint"},
		{name: "unknown exporter", mutate: func(c *Config) { c.Tracing = TracingConfig{Enabled: true, Exporter: "zipkin"} }, wantField: "tracing.exporter"},
		{name: "unknown log format", mutate: func(c *Config) { c.Logging.Format = "xml" }, wantField: "logging.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantField == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}

			var cfgErr *domain.ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("Validate() error = %v, want ConfigError", err)
			}
			if cfgErr.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", cfgErr.Field, tt.wantField)
			}
			if !errors.Is(err, domain.ErrInvalidInput) {
				t.Error("ConfigError should unwrap to ErrInvalidInput")
			}
		})
	}
}

func TestLoadDefaultsAndFile(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte(`
server:
  port: 9100
pipeline:
  confidence_threshold: 0.7
cache:
  type: badger
  badger:
    in_memory: true
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9100 {
		t.Errorf("Server.Port = %d, want 9100", cfg.Server.Port)
	}
	if cfg.Pipeline.ConfidenceThreshold != 0.7 {
		t.Errorf("ConfidenceThreshold = %v, want 0.7", cfg.Pipeline.ConfidenceThreshold)
	}
	if cfg.Pipeline.ProcessingTimeout != 300*time.Second {
		t.Errorf("ProcessingTimeout = %v, want default 300s", cfg.Pipeline.ProcessingTimeout)
	}
	if cfg.Database.MaxOpenConns != 20 || cfg.Database.MaxIdleConns != 5 {
		t.Errorf("pool = %d/%d, want 20/5", cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns)
	}
	if cfg.Cache.TrendsTTL != 10*time.Minute {
		t.Errorf("TrendsTTL = %v", cfg.Cache.TrendsTTL)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("LENS_PIPELINE_MAX_DETECTIONS_PER_IMAGE", "25")

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("logging:\n  format: text\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Pipeline.MaxDetectionsPerImage != 25 {
		t.Errorf("MaxDetectionsPerImage = %d, want 25", cfg.Pipeline.MaxDetectionsPerImage)
	}
}

func TestMetricsAddress(t *testing.T) {
	cfg := validConfig()
	cfg.Metrics = MetricsConfig{Enabled: true}
	if got := cfg.MetricsAddress(); got != "" {
		t.Errorf("MetricsAddress() = %q, want shared listener", got)
	}

	cfg.Metrics.Port = 9090
	if got := cfg.MetricsAddress(); got != "0.0.0.0:9090" {
		t.Errorf("MetricsAddress() = %q", got)
	}
}
