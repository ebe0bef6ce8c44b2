// Package config provides configuration management using Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/dogwifhat6/supplychain-lens/internal/domain"
)

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Imagery     ImageryConfig     `mapstructure:"imagery"`
	Reference   ReferenceConfig   `mapstructure:"reference"`
	Pipeline    PipelineConfig    `mapstructure:"pipeline"`
	Persistence PersistenceConfig `mapstructure:"persistence"`
	Models      ModelsConfig      `mapstructure:"models"`
	Callback    CallbackConfig    `mapstructure:"callback"`
	TLS         TLSConfig         `mapstructure:"tls"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Tracing     TracingConfig     `mapstructure:"tracing"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string          `mapstructure:"host"`
	Port            int             `mapstructure:"port"`
	ReadTimeout     time.Duration   `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration   `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration   `mapstructure:"shutdown_timeout"`
	MaxBodyBytes    int64           `mapstructure:"max_body_bytes"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit"`
	CORS            CORSConfig      `mapstructure:"cors"`
}

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"` // e.g., ["https://example.com", "*.sub.domain.tld"]
}

// Enabled returns true if CORS is configured with at least one allowed origin.
func (c *CORSConfig) Enabled() bool {
	return len(c.AllowedOrigins) > 0
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	Rate    float64 `mapstructure:"rate"`
	Burst   int     `mapstructure:"burst"`
}

// DatabaseConfig holds relational store configuration.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // postgres, sqlite3
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	CommandTimeout  time.Duration `mapstructure:"command_timeout"`
	Migrate         bool          `mapstructure:"migrate"`
}

// CacheConfig holds cache configuration.
type CacheConfig struct {
	Type       string        `mapstructure:"type"` // redis, badger, none
	DefaultTTL time.Duration `mapstructure:"default_ttl"`
	TrendsTTL  time.Duration `mapstructure:"trends_ttl"`
	Redis      RedisConfig   `mapstructure:"redis"`
	Badger     BadgerConfig  `mapstructure:"badger"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// BadgerConfig holds embedded cache settings.
type BadgerConfig struct {
	Path     string `mapstructure:"path"`
	InMemory bool   `mapstructure:"in_memory"`
}

// StorageConfig holds object storage configuration.
type StorageConfig struct {
	Type      string      `mapstructure:"type"` // s3, azure, http, local
	LocalPath string      `mapstructure:"local_path"`
	S3        S3Config    `mapstructure:"s3"`
	Azure     AzureConfig `mapstructure:"azure"`
	HTTP      HTTPConfig  `mapstructure:"http"`
}

// S3Config holds AWS S3 configuration.
type S3Config struct {
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Prefix          string `mapstructure:"prefix"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

// AzureConfig holds Azure Blob Storage configuration.
type AzureConfig struct {
	Container        string `mapstructure:"container"`
	AccountName      string `mapstructure:"account_name"`
	AccountKey       string `mapstructure:"account_key"`
	ConnectionString string `mapstructure:"connection_string"`
	Prefix           string `mapstructure:"prefix"`
}

// HTTPConfig holds HTTP download configuration.
type HTTPConfig struct {
	BaseURL  string        `mapstructure:"base_url"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
}

// ImageryConfig controls image acquisition.
type ImageryConfig struct {
	HTTPTimeout   time.Duration `mapstructure:"http_timeout"`
	MaxRetries    uint64        `mapstructure:"max_retries"`
	MaxImageBytes int64         `mapstructure:"max_image_bytes"`
}

// ReferenceConfig selects the reference dataset.
type ReferenceConfig struct {
	Dataset      string        `mapstructure:"dataset"` // storage key; empty uses the built-in set
	Watch        bool          `mapstructure:"watch"`
	SyncInterval time.Duration `mapstructure:"sync_interval"`
}

// PipelineConfig tunes image processing.
type PipelineConfig struct {
	ProcessingTimeout       time.Duration `mapstructure:"processing_timeout"`
	MaxConcurrentProcessing int64         `mapstructure:"max_concurrent_processing"`
	ConfidenceThreshold     float64       `mapstructure:"confidence_threshold"`
	MaxDetectionsPerImage   int           `mapstructure:"max_detections_per_image"`
	InputSize               int           `mapstructure:"input_size"`
}

// PersistenceConfig sizes the background persistence queue.
type PersistenceConfig struct {
	QueueSize      int           `mapstructure:"queue_size"`
	Workers        int           `mapstructure:"workers"`
	TaskTimeout    time.Duration `mapstructure:"task_timeout"`
	DeadLetterPath string        `mapstructure:"dead_letter_path"` // empty discards
}

// ModelsConfig configures the inference backends.
type ModelsConfig struct {
	Deforestation DetectorConfig `mapstructure:"deforestation"`
	Mining        DetectorConfig `mapstructure:"mining"`
	RiskAssessor  AssessorConfig `mapstructure:"risk_assessor"`
}

// DetectorConfig points at a remote detection model.
type DetectorConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	Version  string        `mapstructure:"version"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// AssessorConfig selects the risk assessor.
type AssessorConfig struct {
	Type     string        `mapstructure:"type"` // baseline, remote
	Endpoint string        `mapstructure:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// CallbackConfig controls batch completion callbacks.
type CallbackConfig struct {
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries uint64        `mapstructure:"max_retries"`
}

// TLSConfig holds TLS/CertMagic configuration.
type TLSConfig struct {
	Enabled  bool      `mapstructure:"enabled"`
	Domains  []string  `mapstructure:"domains"`
	Email    string    `mapstructure:"email"`
	CacheDir string    `mapstructure:"cache_dir"`
	Staging  bool      `mapstructure:"staging"` // Use Let's Encrypt staging
	DNS      DNSConfig `mapstructure:"dns"`
}

// DNSConfig holds Azure DNS settings for DNS-01 challenges.
type DNSConfig struct {
	SubscriptionID    string `mapstructure:"subscription_id"`
	ResourceGroupName string `mapstructure:"resource_group_name"`
	ClientID          string `mapstructure:"client_id"`
}

// MetricsConfig holds Prometheus metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"` // 0 serves metrics on the API port
	Path    string `mapstructure:"path"`
}

// TracingConfig holds OpenTelemetry configuration.
type TracingConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	Exporter     string  `mapstructure:"exporter"` // otlp-grpc, otlp-http, stdout
	Endpoint     string  `mapstructure:"endpoint"`
	Insecure     bool    `mapstructure:"insecure"`
	SamplingRate float64 `mapstructure:"sampling_rate"`
	ServiceName  string  `mapstructure:"service_name"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json, text, auto
}

// Defaults sets the default configuration values.
func Defaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8000)
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 330*time.Second)
	viper.SetDefault("server.shutdown_timeout", 30*time.Second)
	viper.SetDefault("server.max_body_bytes", 10<<20)
	viper.SetDefault("server.rate_limit.enabled", false)
	viper.SetDefault("server.rate_limit.rate", 100.0)
	viper.SetDefault("server.rate_limit.burst", 200)
	viper.SetDefault("server.cors.allowed_origins", []string{})

	// Database defaults
	viper.SetDefault("database.driver", "sqlite3")
	viper.SetDefault("database.dsn", "file:lens.db?_foreign_keys=on")
	viper.SetDefault("database.max_open_conns", 20)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", 30*time.Minute)
	viper.SetDefault("database.command_timeout", 60*time.Second)
	viper.SetDefault("database.migrate", true)

	// Cache defaults
	viper.SetDefault("cache.type", "none")
	viper.SetDefault("cache.default_ttl", time.Hour)
	viper.SetDefault("cache.trends_ttl", 10*time.Minute)
	viper.SetDefault("cache.redis.addr", "localhost:6379")
	viper.SetDefault("cache.badger.path", "./.cache")

	// Storage defaults
	viper.SetDefault("storage.type", "local")
	viper.SetDefault("storage.local_path", "./data")
	viper.SetDefault("storage.http.timeout", 5*time.Minute)

	// Imagery defaults
	viper.SetDefault("imagery.http_timeout", 60*time.Second)
	viper.SetDefault("imagery.max_retries", 3)
	viper.SetDefault("imagery.max_image_bytes", 256<<20)

	// Reference defaults
	viper.SetDefault("reference.dataset", "")
	viper.SetDefault("reference.watch", true)
	viper.SetDefault("reference.sync_interval", 0)

	// Pipeline defaults
	viper.SetDefault("pipeline.processing_timeout", 300*time.Second)
	viper.SetDefault("pipeline.max_concurrent_processing", 0)
	viper.SetDefault("pipeline.confidence_threshold", 0.5)
	viper.SetDefault("pipeline.max_detections_per_image", 100)
	viper.SetDefault("pipeline.input_size", 512)

	// Persistence defaults
	viper.SetDefault("persistence.queue_size", 256)
	viper.SetDefault("persistence.workers", 4)
	viper.SetDefault("persistence.task_timeout", time.Minute)
	viper.SetDefault("persistence.dead_letter_path", "./dead-letters.jsonl")

	// Model defaults
	viper.SetDefault("models.deforestation.timeout", 60*time.Second)
	viper.SetDefault("models.mining.timeout", 60*time.Second)
	viper.SetDefault("models.risk_assessor.type", "baseline")
	viper.SetDefault("models.risk_assessor.timeout", 30*time.Second)

	// Callback defaults
	viper.SetDefault("callback.timeout", 10*time.Second)
	viper.SetDefault("callback.max_retries", 3)

	// TLS defaults
	viper.SetDefault("tls.enabled", false)
	viper.SetDefault("tls.cache_dir", "./.certmagic")
	viper.SetDefault("tls.staging", false)

	// Metrics defaults
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.port", 0)
	viper.SetDefault("metrics.path", "/metrics")

	// Tracing defaults
	viper.SetDefault("tracing.enabled", false)
	viper.SetDefault("tracing.exporter", "otlp-grpc")
	viper.SetDefault("tracing.endpoint", "localhost:4317")
	viper.SetDefault("tracing.insecure", true)
	viper.SetDefault("tracing.sampling_rate", 1.0)
	viper.SetDefault("tracing.service_name", "supplychain-lens")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "auto")
}

// Load loads configuration from environment and config file.
func Load(configPath string) (*Config, error) {
	Defaults()

	// Environment variable binding
	viper.SetEnvPrefix("LENS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Config file
	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
		viper.AddConfigPath("/etc/lens")
	}

	// Try to read config file (not required)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func invalid(field, format string, args ...any) error {
	return &domain.ConfigError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return invalid("server.port", "invalid port %d", c.Server.Port)
	}

	if c.TLS.Enabled {
		if len(c.TLS.Domains) == 0 {
			return invalid("tls.domains", "TLS enabled but no domains specified")
		}
		if c.TLS.Email == "" {
			return invalid("tls.email", "TLS enabled but no email specified")
		}
	}

	if err := c.validateStorage(); err != nil {
		return err
	}

	switch c.Database.Driver {
	case "postgres", "sqlite3":
		if c.Database.DSN == "" {
			return invalid("database.dsn", "a DSN is required for %s", c.Database.Driver)
		}
	default:
		return invalid("database.driver", "unknown driver %q", c.Database.Driver)
	}
	if c.Database.MaxOpenConns < 1 {
		return invalid("database.max_open_conns", "must be at least 1")
	}

	switch c.Cache.Type {
	case "none":
	case "redis":
		if c.Cache.Redis.Addr == "" {
			return invalid("cache.redis.addr", "redis address is required")
		}
	case "badger":
		if !c.Cache.Badger.InMemory && c.Cache.Badger.Path == "" {
			return invalid("cache.badger.path", "badger path is required unless in_memory is set")
		}
	default:
		return invalid("cache.type", "unknown cache type %q", c.Cache.Type)
	}

	p := c.Pipeline
	if p.ConfidenceThreshold < 0 || p.ConfidenceThreshold > 1 {
		return invalid("pipeline.confidence_threshold", "must be within [0, 1], got %v", p.ConfidenceThreshold)
	}
	if p.MaxDetectionsPerImage < 1 {
		return invalid("pipeline.max_detections_per_image", "must be at least 1")
	}
	if p.MaxConcurrentProcessing < 0 {
		return invalid("pipeline.max_concurrent_processing", "must not be negative")
	}
	if p.InputSize < 1 {
		return invalid("pipeline.input_size", "must be at least 1")
	}

	if c.Persistence.QueueSize < 1 || c.Persistence.Workers < 1 {
		return invalid("persistence", "queue_size and workers must be at least 1")
	}

	switch c.Models.RiskAssessor.Type {
	case "baseline":
	case "remote":
		if c.Models.RiskAssessor.Endpoint == "" {
			return invalid("models.risk_assessor.endpoint", "remote assessor needs an endpoint")
		}
	default:
		return invalid("models.risk_assessor.type", "unknown assessor type %q", c.Models.RiskAssessor.Type)
	}

	if c.Metrics.Port < 0 || c.Metrics.Port > 65535 {
		return invalid("metrics.port", "invalid port %d", c.Metrics.Port)
	}

	if c.Tracing.Enabled {
		switch c.Tracing.Exporter {
		case "otlp-grpc", "otlp-http", "stdout":
		default:
			return invalid("tracing.exporter", "unknown exporter %q", c.Tracing.Exporter)
		}
		if c.Tracing.SamplingRate < 0 || c.Tracing.SamplingRate > 1 {
			return invalid("tracing.sampling_rate", "must be within [0, 1]")
		}
	}

	switch c.Logging.Format {
	case "json", "text", "auto":
	default:
		return invalid("logging.format", "unknown format %q", c.Logging.Format)
	}

	return nil
}

func (c *Config) validateStorage() error {
	switch c.Storage.Type {
	case "local":
		if c.Storage.LocalPath == "" {
			return invalid("storage.local_path", "local storage path is required")
		}
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return invalid("storage.s3.bucket", "S3 bucket is required")
		}
		if c.Storage.S3.Region == "" {
			return invalid("storage.s3.region", "S3 region is required")
		}
	case "azure":
		if c.Storage.Azure.Container == "" {
			return invalid("storage.azure.container", "azure container is required")
		}
		if c.Storage.Azure.AccountName == "" && c.Storage.Azure.ConnectionString == "" {
			return invalid("storage.azure", "azure account name or connection string is required")
		}
	case "http":
		if c.Storage.HTTP.BaseURL == "" {
			return invalid("storage.http.base_url", "HTTP base URL is required")
		}
	default:
		return invalid("storage.type", "unknown storage type: %s", c.Storage.Type)
	}
	return nil
}

// Address returns the server address string.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// MetricsAddress returns the dedicated metrics listener address, or "" when
// metrics share the API listener.
func (c *Config) MetricsAddress() string {
	if !c.Metrics.Enabled || c.Metrics.Port == 0 {
		return ""
	}
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Metrics.Port)
}
