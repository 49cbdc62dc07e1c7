package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/PenHsuanWang/file-data-fetcher/pkg/models"
)

// Duration wraps time.Duration so YAML values can use the usual
// "2s"/"500ms" notation
type Duration time.Duration

// UnmarshalYAML parses a duration string or a plain number of seconds
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("invalid duration value: expected scalar, got %v", value.Kind)
	}
	s := value.Value

	if parsed, err := time.ParseDuration(s); err == nil {
		*d = Duration(parsed)
		return nil
	}
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		*d = Duration(time.Duration(secs * float64(time.Second)))
		return nil
	}
	return fmt.Errorf("invalid duration %q", s)
}

// Std returns the wrapped time.Duration
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config represents the application configuration
type Config struct {
	Watch    WatchConfig    `yaml:"watch"`
	Schema   models.Schema  `yaml:"schema"`
	Registry RegistryConfig `yaml:"registry"`
	Sink     SinkConfig     `yaml:"sink"`
	Logging  LoggingConfig  `yaml:"logging"`
	DryRun   bool           `yaml:"dryRun"`
}

// WatchConfig represents the directory monitoring configuration
type WatchConfig struct {
	// Dir is the directory watched for new files (non-recursive)
	Dir string `yaml:"dir"`

	// PollInterval is the delay between readiness retries for a growing file
	PollInterval Duration `yaml:"pollInterval"`

	// StabilityDelay is the gap between the two size samples of the readiness check
	StabilityDelay Duration `yaml:"stabilityDelay"`

	// Workers is the number of concurrent pipeline workers
	Workers int `yaml:"workers"`

	// MaxRetries bounds the readiness retry loop; 0 means retry forever
	MaxRetries int `yaml:"maxRetries"`

	// Extensions whitelists the file types to ingest (e.g. csv, xlsx).
	// Empty means all supported types.
	Extensions []string `yaml:"extensions"`
}

// RegistryConfig represents the processed-file registry configuration
type RegistryConfig struct {
	// Path is the JSON file backing the registry; empty keeps it in memory only
	Path string `yaml:"path"`
}

// SinkConfig represents the storage backend configuration
type SinkConfig struct {
	// Type selects the backend: mongodb, postgres, clickhouse or parquet
	Type string `yaml:"type"`

	Mongo      MongoConfig      `yaml:"mongodb"`
	Postgres   PostgresConfig   `yaml:"postgres"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
	Parquet    ParquetConfig    `yaml:"parquet"`
}

// MongoConfig represents the document-store connection parameters
type MongoConfig struct {
	URI        string `yaml:"uri"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
}

// PostgresConfig represents the relational-store connection parameters
type PostgresConfig struct {
	DSN   string `yaml:"dsn"`
	Table string `yaml:"table"`
}

// ClickHouseConfig represents the warehouse connection parameters
type ClickHouseConfig struct {
	Addr     []string `yaml:"addr"`
	Database string   `yaml:"database"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	Table    string   `yaml:"table"`
}

// ParquetConfig represents the local Parquet lake configuration
type ParquetConfig struct {
	// Dir is the root directory part-files are written under
	Dir string `yaml:"dir"`

	// Table names the subdirectory a batch's part-file lands in
	Table string `yaml:"table"`
}

// LoggingConfig represents the logging configuration
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load loads the configuration from the specified file. Values of the
// form ${VAR} are expanded against the environment before parsing so
// credentials can stay out of the file itself.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := os.Expand(string(data), func(key string) string {
		return os.Getenv(key)
	})

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Set default values if not specified
	if cfg.Watch.PollInterval == 0 {
		cfg.Watch.PollInterval = Duration(2 * time.Second)
	}
	if cfg.Watch.StabilityDelay == 0 {
		cfg.Watch.StabilityDelay = Duration(time.Second)
	}
	if cfg.Watch.Workers == 0 {
		cfg.Watch.Workers = 4
	}
	if cfg.Watch.MaxRetries == 0 {
		cfg.Watch.MaxRetries = 60
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Sink.Type == "" {
		cfg.Sink.Type = "parquet"
	}
	if cfg.Sink.Parquet.Dir == "" {
		cfg.Sink.Parquet.Dir = "data"
	}
	if cfg.Sink.Parquet.Table == "" {
		cfg.Sink.Parquet.Table = "records"
	}

	if cfg.Watch.Dir == "" {
		return nil, fmt.Errorf("watch.dir is required")
	}
	if err := cfg.Schema.Check(); err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}

	return &cfg, nil
}
