// Package config provides configuration management for the citation graph service.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment variable overrides.
const EnvPrefix = "CITEGRAPH"

// SSL mode constants for database connections.
const (
	// SSLModeDisable disables SSL (use only for local development).
	SSLModeDisable = "disable"
	// SSLModeRequire requires SSL but does not verify certificates.
	SSLModeRequire = "require"
	// SSLModeVerifyCA verifies the server certificate against a CA.
	SSLModeVerifyCA = "verify-ca"
	// SSLModeVerifyFull verifies the server certificate and hostname.
	SSLModeVerifyFull = "verify-full"
)

// Config holds all configuration for the citation graph service.
type Config struct {
	// Logging contains structured logging settings.
	Logging LoggingConfig `mapstructure:"logging"`
	// Network contains settings shared by every outbound HTTP client.
	Network NetworkConfig `mapstructure:"network"`
	// Catalog contains the seed catalog settings.
	Catalog CatalogConfig `mapstructure:"catalog"`
	// Metadata contains the bibliographic metadata source settings.
	Metadata MetadataConfig `mapstructure:"metadata"`
	// Matching contains the title similarity thresholds.
	Matching MatchingConfig `mapstructure:"matching"`
	// Classification contains the category and language sources.
	Classification ClassificationConfig `mapstructure:"classification"`
	// Publishers contains the publisher reference extractors.
	Publishers PublishersConfig `mapstructure:"publishers"`
	// Resolution contains recursion settings.
	Resolution ResolutionConfig `mapstructure:"resolution"`
	// Snapshot contains checkpoint file settings.
	Snapshot SnapshotConfig `mapstructure:"snapshot"`
	// Database contains the optional PostgreSQL mirror settings.
	Database DatabaseConfig `mapstructure:"database"`
	// Status contains the status and metrics HTTP server settings.
	Status StatusConfig `mapstructure:"status"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level (trace, debug, info, warn, error, fatal, panic).
	Level string `mapstructure:"level" validate:"required,oneof=trace debug info warn error fatal panic"`
	// Format is the log format (json, console).
	Format string `mapstructure:"format" validate:"oneof=json console"`
	// Output is the log output destination (stdout, stderr, discard, file path).
	Output string `mapstructure:"output"`
	// AddSource adds source file and line to log output.
	AddSource bool `mapstructure:"add_source"`
	// TimeFormat is the timestamp format.
	TimeFormat string `mapstructure:"time_format"`
}

// NetworkConfig holds settings shared by all external sources.
type NetworkConfig struct {
	// Timeout is the per-call timeout (default: 20s).
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`
	// MaxConnections caps outstanding requests across all sources (default: 32).
	MaxConnections int `mapstructure:"max_connections" validate:"gte=1"`
	// MaxRetries is the number of retries on 429, 5xx and network errors (default: 0).
	MaxRetries int `mapstructure:"max_retries" validate:"gte=0"`
	// UserAgent is sent with every request.
	UserAgent string `mapstructure:"user_agent"`
	// Mailto identifies the operator to polite-pool APIs.
	Mailto string `mapstructure:"mailto" validate:"omitempty,email"`
}

// CatalogConfig holds seed catalog configuration.
type CatalogConfig struct {
	// BaseURL is the catalog API base URL.
	BaseURL string `mapstructure:"base_url" validate:"required,url"`
	// PageSize is the number of seeds per page and per cohort (default: 50).
	PageSize int `mapstructure:"page_size" validate:"gte=1,lte=500"`
	// StartPage is the first page to fetch; set it to resume a run (default: 1).
	StartPage int `mapstructure:"start_page" validate:"gte=1"`
	// MaxPages stops the run after this many pages; 0 means unlimited.
	MaxPages int `mapstructure:"max_pages" validate:"gte=0"`
	// MaxConsecutiveFailures ends the run after this many failed page fetches in a row.
	MaxConsecutiveFailures int `mapstructure:"max_consecutive_failures" validate:"gte=1"`
	// RateLimit is the maximum requests per second.
	RateLimit float64 `mapstructure:"rate_limit" validate:"gt=0"`
}

// MetadataConfig holds bibliographic metadata source configuration.
type MetadataConfig struct {
	// BaseURL is the Crossref API base URL.
	BaseURL string `mapstructure:"base_url" validate:"required,url"`
	// RateLimit is the maximum requests per second.
	RateLimit float64 `mapstructure:"rate_limit" validate:"gt=0"`
	// FollowRateHeaders lowers the rate limit to the one advertised by the API.
	FollowRateHeaders bool `mapstructure:"follow_rate_headers"`
	// MaxReferences truncates structured reference lists (default: 70).
	MaxReferences int `mapstructure:"max_references" validate:"gte=0"`
}

// MatchingConfig holds title similarity thresholds.
type MatchingConfig struct {
	// HighThreshold validates direct title re-queries (default: 0.9).
	HighThreshold float64 `mapstructure:"high_threshold" validate:"gte=0,lte=1"`
	// LowThreshold validates lookups from citation strings (default: 0.75).
	LowThreshold float64 `mapstructure:"low_threshold" validate:"gte=0,lte=1"`
}

// ClassificationConfig holds classification source configuration.
type ClassificationConfig struct {
	// Enabled enables category and language enrichment.
	Enabled bool `mapstructure:"enabled"`
	// ArXiv is the id-keyed source.
	ArXiv SourceConfig `mapstructure:"arxiv"`
	// OpenAlex is the title-keyed source.
	OpenAlex SourceConfig `mapstructure:"openalex"`
}

// SourceConfig holds settings for a single optional source.
type SourceConfig struct {
	// Enabled enables this source.
	Enabled bool `mapstructure:"enabled"`
	// BaseURL is the API base URL.
	BaseURL string `mapstructure:"base_url" validate:"omitempty,url"`
	// RateLimit is the maximum requests per second.
	RateLimit float64 `mapstructure:"rate_limit" validate:"gte=0"`
}

// PublishersConfig holds publisher extractor configuration.
type PublishersConfig struct {
	// Enabled enables the publisher fallback for papers without a reference list.
	Enabled bool `mapstructure:"enabled"`
	// Extractors maps publisher names to extractor keys.
	Extractors map[string]string `mapstructure:"extractors"`
	// IEEE configures the "ieee" extractor.
	IEEE IEEEConfig `mapstructure:"ieee"`
}

// IEEEConfig holds IEEE extractor configuration.
type IEEEConfig struct {
	// HandleURL is the DOI handle API prefix.
	HandleURL string `mapstructure:"handle_url" validate:"omitempty,url"`
	// BaseURL is the IEEE Xplore base URL.
	BaseURL string `mapstructure:"base_url" validate:"omitempty,url"`
	// RenderEndpoint is an optional rendering proxy for the references page.
	RenderEndpoint string `mapstructure:"render_endpoint" validate:"omitempty,url"`
	// DisableREST reads the HTML page only.
	DisableREST bool `mapstructure:"disable_rest"`
	// RateLimit is the maximum requests per second.
	RateLimit float64 `mapstructure:"rate_limit" validate:"gte=0"`
}

// ResolutionConfig holds recursion settings.
type ResolutionConfig struct {
	// MaxDepth bounds reference recursion; 0 means unbounded.
	MaxDepth int `mapstructure:"max_depth" validate:"gte=0"`
}

// SnapshotConfig holds checkpoint settings.
type SnapshotConfig struct {
	// Path is the JSON snapshot file (default: dataset.json).
	Path string `mapstructure:"path" validate:"required"`
	// Indent pretty-prints the snapshot file.
	Indent bool `mapstructure:"indent"`
	// FinalTimeout bounds the final snapshot written on exit (default: 30s).
	FinalTimeout time.Duration `mapstructure:"final_timeout" validate:"gt=0"`
	// Resume loads an existing snapshot file before the run starts.
	Resume bool `mapstructure:"resume"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	// Enabled mirrors every checkpoint into PostgreSQL.
	Enabled bool `mapstructure:"enabled"`
	// Host is the PostgreSQL server hostname.
	Host string `mapstructure:"host"`
	// Port is the PostgreSQL server port (default: 5432).
	Port int `mapstructure:"port"`
	// User is the database username.
	User string `mapstructure:"user"`
	// Password is the database password, read from CITEGRAPH_DATABASE_PASSWORD only.
	Password string `mapstructure:"-"`
	// Name is the database name.
	Name string `mapstructure:"name"`
	// SSLMode controls SSL connection security (require, verify-ca, verify-full, disable).
	SSLMode string `mapstructure:"ssl_mode" validate:"oneof=disable require verify-ca verify-full"`
	// MaxConns is the maximum number of connections in the pool (default: 10).
	MaxConns int32 `mapstructure:"max_conns"`
	// MinConns is the minimum number of connections to keep open (default: 1).
	MinConns int32 `mapstructure:"min_conns"`
	// MaxConnLifetime is the maximum lifetime of a connection before it's closed.
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	// MaxConnIdleTime is the maximum time a connection can be idle before it's closed.
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	// HealthCheckPeriod is the interval between health checks of idle connections.
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
	// ConnectTimeout is the maximum time to wait for a connection.
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	// MigrationPath is the path to migration files. Empty uses the migrations
	// embedded in the binary.
	MigrationPath string `mapstructure:"migration_path"`
	// MigrationAutoRun enables automatic migration on startup (default: false).
	MigrationAutoRun bool `mapstructure:"migration_auto_run"`
	// StatementCacheCapacity is the size of the prepared statement cache.
	StatementCacheCapacity int `mapstructure:"statement_cache_capacity"`
	// BatchSize is the number of upserts queued per batch.
	BatchSize int `mapstructure:"batch_size"`
}

// StatusConfig holds the status server configuration.
type StatusConfig struct {
	// Enabled starts the status server alongside the run.
	Enabled bool `mapstructure:"enabled"`
	// Host is the address to bind the server to (default: 0.0.0.0).
	Host string `mapstructure:"host"`
	// Port is the HTTP port (default: 9091).
	Port int `mapstructure:"port" validate:"gte=1,lte=65535"`
	// MetricsPath is the HTTP path for the Prometheus endpoint.
	MetricsPath string `mapstructure:"metrics_path" validate:"startswith=/"`
	// ReadTimeout is the maximum duration for reading a request.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout is the maximum duration for writing a response. Zero
	// disables it, which the long-lived progress stream needs.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	params := url.Values{}
	params.Set("sslmode", c.SSLMode)
	if c.ConnectTimeout > 0 {
		params.Set("connect_timeout", fmt.Sprintf("%d", int(c.ConnectTimeout.Seconds())))
	}
	if c.StatementCacheCapacity > 0 {
		params.Set("statement_cache_capacity", fmt.Sprintf("%d", c.StatementCacheCapacity))
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?%s",
		url.QueryEscape(c.User),
		url.QueryEscape(c.Password),
		c.Host,
		c.Port,
		c.Name,
		params.Encode(),
	)
}

// Address returns the status server address.
func (c *StatusConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Load loads configuration from environment variables and config files.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile loads configuration like Load, reading the given file instead of
// searching the default locations when path is non-empty.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read from environment variables
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file if present
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/citation-graph")
	}

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK, we'll use env vars and defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Load secrets exclusively from environment variables.
	loadSecrets(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadSecrets populates secret fields exclusively from environment variables.
// These fields are tagged with mapstructure:"-" to prevent loading from config files.
func loadSecrets(cfg *Config) {
	cfg.Database.Password = os.Getenv(EnvPrefix + "_DATABASE_PASSWORD")
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stderr")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Network defaults
	v.SetDefault("network.timeout", "20s")
	v.SetDefault("network.max_connections", 32)
	v.SetDefault("network.max_retries", 0)
	v.SetDefault("network.user_agent", "citation-graph/1.0")
	v.SetDefault("network.mailto", "")

	// Catalog defaults
	v.SetDefault("catalog.base_url", "https://paperswithcode.com/api/v1")
	v.SetDefault("catalog.page_size", 50)
	v.SetDefault("catalog.start_page", 1)
	v.SetDefault("catalog.max_pages", 0)
	v.SetDefault("catalog.max_consecutive_failures", 10)
	v.SetDefault("catalog.rate_limit", 5.0)

	// Metadata defaults
	v.SetDefault("metadata.base_url", "https://api.crossref.org")
	v.SetDefault("metadata.rate_limit", 10.0)
	v.SetDefault("metadata.follow_rate_headers", true)
	v.SetDefault("metadata.max_references", 70)

	// Matching defaults
	v.SetDefault("matching.high_threshold", 0.9)
	v.SetDefault("matching.low_threshold", 0.75)

	// Classification defaults
	v.SetDefault("classification.enabled", true)
	v.SetDefault("classification.arxiv.enabled", true)
	v.SetDefault("classification.arxiv.base_url", "https://export.arxiv.org/api")
	v.SetDefault("classification.arxiv.rate_limit", 3.0)
	v.SetDefault("classification.openalex.enabled", true)
	v.SetDefault("classification.openalex.base_url", "https://api.openalex.org")
	v.SetDefault("classification.openalex.rate_limit", 10.0)

	// Publisher defaults
	v.SetDefault("publishers.enabled", true)
	v.SetDefault("publishers.extractors", map[string]string{
		"IEEE": "ieee",
		"Institute of Electrical and Electronics Engineers (IEEE)": "ieee",
	})
	v.SetDefault("publishers.ieee.handle_url", "https://doi.org/api/handles/")
	v.SetDefault("publishers.ieee.base_url", "https://ieeexplore.ieee.org")
	v.SetDefault("publishers.ieee.render_endpoint", "")
	v.SetDefault("publishers.ieee.disable_rest", false)
	v.SetDefault("publishers.ieee.rate_limit", 2.0)

	// Resolution defaults
	v.SetDefault("resolution.max_depth", 0)

	// Snapshot defaults
	v.SetDefault("snapshot.path", "dataset.json")
	v.SetDefault("snapshot.indent", false)
	v.SetDefault("snapshot.final_timeout", "30s")
	v.SetDefault("snapshot.resume", false)

	// Database defaults
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "citegraph")
	v.SetDefault("database.name", "citegraph")
	v.SetDefault("database.ssl_mode", SSLModeRequire)
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 1)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")
	v.SetDefault("database.health_check_period", "1m")
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.migration_path", "")
	v.SetDefault("database.migration_auto_run", false)
	v.SetDefault("database.statement_cache_capacity", 512)
	v.SetDefault("database.batch_size", 500)

	// Status server defaults
	v.SetDefault("status.enabled", true)
	v.SetDefault("status.host", "0.0.0.0")
	v.SetDefault("status.port", 9091)
	v.SetDefault("status.metrics_path", "/metrics")
	v.SetDefault("status.read_timeout", "10s")
	v.SetDefault("status.write_timeout", "0s")
	v.SetDefault("status.shutdown_timeout", "10s")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(c); err != nil {
		return err
	}

	if c.Matching.LowThreshold > c.Matching.HighThreshold {
		return fmt.Errorf("matching low_threshold (%.2f) must be <= high_threshold (%.2f)",
			c.Matching.LowThreshold, c.Matching.HighThreshold)
	}

	for publisher, key := range c.Publishers.Extractors {
		if strings.TrimSpace(publisher) == "" {
			return fmt.Errorf("publisher extractor with empty publisher name")
		}
		if !knownExtractors[strings.ToLower(key)] {
			return fmt.Errorf("unknown extractor %q for publisher %q", key, publisher)
		}
	}

	// Validate database config only when the mirror is enabled
	if c.Database.Enabled {
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			return fmt.Errorf("invalid database port: %d", c.Database.Port)
		}
		if c.Database.Name == "" {
			return fmt.Errorf("database name is required")
		}
		if c.Database.MaxConns < c.Database.MinConns {
			return fmt.Errorf("max_conns (%d) must be >= min_conns (%d)", c.Database.MaxConns, c.Database.MinConns)
		}
	}

	return nil
}

// knownExtractors lists the extractor keys the CLI can construct.
var knownExtractors = map[string]bool{
	"ieee": true,
}
