// Package config provides configuration management for pianola using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variables overriding configuration.
const EnvPrefix = "PIANOLA"

// Default configuration values.
const (
	defaultServerPort            = 8080
	defaultServerTimeout         = 30 * time.Second
	defaultShutdownTimeout       = 10 * time.Second
	defaultNegotiateRateLimit    = 120
	defaultMaxOpenConns          = 25
	defaultMaxIdleConns          = 10
	defaultConnMaxIdleTime       = 30 * time.Minute
	defaultCatalogTimeout        = 15 * time.Second
	defaultRetryAttempts         = 3
	defaultRetryDelay            = 500 * time.Millisecond
	defaultCircuitBreakerThresh  = 5
	defaultCircuitBreakerTimeout = 30 * time.Second
	defaultVolume                = 0.8
	defaultNotificationBuffer    = 16
	defaultErrorMessage          = "Failed to load video. Please check the video URL."
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging"`
	Catalog  CatalogConfig  `mapstructure:"catalog" yaml:"catalog"`
	Playback PlaybackConfig `mapstructure:"playback" yaml:"playback"`
	Metrics  MetricsConfig  `mapstructure:"metrics" yaml:"metrics"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host" yaml:"host"`
	Port            int           `mapstructure:"port" yaml:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins" yaml:"cors_origins"`
	// NegotiateRateLimit is the number of negotiate requests allowed per
	// client IP per minute. Zero disables the limit.
	NegotiateRateLimit int `mapstructure:"negotiate_rate_limit" yaml:"negotiate_rate_limit"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver" yaml:"driver"` // sqlite, postgres, mysql
	DSN             string        `mapstructure:"dsn" yaml:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time" yaml:"conn_max_idle_time"`
	LogLevel        string        `mapstructure:"log_level" yaml:"log_level"` // silent, error, warn, info
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`   // trace, debug, info, warn, error
	Format     string `mapstructure:"format" yaml:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source" yaml:"add_source"`
	TimeFormat string `mapstructure:"time_format" yaml:"time_format"`
	// RedactFields lists attribute names whose values are masked in log output.
	RedactFields []string `mapstructure:"redact_fields" yaml:"redact_fields"`
}

// CatalogConfig holds the lesson catalog client configuration.
// An empty BaseURL disables the remote catalog.
type CatalogConfig struct {
	BaseURL                 string        `mapstructure:"base_url" yaml:"base_url"`
	AuthToken               string        `mapstructure:"auth_token" yaml:"auth_token"`
	Timeout                 time.Duration `mapstructure:"timeout" yaml:"timeout"`
	RetryAttempts           int           `mapstructure:"retry_attempts" yaml:"retry_attempts"`
	RetryDelay              time.Duration `mapstructure:"retry_delay" yaml:"retry_delay"`
	CircuitBreakerThreshold int           `mapstructure:"circuit_breaker_threshold" yaml:"circuit_breaker_threshold"`
	CircuitBreakerTimeout   time.Duration `mapstructure:"circuit_breaker_timeout" yaml:"circuit_breaker_timeout"`
}

// PlaybackConfig holds playback session configuration.
type PlaybackConfig struct {
	// ErrorMessage is shown to the viewer when the media element fails.
	ErrorMessage  string  `mapstructure:"error_message" yaml:"error_message"`
	DefaultVolume float64 `mapstructure:"default_volume" yaml:"default_volume"`
	// SessionIdleTimeout is how long an ended or errored session is kept
	// before the pruner drops it. Accepts "30m", "1d" and similar.
	SessionIdleTimeout Duration `mapstructure:"session_idle_timeout" yaml:"session_idle_timeout"`
	// PruneSchedule is a 6-field cron expression (with seconds).
	PruneSchedule string `mapstructure:"prune_schedule" yaml:"prune_schedule"`
	// RecordRetention is how long playback records are kept. Zero keeps them forever.
	RecordRetention    Duration `mapstructure:"record_retention" yaml:"record_retention"`
	NotificationBuffer int      `mapstructure:"notification_buffer" yaml:"notification_buffer"`
}

// MetricsConfig holds Prometheus metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// Load loads configuration from file, environment variables, and defaults.
// The configPath parameter is optional; if empty, it searches standard locations.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	SetDefaults(v)

	// Config file settings
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/pianola")
		v.AddConfigPath("$HOME/.pianola")
	}

	// Environment variable settings
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	return FromViper(v)
}

// FromViper decodes and validates the configuration held by v. Callers that
// bind CLI flags to their own viper instance use it instead of Load.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHook())); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// decodeHook lets Duration fields accept day and week units while plain
// time.Duration fields keep Go's syntax.
func decodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

// SetDefaults configures default values for all configuration options.
// This should be called before reading the config file to ensure defaults are in place.
func SetDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.read_timeout", defaultServerTimeout)
	v.SetDefault("server.write_timeout", defaultServerTimeout)
	v.SetDefault("server.shutdown_timeout", defaultShutdownTimeout)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.negotiate_rate_limit", defaultNegotiateRateLimit)

	// Database defaults
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "pianola.db")
	v.SetDefault("database.max_open_conns", defaultMaxOpenConns)
	v.SetDefault("database.max_idle_conns", defaultMaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.conn_max_idle_time", defaultConnMaxIdleTime)
	v.SetDefault("database.log_level", "warn")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)
	v.SetDefault("logging.redact_fields", []string{"token", "auth_token", "password", "authorization"})

	// Catalog defaults
	v.SetDefault("catalog.base_url", "")
	v.SetDefault("catalog.auth_token", "")
	v.SetDefault("catalog.timeout", defaultCatalogTimeout)
	v.SetDefault("catalog.retry_attempts", defaultRetryAttempts)
	v.SetDefault("catalog.retry_delay", defaultRetryDelay)
	v.SetDefault("catalog.circuit_breaker_threshold", defaultCircuitBreakerThresh)
	v.SetDefault("catalog.circuit_breaker_timeout", defaultCircuitBreakerTimeout)

	// Playback defaults
	v.SetDefault("playback.error_message", defaultErrorMessage)
	v.SetDefault("playback.default_volume", defaultVolume)
	v.SetDefault("playback.session_idle_timeout", "30m")
	v.SetDefault("playback.prune_schedule", "0 */5 * * * *")
	v.SetDefault("playback.record_retention", "90d")
	v.SetDefault("playback.notification_buffer", defaultNotificationBuffer)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	// Server validation
	const maxPort = 65535
	if c.Server.Port < 1 || c.Server.Port > maxPort {
		return fmt.Errorf("server.port must be between 1 and %d", maxPort)
	}
	if c.Server.NegotiateRateLimit < 0 {
		return fmt.Errorf("server.negotiate_rate_limit must not be negative")
	}

	// Database validation
	validDrivers := map[string]bool{"sqlite": true, "postgres": true, "mysql": true}
	if !validDrivers[c.Database.Driver] {
		return fmt.Errorf("database.driver must be one of: sqlite, postgres, mysql")
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}

	// Logging validation
	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: trace, debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	// Catalog validation
	if c.Catalog.BaseURL != "" && !strings.HasPrefix(c.Catalog.BaseURL, "http://") && !strings.HasPrefix(c.Catalog.BaseURL, "https://") {
		return fmt.Errorf("catalog.base_url must be an http or https URL")
	}
	if c.Catalog.RetryAttempts < 0 {
		return fmt.Errorf("catalog.retry_attempts must not be negative")
	}

	// Playback validation
	if c.Playback.DefaultVolume < 0 || c.Playback.DefaultVolume > 1 {
		return fmt.Errorf("playback.default_volume must be between 0 and 1")
	}
	if c.Playback.SessionIdleTimeout <= 0 {
		return fmt.Errorf("playback.session_idle_timeout must be positive")
	}
	if c.Playback.RecordRetention < 0 {
		return fmt.Errorf("playback.record_retention must not be negative")
	}
	if c.Playback.NotificationBuffer < 1 {
		return fmt.Errorf("playback.notification_buffer must be at least 1")
	}

	// Metrics validation
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with /")
	}

	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Enabled reports whether a remote catalog is configured.
func (c *CatalogConfig) Enabled() bool {
	return c.BaseURL != ""
}
