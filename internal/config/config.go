package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Postgres SSL modes accepted by the pgx driver.
const (
	SSLModeDisable    = "disable"
	SSLModeAllow      = "allow"
	SSLModePrefer     = "prefer"
	SSLModeRequire    = "require"
	SSLModeVerifyCA   = "verify-ca"
	SSLModeVerifyFull = "verify-full"
)

type Config struct {
	HANA          HANAConfig          `mapstructure:"hana"`
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Replicate     ReplicateConfig     `mapstructure:"replicate"`
	Monitoring    MonitoringConfig    `mapstructure:"monitoring"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

type HANAConfig struct {
	Host          string        `mapstructure:"host"`
	Port          int           `mapstructure:"port"`
	Database      string        `mapstructure:"database"`
	Username      string        `mapstructure:"username"`
	Password      string        `mapstructure:"password"`
	TLSRootCA     string        `mapstructure:"tls_root_ca"`
	TLSServerName string        `mapstructure:"tls_server_name"`
	ConnTimeout   time.Duration `mapstructure:"conn_timeout"`
}

type PostgresConfig struct {
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port"`
	Database    string        `mapstructure:"database"`
	Username    string        `mapstructure:"username"`
	Password    string        `mapstructure:"password"`
	SSLMode     string        `mapstructure:"ssl_mode"`
	ConnTimeout time.Duration `mapstructure:"conn_timeout"`
}

type ReplicateConfig struct {
	// Tables and Views are comma-separated lists of schema-qualified names,
	// e.g. "SALES.ORDERS,SALES.CUSTOMERS".
	Tables    string `mapstructure:"tables"`
	Views     string `mapstructure:"views"`
	ChunkSize int    `mapstructure:"chunk_size"`
	Reset     bool   `mapstructure:"reset"`

	// ViewRewrites maps literal text fragments in source view definitions
	// to fully-qualified replacements, e.g. `"ORDERS"` -> `"SALES"."ORDERS"`.
	ViewRewrites map[string]string `mapstructure:"view_rewrites"`
}

type MonitoringConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Port        int    `mapstructure:"port"`
	MetricsPath string `mapstructure:"metrics_path"`
	HealthPath  string `mapstructure:"health_path"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
	LocalTime  bool   `mapstructure:"local_time"`
}

type ObservabilityConfig struct {
	ErrorReporting ErrorReportingConfig `mapstructure:"error_reporting"`
}

type ErrorReportingConfig struct {
	Enabled  bool         `mapstructure:"enabled"`
	Provider string       `mapstructure:"provider"` // sentry, noop
	Sentry   SentryConfig `mapstructure:"sentry"`
}

type SentryConfig struct {
	DSN          string        `mapstructure:"dsn"`
	Environment  string        `mapstructure:"environment"`
	Release      string        `mapstructure:"release"`
	SampleRate   float64       `mapstructure:"sample_rate"`
	Debug        bool          `mapstructure:"debug"`
	FlushTimeout time.Duration `mapstructure:"flush_timeout"`
}

// Target identifies one schema-qualified table or view to replicate.
type Target struct {
	Schema string
	Name   string
}

func (t Target) String() string {
	return t.Schema + "." + t.Name
}

// ParseTargets splits a comma-separated "schema.name" list into targets.
// Entries with a missing dot or an empty segment are returned in malformed
// instead of aborting; the caller decides how to surface them.
func ParseTargets(raw string) (targets []Target, malformed []string) {
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		schema, name, found := strings.Cut(entry, ".")
		schema = strings.TrimSpace(schema)
		name = strings.TrimSpace(name)
		if !found || schema == "" || name == "" {
			malformed = append(malformed, entry)
			continue
		}

		targets = append(targets, Target{Schema: schema, Name: name})
	}

	return targets, malformed
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetConfigType("yaml")

	setDefaults(v)

	// Read config file as raw bytes
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables
	expandedData, err := expandEnvWithDefaults(string(data))
	if err != nil {
		return nil, fmt.Errorf("failed to expand environment variables: %w", err)
	}

	// Parse the expanded configuration
	if err := v.ReadConfig(bytes.NewReader([]byte(expandedData))); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("hana.host", "localhost")
	v.SetDefault("hana.port", 39015)
	v.SetDefault("hana.conn_timeout", "30s")

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.database", "postgres")
	v.SetDefault("postgres.ssl_mode", SSLModePrefer)
	v.SetDefault("postgres.conn_timeout", "30s")

	v.SetDefault("replicate.chunk_size", 1000)
	v.SetDefault("replicate.reset", false)

	v.SetDefault("monitoring.enabled", true)
	v.SetDefault("monitoring.port", 8080)
	v.SetDefault("monitoring.metrics_path", "/metrics")
	v.SetDefault("monitoring.health_path", "/health")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output_path", "stdout")
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 7)
	v.SetDefault("logging.compress", true)
	v.SetDefault("logging.local_time", true)

	v.SetDefault("observability.error_reporting.enabled", false)
	v.SetDefault("observability.error_reporting.provider", "sentry")
	v.SetDefault("observability.error_reporting.sentry.sample_rate", 1.0)
	v.SetDefault("observability.error_reporting.sentry.flush_timeout", "5s")
}

func validate(cfg *Config) error {
	if cfg.HANA.Host == "" {
		return fmt.Errorf("hana.host is required")
	}
	if cfg.HANA.Database == "" {
		return fmt.Errorf("hana.database is required")
	}
	if cfg.HANA.Username == "" {
		return fmt.Errorf("hana.username is required")
	}
	if cfg.HANA.Password == "" {
		return fmt.Errorf("hana.password is required")
	}
	if err := validatePort(cfg.HANA.Port, "hana.port"); err != nil {
		return err
	}
	if err := validatePositiveDuration(cfg.HANA.ConnTimeout, "hana.conn_timeout"); err != nil {
		return err
	}

	if cfg.Postgres.Host == "" {
		return fmt.Errorf("postgres.host is required")
	}
	if cfg.Postgres.Username == "" {
		return fmt.Errorf("postgres.username is required")
	}
	if err := validatePort(cfg.Postgres.Port, "postgres.port"); err != nil {
		return err
	}
	if err := validatePositiveDuration(cfg.Postgres.ConnTimeout, "postgres.conn_timeout"); err != nil {
		return err
	}

	validSSLModes := map[string]bool{
		SSLModeDisable:    true,
		SSLModeAllow:      true,
		SSLModePrefer:     true,
		SSLModeRequire:    true,
		SSLModeVerifyCA:   true,
		SSLModeVerifyFull: true,
	}
	if !validSSLModes[cfg.Postgres.SSLMode] {
		return fmt.Errorf("postgres.ssl_mode must be one of: disable, allow, prefer, require, verify-ca, verify-full")
	}

	if cfg.Replicate.Tables == "" && cfg.Replicate.Views == "" {
		return fmt.Errorf("replicate.tables or replicate.views is required")
	}
	if err := validateRange(cfg.Replicate.ChunkSize, 1, 1000000, "replicate.chunk_size"); err != nil {
		return err
	}

	if cfg.Monitoring.Enabled {
		if err := validatePort(cfg.Monitoring.Port, "monitoring.port"); err != nil {
			return err
		}
	}

	if err := validateRange(cfg.Logging.MaxSize, 1, 1000, "logging.max_size"); err != nil {
		return err
	}
	if err := validateRange(cfg.Logging.MaxBackups, 0, 100, "logging.max_backups"); err != nil {
		return err
	}
	if err := validateRange(cfg.Logging.MaxAge, 0, 365, "logging.max_age"); err != nil {
		return err
	}

	return nil
}

// validatePort checks if a port number is in the valid range (1-65535)
func validatePort(port int, name string) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%s must be between 1 and 65535, got %d", name, port)
	}
	return nil
}

// validatePositiveDuration checks if a duration is positive
func validatePositiveDuration(d time.Duration, name string) error {
	if d <= 0 {
		return fmt.Errorf("%s must be positive, got %v", name, d)
	}
	return nil
}

// validateRange checks if an integer is within a specified range
func validateRange(value int, min int, max int, name string) error {
	if value < min || value > max {
		return fmt.Errorf("%s must be between %d and %d, got %d", name, min, max, value)
	}
	return nil
}
