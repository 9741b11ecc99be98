package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Log      LogConfig      `mapstructure:"log"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Scoring  ScoringConfig  `mapstructure:"scoring"`
	Publish  PublishConfig  `mapstructure:"publish"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// LogConfig configures logging behavior.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Host           string   `mapstructure:"host"`
	Port           int      `mapstructure:"port"`
	CORSOrigins    []string `mapstructure:"cors_origins"`
	RequestTimeout string   `mapstructure:"request_timeout"`
	ShutdownGrace  string   `mapstructure:"shutdown_grace"`
}

// Addr returns the listen address.
func (c ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// RequestTimeoutDuration parses RequestTimeout. Validation guarantees it
// parses; the fallback only covers unvalidated configs.
func (c ServerConfig) RequestTimeoutDuration() time.Duration {
	return parseDurationOr(c.RequestTimeout, 60*time.Second)
}

// ShutdownGraceDuration parses ShutdownGrace.
func (c ServerConfig) ShutdownGraceDuration() time.Duration {
	return parseDurationOr(c.ShutdownGrace, 10*time.Second)
}

// DatabaseConfig selects and configures the store backend.
type DatabaseConfig struct {
	Driver      string `mapstructure:"driver"`
	Path        string `mapstructure:"path"`
	DSN         string `mapstructure:"dsn"`
	BusyTimeout string `mapstructure:"busy_timeout"`
}

// BusyTimeoutDuration parses BusyTimeout.
func (c DatabaseConfig) BusyTimeoutDuration() time.Duration {
	return parseDurationOr(c.BusyTimeout, 5*time.Second)
}

// ScoringConfig configures publish validation.
type ScoringConfig struct {
	WeightTolerance float64 `mapstructure:"weight_tolerance"`
}

// PublishConfig configures the publish workflow.
type PublishConfig struct {
	ConflictRetries int `mapstructure:"conflict_retries"`
}

// ArchiveConfig configures mirroring of published versions.
type ArchiveConfig struct {
	Driver string          `mapstructure:"driver"`
	Dir    string          `mapstructure:"dir"`
	S3     S3ArchiveConfig `mapstructure:"s3"`
}

// S3ArchiveConfig configures the S3 archive. Credentials come from the
// standard AWS environment and shared config.
type S3ArchiveConfig struct {
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"`
	Prefix    string `mapstructure:"prefix"`
	PathStyle bool   `mapstructure:"path_style"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
