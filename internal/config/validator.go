package config

import (
	"fmt"
	"strings"
	"time"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation: %s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors collects multiple validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// HasErrors returns true if there are any validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validator validates configuration.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new validator.
func NewValidator() *Validator {
	return &Validator{
		errors: make(ValidationErrors, 0),
	}
}

// Validate validates the entire configuration.
func (v *Validator) Validate(cfg *Config) error {
	v.validateLog(&cfg.Log)
	v.validateServer(&cfg.Server)
	v.validateDatabase(&cfg.Database)
	v.validateScoring(&cfg.Scoring)
	v.validatePublish(&cfg.Publish)
	v.validateArchive(&cfg.Archive)

	if len(v.errors) > 0 {
		return v.errors
	}
	return nil
}

// Errors returns the collected validation errors.
func (v *Validator) Errors() ValidationErrors {
	return v.errors
}

func (v *Validator) addError(field string, value interface{}, msg string) {
	v.errors = append(v.errors, ValidationError{
		Field:   field,
		Value:   value,
		Message: msg,
	})
}

func (v *Validator) validateLog(cfg *LogConfig) {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[cfg.Level] {
		v.addError("log.level", cfg.Level, "must be one of: debug, info, warn, error")
	}

	validFormats := map[string]bool{
		"auto": true, "text": true, "json": true,
	}
	if !validFormats[cfg.Format] {
		v.addError("log.format", cfg.Format, "must be one of: auto, text, json")
	}
}

func (v *Validator) validateServer(cfg *ServerConfig) {
	if cfg.Port < 1 || cfg.Port > 65535 {
		v.addError("server.port", cfg.Port, "must be between 1 and 65535")
	}
	v.validateDuration("server.request_timeout", cfg.RequestTimeout)
	v.validateDuration("server.shutdown_grace", cfg.ShutdownGrace)
}

func (v *Validator) validateDatabase(cfg *DatabaseConfig) {
	switch cfg.Driver {
	case "sqlite":
		if cfg.Path == "" {
			v.addError("database.path", cfg.Path, "required for the sqlite driver")
		}
		v.validateDuration("database.busy_timeout", cfg.BusyTimeout)
	case "postgres":
		if cfg.DSN == "" {
			v.addError("database.dsn", "", "required for the postgres driver")
		}
	default:
		v.addError("database.driver", cfg.Driver, "must be one of: sqlite, postgres")
	}
}

func (v *Validator) validateScoring(cfg *ScoringConfig) {
	if cfg.WeightTolerance <= 0 || cfg.WeightTolerance >= 1 {
		v.addError("scoring.weight_tolerance", cfg.WeightTolerance, "must be greater than 0 and less than 1")
	}
}

func (v *Validator) validatePublish(cfg *PublishConfig) {
	if cfg.ConflictRetries < 0 || cfg.ConflictRetries > 10 {
		v.addError("publish.conflict_retries", cfg.ConflictRetries, "must be between 0 and 10")
	}
}

func (v *Validator) validateArchive(cfg *ArchiveConfig) {
	switch cfg.Driver {
	case "", "none":
	case "fs":
		if cfg.Dir == "" {
			v.addError("archive.dir", cfg.Dir, "required for the fs driver")
		}
	case "s3":
		if cfg.S3.Bucket == "" {
			v.addError("archive.s3.bucket", cfg.S3.Bucket, "required for the s3 driver")
		}
	default:
		v.addError("archive.driver", cfg.Driver, "must be one of: none, fs, s3")
	}
}

func (v *Validator) validateDuration(field, value string) {
	d, err := time.ParseDuration(value)
	if err != nil {
		v.addError(field, value, "invalid duration format")
		return
	}
	if d <= 0 {
		v.addError(field, value, "must be positive")
	}
}

// ValidateConfig is a convenience function to validate configuration.
func ValidateConfig(cfg *Config) error {
	return NewValidator().Validate(cfg)
}
