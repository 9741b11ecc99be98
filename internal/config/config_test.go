package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoader_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := NewLoader().Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want info", cfg.Log.Level)
	}
	if cfg.Server.Addr() != "127.0.0.1:8080" {
		t.Errorf("Server.Addr() = %q", cfg.Server.Addr())
	}
	if cfg.Server.RequestTimeoutDuration() != 60*time.Second {
		t.Errorf("RequestTimeoutDuration() = %v", cfg.Server.RequestTimeoutDuration())
	}
	if cfg.Database.Driver != "sqlite" || cfg.Database.Path != "scorecard.db" {
		t.Errorf("Database = %+v", cfg.Database)
	}
	if cfg.Scoring.WeightTolerance != 0.01 {
		t.Errorf("Scoring.WeightTolerance = %v, want 0.01", cfg.Scoring.WeightTolerance)
	}
	if cfg.Publish.ConflictRetries != 2 {
		t.Errorf("Publish.ConflictRetries = %d, want 2", cfg.Publish.ConflictRetries)
	}
	if cfg.Archive.Driver != "none" {
		t.Errorf("Archive.Driver = %q, want none", cfg.Archive.Driver)
	}
	if !cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled = false, want true")
	}
}

func TestLoader_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scorecard.yaml")
	content := `
server:
  port: 9090
database:
  driver: postgres
  dsn: postgres://scorecard@localhost/scorecard
archive:
  driver: s3
  s3:
    bucket: rubric-archive
    path_style: true
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SCORECARD_PUBLISH_CONFLICT_RETRIES", "5")
	t.Setenv("SCORECARD_SERVER_PORT", "9191")

	loader := NewLoader().WithConfigFile(path)
	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9191 {
		t.Errorf("Server.Port = %d, want env override 9191", cfg.Server.Port)
	}
	if cfg.Publish.ConflictRetries != 5 {
		t.Errorf("Publish.ConflictRetries = %d, want 5", cfg.Publish.ConflictRetries)
	}
	if cfg.Database.Driver != "postgres" {
		t.Errorf("Database.Driver = %q", cfg.Database.Driver)
	}
	if cfg.Archive.S3.Bucket != "rubric-archive" || !cfg.Archive.S3.PathStyle {
		t.Errorf("Archive.S3 = %+v", cfg.Archive.S3)
	}
	if loader.ConfigFile() != path {
		t.Errorf("ConfigFile() = %q, want %q", loader.ConfigFile(), path)
	}
}

func TestLoader_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scorecard.yaml")
	if err := os.WriteFile(path, []byte("server: [unclosed"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewLoader().WithConfigFile(path).Load(); err == nil {
		t.Fatal("Load() succeeded on malformed YAML")
	}
}

func TestLoader_RejectsInvalidValues(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SCORECARD_ARCHIVE_DRIVER", "s3")

	_, err := NewLoader().Load()
	var verrs ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("Load() error = %v, want ValidationErrors", err)
	}
	if verrs[0].Field != "archive.s3.bucket" {
		t.Errorf("field = %q, want archive.s3.bucket", verrs[0].Field)
	}
}

func validConfig() *Config {
	return &Config{
		Log:      LogConfig{Level: "info", Format: "json"},
		Server:   ServerConfig{Host: "0.0.0.0", Port: 8080, RequestTimeout: "30s", ShutdownGrace: "5s"},
		Database: DatabaseConfig{Driver: "sqlite", Path: "x.db", BusyTimeout: "5s"},
		Scoring:  ScoringConfig{WeightTolerance: 0.01},
		Publish:  PublishConfig{ConflictRetries: 2},
		Archive:  ArchiveConfig{Driver: "none"},
	}
}

func TestValidator(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{"valid", func(*Config) {}, ""},
		{"bad level", func(c *Config) { c.Log.Level = "trace" }, "log.level"},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"bad timeout", func(c *Config) { c.Server.RequestTimeout = "soon" }, "server.request_timeout"},
		{"negative grace", func(c *Config) { c.Server.ShutdownGrace = "-1s" }, "server.shutdown_grace"},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }, "database.driver"},
		{"postgres without dsn", func(c *Config) { c.Database.Driver = "postgres" }, "database.dsn"},
		{"zero tolerance", func(c *Config) { c.Scoring.WeightTolerance = 0 }, "scoring.weight_tolerance"},
		{"too many retries", func(c *Config) { c.Publish.ConflictRetries = 11 }, "publish.conflict_retries"},
		{"fs without dir", func(c *Config) { c.Archive = ArchiveConfig{Driver: "fs"} }, "archive.dir"},
		{"unknown archive", func(c *Config) { c.Archive.Driver = "gcs" }, "archive.driver"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := ValidateConfig(cfg)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("ValidateConfig() error = %v", err)
				}
				return
			}
			var verrs ValidationErrors
			if !errors.As(err, &verrs) || !verrs.HasErrors() {
				t.Fatalf("ValidateConfig() error = %v, want ValidationErrors", err)
			}
			if verrs[0].Field != tt.wantField {
				t.Errorf("field = %q, want %q", verrs[0].Field, tt.wantField)
			}
		})
	}
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "scorecard.yaml")

	if err := WriteDefault(path, false); err != nil {
		t.Fatalf("WriteDefault() error = %v", err)
	}
	if err := WriteDefault(path, false); err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("second WriteDefault() error = %v, want already exists", err)
	}
	if err := WriteDefault(path, true); err != nil {
		t.Fatalf("forced WriteDefault() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("perm = %o, want 600", perm)
	}

	cfg, err := NewLoader().WithConfigFile(path).Load()
	if err != nil {
		t.Fatalf("default file does not load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d", cfg.Server.Port)
	}
}
