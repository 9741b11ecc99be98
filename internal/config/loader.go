package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. SCORECARD_SERVER_PORT.
const EnvPrefix = "SCORECARD"

// Loader handles configuration loading from multiple sources.
type Loader struct {
	v          *viper.Viper
	configFile string
	envPrefix  string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return NewLoaderWithViper(viper.New())
}

// NewLoaderWithViper creates a loader using an existing viper instance so
// that cobra flags bound to it take precedence.
func NewLoaderWithViper(v *viper.Viper) *Loader {
	return &Loader{
		v:         v,
		envPrefix: EnvPrefix,
	}
}

// WithConfigFile sets an explicit config file path.
func (l *Loader) WithConfigFile(path string) *Loader {
	l.configFile = path
	return l
}

// WithEnvPrefix sets the environment variable prefix.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// Viper returns the underlying viper instance for flag binding.
func (l *Loader) Viper() *viper.Viper {
	return l.v
}

// Load loads configuration from all sources and validates it.
// Precedence (highest to lowest):
// 1. CLI flags (set via viper.BindPFlag)
// 2. Environment variables (SCORECARD_*)
// 3. scorecard.yaml in the current directory
// 4. ~/.config/scorecard/scorecard.yaml
// 5. Defaults
func (l *Loader) Load() (*Config, error) {
	l.setDefaults()

	l.v.SetEnvPrefix(l.envPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()

	if l.configFile != "" {
		l.v.SetConfigFile(l.configFile)
	} else {
		l.v.SetConfigName("scorecard")
		l.v.SetConfigType("yaml")
		l.v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			l.v.AddConfigPath(filepath.Join(home, ".config", "scorecard"))
		}
	}

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := ValidateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults configures default values. Every key needs a default so
// that AutomaticEnv can override it during Unmarshal.
func (l *Loader) setDefaults() {
	l.v.SetDefault("log.level", "info")
	l.v.SetDefault("log.format", "auto")

	l.v.SetDefault("server.host", "127.0.0.1")
	l.v.SetDefault("server.port", 8080)
	l.v.SetDefault("server.cors_origins", []string{"*"})
	l.v.SetDefault("server.request_timeout", "60s")
	l.v.SetDefault("server.shutdown_grace", "10s")

	l.v.SetDefault("database.driver", "sqlite")
	l.v.SetDefault("database.path", "scorecard.db")
	l.v.SetDefault("database.dsn", "")
	l.v.SetDefault("database.busy_timeout", "5s")

	l.v.SetDefault("scoring.weight_tolerance", 0.01)
	l.v.SetDefault("publish.conflict_retries", 2)

	l.v.SetDefault("archive.driver", "none")
	l.v.SetDefault("archive.dir", "archive")
	l.v.SetDefault("archive.s3.bucket", "")
	l.v.SetDefault("archive.s3.region", "")
	l.v.SetDefault("archive.s3.endpoint", "")
	l.v.SetDefault("archive.s3.prefix", "")
	l.v.SetDefault("archive.s3.path_style", false)

	l.v.SetDefault("metrics.enabled", true)
}

// ConfigFile returns the config file path if one was used.
func (l *Loader) ConfigFile() string {
	return l.v.ConfigFileUsed()
}
