package logging

import (
	"context"
	"io"
	"log/slog"
	"os"

	"golang.org/x/term"

	"github.com/hugo-lorenzo-mato/scorecard/internal/core"
)

// Logger is a slog.Logger whose output is scrubbed of credentials.
type Logger struct {
	*slog.Logger
}

// Config configures the logger.
type Config struct {
	Level     string
	Format    string // auto, text, json
	Output    io.Writer
	AddSource bool
}

// DefaultConfig returns the default logger configuration.
func DefaultConfig() Config {
	return Config{Level: "info", Format: "auto", Output: os.Stdout}
}

// New creates a logger. The auto format picks the colored console handler
// on a terminal and JSON otherwise.
func New(cfg Config) *Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level), AddSource: cfg.AddSource}

	var handler slog.Handler
	switch {
	case cfg.Format == "text":
		handler = slog.NewTextHandler(cfg.Output, opts)
	case cfg.Format != "json" && isTerminal(cfg.Output):
		handler = NewPrettyHandler(cfg.Output, opts.Level.Level())
	default:
		handler = slog.NewJSONHandler(cfg.Output, opts)
	}
	return &Logger{Logger: slog.New(redactHandler{next: handler})}
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func isTerminal(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return term.IsTerminal(int(f.Fd()))
	}
	return false
}

// WithContext returns a logger carrying the request metadata stored in ctx.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	rc := core.RequestContextFrom(ctx)
	if rc.RequestID == "" {
		return l
	}
	return l.With("request_id", rc.RequestID)
}

// WithOrg scopes the logger to an organization.
func (l *Logger) WithOrg(orgID string) *Logger {
	return l.With("org_id", orgID)
}

// WithTemplate scopes the logger to a template.
func (l *Logger) WithTemplate(templateID string) *Logger {
	return l.With("template_id", templateID)
}

// WithVersion tags a published version number.
func (l *Logger) WithVersion(number int) *Logger {
	return l.With("version", number)
}

// WithComponent tags the emitting component.
func (l *Logger) WithComponent(name string) *Logger {
	return l.With("component", name)
}

// With returns a logger with extra fields.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}
