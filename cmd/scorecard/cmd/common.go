package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hugo-lorenzo-mato/scorecard/internal/adapters/store"
	"github.com/hugo-lorenzo-mato/scorecard/internal/archive"
	"github.com/hugo-lorenzo-mato/scorecard/internal/config"
	"github.com/hugo-lorenzo-mato/scorecard/internal/core"
	"github.com/hugo-lorenzo-mato/scorecard/internal/logging"
	"github.com/hugo-lorenzo-mato/scorecard/internal/metrics"
	"github.com/hugo-lorenzo-mato/scorecard/internal/service/templates"
)

func loadConfig() (*config.Config, error) {
	loader := config.NewLoaderWithViper(viper.GetViper())
	if cfgFile != "" {
		loader.WithConfigFile(cfgFile)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config, out io.Writer) *logging.Logger {
	return logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: out,
	})
}

func openStore(ctx context.Context, cfg *config.Config) (*store.Store, error) {
	st, err := store.Open(ctx, store.Options{
		Driver:      cfg.Database.Driver,
		Path:        cfg.Database.Path,
		DSN:         cfg.Database.DSN,
		BusyTimeout: cfg.Database.BusyTimeoutDuration(),
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return st, nil
}

// app bundles what commands that touch templates need.
type app struct {
	cfg     *config.Config
	logger  *logging.Logger
	store   *store.Store
	metrics *metrics.Metrics
	service *templates.Service
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("closing database", slog.String("error", err.Error()))
	}
}

// newApp loads config, opens the store and wires the template service.
// Logs go to logOut so stdio transports keep stdout to themselves.
func newApp(ctx context.Context, logOut io.Writer, withMetrics bool) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg, logOut)

	st, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	arch, err := archive.New(ctx, archive.Config{
		Driver: cfg.Archive.Driver,
		Dir:    cfg.Archive.Dir,
		S3: archive.S3Config{
			Bucket:    cfg.Archive.S3.Bucket,
			Region:    cfg.Archive.S3.Region,
			Endpoint:  cfg.Archive.S3.Endpoint,
			Prefix:    cfg.Archive.S3.Prefix,
			PathStyle: cfg.Archive.S3.PathStyle,
		},
	})
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("configuring archive: %w", err)
	}

	var m *metrics.Metrics
	if withMetrics && cfg.Metrics.Enabled {
		m = metrics.New()
	}

	svc := templates.New(st,
		templates.WithLogger(logger.WithComponent("templates")),
		templates.WithMetrics(m),
		templates.WithArchiver(arch),
		templates.WithWeightTolerance(cfg.Scoring.WeightTolerance),
		templates.WithConflictRetries(cfg.Publish.ConflictRetries),
	)

	logger.Debug("service ready",
		slog.String("database", st.Driver()),
		slog.String("archive", arch.Driver()),
	)
	return &app{cfg: cfg, logger: logger, store: st, metrics: m, service: svc}, nil
}

// callerFlags holds the identity flags shared by commands acting on an
// organization.
type callerFlags struct {
	user string
	org  string
	role string
}

func (f *callerFlags) register(cmd *cobra.Command, defaultRole core.Role) {
	cmd.Flags().StringVar(&f.org, "org", "", "organization ID to act in (required)")
	cmd.Flags().StringVar(&f.user, "user", "cli", "user ID recorded in the audit log")
	cmd.Flags().StringVar(&f.role, "role", string(defaultRole), "role to act as (admin, manager, member)")
	_ = cmd.MarkFlagRequired("org")
}

func (f *callerFlags) caller() (core.Caller, error) {
	c := core.Caller{
		UserID:         f.user,
		OrganizationID: f.org,
		Role:           core.Role(strings.ToLower(strings.TrimSpace(f.role))),
	}
	if err := c.Validate(); err != nil {
		return core.Caller{}, err
	}
	return c, nil
}
