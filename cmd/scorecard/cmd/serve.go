package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/hugo-lorenzo-mato/scorecard/internal/api"
	"github.com/hugo-lorenzo-mato/scorecard/internal/logging"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long: `Start the scorecard REST API.

Callers identify themselves with the X-User-ID, X-Organization-ID and
X-User-Role headers; authentication is expected in front of the server.

Examples:
  # Start with the configured address (default 127.0.0.1:8080)
  scorecard serve

  # Listen on every interface, port 3000
  scorecard serve --host 0.0.0.0 --port 3000`,
	RunE: runServe,
}

// dbProbeInterval is how often serve checks the database connection.
var dbProbeInterval = 30 * time.Second

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "", "Host address to bind to (overrides server.host)")
	serveCmd.Flags().IntP("port", "p", 0, "Port to listen on (overrides server.port)")

	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
}

func runServe(_ *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, os.Stdout, true)
	if err != nil {
		return err
	}
	defer a.Close()

	opts := []api.ServerOption{
		api.WithLogger(a.logger.WithComponent("api")),
		api.WithHealthCheck(a.store.Ping),
		api.WithAllowedOrigins(a.cfg.Server.CORSOrigins),
		api.WithRequestTimeout(a.cfg.Server.RequestTimeoutDuration()),
		api.WithShutdownGrace(a.cfg.Server.ShutdownGraceDuration()),
	}
	if a.metrics != nil {
		opts = append(opts, api.WithMetrics(a.metrics))
	}
	server := api.NewServer(a.service, opts...)

	a.logger.Info("server starting",
		slog.String("addr", a.cfg.Server.Addr()),
		slog.String("database", a.store.Driver()),
		slog.Bool("metrics", a.metrics != nil),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.ListenAndServe(gctx, a.cfg.Server.Addr()); err != nil {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		probeDatabase(gctx, a.logger, a.store.Ping)
		return nil
	})

	err = g.Wait()
	a.logger.Info("server stopped")
	return err
}

// probeDatabase logs connectivity changes until ctx ends.
func probeDatabase(ctx context.Context, logger *logging.Logger, ping func(context.Context) error) {
	ticker := time.NewTicker(dbProbeInterval)
	defer ticker.Stop()

	healthy := true
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := ping(pctx)
			cancel()
			switch {
			case err != nil && healthy:
				logger.Error("database unreachable", slog.String("error", err.Error()))
				healthy = false
			case err == nil && !healthy:
				logger.Info("database reachable again")
				healthy = true
			}
		}
	}
}
