package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Bouza1/cloned-it/internal/app"
	"github.com/Bouza1/cloned-it/internal/config"
	"github.com/Bouza1/cloned-it/internal/observability"
	"github.com/Bouza1/cloned-it/internal/repository"
	"github.com/Bouza1/cloned-it/internal/service"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "cloned-it",
		Short:        "Session-backed web application backend",
		SilenceUsage: true,
	}
	cmd.AddCommand(newServeCommand(), newSweepCommand())
	return cmd
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := observability.NewLogger(cfg)
			a, err := app.New(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			return a.Run(cmd.Context())
		},
	}
}

// sweep runs the inactivity cleanup once and exits; intended to be invoked
// on a fixed external schedule, not by request traffic.
func newSweepCommand() *cobra.Command {
	var retention time.Duration
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Delete sessions inactive beyond the retention window",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := observability.NewLogger(cfg)

			client, err := repository.NewRedisClient(cfg.RedisURL)
			if err != nil {
				return err
			}
			defer client.Close()
			store := repository.NewRedisSessionStore(client, "")

			sessions := service.NewManager(store, service.NewSystemClock(), observability.NewAuditLogger(logger), logger, service.ManagerConfig{
				TTL:            cfg.SessionTTL,
				Retention:      cfg.SessionRetention,
				SweepBatchSize: cfg.SweepBatchSize,
			})

			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
			defer cancel()
			deleted, err := sessions.Sweep(ctx, retention)
			if err != nil {
				return fmt.Errorf("sweep: %w (deleted %d before failure)", err, deleted)
			}
			logger.Info("sweep complete", "deleted", deleted)
			return nil
		},
	}
	cmd.Flags().DurationVar(&retention, "retention", 0, "inactivity window override (defaults to SESSION_RETENTION)")
	return cmd
}
