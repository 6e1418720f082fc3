package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/AxmedStark/PekSeries-Telegram-Bot/internal/clock"
	"github.com/AxmedStark/PekSeries-Telegram-Bot/internal/scheduler"
)

func newCheckCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Run a single update check cycle and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg, logger, err := loadConfig(ctx, *configPath)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			c, err := build(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer c.Close()

			stats, err := scheduler.NewScheduler(c.checker, clock.Real{}, cfg.Checker, logger).RunOnce(ctx)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(),
				"subscriptions=%d shows=%d fetched=%d missing=%d notified=%d failed=%d skipped=%d duration=%s\n",
				stats.Subscriptions, stats.Shows, stats.Fetched, stats.Missing,
				stats.Notified, stats.Failed, stats.Skipped, stats.Duration,
			)
			return nil
		},
	}
}
