package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AxmedStark/PekSeries-Telegram-Bot/internal/storage/postgres"
)

func newMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, logger, err := loadConfig(ctx, *configPath)
			if err != nil {
				return err
			}
			if cfg.Database.URL == "" && cfg.Database.Host == "" {
				return errors.New("database url or host is required (DATABASE_URL)")
			}

			db, err := openDB(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := postgres.Migrate(db); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}

			logger.Info("migrations applied")
			return nil
		},
	}
}
