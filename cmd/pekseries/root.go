package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/AxmedStark/PekSeries-Telegram-Bot/internal/config"
	"github.com/AxmedStark/PekSeries-Telegram-Bot/internal/storage/postgres"
)

const dbConnectRetries = 5

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "pekseries",
		Short: "Telegram bot that announces new episodes of TV shows",
		Long: `PekSeries lets Telegram users subscribe to TV shows from the TVMaze
catalog and sends them a message whenever a new episode airs.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config file (environment only when empty)")

	root.AddCommand(
		newServeCmd(&configPath),
		newMigrateCmd(&configPath),
		newCheckCmd(&configPath),
	)

	return root
}

// loadConfig loads the configuration and builds the logger it asks for.
func loadConfig(ctx context.Context, path string) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(ctx, path)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, setupLogger(cfg.LogLevel), nil
}

func openDB(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sqlx.DB, error) {
	db, err := postgres.Connect(ctx, cfg.Database.DSN(), dbConnectRetries, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("connected to database")
	return db, nil
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}
