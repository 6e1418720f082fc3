package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/AxmedStark/PekSeries-Telegram-Bot/internal/bot"
	"github.com/AxmedStark/PekSeries-Telegram-Bot/internal/catalog/tvmaze"
	"github.com/AxmedStark/PekSeries-Telegram-Bot/internal/clock"
	"github.com/AxmedStark/PekSeries-Telegram-Bot/internal/config"
	"github.com/AxmedStark/PekSeries-Telegram-Bot/internal/notifier"
	"github.com/AxmedStark/PekSeries-Telegram-Bot/internal/publisher"
	"github.com/AxmedStark/PekSeries-Telegram-Bot/internal/report"
	"github.com/AxmedStark/PekSeries-Telegram-Bot/internal/scheduler"
	"github.com/AxmedStark/PekSeries-Telegram-Bot/internal/service"
	"github.com/AxmedStark/PekSeries-Telegram-Bot/internal/storage/postgres"
	"github.com/AxmedStark/PekSeries-Telegram-Bot/internal/transport/telegram"
)

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bot, the update checker and the admin digest",
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

			return serve(ctx, cfg, logger)
		},
	}
}

// components is everything the serve and check commands share.
type components struct {
	db        *sqlx.DB
	subs      *postgres.SubscriptionStore
	users     *postgres.UserStore
	tx        *postgres.TransactionManager
	catalog   *tvmaze.Client
	telegram  *telegram.Adapter
	publisher *publisher.RabbitMQ
	checker   *service.CheckService
}

func (c *components) Close() {
	if c.publisher != nil {
		c.publisher.Close()
	}
	if c.db != nil {
		c.db.Close()
	}
}

func build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*components, error) {
	c := &components{}

	db, err := openDB(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	c.db = db

	if err := postgres.Migrate(db); err != nil {
		c.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	c.subs = postgres.NewSubscriptionStore(db)
	c.users = postgres.NewUserStore(db)
	c.tx = postgres.NewTransactionManager(db)

	c.catalog = tvmaze.New(tvmaze.Config{
		BaseURL:        cfg.Catalog.BaseURL,
		Timeout:        cfg.Catalog.Timeout,
		CacheSize:      cfg.Catalog.CacheSize,
		CacheTTL:       cfg.Catalog.CacheTTL,
		RequestsPerSec: cfg.Catalog.RequestsPerSec,
	}, logger)

	c.telegram, err = telegram.New(cfg.Telegram, logger)
	if err != nil {
		c.Close()
		return nil, err
	}

	// A nil *RabbitMQ must not reach the checker as a non-nil interface.
	var pub service.Publisher
	if cfg.RabbitMQ.Enabled {
		c.publisher, err = publisher.NewRabbitMQ(cfg.RabbitMQ, logger)
		if err != nil {
			c.Close()
			return nil, err
		}
		pub = c.publisher
	}

	dispatcher := notifier.NewDispatcher(c.telegram, cfg.Telegram.RatePerSec, logger)

	c.checker = service.NewCheckService(
		c.subs,
		c.catalog,
		dispatcher,
		pub,
		clock.Real{},
		logger,
		cfg.Checker,
	)

	return c, nil
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	c, err := build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	sched := scheduler.NewScheduler(c.checker, clock.Real{}, cfg.Checker, logger)
	handler := bot.NewHandler(c.subs, c.users, c.tx, c.catalog, cfg.Telegram.AdminID, logger)

	var reporter *report.Reporter
	if cfg.Report.Enabled {
		reporter, err = report.New(c.subs, c.telegram, cfg.Telegram.AdminID, cfg.Report.Schedule, logger)
		if err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return sched.Run(gctx)
	})
	g.Go(func() error {
		return c.telegram.Serve(gctx, handler)
	})
	if reporter != nil {
		g.Go(func() error {
			return reporter.Start(gctx)
		})
	}

	logger.Info("pekseries started",
		"interval", cfg.Checker.Interval,
		"rabbitmq", cfg.RabbitMQ.Enabled,
		"report", cfg.Report.Enabled,
	)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logger.Info("pekseries stopped")
	return nil
}
