// Package report sends the administrator a periodic digest of bot usage.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/AxmedStark/PekSeries-Telegram-Bot/internal/bot"
	"github.com/AxmedStark/PekSeries-Telegram-Bot/internal/domain"
)

type StatsSource interface {
	Stats(ctx context.Context) (domain.Stats, error)
}

type Sender interface {
	SendText(ctx context.Context, chatID int64, text string) error
}

type Reporter struct {
	stats    StatsSource
	sender   Sender
	adminID  int64
	spec     string
	parser   cron.Parser
	schedule cron.Schedule
	logger   *slog.Logger
}

// New parses spec as a standard five field cron expression (descriptors
// such as @daily are accepted too).
func New(stats StatsSource, sender Sender, adminID int64, spec string, logger *slog.Logger) (*Reporter, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

	schedule, err := parser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("parse report schedule %q: %w", spec, err)
	}

	return &Reporter{
		stats:    stats,
		sender:   sender,
		adminID:  adminID,
		spec:     spec,
		parser:   parser,
		schedule: schedule,
		logger:   logger.With("component", "report"),
	}, nil
}

// Next returns the first run strictly after t.
func (r *Reporter) Next(t time.Time) time.Time {
	return r.schedule.Next(t)
}

// Start runs the digest on schedule until ctx is done. Runs never overlap.
func (r *Reporter) Start(ctx context.Context) error {
	c := cron.New(
		cron.WithParser(r.parser),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	c.Schedule(r.schedule, cron.FuncJob(func() {
		if err := r.RunOnce(ctx); err != nil {
			r.logger.Error("digest failed", "error", err)
		}
	}))

	r.logger.Info("report scheduler started", "schedule", r.spec, "next", r.Next(time.Now()))
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()

	r.logger.Info("report scheduler stopped")
	return ctx.Err()
}

func (r *Reporter) RunOnce(ctx context.Context) error {
	stats, err := r.stats.Stats(ctx)
	if err != nil {
		return fmt.Errorf("collect stats: %w", err)
	}

	if err := r.sender.SendText(ctx, r.adminID, Format(stats)); err != nil {
		return fmt.Errorf("send digest: %w", err)
	}

	r.logger.Info("digest sent",
		"users", stats.Users,
		"subscriptions", stats.Subscriptions,
		"shows", stats.Shows,
	)
	return nil
}

func Format(stats domain.Stats) string {
	return "📬 Daily digest\n\n" + bot.FormatStats(stats)
}
