package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/AxmedStark/PekSeries-Telegram-Bot/internal/clock"
	"github.com/AxmedStark/PekSeries-Telegram-Bot/internal/config"
	"github.com/AxmedStark/PekSeries-Telegram-Bot/internal/domain"
)

// Checker defines the interface for a single update check cycle.
type Checker interface {
	Check(ctx context.Context) (*domain.CycleStats, error)
}

type State int

const (
	StateChecking State = iota
	StateSleeping
)

func (s State) String() string {
	switch s {
	case StateChecking:
		return "checking"
	case StateSleeping:
		return "sleeping"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type Scheduler struct {
	checker       Checker
	sleeper       clock.Sleeper
	interval      time.Duration
	retryInterval time.Duration
	cycleTimeout  time.Duration
	logger        *slog.Logger
}

func NewScheduler(checker Checker, sleeper clock.Sleeper, cfg config.CheckerConfig, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		checker:       checker,
		sleeper:       sleeper,
		interval:      cfg.Interval,
		retryInterval: cfg.RetryInterval,
		cycleTimeout:  cfg.CycleTimeout,
		logger:        logger.With("component", "scheduler"),
	}
}

// Run alternates between checking and sleeping until ctx is cancelled or the
// sleeper refuses to sleep. A successful cycle is followed by the regular
// interval, a failed one by the retry interval.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started",
		"interval", s.interval,
		"retry_interval", s.retryInterval,
	)

	state := StateChecking
	var wait time.Duration

	for {
		switch state {
		case StateChecking:
			wait = s.interval
			if _, err := s.RunOnce(ctx); err != nil {
				if ctx.Err() != nil {
					s.logger.Info("scheduler stopped")
					return ctx.Err()
				}
				wait = s.retryInterval
			}
			state = StateSleeping

		case StateSleeping:
			s.logger.Debug("sleeping", "duration", wait)
			if err := s.sleeper.Sleep(ctx, wait); err != nil {
				s.logger.Info("scheduler stopped")
				return err
			}
			state = StateChecking
		}
	}
}

// RunOnce runs a single cycle. A panic inside the cycle is returned as an
// error.
func (s *Scheduler) RunOnce(ctx context.Context) (stats *domain.CycleStats, err error) {
	if s.cycleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cycleTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			stats, err = nil, fmt.Errorf("check cycle panicked: %v", r)
			s.logger.Error("check failed", "error", err)
		}
	}()

	stats, err = s.checker.Check(ctx)
	if err != nil {
		s.logger.Error("check failed", "error", err)
		return stats, err
	}

	return stats, nil
}
