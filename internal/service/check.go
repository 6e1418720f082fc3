package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/AxmedStark/PekSeries-Telegram-Bot/internal/clock"
	"github.com/AxmedStark/PekSeries-Telegram-Bot/internal/config"
	"github.com/AxmedStark/PekSeries-Telegram-Bot/internal/domain"
)

// CheckService runs one update check cycle: snapshot every subscription,
// fetch the latest episode once per distinct show, notify every subscriber
// whose cursor differs from it and advance the cursor.
type CheckService struct {
	store     SubscriptionStore
	catalog   Catalog
	notifier  Notifier
	publisher Publisher
	sleeper   clock.Sleeper
	logger    *slog.Logger
	config    config.CheckerConfig
}

func NewCheckService(
	store SubscriptionStore,
	catalog Catalog,
	notifier Notifier,
	publisher Publisher,
	sleeper clock.Sleeper,
	logger *slog.Logger,
	cfg config.CheckerConfig,
) *CheckService {
	return &CheckService{
		store:     store,
		catalog:   catalog,
		notifier:  notifier,
		publisher: publisher,
		sleeper:   sleeper,
		logger:    logger.With("component", "checker"),
		config:    cfg,
	}
}

// Check returns an error only for failures that invalidate the whole cycle
// (store unavailable, context cancelled, a notification that could not be
// attempted). Missing catalog data and failed deliveries are counted in the
// stats.
func (s *CheckService) Check(ctx context.Context) (*domain.CycleStats, error) {
	startTime := time.Now()

	subs, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}

	showIDs := distinctShows(subs)
	stats := &domain.CycleStats{
		Subscriptions: len(subs),
		Shows:         len(showIDs),
	}

	s.logger.Info("starting check",
		"subscriptions", stats.Subscriptions,
		"shows", stats.Shows,
	)

	latest, err := s.fetchLatest(ctx, showIDs, stats)
	if err != nil {
		return stats, fmt.Errorf("fetch latest episodes: %w", err)
	}

	releases, err := s.dispatch(ctx, subs, latest, stats)
	if err != nil {
		return stats, err
	}

	s.publish(ctx, releases)

	stats.Duration = time.Since(startTime)

	s.logger.Info("check completed",
		"fetched", stats.Fetched,
		"missing", stats.Missing,
		"notified", stats.Notified,
		"failed", stats.Failed,
		"skipped", stats.Skipped,
		"duration", stats.Duration,
	)

	return stats, nil
}

// fetchLatest queries the catalog sequentially, pausing FetchDelay between
// successive shows. Shows without data are left out of the result.
func (s *CheckService) fetchLatest(ctx context.Context, showIDs []int64, stats *domain.CycleStats) (map[int64]domain.Episode, error) {
	latest := make(map[int64]domain.Episode, len(showIDs))

	for i, showID := range showIDs {
		if i > 0 {
			if err := s.sleeper.Sleep(ctx, s.config.FetchDelay); err != nil {
				return nil, err
			}
		}

		ep, ok := s.fetchOne(ctx, showID)
		if !ok {
			stats.Missing++
			continue
		}

		stats.Fetched++
		latest[showID] = ep
	}

	return latest, nil
}

func (s *CheckService) fetchOne(ctx context.Context, showID int64) (ep domain.Episode, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("episode fetch panicked", "show_id", showID, "panic", r)
			ep, ok = domain.Episode{}, false
		}
	}()

	ep, ok = s.catalog.LatestEpisode(ctx, showID)
	if !ok {
		s.logger.Debug("no episode data", "show_id", showID)
	}
	return ep, ok
}

func (s *CheckService) dispatch(
	ctx context.Context,
	subs []domain.Subscription,
	latest map[int64]domain.Episode,
	stats *domain.CycleStats,
) ([]*domain.Release, error) {
	var releases []*domain.Release
	byShow := make(map[int64]*domain.Release)

	for _, sub := range subs {
		if err := ctx.Err(); err != nil {
			return releases, fmt.Errorf("dispatch: %w", err)
		}

		ep, ok := latest[sub.ShowID]
		if !ok {
			continue
		}

		// Identifiers are compared for inequality only; upstream ids are not
		// assumed to grow.
		if ep.ID == sub.LastEpisodeID {
			stats.Skipped++
			continue
		}

		err := s.notifier.Notify(ctx, sub.UserID, sub.ShowName, ep)
		if errors.Is(err, domain.ErrNotSent) {
			// Nothing reached the user; the cursor stays so the next cycle retries.
			return releases, fmt.Errorf("dispatch user %d show %d: %w", sub.UserID, sub.ShowID, err)
		}

		release, ok := byShow[sub.ShowID]
		if !ok {
			release = &domain.Release{ShowID: sub.ShowID, ShowName: sub.ShowName, Episode: ep}
			byShow[sub.ShowID] = release
			releases = append(releases, release)
		}

		if err != nil {
			stats.Failed++
			s.logger.Warn("notification failed",
				"user_id", sub.UserID,
				"show_id", sub.ShowID,
				"episode_id", ep.ID,
				"error", err,
			)
		} else {
			stats.Notified++
			release.Notified++
		}

		// The cursor follows every attempt, delivered or not.
		if err := s.store.AdvanceCursor(ctx, sub.UserID, sub.ShowID, ep.ID); err != nil {
			return releases, fmt.Errorf("advance cursor user %d show %d: %w", sub.UserID, sub.ShowID, err)
		}
	}

	return releases, nil
}

func (s *CheckService) publish(ctx context.Context, releases []*domain.Release) {
	if s.publisher == nil {
		return
	}

	for _, release := range releases {
		if err := s.publisher.Publish(ctx, release); err != nil {
			s.logger.Warn("publish release failed",
				"show_id", release.ShowID,
				"episode_id", release.Episode.ID,
				"error", err,
			)
		}
	}
}

// distinctShows keeps the first-seen order of the snapshot.
func distinctShows(subs []domain.Subscription) []int64 {
	seen := make(map[int64]struct{}, len(subs))
	ids := make([]int64, 0, len(subs))
	for _, sub := range subs {
		if _, ok := seen[sub.ShowID]; ok {
			continue
		}
		seen[sub.ShowID] = struct{}{}
		ids = append(ids, sub.ShowID)
	}
	return ids
}
