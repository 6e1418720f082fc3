package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"github.com/AxmedStark/PekSeries-Telegram-Bot/internal/clock"
	"github.com/AxmedStark/PekSeries-Telegram-Bot/internal/config"
	"github.com/AxmedStark/PekSeries-Telegram-Bot/internal/domain"
	"github.com/AxmedStark/PekSeries-Telegram-Bot/internal/notifier"
	"github.com/AxmedStark/PekSeries-Telegram-Bot/internal/service/mocks"
)

type CheckServiceTestSuite struct {
	suite.Suite
	ctrl *gomock.Controller

	store     *mocks.MockSubscriptionStore
	catalog   *mocks.MockCatalog
	notifier  *mocks.MockNotifier
	publisher *mocks.MockPublisher
	sleeper   *clock.Fake

	service *CheckService
	cfg     config.CheckerConfig
	logger  *slog.Logger
}

func (s *CheckServiceTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())

	s.store = mocks.NewMockSubscriptionStore(s.ctrl)
	s.catalog = mocks.NewMockCatalog(s.ctrl)
	s.notifier = mocks.NewMockNotifier(s.ctrl)
	s.publisher = mocks.NewMockPublisher(s.ctrl)
	s.sleeper = &clock.Fake{}

	s.cfg = config.CheckerConfig{
		Interval:   15 * time.Minute,
		FetchDelay: 500 * time.Millisecond,
	}

	s.logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	s.service = NewCheckService(
		s.store,
		s.catalog,
		s.notifier,
		s.publisher,
		s.sleeper,
		s.logger,
		s.cfg,
	)
}

func (s *CheckServiceTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestCheckServiceTestSuite(t *testing.T) {
	suite.Run(t, new(CheckServiceTestSuite))
}

func episode(id int64) domain.Episode {
	return domain.Episode{ID: id, Season: 1, Number: int(id % 100), Title: "Pilot"}
}

func (s *CheckServiceTestSuite) TestCheck_NotifiesOncePerEpisode() {
	ctx := context.Background()

	// first cycle: never notified, latest is 900
	s.store.EXPECT().ListAll(ctx).Return([]domain.Subscription{
		{UserID: 1, ShowID: 42, ShowName: "Lost", LastEpisodeID: 0},
	}, nil)
	s.catalog.EXPECT().LatestEpisode(ctx, int64(42)).Return(episode(900), true)
	s.notifier.EXPECT().Notify(ctx, int64(1), "Lost", episode(900)).Return(nil)
	s.store.EXPECT().AdvanceCursor(ctx, int64(1), int64(42), int64(900)).Return(nil)
	s.publisher.EXPECT().Publish(ctx, &domain.Release{
		ShowID: 42, ShowName: "Lost", Episode: episode(900), Notified: 1,
	}).Return(nil)

	stats, err := s.service.Check(ctx)
	s.NoError(err)
	s.Equal(1, stats.Notified)
	s.Equal(0, stats.Skipped)

	// second cycle: nothing new
	s.store.EXPECT().ListAll(ctx).Return([]domain.Subscription{
		{UserID: 1, ShowID: 42, ShowName: "Lost", LastEpisodeID: 900},
	}, nil)
	s.catalog.EXPECT().LatestEpisode(ctx, int64(42)).Return(episode(900), true)

	stats, err = s.service.Check(ctx)
	s.NoError(err)
	s.Equal(0, stats.Notified)
	s.Equal(1, stats.Skipped)

	// third cycle: a new episode aired
	s.store.EXPECT().ListAll(ctx).Return([]domain.Subscription{
		{UserID: 1, ShowID: 42, ShowName: "Lost", LastEpisodeID: 900},
	}, nil)
	s.catalog.EXPECT().LatestEpisode(ctx, int64(42)).Return(episode(901), true)
	s.notifier.EXPECT().Notify(ctx, int64(1), "Lost", episode(901)).Return(nil)
	s.store.EXPECT().AdvanceCursor(ctx, int64(1), int64(42), int64(901)).Return(nil)
	s.publisher.EXPECT().Publish(ctx, gomock.Any()).Return(nil)

	stats, err = s.service.Check(ctx)
	s.NoError(err)
	s.Equal(1, stats.Notified)
}

func (s *CheckServiceTestSuite) TestCheck_OneFetchPerShow() {
	ctx := context.Background()

	s.store.EXPECT().ListAll(ctx).Return([]domain.Subscription{
		{UserID: 1, ShowID: 7, ShowName: "Dark", LastEpisodeID: 0},
		{UserID: 2, ShowID: 7, ShowName: "Dark", LastEpisodeID: 0},
	}, nil)
	s.catalog.EXPECT().LatestEpisode(ctx, int64(7)).Return(episode(70), true).Times(1)
	s.notifier.EXPECT().Notify(ctx, int64(1), "Dark", episode(70)).Return(nil)
	s.notifier.EXPECT().Notify(ctx, int64(2), "Dark", episode(70)).Return(nil)
	s.store.EXPECT().AdvanceCursor(ctx, int64(1), int64(7), int64(70)).Return(nil)
	s.store.EXPECT().AdvanceCursor(ctx, int64(2), int64(7), int64(70)).Return(nil)
	s.publisher.EXPECT().Publish(ctx, &domain.Release{
		ShowID: 7, ShowName: "Dark", Episode: episode(70), Notified: 2,
	}).Return(nil)

	stats, err := s.service.Check(ctx)

	s.NoError(err)
	s.Equal(2, stats.Subscriptions)
	s.Equal(1, stats.Shows)
	s.Equal(1, stats.Fetched)
	s.Equal(2, stats.Notified)
	s.Empty(s.sleeper.Sleeps())
}

func (s *CheckServiceTestSuite) TestCheck_PausesBetweenFetches() {
	ctx := context.Background()

	s.store.EXPECT().ListAll(ctx).Return([]domain.Subscription{
		{UserID: 1, ShowID: 1, ShowName: "A", LastEpisodeID: 10},
		{UserID: 1, ShowID: 2, ShowName: "B", LastEpisodeID: 20},
		{UserID: 2, ShowID: 1, ShowName: "A", LastEpisodeID: 10},
		{UserID: 2, ShowID: 3, ShowName: "C", LastEpisodeID: 30},
	}, nil)
	gomock.InOrder(
		s.catalog.EXPECT().LatestEpisode(ctx, int64(1)).Return(episode(10), true),
		s.catalog.EXPECT().LatestEpisode(ctx, int64(2)).Return(episode(20), true),
		s.catalog.EXPECT().LatestEpisode(ctx, int64(3)).Return(episode(30), true),
	)

	stats, err := s.service.Check(ctx)

	s.NoError(err)
	s.Equal(3, stats.Shows)
	s.Equal(4, stats.Skipped)
	s.Equal([]time.Duration{s.cfg.FetchDelay, s.cfg.FetchDelay}, s.sleeper.Sleeps())
}

func (s *CheckServiceTestSuite) TestCheck_MissingShowIsIsolated() {
	ctx := context.Background()

	s.store.EXPECT().ListAll(ctx).Return([]domain.Subscription{
		{UserID: 1, ShowID: 1, ShowName: "Gone", LastEpisodeID: 5},
		{UserID: 1, ShowID: 2, ShowName: "Broken", LastEpisodeID: 5},
		{UserID: 1, ShowID: 3, ShowName: "Fine", LastEpisodeID: 5},
	}, nil)
	s.catalog.EXPECT().LatestEpisode(ctx, int64(1)).Return(domain.Episode{}, false)
	s.catalog.EXPECT().LatestEpisode(ctx, int64(2)).DoAndReturn(
		func(context.Context, int64) (domain.Episode, bool) {
			panic("unexpected payload")
		},
	)
	s.catalog.EXPECT().LatestEpisode(ctx, int64(3)).Return(episode(6), true)
	s.notifier.EXPECT().Notify(ctx, int64(1), "Fine", episode(6)).Return(nil)
	s.store.EXPECT().AdvanceCursor(ctx, int64(1), int64(3), int64(6)).Return(nil)
	s.publisher.EXPECT().Publish(ctx, gomock.Any()).Return(nil)

	stats, err := s.service.Check(ctx)

	s.NoError(err)
	s.Equal(2, stats.Missing)
	s.Equal(1, stats.Fetched)
	s.Equal(1, stats.Notified)
}

func (s *CheckServiceTestSuite) TestCheck_FailedDeliveryStillAdvancesCursor() {
	ctx := context.Background()

	s.store.EXPECT().ListAll(ctx).Return([]domain.Subscription{
		{UserID: 1, ShowID: 42, ShowName: "Lost", LastEpisodeID: 0},
		{UserID: 2, ShowID: 42, ShowName: "Lost", LastEpisodeID: 0},
	}, nil)
	s.catalog.EXPECT().LatestEpisode(ctx, int64(42)).Return(episode(900), true)
	s.notifier.EXPECT().Notify(ctx, int64(1), "Lost", episode(900)).Return(errors.New("bot was blocked by the user"))
	s.notifier.EXPECT().Notify(ctx, int64(2), "Lost", episode(900)).Return(nil)
	s.store.EXPECT().AdvanceCursor(ctx, int64(1), int64(42), int64(900)).Return(nil)
	s.store.EXPECT().AdvanceCursor(ctx, int64(2), int64(42), int64(900)).Return(nil)
	s.publisher.EXPECT().Publish(ctx, &domain.Release{
		ShowID: 42, ShowName: "Lost", Episode: episode(900), Notified: 1,
	}).Return(nil)

	stats, err := s.service.Check(ctx)

	s.NoError(err)
	s.Equal(1, stats.Failed)
	s.Equal(1, stats.Notified)
}

func (s *CheckServiceTestSuite) TestCheck_UnsentNotificationKeepsCursor() {
	ctx := context.Background()
	refused := fmt.Errorf("%w: rate limit wait: would exceed context deadline", domain.ErrNotSent)

	s.store.EXPECT().ListAll(ctx).Return([]domain.Subscription{
		{UserID: 1, ShowID: 42, ShowName: "Lost", LastEpisodeID: 0},
		{UserID: 2, ShowID: 42, ShowName: "Lost", LastEpisodeID: 0},
		{UserID: 3, ShowID: 42, ShowName: "Lost", LastEpisodeID: 0},
	}, nil)
	s.catalog.EXPECT().LatestEpisode(ctx, int64(42)).Return(episode(900), true)
	s.notifier.EXPECT().Notify(ctx, int64(1), "Lost", episode(900)).Return(nil)
	s.store.EXPECT().AdvanceCursor(ctx, int64(1), int64(42), int64(900)).Return(nil)
	s.notifier.EXPECT().Notify(ctx, int64(2), "Lost", episode(900)).Return(refused)
	// no cursor move for 2, nothing for 3, no release event

	stats, err := s.service.Check(ctx)

	s.ErrorIs(err, domain.ErrNotSent)
	s.ErrorContains(err, "dispatch user 2 show 42")
	s.Equal(1, stats.Notified)
	s.Zero(stats.Failed)
}

type recordingSender struct {
	chats []int64
}

func (r *recordingSender) SendText(ctx context.Context, chatID int64, text string) error {
	r.chats = append(r.chats, chatID)
	return nil
}

func (r *recordingSender) SendPhoto(ctx context.Context, chatID int64, photoURL, caption string) error {
	r.chats = append(r.chats, chatID)
	return nil
}

func (s *CheckServiceTestSuite) TestCheck_SendBudgetExhaustedByDeadline() {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	sender := &recordingSender{}
	dispatcher := notifier.NewDispatcher(sender, 1, slog.New(slog.NewTextHandler(io.Discard, nil)))
	svc := NewCheckService(s.store, s.catalog, dispatcher, s.publisher, s.sleeper, s.logger, s.cfg)

	var subs []domain.Subscription
	for user := int64(1); user <= 5; user++ {
		subs = append(subs, domain.Subscription{UserID: user, ShowID: 42, ShowName: "Lost"})
	}
	s.store.EXPECT().ListAll(gomock.Any()).Return(subs, nil)
	s.catalog.EXPECT().LatestEpisode(gomock.Any(), int64(42)).Return(episode(900), true)
	// one token per second: only the first subscriber fits before the deadline
	s.store.EXPECT().AdvanceCursor(gomock.Any(), int64(1), int64(42), int64(900)).Return(nil)

	stats, err := svc.Check(ctx)

	s.ErrorIs(err, domain.ErrNotSent)
	s.Equal([]int64{1}, sender.chats)
	s.Equal(1, stats.Notified)
	s.Zero(stats.Failed)
}

func (s *CheckServiceTestSuite) TestCheck_ListError() {
	ctx := context.Background()

	s.store.EXPECT().ListAll(ctx).Return(nil, errors.New("connection refused"))

	stats, err := s.service.Check(ctx)

	s.Nil(stats)
	s.ErrorContains(err, "list subscriptions")
}

func (s *CheckServiceTestSuite) TestCheck_AdvanceErrorAbortsCycle() {
	ctx := context.Background()

	s.store.EXPECT().ListAll(ctx).Return([]domain.Subscription{
		{UserID: 1, ShowID: 42, ShowName: "Lost", LastEpisodeID: 0},
		{UserID: 2, ShowID: 42, ShowName: "Lost", LastEpisodeID: 0},
	}, nil)
	s.catalog.EXPECT().LatestEpisode(ctx, int64(42)).Return(episode(900), true)
	s.notifier.EXPECT().Notify(ctx, int64(1), "Lost", episode(900)).Return(nil)
	s.store.EXPECT().AdvanceCursor(ctx, int64(1), int64(42), int64(900)).Return(errors.New("deadlock detected"))

	_, err := s.service.Check(ctx)

	s.ErrorContains(err, "advance cursor user 1 show 42")
}

func (s *CheckServiceTestSuite) TestCheck_StopsWhenSleepInterrupted() {
	ctx := context.Background()
	s.sleeper.Limit = 1

	s.store.EXPECT().ListAll(ctx).Return([]domain.Subscription{
		{UserID: 1, ShowID: 1, ShowName: "A"},
		{UserID: 1, ShowID: 2, ShowName: "B"},
		{UserID: 1, ShowID: 3, ShowName: "C"},
	}, nil)
	s.catalog.EXPECT().LatestEpisode(ctx, int64(1)).Return(episode(10), true)
	s.catalog.EXPECT().LatestEpisode(ctx, int64(2)).Return(episode(20), true)

	_, err := s.service.Check(ctx)

	s.ErrorIs(err, context.Canceled)
}

func (s *CheckServiceTestSuite) TestCheck_PublishErrorIsNotFatal() {
	ctx := context.Background()

	s.store.EXPECT().ListAll(ctx).Return([]domain.Subscription{
		{UserID: 1, ShowID: 42, ShowName: "Lost", LastEpisodeID: 0},
	}, nil)
	s.catalog.EXPECT().LatestEpisode(ctx, int64(42)).Return(episode(900), true)
	s.notifier.EXPECT().Notify(ctx, int64(1), "Lost", episode(900)).Return(nil)
	s.store.EXPECT().AdvanceCursor(ctx, int64(1), int64(42), int64(900)).Return(nil)
	s.publisher.EXPECT().Publish(ctx, gomock.Any()).Return(errors.New("channel closed"))

	stats, err := s.service.Check(ctx)

	s.NoError(err)
	s.Equal(1, stats.Notified)
}

func (s *CheckServiceTestSuite) TestCheck_WithoutPublisher() {
	ctx := context.Background()
	service := NewCheckService(s.store, s.catalog, s.notifier, nil, s.sleeper, s.logger, s.cfg)

	s.store.EXPECT().ListAll(ctx).Return([]domain.Subscription{
		{UserID: 1, ShowID: 42, ShowName: "Lost", LastEpisodeID: 0},
	}, nil)
	s.catalog.EXPECT().LatestEpisode(ctx, int64(42)).Return(episode(900), true)
	s.notifier.EXPECT().Notify(ctx, int64(1), "Lost", episode(900)).Return(nil)
	s.store.EXPECT().AdvanceCursor(ctx, int64(1), int64(42), int64(900)).Return(nil)

	stats, err := service.Check(ctx)

	s.NoError(err)
	s.Equal(1, stats.Notified)
}

func (s *CheckServiceTestSuite) TestCheck_EmptySnapshot() {
	ctx := context.Background()

	s.store.EXPECT().ListAll(ctx).Return(nil, nil)

	stats, err := s.service.Check(ctx)

	s.NoError(err)
	s.Zero(stats.Subscriptions)
	s.Zero(stats.Shows)
}
