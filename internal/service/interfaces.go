package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"github.com/AxmedStark/PekSeries-Telegram-Bot/internal/domain"
)

type SubscriptionStore interface {
	ListAll(ctx context.Context) ([]domain.Subscription, error)
	AdvanceCursor(ctx context.Context, userID, showID, episodeID int64) error
}

type Catalog interface {
	LatestEpisode(ctx context.Context, showID int64) (domain.Episode, bool)
}

type Notifier interface {
	Notify(ctx context.Context, userID int64, showName string, episode domain.Episode) error
}

type Publisher interface {
	Publish(ctx context.Context, release *domain.Release) error
	Close() error
}
