package bot

import (
	"context"

	"github.com/AxmedStark/PekSeries-Telegram-Bot/internal/domain"
)

type SubscriptionStore interface {
	InsertIfAbsent(ctx context.Context, userID, showID int64, showName string) (bool, error)
	ListForUser(ctx context.Context, userID int64) ([]domain.Subscription, error)
	Delete(ctx context.Context, userID int64, showName string) (bool, error)
	DeleteShow(ctx context.Context, userID, showID int64) (bool, error)
	Stats(ctx context.Context) (domain.Stats, error)
}

type UserStore interface {
	Upsert(ctx context.Context, user domain.User) error
}

type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type Catalog interface {
	Resolve(ctx context.Context, query string) (domain.Show, bool)
	NextEpisode(ctx context.Context, showID int64) (domain.Episode, bool)
}
