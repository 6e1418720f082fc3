package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/AxmedStark/PekSeries-Telegram-Bot/internal/domain"
)

// SubscriptionStore persists (user, show) subscriptions and their cursors.
// Every method is a single statement; the UNIQUE (user_id, show_id)
// constraint guards the pair under concurrent inserts.
type SubscriptionStore struct {
	db *sqlx.DB
}

func NewSubscriptionStore(db *sqlx.DB) *SubscriptionStore {
	return &SubscriptionStore{db: db}
}

// InsertIfAbsent reports whether a new row was created. An existing pair is
// left untouched.
func (s *SubscriptionStore) InsertIfAbsent(ctx context.Context, userID, showID int64, showName string) (bool, error) {
	query := `
		INSERT INTO subscriptions (user_id, show_id, show_name, last_episode_id)
		VALUES ($1, $2, $3, 0)
		ON CONFLICT (user_id, show_id) DO NOTHING`

	res, err := GetExecutor(ctx, s.db).ExecContext(ctx, query, userID, showID, showName)
	if err != nil {
		return false, fmt.Errorf("insert subscription: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert subscription: %w", err)
	}
	return n > 0, nil
}

func (s *SubscriptionStore) ListForUser(ctx context.Context, userID int64) ([]domain.Subscription, error) {
	query := `
		SELECT user_id, show_id, show_name, last_episode_id
		FROM subscriptions
		WHERE user_id = $1
		ORDER BY show_name`

	var subs []domain.Subscription
	if err := sqlx.SelectContext(ctx, GetExecutor(ctx, s.db), &subs, query, userID); err != nil {
		return nil, fmt.Errorf("list subscriptions for user %d: %w", userID, err)
	}
	return subs, nil
}

// ListAll returns a full snapshot in no particular order.
func (s *SubscriptionStore) ListAll(ctx context.Context) ([]domain.Subscription, error) {
	query := `SELECT user_id, show_id, show_name, last_episode_id FROM subscriptions`

	var subs []domain.Subscription
	if err := sqlx.SelectContext(ctx, GetExecutor(ctx, s.db), &subs, query); err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	return subs, nil
}

func (s *SubscriptionStore) Delete(ctx context.Context, userID int64, showName string) (bool, error) {
	res, err := GetExecutor(ctx, s.db).ExecContext(ctx,
		"DELETE FROM subscriptions WHERE user_id = $1 AND show_name = $2",
		userID, showName,
	)
	if err != nil {
		return false, fmt.Errorf("delete subscription: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete subscription: %w", err)
	}
	return n > 0, nil
}

// DeleteShow removes a subscription by show id, as used by inline buttons.
func (s *SubscriptionStore) DeleteShow(ctx context.Context, userID, showID int64) (bool, error) {
	res, err := GetExecutor(ctx, s.db).ExecContext(ctx,
		"DELETE FROM subscriptions WHERE user_id = $1 AND show_id = $2",
		userID, showID,
	)
	if err != nil {
		return false, fmt.Errorf("delete subscription: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete subscription: %w", err)
	}
	return n > 0, nil
}

// AdvanceCursor overwrites the last notified episode id unconditionally.
func (s *SubscriptionStore) AdvanceCursor(ctx context.Context, userID, showID, episodeID int64) error {
	_, err := GetExecutor(ctx, s.db).ExecContext(ctx,
		"UPDATE subscriptions SET last_episode_id = $1 WHERE user_id = $2 AND show_id = $3",
		episodeID, userID, showID,
	)
	if err != nil {
		return fmt.Errorf("advance cursor: %w", err)
	}
	return nil
}

func (s *SubscriptionStore) Stats(ctx context.Context) (domain.Stats, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM users) AS users,
			(SELECT COUNT(*) FROM subscriptions) AS subscriptions,
			(SELECT COUNT(DISTINCT show_id) FROM subscriptions) AS shows`

	var stats domain.Stats
	if err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &stats, query); err != nil {
		return domain.Stats{}, fmt.Errorf("stats: %w", err)
	}
	return stats, nil
}
