package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/sethvargo/go-retry"
)

// Connect opens and pings the database, retrying with a Fibonacci backoff
// while it comes up.
func Connect(ctx context.Context, dsn string, maxRetries uint64, logger *slog.Logger) (*sqlx.DB, error) {
	var db *sqlx.DB

	backoff := retry.WithMaxRetries(maxRetries, retry.NewFibonacci(500*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		conn, err := sqlx.ConnectContext(ctx, "postgres", dsn)
		if err != nil {
			logger.Warn("database not ready", "error", err)
			return retry.RetryableError(err)
		}
		db = conn
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return db, nil
}
