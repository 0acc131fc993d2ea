package db

import (
	"context"
	"log/slog"
	"time"

	"github.com/unklstewy/ads-bmap/pkg/adsb"
	"github.com/unklstewy/ads-bmap/pkg/config"
)

// ReconnectWithRetry connects with exponential backoff capped at 60 seconds,
// so the relay can start before the database does.
// maxRetries 0 retries until ctx is cancelled.
func ReconnectWithRetry(ctx context.Context, cfg config.DatabaseConfig, maxRetries int, initialDelay time.Duration, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}

	retry := adsb.DefaultRetryConfig()
	retry.MaxRetries = maxRetries - 1
	if maxRetries <= 0 {
		retry.MaxRetries = -1
	}
	retry.InitialDelay = initialDelay
	retry.OnRetry = func(attempt int, err error, delay time.Duration) {
		logger.Warn("database connection failed", "attempt", attempt, "error", err, "retry_in", delay)
	}

	db, err := adsb.RetryWithBackoffResult(ctx, retry, func() (*DB, error) {
		return Connect(ctx, cfg)
	})
	if err != nil {
		return nil, err
	}
	logger.Info("database connected", "host", cfg.Host, "database", cfg.Database)
	return db, nil
}

// EnsureConnection checks if the database connection is alive and reconnects if needed.
func EnsureConnection(ctx context.Context, db *DB, cfg config.DatabaseConfig, logger *slog.Logger) (*DB, error) {
	if db == nil {
		return ReconnectWithRetry(ctx, cfg, 3, time.Second, logger)
	}
	if HealthCheck(ctx, db) {
		return db, nil
	}

	db.Close()
	return ReconnectWithRetry(ctx, cfg, 3, time.Second, logger)
}

// HealthCheck reports whether the database answers a trivial query.
func HealthCheck(ctx context.Context, db *DB) bool {
	if db == nil {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return false
	}
	return result == 1
}
