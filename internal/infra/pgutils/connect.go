package pgutils

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
)

// ErrConnectionExhausted is returned by ConnectWithRetry once every attempt
// has failed. It is an infrastructure signal (degraded-mode trigger), never a
// caller-facing error.
var ErrConnectionExhausted = errors.New("connection attempts exhausted")

func OpenDB(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open connection: %w", err)
	}

	err = db.PingContext(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return db, nil
}

// ConnectWithRetry dials the database up to maxAttempts times, doubling the
// delay between attempts from backoff up to backoffCap. Each individual
// attempt is bounded by timeout. It returns the handle and the number of
// attempts consumed.
func ConnectWithRetry(
	ctx context.Context,
	dsn string,
	maxAttempts int,
	backoff, backoffCap, timeout time.Duration,
) (*sql.DB, int, error) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error

	delay := backoff

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		db, err := OpenDB(attemptCtx, dsn)
		cancel()

		if err == nil {
			return db, attempt, nil
		}

		lastErr = err

		slog.Warn("database connect failed",
			"attempt", attempt,
			"max_attempts", maxAttempts,
			"next_backoff", delay,
			"error", err,
		)

		if attempt == maxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return nil, attempt, fmt.Errorf("connect canceled: %w", ctx.Err())
		case <-time.After(delay):
		}

		delay *= 2
		if delay > backoffCap {
			delay = backoffCap
		}
	}

	return nil, maxAttempts, fmt.Errorf("%w after %d attempts: %v", ErrConnectionExhausted, maxAttempts, lastErr)
}
