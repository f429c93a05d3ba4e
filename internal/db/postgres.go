package db

import (
	"context"
	"fmt"
	"time"

	"groundtransfer/opsdesk/internal/logging"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// InitPostgres opens the sqlx handle used for raw queries and health checks.
// Postgres may still be starting when the service boots, so connection is retried.
func InitPostgres(ctx context.Context, dsn string) (*sqlx.DB, error) {
	var (
		db  *sqlx.DB
		err error
	)

	for i := 0; i < 10; i++ {
		db, err = sqlx.ConnectContext(ctx, "postgres", dsn)
		if err == nil {
			return db, nil
		}
		logging.Warn("Postgres not ready, retrying", "attempt", i+1, "error", err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
	return nil, fmt.Errorf("failed to connect to postgres after retries: %w", err)
}
