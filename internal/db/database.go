package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"

	"github.com/GoblinVrc/service-request-backend/internal/config"
	"github.com/GoblinVrc/service-request-backend/internal/logging"
)

// Open connects with retry using the driver named in opts, returning a Store.
func Open(ctx context.Context, opts config.DatabaseOptions) (Store, error) {
	switch opts.Driver {
	case config.DriverPostgres:
		db, err := OpenSQL(ctx, opts.DSN(), opts.MaxRetries, time.Second)
		if err != nil {
			return nil, err
		}
		return NewSQLStore(db), nil
	default:
		pool, err := NewDatabaseWithRetry(ctx, opts.DSN(), opts.MaxRetries, time.Second)
		if err != nil {
			return nil, err
		}
		return NewPgxStore(pool), nil
	}
}

// NewDatabaseWithRetry creates a pgx pool, retrying with exponential backoff for
// databases that cold-start (serverless Postgres).
func NewDatabaseWithRetry(ctx context.Context, dsn string, maxRetries int, initialDelay time.Duration) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid database DSN: %w", err)
	}

	poolConfig.MaxConns = 30
	poolConfig.MinConns = 0
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	var pool *pgxpool.Pool
	err = withRetry(ctx, "pgx", maxRetries, initialDelay, func(ctx context.Context) error {
		p, err := pgxpool.NewWithConfig(ctx, poolConfig)
		if err != nil {
			return fmt.Errorf("failed to create connection pool: %w", err)
		}
		pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := p.Ping(pingCtx); err != nil {
			p.Close()
			return fmt.Errorf("failed to ping database: %w", err)
		}
		pool = p
		return nil
	}, map[string]interface{}{
		"user": poolConfig.ConnConfig.User,
		"host": poolConfig.ConnConfig.Host,
		"port": poolConfig.ConnConfig.Port,
	})
	if err != nil {
		return nil, err
	}
	return pool, nil
}

// OpenSQL opens a database/sql handle on the lib/pq driver with the same retry policy.
func OpenSQL(ctx context.Context, dsn string, maxRetries int, initialDelay time.Duration) (*sql.DB, error) {
	connector, err := pq.NewConnector(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to build pq connector: %w", err)
	}

	var db *sql.DB
	err = withRetry(ctx, "postgres", maxRetries, initialDelay, func(ctx context.Context) error {
		d := sql.OpenDB(connector)
		pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := d.PingContext(pingCtx); err != nil {
			_ = d.Close()
			return fmt.Errorf("failed to ping database: %w", err)
		}
		db = d
		return nil
	}, nil)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return db, nil
}

func withRetry(ctx context.Context, driver string, maxRetries int, initialDelay time.Duration, connect func(context.Context) error, fields map[string]interface{}) error {
	if maxRetries < 1 {
		maxRetries = 1
	}
	logFields := func(extra map[string]interface{}) map[string]interface{} {
		out := map[string]interface{}{"driver": driver}
		for k, v := range fields {
			out[k] = v
		}
		for k, v := range extra {
			out[k] = v
		}
		return out
	}

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		logging.LogKV("info", "db_connect_attempt", logFields(map[string]interface{}{"attempt": attempt, "max": maxRetries}))

		lastErr = connect(ctx)
		if lastErr == nil {
			logging.LogKV("info", "db_connected", logFields(map[string]interface{}{"attempt": attempt}))
			return nil
		}
		logging.LogKV("warn", "db_connect_failed", logFields(map[string]interface{}{"attempt": attempt, "error": lastErr.Error()}))

		if attempt < maxRetries {
			// 1s, 2s, 4s, 8s, 16s
			delay := initialDelay * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return fmt.Errorf("failed to connect to database after %d attempts: %w", maxRetries, lastErr)
}
