package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Row is a single-row result
type Row interface {
	Scan(dest ...any) error
}

// Rows is a multi-row result; callers must Close it
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
}

// Runner executes Postgres-dialect SQL ($n placeholders) against a pool or a transaction
type Runner interface {
	Query(ctx context.Context, sql string, args ...any) (Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) Row
	Exec(ctx context.Context, sql string, args ...any) (int64, error)
}

// Store is a Runner that can also open transactions
type Store interface {
	Runner
	// InTx runs fn inside one transaction, committing when fn returns nil and
	// rolling back on error or panic.
	InTx(ctx context.Context, fn func(Runner) error) error
	Ping(ctx context.Context) error
	Close()
}

// IsNoRows reports whether err is the driver's "no rows" sentinel
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows)
}

// ---- pgx ----

type pgxQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type pgxRunner struct {
	q pgxQuerier
}

func (r pgxRunner) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r pgxRunner) QueryRow(ctx context.Context, sql string, args ...any) Row {
	return r.q.QueryRow(ctx, sql, args...)
}

func (r pgxRunner) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	tag, err := r.q.Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// PgxStore is the pgxpool-backed Store
type PgxStore struct {
	pgxRunner
	pool *pgxpool.Pool
}

// NewPgxStore wraps a pool
func NewPgxStore(pool *pgxpool.Pool) *PgxStore {
	return &PgxStore{pgxRunner: pgxRunner{q: pool}, pool: pool}
}

func (s *PgxStore) InTx(ctx context.Context, fn func(Runner) error) (err error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if err = fn(pgxRunner{q: tx}); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *PgxStore) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *PgxStore) Close() { s.pool.Close() }

// ---- database/sql ----

type sqlQuerier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type sqlRows struct {
	*sql.Rows
}

func (r sqlRows) Close() { _ = r.Rows.Close() }

type sqlRunner struct {
	q sqlQuerier
}

func (r sqlRunner) Query(ctx context.Context, query string, args ...any) (Rows, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return sqlRows{rows}, nil
}

func (r sqlRunner) QueryRow(ctx context.Context, query string, args ...any) Row {
	return r.q.QueryRowContext(ctx, query, args...)
}

func (r sqlRunner) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// SQLStore is the database/sql-backed Store (lib/pq in production, sqlmock in tests)
type SQLStore struct {
	sqlRunner
	db *sql.DB
}

// NewSQLStore wraps an open *sql.DB
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{sqlRunner: sqlRunner{q: db}, db: db}
}

func (s *SQLStore) InTx(ctx context.Context, fn func(Runner) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(sqlRunner{q: tx}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *SQLStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLStore) Close() { _ = s.db.Close() }
