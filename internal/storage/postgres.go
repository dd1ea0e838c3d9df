// Package storage provides persistent storage for the live VATSIM tables,
// sector occupancy, and the summary/archive tables.
package storage

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Config holds PostgreSQL connection settings.
type Config struct {
	URL              string
	PoolSize         int32
	MaxOverflow      int32
	StatementTimeout time.Duration
	TxRetries        uint64
}

// DB wraps a PostgreSQL connection pool for the tracker's tables.
type DB struct {
	pool      *pgxpool.Pool
	txRetries uint64
}

// Querier is satisfied by both *pgxpool.Pool and pgx.Tx, so store methods
// can run standalone or inside a caller's transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Open opens a connection pool to PostgreSQL.
func Open(ctx context.Context, cfg Config) (*DB, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}

	poolCfg.MaxConns = cfg.PoolSize + cfg.MaxOverflow
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute
	if cfg.StatementTimeout > 0 {
		poolCfg.ConnConfig.RuntimeParams["statement_timeout"] =
			fmt.Sprintf("%d", cfg.StatementTimeout.Milliseconds())
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	retries := cfg.TxRetries
	if retries == 0 {
		retries = 3
	}
	return &DB{pool: pool, txRetries: retries}, nil
}

// Close closes the connection pool.
func (d *DB) Close() {
	d.pool.Close()
}

// Ping checks database liveness for the health endpoint.
func (d *DB) Ping(ctx context.Context) error {
	return d.pool.Ping(ctx)
}

// Pool returns the underlying connection pool for read-only queries.
func (d *DB) Pool() *pgxpool.Pool {
	return d.pool
}

// WithTx runs fn in a transaction, retrying serialization failures and
// deadlocks with jitter. Any other error rolls back and returns.
func (d *DB) WithTx(ctx context.Context, fn func(tx Querier) error) error {
	run := func() error {
		tx, err := d.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin: %w", err)
		}
		if err := fn(tx); err != nil {
			_ = tx.Rollback(ctx)
			if isRetryable(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		if err := tx.Commit(ctx); err != nil {
			if isRetryable(err) {
				return err
			}
			return backoff.Permanent(fmt.Errorf("commit: %w", err))
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 100*time.Millisecond + time.Duration(rand.Intn(100))*time.Millisecond
	bo.MaxInterval = 2 * time.Second
	bo.MaxElapsedTime = 0

	return backoff.Retry(run, backoff.WithContext(backoff.WithMaxRetries(bo, d.txRetries), ctx))
}

// isRetryable reports transient errors worth another attempt:
// serialization failure (40001) and deadlock detected (40P01).
func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

// IsFatal reports errors that rerunning cannot fix: SQL syntax or schema
// errors (class 42), missing database or schema (3D, 3F) and unsupported
// features (0A). Connection and timeout errors are not fatal; the next run
// may find the database back.
func IsFatal(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || len(pgErr.Code) < 2 {
		return false
	}
	switch pgErr.Code[:2] {
	case "42", "3D", "3F", "0A":
		return true
	}
	return false
}
