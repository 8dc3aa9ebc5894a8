// Mediatrack - Media Server Webhook Ingestion and Watch Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediatrack

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tomtom215/mediatrack/internal/config"
	"github.com/tomtom215/mediatrack/internal/logging"
	"github.com/tomtom215/mediatrack/internal/metrics"
)

// Store is the catalog store. It runs the same queries against SQLite and
// PostgreSQL; dialect differences are confined to placeholders and error
// classification.
type Store struct {
	conn    *sql.DB
	dialect dialect
	cfg     *config.DatabaseConfig
}

// Open connects to the configured database and applies pending migrations.
func Open(ctx context.Context, cfg *config.DatabaseConfig) (*Store, error) {
	d, err := dialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}

	var dsn string
	switch d.name {
	case driverSQLite:
		dbDir := filepath.Dir(cfg.Path)
		if dbDir != "" && dbDir != "." {
			if err := os.MkdirAll(dbDir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create database directory %s: %w", dbDir, err)
			}
		}
		dsn = sqliteDSN(cfg.Path, cfg.BusyTimeout)
	case driverPostgres:
		dsn = cfg.DSN
	}

	conn, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{conn: conn, dialect: d, cfg: cfg}
	s.configureConnectionPool()

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("failed to connect to %s: %w", d.name, err)
	}

	if err := s.migrate(ctx); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	logging.Info().
		Str("driver", d.name).
		Int("max_open_conns", cfg.MaxOpenConns).
		Msg("Catalog store ready")
	return s, nil
}

// sqliteDSN applies the pragmas to every pooled connection, not just the first.
func sqliteDSN(path string, busyTimeout time.Duration) string {
	if busyTimeout <= 0 {
		busyTimeout = 5 * time.Second
	}
	return fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(%d)",
		path, busyTimeout.Milliseconds())
}

func (s *Store) configureConnectionPool() {
	maxOpen := s.cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 10
	}
	s.conn.SetMaxOpenConns(maxOpen)
	s.conn.SetMaxIdleConns(2)
	s.conn.SetConnMaxLifetime(time.Hour)
	s.conn.SetConnMaxIdleTime(5 * time.Minute)
}

// Close closes the connection pool.
func (s *Store) Close() error {
	if s == nil || s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// Ping verifies the database is reachable and refreshes the pool gauge.
func (s *Store) Ping(ctx context.Context) error {
	if s.conn == nil {
		return fmt.Errorf("database connection is nil")
	}
	metrics.DBOpenConnections.Set(float64(s.conn.Stats().OpenConnections))
	return s.conn.PingContext(ctx)
}

// Driver returns the dialect name ("sqlite" or "postgres").
func (s *Store) Driver() string {
	return s.dialect.name
}

// ensureContext adds a default deadline to contexts without one.
func ensureContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		return context.WithTimeout(context.Background(), 30*time.Second)
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		return context.WithTimeout(ctx, 30*time.Second)
	}
	return ctx, func() {}
}

func (s *Store) exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return s.conn.ExecContext(ctx, s.dialect.rebind(query), args...)
}

func (s *Store) queryRow(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return s.conn.QueryRowContext(ctx, s.dialect.rebind(query), args...)
}

func (s *Store) query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return s.conn.QueryContext(ctx, s.dialect.rebind(query), args...)
}

// insertReturningID runs an INSERT ... RETURNING id statement. A uniqueness
// violation is reported as ErrConflict.
func (s *Store) insertReturningID(ctx context.Context, table, query string, args ...interface{}) (int64, error) {
	var id int64
	err := s.queryRow(ctx, query+" RETURNING id", args...).Scan(&id)
	if err != nil {
		if s.dialect.isUniqueViolation(err) {
			return 0, &conflictError{table: table, err: err}
		}
		return 0, fmt.Errorf("insert into %s: %w", table, err)
	}
	return id, nil
}

// record observes a query in the store metrics. Not-found lookups are not
// errors; conflicts are counted separately.
func record(op, table string, start time.Time, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		err = nil
	case errors.Is(err, ErrConflict):
		metrics.DBUniqueConflicts.WithLabelValues(table).Inc()
		err = nil
	}
	metrics.RecordDBQuery(op, table, time.Since(start), err)
}

// notFound maps sql.ErrNoRows onto ErrNotFound and wraps everything else.
func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("failed to get %s: %w", what, err)
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullableTime(t *time.Time) sql.NullTime {
	if t == nil || t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}
