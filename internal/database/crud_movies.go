// Mediatrack - Media Server Webhook Ingestion and Watch Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediatrack

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tomtom215/mediatrack/internal/models"
)

const movieColumns = `id, user_id, source, external_id, title, status, progress, runtime_minutes, start_date, end_date`

func scanMovie(row interface{ Scan(...interface{}) error }) (*models.Movie, error) {
	m := &models.Movie{}
	var (
		status     string
		start, end sql.NullTime
	)
	err := row.Scan(&m.ID, &m.UserID, &m.Source, &m.ExternalID, &m.Title, &status,
		&m.Progress, &m.RuntimeMinutes, &start, &end)
	if err != nil {
		return nil, err
	}
	m.Status = models.Status(status)
	m.StartDate = timePtr(start)
	m.EndDate = timePtr(end)
	return m, nil
}

// FindMovie looks up a movie by external id within a user's catalog.
func (s *Store) FindMovie(ctx context.Context, userID int64, provider, externalID string) (m *models.Movie, err error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()
	defer func(start time.Time) { record("select", "movies", start, err) }(time.Now())

	m, err = scanMovie(s.queryRow(ctx, `SELECT `+movieColumns+` FROM movies
		WHERE user_id = ? AND source = ? AND external_id = ?`, userID, provider, externalID))
	if err != nil {
		return nil, notFound(err, "movie")
	}
	return m, nil
}

// GetMovie returns a movie by id.
func (s *Store) GetMovie(ctx context.Context, id int64) (m *models.Movie, err error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()
	defer func(start time.Time) { record("select", "movies", start, err) }(time.Now())

	m, err = scanMovie(s.queryRow(ctx, `SELECT `+movieColumns+` FROM movies WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err, "movie")
	}
	return m, nil
}

// InsertMovie creates a movie and returns its id.
func (s *Store) InsertMovie(ctx context.Context, m *models.Movie) (id int64, err error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()
	defer func(start time.Time) { record("insert", "movies", start, err) }(time.Now())

	id, err = s.insertReturningID(ctx, "movies", `INSERT INTO movies
		(user_id, source, external_id, title, status, progress, runtime_minutes, start_date, end_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.UserID, m.Source, m.ExternalID, m.Title, string(m.Status), m.Progress, m.RuntimeMinutes,
		nullableTime(m.StartDate), nullableTime(m.EndDate))
	if err != nil {
		return 0, err
	}
	m.ID = id
	return id, nil
}

// UpdateMovieProgress persists status, progress and dates. The update is
// skipped when the stored status is Completed, so a completed movie never
// regresses.
func (s *Store) UpdateMovieProgress(ctx context.Context, m *models.Movie) (changed bool, err error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()
	defer func(start time.Time) { record("update", "movies", start, err) }(time.Now())

	res, err := s.exec(ctx, `UPDATE movies SET status = ?, progress = ?, start_date = ?, end_date = ?
		WHERE id = ? AND status <> ?`,
		string(m.Status), m.Progress, nullableTime(m.StartDate), nullableTime(m.EndDate),
		m.ID, string(models.StatusCompleted))
	if err != nil {
		return false, fmt.Errorf("failed to update movie: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// SetMovieRuntime stores the runtime if none is known yet.
func (s *Store) SetMovieRuntime(ctx context.Context, id int64, minutes int) (err error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()
	defer func(start time.Time) { record("update", "movies", start, err) }(time.Now())

	if _, err = s.exec(ctx, `UPDATE movies SET runtime_minutes = ? WHERE id = ? AND runtime_minutes = 0`,
		minutes, id); err != nil {
		return fmt.Errorf("failed to set movie runtime: %w", err)
	}
	return nil
}
