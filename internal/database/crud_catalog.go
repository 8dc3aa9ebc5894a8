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

// =============================================================================
// Shows
// =============================================================================

const showColumns = `id, user_id, source, external_id, title, status, notes, created_at, updated_at`

func scanShow(row interface{ Scan(...interface{}) error }) (*models.Show, error) {
	show := &models.Show{}
	var status string
	err := row.Scan(&show.ID, &show.UserID, &show.Source, &show.ExternalID, &show.Title,
		&status, &show.Notes, &show.CreatedAt, &show.UpdatedAt)
	if err != nil {
		return nil, err
	}
	show.Status = models.Status(status)
	return show, nil
}

// FindShow looks up a show by its external id within a user's catalog.
func (s *Store) FindShow(ctx context.Context, userID int64, provider, externalID string) (show *models.Show, err error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()
	defer func(start time.Time) { record("select", "shows", start, err) }(time.Now())

	show, err = scanShow(s.queryRow(ctx, `SELECT `+showColumns+` FROM shows
		WHERE user_id = ? AND source = ? AND external_id = ?`, userID, provider, externalID))
	if err != nil {
		return nil, notFound(err, "show")
	}
	return show, nil
}

// GetShow returns a show by id.
func (s *Store) GetShow(ctx context.Context, id int64) (show *models.Show, err error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()
	defer func(start time.Time) { record("select", "shows", start, err) }(time.Now())

	show, err = scanShow(s.queryRow(ctx, `SELECT `+showColumns+` FROM shows WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err, "show")
	}
	return show, nil
}

// InsertShow creates a show and returns its id. ErrConflict means another
// request created it first.
func (s *Store) InsertShow(ctx context.Context, show *models.Show) (id int64, err error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()
	defer func(start time.Time) { record("insert", "shows", start, err) }(time.Now())

	now := time.Now().UTC()
	id, err = s.insertReturningID(ctx, "shows", `INSERT INTO shows
		(user_id, source, external_id, title, status, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		show.UserID, show.Source, show.ExternalID, show.Title, string(show.Status), show.Notes, now, now)
	if err != nil {
		return 0, err
	}
	show.ID, show.CreatedAt, show.UpdatedAt = id, now, now
	return id, nil
}

// UpdateShowStatus moves a show to status when its current status is one of from.
// It reports whether a row changed, so concurrent promotions apply once.
func (s *Store) UpdateShowStatus(ctx context.Context, id int64, status models.Status, from ...models.Status) (changed bool, err error) {
	return s.updateStatus(ctx, "shows", id, status, from, true)
}

// =============================================================================
// Seasons
// =============================================================================

// FindSeason looks up a season by number within a show.
func (s *Store) FindSeason(ctx context.Context, showID int64, number int) (season *models.Season, err error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()
	defer func(start time.Time) { record("select", "seasons", start, err) }(time.Now())

	season = &models.Season{}
	var status string
	err = s.queryRow(ctx, `SELECT id, show_id, season_number, status FROM seasons
		WHERE show_id = ? AND season_number = ?`, showID, number,
	).Scan(&season.ID, &season.ShowID, &season.SeasonNumber, &status)
	if err != nil {
		return nil, notFound(err, "season")
	}
	season.Status = models.Status(status)
	return season, nil
}

// InsertSeason creates a season and returns its id.
func (s *Store) InsertSeason(ctx context.Context, season *models.Season) (id int64, err error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()
	defer func(start time.Time) { record("insert", "seasons", start, err) }(time.Now())

	id, err = s.insertReturningID(ctx, "seasons",
		`INSERT INTO seasons (show_id, season_number, status) VALUES (?, ?, ?)`,
		season.ShowID, season.SeasonNumber, string(season.Status))
	if err != nil {
		return 0, err
	}
	season.ID = id
	return id, nil
}

// UpdateSeasonStatus behaves like UpdateShowStatus for seasons.
func (s *Store) UpdateSeasonStatus(ctx context.Context, id int64, status models.Status, from ...models.Status) (changed bool, err error) {
	return s.updateStatus(ctx, "seasons", id, status, from, false)
}

func (s *Store) updateStatus(ctx context.Context, table string, id int64, status models.Status, from []models.Status, touch bool) (changed bool, err error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()
	defer func(start time.Time) { record("update", table, start, err) }(time.Now())

	query := "UPDATE " + table + " SET status = ?"
	args := []interface{}{string(status)}
	if touch {
		query += ", updated_at = ?"
		args = append(args, time.Now().UTC())
	}
	query += " WHERE id = ?"
	args = append(args, id)
	if len(from) > 0 {
		query += " AND status IN (?" + repeatPlaceholders(len(from)-1) + ")"
		for _, f := range from {
			args = append(args, string(f))
		}
	}

	res, err := s.exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to update %s status: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

func repeatPlaceholders(n int) string {
	out := make([]byte, 0, n*3)
	for i := 0; i < n; i++ {
		out = append(out, ", ?"...)
	}
	return string(out)
}

// =============================================================================
// Episodes
// =============================================================================

const episodeColumns = `e.id, e.season_id, se.show_id, e.user_id, e.source, e.episode_number, e.title,
	e.dedup_key, e.watched, e.watched_at, e.runtime_minutes, e.created_at`

const episodeFrom = ` FROM episodes e JOIN seasons se ON se.id = e.season_id`

func scanEpisode(row interface{ Scan(...interface{}) error }) (*models.Episode, error) {
	ep := &models.Episode{}
	var (
		dedup     sql.NullString
		watchedAt sql.NullTime
	)
	err := row.Scan(&ep.ID, &ep.SeasonID, &ep.ShowID, &ep.UserID, &ep.Source, &ep.EpisodeNumber, &ep.Title,
		&dedup, &ep.Watched, &watchedAt, &ep.RuntimeMinutes, &ep.CreatedAt)
	if err != nil {
		return nil, err
	}
	ep.DedupKey = dedup.String
	ep.WatchedAt = timePtr(watchedAt)
	return ep, nil
}

// GetEpisode returns an episode by id.
func (s *Store) GetEpisode(ctx context.Context, id int64) (ep *models.Episode, err error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()
	defer func(start time.Time) { record("select", "episodes", start, err) }(time.Now())

	ep, err = scanEpisode(s.queryRow(ctx, `SELECT `+episodeColumns+episodeFrom+` WHERE e.id = ?`, id))
	if err != nil {
		return nil, notFound(err, "episode")
	}
	return ep, nil
}

// FindEpisodeByNumber looks up an episode by season and episode number.
func (s *Store) FindEpisodeByNumber(ctx context.Context, showID int64, seasonNumber, episodeNumber int) (ep *models.Episode, err error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()
	defer func(start time.Time) { record("select", "episodes", start, err) }(time.Now())

	ep, err = scanEpisode(s.queryRow(ctx, `SELECT `+episodeColumns+episodeFrom+`
		WHERE se.show_id = ? AND se.season_number = ? AND e.episode_number = ?`,
		showID, seasonNumber, episodeNumber))
	if err != nil {
		return nil, notFound(err, "episode")
	}
	return ep, nil
}

// FindEpisodeByDedupKey looks up an episode by its dedup key.
func (s *Store) FindEpisodeByDedupKey(ctx context.Context, userID int64, provider, dedupKey string) (ep *models.Episode, err error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()
	defer func(start time.Time) { record("select", "episodes", start, err) }(time.Now())

	ep, err = scanEpisode(s.queryRow(ctx, `SELECT `+episodeColumns+episodeFrom+`
		WHERE e.user_id = ? AND e.source = ? AND e.dedup_key = ?`,
		userID, provider, dedupKey))
	if err != nil {
		return nil, notFound(err, "episode")
	}
	return ep, nil
}

// InsertEpisode creates an episode. ErrConflict is returned when either the
// (season, number) pair or the dedup key is already taken.
func (s *Store) InsertEpisode(ctx context.Context, ep *models.Episode) (id int64, err error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()
	defer func(start time.Time) { record("insert", "episodes", start, err) }(time.Now())

	now := time.Now().UTC()
	id, err = s.insertReturningID(ctx, "episodes", `INSERT INTO episodes
		(season_id, user_id, source, episode_number, title, dedup_key, watched, watched_at, runtime_minutes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ep.SeasonID, ep.UserID, ep.Source, ep.EpisodeNumber, ep.Title, nullableString(ep.DedupKey),
		ep.Watched, nullableTime(ep.WatchedAt), ep.RuntimeMinutes, now)
	if err != nil {
		return 0, err
	}
	ep.ID, ep.CreatedAt = id, now
	return id, nil
}

// InsertNextEpisode creates ep as the next episode of its season. The number
// is computed by the insert itself, so on SQLite, where a writing statement
// holds the write lock before it reads, two callers cannot pick the same
// number. On PostgreSQL a concurrent insert can still take the number first;
// that surfaces as ErrConflict like any other uniqueness violation.
func (s *Store) InsertNextEpisode(ctx context.Context, ep *models.Episode) (id int64, err error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()
	defer func(start time.Time) { record("insert", "episodes", start, err) }(time.Now())

	now := time.Now().UTC()
	var number int
	err = s.queryRow(ctx, `INSERT INTO episodes
		(season_id, user_id, source, episode_number, title, dedup_key, watched, watched_at, runtime_minutes, created_at)
		VALUES (?, ?, ?,
			(SELECT COALESCE(MAX(episode_number), 0) + 1 FROM episodes WHERE season_id = ?),
			?, ?, ?, ?, ?, ?)
		RETURNING id, episode_number`,
		ep.SeasonID, ep.UserID, ep.Source, ep.SeasonID, ep.Title, nullableString(ep.DedupKey),
		ep.Watched, nullableTime(ep.WatchedAt), ep.RuntimeMinutes, now,
	).Scan(&id, &number)
	if err != nil {
		if s.dialect.isUniqueViolation(err) {
			return 0, &conflictError{table: "episodes", err: err}
		}
		return 0, fmt.Errorf("insert into episodes: %w", err)
	}
	ep.ID, ep.EpisodeNumber, ep.CreatedAt = id, number, now
	return id, nil
}

// MarkEpisodeWatched flips the watched flag. It reports whether the episode
// was previously unwatched.
func (s *Store) MarkEpisodeWatched(ctx context.Context, id int64, at time.Time) (changed bool, err error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()
	defer func(start time.Time) { record("update", "episodes", start, err) }(time.Now())

	res, err := s.exec(ctx, `UPDATE episodes SET watched = ?, watched_at = ? WHERE id = ? AND watched = ?`,
		true, at.UTC(), id, false)
	if err != nil {
		return false, fmt.Errorf("failed to mark episode watched: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}
