// Mediatrack - Media Server Webhook Ingestion and Watch Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediatrack

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/mediatrack/internal/models"
)

const historyColumns = `id, entity_kind, entity_id, event_kind, bucket, watched_at, seen_only`

func scanHistory(row interface{ Scan(...interface{}) error }) (*models.WatchHistoryEntry, error) {
	h := &models.WatchHistoryEntry{}
	var entityKind, eventKind string
	if err := row.Scan(&h.ID, &entityKind, &h.EntityID, &eventKind, &h.Bucket, &h.WatchedAt, &h.SeenOnly); err != nil {
		return nil, err
	}
	h.EntityKind = models.EntityKind(entityKind)
	h.EventKind = models.EventKind(eventKind)
	h.WatchedAt = h.WatchedAt.UTC()
	return h, nil
}

// FindHistoryNear returns an entry for the same entity and event kind whose
// timestamp lies within window of at, or ErrNotFound.
func (s *Store) FindHistoryNear(ctx context.Context, kind models.EntityKind, entityID int64, eventKind models.EventKind, at time.Time, window time.Duration) (h *models.WatchHistoryEntry, err error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()
	defer func(start time.Time) { record("select", "watch_history", start, err) }(time.Now())

	secs := int64(window / time.Second)
	h, err = scanHistory(s.queryRow(ctx, `SELECT `+historyColumns+` FROM watch_history
		WHERE entity_kind = ? AND entity_id = ? AND event_kind = ?
		  AND watched_unix BETWEEN ? AND ?
		ORDER BY id LIMIT 1`,
		string(kind), entityID, string(eventKind), at.Unix()-secs, at.Unix()+secs))
	if err != nil {
		return nil, notFound(err, "watch history entry")
	}
	return h, nil
}

// InsertHistory appends a history entry. ErrConflict means an entry for the
// same time bucket already exists.
func (s *Store) InsertHistory(ctx context.Context, h *models.WatchHistoryEntry) (id int64, err error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()
	defer func(start time.Time) { record("insert", "watch_history", start, err) }(time.Now())

	at := h.WatchedAt.UTC()
	id, err = s.insertReturningID(ctx, "watch_history", `INSERT INTO watch_history
		(entity_kind, entity_id, event_kind, bucket, watched_unix, watched_at, seen_only)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(h.EntityKind), h.EntityID, string(h.EventKind), h.Bucket, at.Unix(), at, h.SeenOnly)
	if err != nil {
		return 0, err
	}
	h.ID = id
	return id, nil
}

// ListHistory returns every entry for an entity in insertion order.
func (s *Store) ListHistory(ctx context.Context, kind models.EntityKind, entityID int64) (entries []models.WatchHistoryEntry, err error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()
	defer func(start time.Time) { record("select", "watch_history", start, err) }(time.Now())

	rows, err := s.query(ctx, `SELECT `+historyColumns+` FROM watch_history
		WHERE entity_kind = ? AND entity_id = ? ORDER BY id`, string(kind), entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to list watch history: %w", err)
	}
	defer closeWithLog(rows, "rows")

	for rows.Next() {
		h, scanErr := scanHistory(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan watch history: %w", scanErr)
		}
		entries = append(entries, *h)
	}
	return entries, rows.Err()
}

// CountRows returns the row count of a catalog table. Used by health checks
// and tests.
func (s *Store) CountRows(ctx context.Context, table string) (int64, error) {
	switch table {
	case "users", "shows", "seasons", "episodes", "movies", "watch_history", "channel_filters", "external_id_mappings":
	default:
		return 0, fmt.Errorf("unknown table %q", table)
	}
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	var n int64
	if err := s.queryRow(ctx, "SELECT COUNT(1) FROM "+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}
