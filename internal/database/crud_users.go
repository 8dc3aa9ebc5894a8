// Mediatrack - Media Server Webhook Ingestion and Watch Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediatrack

package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/mediatrack/internal/models"
)

// EnsureUser creates the user or updates its token and Plex usernames.
// Users are provisioned from configuration at startup.
func (s *Store) EnsureUser(ctx context.Context, username, token string, plexUsernames []string) (id int64, err error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()
	defer func(start time.Time) { record("upsert", "users", start, err) }(time.Now())

	err = s.queryRow(ctx, `INSERT INTO users (username, webhook_token, plex_usernames, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (username) DO UPDATE SET
			webhook_token = excluded.webhook_token,
			plex_usernames = excluded.plex_usernames
		RETURNING id`,
		username, token, joinUsernames(plexUsernames), time.Now().UTC(),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert user %s: %w", username, err)
	}
	return id, nil
}

// UserByToken returns the user owning a webhook token.
func (s *Store) UserByToken(ctx context.Context, token string) (u *models.User, err error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()
	defer func(start time.Time) { record("select", "users", start, err) }(time.Now())

	u = &models.User{}
	var plexUsernames string
	err = s.queryRow(ctx, `SELECT id, username, webhook_token, plex_usernames, created_at
		FROM users WHERE webhook_token = ?`, token,
	).Scan(&u.ID, &u.Username, &u.WebhookToken, &plexUsernames, &u.CreatedAt)
	if err != nil {
		return nil, notFound(err, "user")
	}
	u.PlexUsernames = splitUsernames(plexUsernames)
	return u, nil
}

// SetChannelFilters replaces the user's channel deny-list.
func (s *Store) SetChannelFilters(ctx context.Context, userID int64, channelIDs []string) (err error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()
	defer func(start time.Time) { record("replace", "channel_filters", start, err) }(time.Now())

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin channel filter update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err = tx.ExecContext(ctx, s.dialect.rebind("DELETE FROM channel_filters WHERE user_id = ?"), userID); err != nil {
		return fmt.Errorf("clear channel filters: %w", err)
	}
	seen := make(map[string]bool, len(channelIDs))
	for _, id := range channelIDs {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		if _, err = tx.ExecContext(ctx,
			s.dialect.rebind("INSERT INTO channel_filters (user_id, channel_id) VALUES (?, ?)"),
			userID, id); err != nil {
			return fmt.Errorf("insert channel filter %s: %w", id, err)
		}
	}
	return tx.Commit()
}

// IsChannelFiltered reports whether the user has deny-listed a channel.
func (s *Store) IsChannelFiltered(ctx context.Context, userID int64, channelID string) (filtered bool, err error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()
	defer func(start time.Time) { record("select", "channel_filters", start, err) }(time.Now())

	var n int
	err = s.queryRow(ctx, "SELECT COUNT(1) FROM channel_filters WHERE user_id = ? AND channel_id = ?",
		userID, channelID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check channel filter: %w", err)
	}
	return n > 0, nil
}

// UpsertExternalMapping records that a provider-supplied TMDB id should be
// read as a different TMDB id.
func (s *Store) UpsertExternalMapping(ctx context.Context, source models.SourceService, kind models.MediaKind, externalID, tmdbID string) (err error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()
	defer func(start time.Time) { record("upsert", "external_id_mappings", start, err) }(time.Now())

	_, err = s.exec(ctx, `INSERT INTO external_id_mappings (source, media_kind, external_id, tmdb_id)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (source, media_kind, external_id) DO UPDATE SET tmdb_id = excluded.tmdb_id`,
		string(source), string(kind), externalID, tmdbID)
	if err != nil {
		return fmt.Errorf("failed to upsert external id mapping: %w", err)
	}
	return nil
}

// MappedTMDBID returns the corrected TMDB id for externalID, or ErrNotFound.
func (s *Store) MappedTMDBID(ctx context.Context, source models.SourceService, kind models.MediaKind, externalID string) (tmdbID string, err error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()
	defer func(start time.Time) { record("select", "external_id_mappings", start, err) }(time.Now())

	err = s.queryRow(ctx, `SELECT tmdb_id FROM external_id_mappings
		WHERE source = ? AND media_kind = ? AND external_id = ?`,
		string(source), string(kind), externalID).Scan(&tmdbID)
	if err != nil {
		return "", notFound(err, "external id mapping")
	}
	return tmdbID, nil
}

func joinUsernames(names []string) string {
	cleaned := make([]string, 0, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			cleaned = append(cleaned, n)
		}
	}
	return strings.Join(cleaned, ",")
}

func splitUsernames(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
