// Mediatrack - Media Server Webhook Ingestion and Watch Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediatrack

package main

import (
	"context"
	"fmt"

	"github.com/tomtom215/mediatrack/internal/config"
	"github.com/tomtom215/mediatrack/internal/logging"
	"github.com/tomtom215/mediatrack/internal/models"
)

// userStore is the subset of *database.Store used at startup.
type userStore interface {
	EnsureUser(ctx context.Context, username, token string, plexUsernames []string) (int64, error)
	SetChannelFilters(ctx context.Context, userID int64, channelIDs []string) error
}

// bootstrapUsers upserts configured users and replaces their channel
// filters, so the config file stays the source of truth across restarts.
func bootstrapUsers(ctx context.Context, store userStore, users []config.UserConfig) error {
	for _, u := range users {
		id, err := store.EnsureUser(ctx, u.Username, u.Token, u.PlexUsernames)
		if err != nil {
			return fmt.Errorf("bootstrap user %s: %w", u.Username, err)
		}
		if err := store.SetChannelFilters(ctx, id, u.FilteredChannels); err != nil {
			return fmt.Errorf("set channel filters for %s: %w", u.Username, err)
		}
		logging.Info().
			Str("username", u.Username).
			Int64("user_id", id).
			Str("token", logging.SanitizeToken(u.Token)).
			Int("plex_usernames", len(u.PlexUsernames)).
			Int("filtered_channels", len(u.FilteredChannels)).
			Msg("User bootstrapped")
	}
	if len(users) == 0 {
		logging.Warn().Msg("No users configured; every webhook will be rejected with 401")
	}
	return nil
}

// mappingStore is the subset of *database.Store that holds TMDB id
// corrections.
type mappingStore interface {
	UpsertExternalMapping(ctx context.Context, source models.SourceService, kind models.MediaKind, externalID, tmdbID string) error
}

// bootstrapMappings upserts the configured TMDB id corrections. A mapping
// removed from the config stays in the store until overwritten.
func bootstrapMappings(ctx context.Context, store mappingStore, mappings []config.MappingConfig) error {
	for _, m := range mappings {
		err := store.UpsertExternalMapping(ctx, models.SourceService(m.Source), models.MediaKind(m.MediaKind), m.ExternalID, m.TMDBID)
		if err != nil {
			return fmt.Errorf("bootstrap mapping %s/%s/%s: %w", m.Source, m.MediaKind, m.ExternalID, err)
		}
	}
	if len(mappings) > 0 {
		logging.Info().Int("mappings", len(mappings)).Msg("External id mappings bootstrapped")
	}
	return nil
}
