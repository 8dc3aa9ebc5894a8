// Mediatrack - Media Server Webhook Ingestion and Watch Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediatrack

package normalize

import (
	"strings"
	"time"

	"github.com/tomtom215/mediatrack/internal/models"
)

// TautulliNormalizer handles Tautulli webhook agents. The agent body is a
// user-defined JSON template, see models.TautulliWebhook for the expected keys.
type TautulliNormalizer struct{}

// Source implements Normalizer.
func (TautulliNormalizer) Source() models.SourceService { return models.SourceTautulli }

// Normalize implements Normalizer.
func (TautulliNormalizer) Normalize(contentType string, body []byte, receivedAt time.Time) (*models.IngestEvent, error) {
	var hook models.TautulliWebhook
	if err := decode(models.SourceTautulli, contentType, body, &hook, "payload", "data"); err != nil {
		return nil, err
	}

	action := strings.ToLower(strings.TrimSpace(hook.Action))
	event := &models.IngestEvent{
		Source:          models.SourceTautulli,
		MediaKind:       mediaKindOf(hook.MediaType),
		RawIdentifiers:  make(map[string]string),
		FilePath:        hook.FilePath(),
		UserAccountHint: strings.TrimSpace(hook.User),
		Title:           hook.Title,
		SeriesTitle:     hook.ShowName,
		SeasonNumber:    hook.SeasonNum.Ptr(),
		EpisodeNumber:   hook.EpisodeNum.Ptr(),
		OccurredAt:      receivedAt,
		Action:          hook.Action,
	}
	if hook.Year.Valid {
		event.Year = hook.Year.Value
	}

	switch action {
	case "created", "recently_added", "on_created":
		event.Kind = models.EventLibraryAdded
	case "play", "resume":
		event.Kind = models.EventPlaybackStarted
	case "pause":
		event.Kind = models.EventPlaybackProgress
	case "stop":
		event.Kind = models.EventPlaybackStopped
	case "watched":
		event.Kind = models.EventPlaybackStopped
		event.Completed = true
	default:
		return nil, unsupported(models.SourceTautulli, hook.Action)
	}

	addID(event.RawIdentifiers, models.IDTMDB, hook.TMDBID)
	addID(event.RawIdentifiers, models.IDIMDB, hook.IMDBID)
	addID(event.RawIdentifiers, models.IDTVDB, hook.TVDBID)

	return event, nil
}
