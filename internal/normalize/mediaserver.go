// Mediatrack - Media Server Webhook Ingestion and Watch Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediatrack

package normalize

import (
	"time"

	"github.com/tomtom215/mediatrack/internal/models"
)

// JellyfinNormalizer handles the Jellyfin webhook plugin.
type JellyfinNormalizer struct{}

// Source implements Normalizer.
func (JellyfinNormalizer) Source() models.SourceService { return models.SourceJellyfin }

// Normalize implements Normalizer.
func (JellyfinNormalizer) Normalize(contentType string, body []byte, receivedAt time.Time) (*models.IngestEvent, error) {
	var hook models.JellyfinWebhook
	if err := decode(models.SourceJellyfin, contentType, body, &hook, "payload", "data"); err != nil {
		return nil, err
	}

	var (
		kind      models.EventKind
		completed bool
	)
	switch hook.Event {
	case "Play", "PlaybackStart":
		kind = models.EventPlaybackStarted
	case "Stop", "PlaybackStop":
		kind = models.EventPlaybackStopped
		completed = hook.Item.UserData != nil && hook.Item.UserData.Played
	default:
		return nil, unsupported(models.SourceJellyfin, hook.Event)
	}

	return itemEvent(models.SourceJellyfin, hook.Event, kind, completed, hook.Item, hook.User, receivedAt), nil
}

// EmbyNormalizer handles Emby server webhooks.
type EmbyNormalizer struct{}

// Source implements Normalizer.
func (EmbyNormalizer) Source() models.SourceService { return models.SourceEmby }

// Normalize implements Normalizer.
func (EmbyNormalizer) Normalize(contentType string, body []byte, receivedAt time.Time) (*models.IngestEvent, error) {
	var hook models.EmbyWebhook
	if err := decode(models.SourceEmby, contentType, body, &hook, "data", "payload"); err != nil {
		return nil, err
	}

	var (
		kind      models.EventKind
		completed bool
	)
	switch hook.Event {
	case "playback.start":
		kind = models.EventPlaybackStarted
	case "playback.pause":
		kind = models.EventPlaybackProgress
	case "playback.stop":
		kind = models.EventPlaybackStopped
		completed = hook.PlaybackInfo != nil && hook.PlaybackInfo.PlayedToCompletion
	case "library.new":
		kind = models.EventLibraryAdded
	default:
		return nil, unsupported(models.SourceEmby, hook.Event)
	}

	return itemEvent(models.SourceEmby, hook.Event, kind, completed, hook.Item, hook.User, receivedAt), nil
}

// itemEvent builds an IngestEvent from the Item object Jellyfin and Emby share.
func itemEvent(src models.SourceService, action string, kind models.EventKind, completed bool,
	item *models.MediaServerItem, user *models.MediaServerUser, receivedAt time.Time) *models.IngestEvent {
	event := &models.IngestEvent{
		Source:         src,
		Kind:           kind,
		Completed:      completed,
		MediaKind:      mediaKindOf(item.Type),
		RawIdentifiers: make(map[string]string),
		FilePath:       item.Path,
		Title:          item.Name,
		SeriesTitle:    item.SeriesName,
		Year:           item.ProductionYear,
		OccurredAt:     receivedAt,
		Action:         action,
	}
	if event.MediaKind == models.MediaEpisode {
		event.SeasonNumber = item.ParentIndexNumber
		event.EpisodeNumber = item.IndexNumber
	}
	if user != nil {
		event.UserAccountHint = user.Name
	}

	addID(event.RawIdentifiers, models.IDTMDB, item.ProviderID("Tmdb"))
	addID(event.RawIdentifiers, models.IDIMDB, item.ProviderID("Imdb"))
	addID(event.RawIdentifiers, models.IDTVDB, item.ProviderID("Tvdb"))
	addID(event.RawIdentifiers, models.IDYouTube, item.ProviderID("YouTube"))
	return event
}
