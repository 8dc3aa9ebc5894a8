// Mediatrack - Media Server Webhook Ingestion and Watch Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediatrack

package models

import (
	"fmt"
	"time"
)

// SourceService identifies the upstream media server that sent a webhook.
type SourceService string

const (
	SourcePlex     SourceService = "plex"
	SourceTautulli SourceService = "tautulli"
	SourceJellyfin SourceService = "jellyfin"
	SourceEmby     SourceService = "emby"
)

// AllSources lists every supported upstream service.
var AllSources = []SourceService{SourcePlex, SourceTautulli, SourceJellyfin, SourceEmby}

// ParseSourceService converts a path segment such as "plex" into a SourceService.
func ParseSourceService(s string) (SourceService, error) {
	for _, src := range AllSources {
		if string(src) == s {
			return src, nil
		}
	}
	return "", fmt.Errorf("unknown source service %q", s)
}

// EventKind is the canonical kind of an ingested event.
type EventKind string

const (
	EventLibraryAdded     EventKind = "library_added"
	EventPlaybackStarted  EventKind = "playback_started"
	EventPlaybackProgress EventKind = "playback_progress"
	EventPlaybackStopped  EventKind = "playback_stopped"

	// EventPlaybackCompleted is never produced by a normalizer. It is the
	// history kind of a stop that finished the item, so a completion is not
	// mistaken for a re-delivery of an earlier plain stop.
	EventPlaybackCompleted EventKind = "playback_completed"
)

// IsPlayback reports whether the event came from a playback session.
func (k EventKind) IsPlayback() bool {
	return k == EventPlaybackStarted || k == EventPlaybackProgress || k == EventPlaybackStopped
}

// MediaKind classifies the item an event refers to.
type MediaKind string

const (
	MediaMovie   MediaKind = "movie"
	MediaEpisode MediaKind = "episode"
	MediaUnknown MediaKind = "unknown"
)

// Identifier kinds used as keys in IngestEvent.RawIdentifiers.
const (
	IDTMDB    = "tmdb"
	IDIMDB    = "imdb"
	IDTVDB    = "tvdb"
	IDYouTube = "youtube"
	IDGUID    = "guid"
)

// IngestEvent is the canonical, source-agnostic representation of one webhook call.
// Adapters build it once; nothing downstream mutates it.
type IngestEvent struct {
	Source         SourceService
	Kind           EventKind
	RawIdentifiers map[string]string
	FilePath       string
	SeasonNumber   *int
	EpisodeNumber  *int
	MediaKind      MediaKind

	// UserAccountHint is the account name reported by the upstream server.
	UserAccountHint string

	// Completed is set when the upstream marks the item as fully played.
	Completed bool

	Title       string
	SeriesTitle string
	Year        int
	OccurredAt  time.Time

	// Action is the raw upstream event name, kept for logging.
	Action string
}

// Identifier returns the raw identifier of the given kind, or "".
func (e *IngestEvent) Identifier(kind string) string {
	if e.RawIdentifiers == nil {
		return ""
	}
	return e.RawIdentifiers[kind]
}

// HistoryKind is the event kind under which this event is deduplicated and
// stored in watch history.
func (e *IngestEvent) HistoryKind() EventKind {
	if e.Kind == EventPlaybackStopped && e.Completed {
		return EventPlaybackCompleted
	}
	return e.Kind
}

// HasNumbers reports whether both season and episode numbers are present.
func (e *IngestEvent) HasNumbers() bool {
	return e.SeasonNumber != nil && e.EpisodeNumber != nil
}

// DisplayTitle renders a human readable title for logs.
func (e *IngestEvent) DisplayTitle() string {
	if e.MediaKind == MediaEpisode && e.SeriesTitle != "" && e.HasNumbers() {
		return fmt.Sprintf("%s S%02dE%02d", e.SeriesTitle, *e.SeasonNumber, *e.EpisodeNumber)
	}
	if e.Year > 0 && e.Title != "" {
		return fmt.Sprintf("%s (%d)", e.Title, e.Year)
	}
	if e.Title != "" {
		return e.Title
	}
	return e.FilePath
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int {
	return &v
}
