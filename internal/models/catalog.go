// Mediatrack - Media Server Webhook Ingestion and Watch Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediatrack

package models

import "time"

// Status is the tracking status of a show, season or movie.
type Status string

const (
	StatusPlanning   Status = "planning"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusDropped    Status = "dropped"
	StatusPaused     Status = "paused"
)

// AllowsAutoWatch reports whether automatic watched-state changes are
// permitted for an entity in this status.
func (s Status) AllowsAutoWatch() bool {
	return s == StatusPlanning || s == StatusInProgress
}

// Catalog provider namespaces for external ids.
const (
	ProviderTMDB    = "tmdb"
	ProviderYouTube = "youtube"
)

// User is a catalog owner. Users are provisioned from configuration.
type User struct {
	ID            int64
	Username      string
	WebhookToken  string
	PlexUsernames []string
	CreatedAt     time.Time
}

// Show is a TV series or a channel-like grouping of videos.
type Show struct {
	ID         int64
	UserID     int64
	Source     string
	ExternalID string
	Title      string
	Status     Status
	Notes      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Season belongs to exactly one Show.
type Season struct {
	ID           int64
	ShowID       int64
	SeasonNumber int
	Status       Status
}

// Episode is the leaf trackable unit under a Season. ShowID is filled in by
// lookups that join through the season.
type Episode struct {
	ID             int64
	SeasonID       int64
	ShowID         int64
	UserID         int64
	Source         string
	EpisodeNumber  int
	Title          string
	DedupKey       string
	Watched        bool
	WatchedAt      *time.Time
	RuntimeMinutes int
	CreatedAt      time.Time
}

// Movie is a standalone trackable item.
type Movie struct {
	ID             int64
	UserID         int64
	Source         string
	ExternalID     string
	Title          string
	Status         Status
	Progress       int
	RuntimeMinutes int
	StartDate      *time.Time
	EndDate        *time.Time
}

// EntityKind distinguishes the leaf entity types that carry history.
type EntityKind string

const (
	EntityEpisode EntityKind = "episode"
	EntityMovie   EntityKind = "movie"
)

// EntityRef points at a reconciled catalog entity. For episodes ShowID and
// SeasonID identify the owning hierarchy.
type EntityRef struct {
	Kind     EntityKind
	ID       int64
	ShowID   int64
	SeasonID int64
	Created  bool
}

// WatchHistoryEntry is an append-only record of one accepted event.
type WatchHistoryEntry struct {
	ID         int64
	EntityKind EntityKind
	EntityID   int64
	EventKind  EventKind
	Bucket     int64
	WatchedAt  time.Time
	SeenOnly   bool
}

// ItemMetadata is what the metadata provider returns for one external id.
type ItemMetadata struct {
	Title           string
	ThumbnailURL    string
	DurationSeconds int
	PublishedAt     *time.Time
	ChannelID       string
	ChannelTitle    string
}
