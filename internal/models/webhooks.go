// Mediatrack - Media Server Webhook Ingestion and Watch Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediatrack

package models

import (
	"bytes"
	"strconv"
	"strings"
)

// ============================================================================
// Plex Webhook Models
// ============================================================================

// PlexWebhook is the JSON document Plex sends in the "payload" multipart field.
//
// Example (trimmed):
//
//	{
//	  "event": "media.scrobble",
//	  "Account": {"id": 1, "title": "alice"},
//	  "Metadata": {
//	    "type": "episode", "title": "Pilot", "grandparentTitle": "Show",
//	    "parentIndex": 1, "index": 1,
//	    "Guid": [{"id": "tmdb://12345"}],
//	    "Grandparent": {"Guid": [{"id": "tmdb://1399"}]}
//	  }
//	}
type PlexWebhook struct {
	Event    string               `json:"event" validate:"required"`
	User     bool                 `json:"user"`
	Owner    bool                 `json:"owner"`
	Account  PlexWebhookAccount   `json:"Account"`
	Server   PlexWebhookServer    `json:"Server"`
	Player   PlexWebhookPlayer    `json:"Player"`
	Metadata *PlexWebhookMetadata `json:"Metadata,omitempty"`
}

// PlexWebhookAccount is the Plex account that triggered the event.
type PlexWebhookAccount struct {
	ID    int    `json:"id"`
	Thumb string `json:"thumb"`
	Title string `json:"title"`
}

// PlexWebhookServer identifies the Plex server.
type PlexWebhookServer struct {
	Title string `json:"title"`
	UUID  string `json:"uuid"`
}

// PlexWebhookPlayer identifies the playback client.
type PlexWebhookPlayer struct {
	Local         bool   `json:"local"`
	PublicAddress string `json:"publicAddress"`
	Title         string `json:"title"`
	UUID          string `json:"uuid"`
}

// PlexGUID is one entry of a Plex "Guid" array, e.g. {"id": "imdb://tt0944947"}.
type PlexGUID struct {
	ID string `json:"id"`
}

// PlexRelative carries the Guid array of a parent (season) or grandparent (show).
type PlexRelative struct {
	Guids []PlexGUID `json:"Guid"`
}

// PlexMediaPart is one file backing a media item.
type PlexMediaPart struct {
	File string `json:"file"`
}

// PlexMedia is one media version of an item.
type PlexMedia struct {
	Parts []PlexMediaPart `json:"Part"`
}

// PlexWebhookMetadata is the content metadata of a media or library event.
// Plex sends both a legacy "guid" string and a "Guid" array.
type PlexWebhookMetadata struct {
	LibrarySectionType string        `json:"librarySectionType"`
	RatingKey          string        `json:"ratingKey"`
	Key                string        `json:"key"`
	GUID               string        `json:"guid"`
	Guids              []PlexGUID    `json:"Guid"`
	Type               string        `json:"type"`
	Title              string        `json:"title"`
	GrandparentTitle   string        `json:"grandparentTitle"`
	ParentTitle        string        `json:"parentTitle"`
	Index              *int          `json:"index"`
	ParentIndex        *int          `json:"parentIndex"`
	Year               int           `json:"year"`
	Duration           int64         `json:"duration"`
	AddedAt            int64         `json:"addedAt"`
	Parent             *PlexRelative `json:"Parent,omitempty"`
	Grandparent        *PlexRelative `json:"Grandparent,omitempty"`
	Media              []PlexMedia   `json:"Media,omitempty"`
}

// FilePath returns the first media part file, if any.
func (m *PlexWebhookMetadata) FilePath() string {
	for _, media := range m.Media {
		for _, part := range media.Parts {
			if part.File != "" {
				return part.File
			}
		}
	}
	return ""
}

// GetUsername returns the trimmed account title.
func (w *PlexWebhook) GetUsername() string {
	return strings.TrimSpace(w.Account.Title)
}

// ============================================================================
// Jellyfin / Emby Webhook Models
// ============================================================================

// MediaServerItem is the "Item" object shared by the Jellyfin and Emby webhook plugins.
type MediaServerItem struct {
	ID                string            `json:"Id"`
	Name              string            `json:"Name"`
	Type              string            `json:"Type"`
	SeriesName        string            `json:"SeriesName,omitempty"`
	IndexNumber       *int              `json:"IndexNumber,omitempty"`
	ParentIndexNumber *int              `json:"ParentIndexNumber,omitempty"`
	ProductionYear    int               `json:"ProductionYear,omitempty"`
	Path              string            `json:"Path,omitempty"`
	RunTimeTicks      int64             `json:"RunTimeTicks,omitempty"`
	ProviderIDs       map[string]string `json:"ProviderIds,omitempty"`
	UserData          *MediaUserData    `json:"UserData,omitempty"`
}

// MediaUserData is the per-user state attached to a Jellyfin item.
type MediaUserData struct {
	Played bool `json:"Played"`
}

// MediaServerUser is the user object sent by Jellyfin and Emby.
type MediaServerUser struct {
	ID   string `json:"Id"`
	Name string `json:"Name"`
}

// ProviderID looks up a provider id case-insensitively ("Tmdb", "TMDB", "tmdb").
func (i *MediaServerItem) ProviderID(name string) string {
	for k, v := range i.ProviderIDs {
		if strings.EqualFold(k, name) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// JellyfinWebhook is the payload emitted by the Jellyfin webhook plugin.
type JellyfinWebhook struct {
	Event string           `json:"Event" validate:"required"`
	Item  *MediaServerItem `json:"Item" validate:"required"`
	User  *MediaServerUser `json:"User,omitempty"`
}

// EmbyPlaybackInfo is the playback state attached to Emby playback events.
type EmbyPlaybackInfo struct {
	PlayedToCompletion bool  `json:"PlayedToCompletion"`
	PositionTicks      int64 `json:"PositionTicks,omitempty"`
}

// EmbyWebhook is the payload emitted by Emby's built-in webhooks.
type EmbyWebhook struct {
	Event        string            `json:"Event" validate:"required"`
	Item         *MediaServerItem  `json:"Item" validate:"required"`
	User         *MediaServerUser  `json:"User,omitempty"`
	PlaybackInfo *EmbyPlaybackInfo `json:"PlaybackInfo,omitempty"`
}

// ============================================================================
// Tautulli Webhook Models
// ============================================================================

// TautulliWebhook is the flat JSON body configured in a Tautulli webhook agent.
// Only action is mandatory; the remaining fields mirror Tautulli notification
// parameters and are used when present.
type TautulliWebhook struct {
	Action      string  `json:"action" validate:"required"`
	MediaType   string  `json:"media_type"`
	File        string  `json:"file"`
	Filename    string  `json:"filename"`
	Title       string  `json:"title"`
	ShowName    string  `json:"show_name"`
	User        string  `json:"user"`
	TMDBID      string  `json:"themoviedb_id"`
	IMDBID      string  `json:"imdb_id"`
	TVDBID      string  `json:"thetvdb_id"`
	SeasonNum   FlexInt `json:"season_num"`
	EpisodeNum  FlexInt `json:"episode_num"`
	Year        FlexInt `json:"year"`
	DurationSec FlexInt `json:"duration_sec"`
}

// FilePath returns the full file path, falling back to the bare filename.
func (w *TautulliWebhook) FilePath() string {
	if w.File != "" {
		return w.File
	}
	return w.Filename
}

// FlexInt decodes from a JSON number, a numeric string, or an empty string.
// Tautulli templates render every parameter as a string.
type FlexInt struct {
	Value int
	Valid bool
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexInt) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(bytes.TrimSpace(data), `"`)
	if len(data) == 0 || string(data) == "null" {
		*f = FlexInt{}
		return nil
	}
	v, err := strconv.Atoi(string(data))
	if err != nil {
		return err
	}
	*f = FlexInt{Value: v, Valid: true}
	return nil
}

// Ptr returns the value as a pointer, or nil when absent.
func (f FlexInt) Ptr() *int {
	if !f.Valid {
		return nil
	}
	v := f.Value
	return &v
}
