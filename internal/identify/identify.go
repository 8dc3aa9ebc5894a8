// Mediatrack - Media Server Webhook Ingestion and Watch Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediatrack

// Package identify extracts identifier candidates from a normalized event.
//
// Three axes are considered independently: explicit catalog ids supplied by
// the media server (TMDB, IMDB, TVDB), an explicit external video id, and a
// video/channel pair derived from the file path convention used by
// TubeArchivist-style downloaders:
//
//	/youtube/UCuAXFkgsw1L7xaCfnd5JJOw/S3HTZSTcieQ.mp4
//	         \_______ channel ______/ \_ video _/
//
// Extraction never fails; an axis that does not apply is simply empty.
package identify

import (
	"path"
	"regexp"
	"strings"

	"github.com/tomtom215/mediatrack/internal/models"
)

var (
	videoIDPattern   = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)
	channelIDPattern = regexp.MustCompile(`^UC[A-Za-z0-9_-]{22}$`)
)

// PathIDs is what the path convention yields.
type PathIDs struct {
	VideoID   string
	ChannelID string
}

// IdentifierSet holds every candidate found for one event.
type IdentifierSet struct {
	TMDB string
	IMDB string
	TVDB string

	// VideoID is an explicit external video id reported by the upstream server.
	VideoID string

	Path PathIDs
}

// HasCatalogID reports whether any explicit catalog id is present.
func (s IdentifierSet) HasCatalogID() bool {
	return s.TMDB != "" || s.IMDB != "" || s.TVDB != ""
}

// IsEmpty reports whether nothing usable was found.
func (s IdentifierSet) IsEmpty() bool {
	return !s.HasCatalogID() && s.VideoID == "" && s.Path.VideoID == "" && s.Path.ChannelID == ""
}

// Extract builds the IdentifierSet for event.
func Extract(event *models.IngestEvent) IdentifierSet {
	set := IdentifierSet{
		TMDB: event.Identifier(models.IDTMDB),
		IMDB: event.Identifier(models.IDIMDB),
		TVDB: event.Identifier(models.IDTVDB),
	}
	if v := event.Identifier(models.IDYouTube); videoIDPattern.MatchString(v) {
		set.VideoID = v
	}
	set.Path = ParsePath(event.FilePath)
	return set
}

// ParsePath applies the channel/video path convention. The file name minus
// its extension must be exactly a video id; the immediate parent directory is
// the channel id when it has the channel shape. Windows separators are accepted.
func ParsePath(filePath string) PathIDs {
	filePath = strings.TrimSpace(strings.ReplaceAll(filePath, `\`, "/"))
	if filePath == "" {
		return PathIDs{}
	}

	var ids PathIDs
	base := path.Base(filePath)
	if stem := strings.TrimSuffix(base, path.Ext(base)); videoIDPattern.MatchString(stem) {
		ids.VideoID = stem
	}
	if dir := path.Dir(filePath); dir != "." && dir != "/" {
		if parent := path.Base(dir); channelIDPattern.MatchString(parent) {
			ids.ChannelID = parent
		}
	}
	return ids
}
