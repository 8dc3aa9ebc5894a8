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

// PlexNormalizer handles Plex Media Server webhooks.
type PlexNormalizer struct{}

// Source implements Normalizer.
func (PlexNormalizer) Source() models.SourceService { return models.SourcePlex }

type plexEventMapping struct {
	kind      models.EventKind
	completed bool
}

var plexEvents = map[string]plexEventMapping{
	"media.play":     {kind: models.EventPlaybackStarted},
	"media.resume":   {kind: models.EventPlaybackStarted},
	"media.pause":    {kind: models.EventPlaybackProgress},
	"media.stop":     {kind: models.EventPlaybackStopped},
	"media.scrobble": {kind: models.EventPlaybackStopped, completed: true},
	"library.new":    {kind: models.EventLibraryAdded},
}

// Normalize implements Normalizer.
func (PlexNormalizer) Normalize(contentType string, body []byte, receivedAt time.Time) (*models.IngestEvent, error) {
	var hook models.PlexWebhook
	if err := decode(models.SourcePlex, contentType, body, &hook, "payload"); err != nil {
		return nil, err
	}

	mapping, ok := plexEvents[hook.Event]
	if !ok {
		return nil, unsupported(models.SourcePlex, hook.Event)
	}
	md := hook.Metadata
	if md == nil {
		return nil, parseErr(models.SourcePlex, "Metadata", errEmptyMetadata)
	}

	event := &models.IngestEvent{
		Source:          models.SourcePlex,
		Kind:            mapping.kind,
		Completed:       mapping.completed,
		MediaKind:       mediaKindOf(md.Type),
		RawIdentifiers:  make(map[string]string),
		FilePath:        md.FilePath(),
		UserAccountHint: hook.GetUsername(),
		Title:           md.Title,
		Year:            md.Year,
		OccurredAt:      receivedAt,
		Action:          hook.Event,
	}

	own := append([]models.PlexGUID{{ID: md.GUID}}, md.Guids...)
	if event.MediaKind == models.MediaEpisode {
		event.SeriesTitle = md.GrandparentTitle
		event.SeasonNumber = md.ParentIndex
		event.EpisodeNumber = md.Index
		// The show-level id lives on the grandparent; the episode's own Guid
		// array only serves as a last resort.
		var chain [][]models.PlexGUID
		if md.Grandparent != nil {
			chain = append(chain, md.Grandparent.Guids)
		}
		if md.Parent != nil {
			chain = append(chain, md.Parent.Guids)
		}
		chain = append(chain, own)
		for _, guids := range chain {
			if id := guidValue(guids, models.IDTMDB); id != "" {
				addID(event.RawIdentifiers, models.IDTMDB, id)
				break
			}
		}
	} else {
		addID(event.RawIdentifiers, models.IDTMDB, guidValue(own, models.IDTMDB))
	}

	addID(event.RawIdentifiers, models.IDIMDB, guidValue(own, models.IDIMDB))
	addID(event.RawIdentifiers, models.IDTVDB, guidValue(own, models.IDTVDB))
	addID(event.RawIdentifiers, models.IDYouTube, guidValue(own, models.IDYouTube))
	addID(event.RawIdentifiers, models.IDGUID, md.GUID)

	return event, nil
}

// plexAgentAliases maps legacy agent names to identifier kinds.
var plexAgentAliases = map[string]string{
	"tmdb":                          models.IDTMDB,
	"com.plexapp.agents.themoviedb": models.IDTMDB,
	"imdb":                          models.IDIMDB,
	"com.plexapp.agents.imdb":       models.IDIMDB,
	"tvdb":                          models.IDTVDB,
	"com.plexapp.agents.thetvdb":    models.IDTVDB,
	"youtube":                       models.IDYouTube,
}

// parsePlexGUID splits "tmdb://1399" or "com.plexapp.agents.imdb://tt0944947?lang=en"
// into an identifier kind and value.
func parsePlexGUID(guid string) (kind, value string, ok bool) {
	scheme, rest, found := strings.Cut(strings.TrimSpace(guid), "://")
	if !found || rest == "" {
		return "", "", false
	}
	kind, ok = plexAgentAliases[strings.ToLower(scheme)]
	if !ok {
		return "", "", false
	}
	if i := strings.IndexAny(rest, "?/"); i >= 0 {
		rest = rest[:i]
	}
	if rest == "" {
		return "", "", false
	}
	return kind, rest, true
}

// guidValue returns the first value of the given kind in guids.
func guidValue(guids []models.PlexGUID, kind string) string {
	for _, g := range guids {
		if k, v, ok := parsePlexGUID(g.ID); ok && k == kind {
			return v
		}
	}
	return ""
}
