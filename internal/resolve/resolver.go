// Mediatrack - Media Server Webhook Ingestion and Watch Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediatrack

// Package resolve maps identifier candidates onto catalog entities.
//
// Resolution runs an ordered chain of strategies and stops at the first one
// that produces a target:
//
//  1. catalog_id: an explicit TMDB id (after external id mapping, or
//     translated from IMDB/TVDB through the metadata provider).
//  2. video_id: an explicit external video id reported by the media server.
//  3. file_path: a video id, and optionally a channel id, derived from the
//     file path.
//
// When every strategy declines the target is Unresolved. The order encodes
// how much each source of identity is trusted and must not change.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/mediatrack/internal/database"
	"github.com/tomtom215/mediatrack/internal/identify"
	"github.com/tomtom215/mediatrack/internal/logging"
	"github.com/tomtom215/mediatrack/internal/metadata"
	"github.com/tomtom215/mediatrack/internal/models"
)

// Catalog is the read side of the catalog store used during resolution.
// Lookups return database.ErrNotFound when nothing matches.
type Catalog interface {
	FindShow(ctx context.Context, userID int64, provider, externalID string) (*models.Show, error)
	FindEpisodeByNumber(ctx context.Context, showID int64, seasonNumber, episodeNumber int) (*models.Episode, error)
	FindEpisodeByDedupKey(ctx context.Context, userID int64, provider, dedupKey string) (*models.Episode, error)
	FindMovie(ctx context.Context, userID int64, provider, externalID string) (*models.Movie, error)
	MappedTMDBID(ctx context.Context, source models.SourceService, kind models.MediaKind, externalID string) (string, error)
}

// Metadata is the subset of the metadata provider used during resolution.
type Metadata interface {
	FetchItemMetadata(ctx context.Context, videoID string) (*models.ItemMetadata, error)
	FindTMDB(ctx context.Context, idKind string, kind models.MediaKind, id string) (metadata.TMDBMatch, error)
}

// Resolver runs the strategy chain.
type Resolver struct {
	catalog         Catalog
	meta            Metadata
	metadataTimeout time.Duration
	chain           []strategy
}

type request struct {
	event *models.IngestEvent
	ids   identify.IdentifierSet
	user  *models.User
}

type strategy struct {
	name string
	fn   func(ctx context.Context, req *request) (ResolvedTarget, bool, error)
}

// New creates a Resolver. meta may be nil when no metadata provider is
// configured; translation and enrichment are then skipped.
func New(catalog Catalog, meta Metadata, metadataTimeout time.Duration) *Resolver {
	if metadataTimeout <= 0 {
		metadataTimeout = 10 * time.Second
	}
	r := &Resolver{
		catalog:         catalog,
		meta:            meta,
		metadataTimeout: metadataTimeout,
	}
	r.chain = []strategy{
		{name: "catalog_id", fn: r.byCatalogID},
		{name: "video_id", fn: r.byVideoID},
		{name: "file_path", fn: r.byFilePath},
	}
	return r
}

// Resolve returns the target for event. Errors are storage failures only;
// an event nothing can be made of yields an Unresolved target.
func (r *Resolver) Resolve(ctx context.Context, event *models.IngestEvent, ids identify.IdentifierSet, user *models.User) (ResolvedTarget, error) {
	req := &request{event: event, ids: ids, user: user}
	for _, s := range r.chain {
		target, ok, err := s.fn(ctx, req)
		if err != nil {
			return ResolvedTarget{}, fmt.Errorf("resolve via %s: %w", s.name, err)
		}
		if ok {
			target.Strategy = s.name
			return target, nil
		}
	}
	if ids.IsEmpty() {
		return unresolved("no identifiers"), nil
	}
	return unresolved("no strategy matched the identifiers"), nil
}

func (r *Resolver) byCatalogID(ctx context.Context, req *request) (ResolvedTarget, bool, error) {
	event := req.event
	if event.MediaKind != models.MediaMovie && event.MediaKind != models.MediaEpisode {
		return ResolvedTarget{}, false, nil
	}

	match, err := r.tmdbID(ctx, req)
	if err != nil || match.ID == "" {
		return ResolvedTarget{}, false, err
	}
	tmdbID := match.ID

	if event.MediaKind == models.MediaMovie {
		movie, err := r.catalog.FindMovie(ctx, req.user.ID, models.ProviderTMDB, tmdbID)
		switch {
		case err == nil:
			return ResolvedTarget{
				Kind:   TargetMatched,
				Entity: models.EntityRef{Kind: models.EntityMovie, ID: movie.ID},
			}, true, nil
		case errors.Is(err, database.ErrNotFound):
			return ResolvedTarget{
				Kind:  TargetCreatableMovie,
				Movie: &MovieSpec{Provider: models.ProviderTMDB, ExternalID: tmdbID, Title: event.Title},
			}, true, nil
		default:
			return ResolvedTarget{}, false, err
		}
	}

	seasonNumber, episodeNumber, ok := episodeNumbers(ctx, event, match)
	if !ok {
		logging.Ctx(ctx).Debug().Str("tmdb_id", tmdbID).Msg("episode event without season/episode numbers")
		return ResolvedTarget{}, false, nil
	}
	spec := &EpisodeSpec{
		Provider:       models.ProviderTMDB,
		ShowExternalID: tmdbID,
		ShowTitle:      event.SeriesTitle,
		SeasonNumber:   seasonNumber,
		EpisodeNumber:  episodeNumber,
		Title:          event.Title,
	}

	show, err := r.catalog.FindShow(ctx, req.user.ID, models.ProviderTMDB, tmdbID)
	if errors.Is(err, database.ErrNotFound) {
		return ResolvedTarget{Kind: TargetCreatableEpisode, Episode: spec}, true, nil
	}
	if err != nil {
		return ResolvedTarget{}, false, err
	}
	spec.ShowID = show.ID

	ep, err := r.catalog.FindEpisodeByNumber(ctx, show.ID, spec.SeasonNumber, spec.EpisodeNumber)
	switch {
	case err == nil:
		return ResolvedTarget{
			Kind:   TargetMatched,
			Entity: models.EntityRef{Kind: models.EntityEpisode, ID: ep.ID, ShowID: show.ID, SeasonID: ep.SeasonID},
		}, true, nil
	case errors.Is(err, database.ErrNotFound):
		return ResolvedTarget{Kind: TargetCreatableEpisode, Episode: spec}, true, nil
	default:
		return ResolvedTarget{}, false, err
	}
}

// episodeNumbers picks the season and episode an event is filed under.
// Numbers TMDB returned for an episode-level id win over the media
// server's, which may follow a different ordering.
func episodeNumbers(ctx context.Context, event *models.IngestEvent, match metadata.TMDBMatch) (season, episode int, ok bool) {
	if match.HasNumbers() {
		season, episode = *match.SeasonNumber, *match.EpisodeNumber
		if event.HasNumbers() && (*event.SeasonNumber != season || *event.EpisodeNumber != episode) {
			logging.Ctx(ctx).Debug().
				Int("event_season", *event.SeasonNumber).
				Int("event_episode", *event.EpisodeNumber).
				Int("tmdb_season", season).
				Int("tmdb_episode", episode).
				Msg("using TMDB episode numbering")
		}
		return season, episode, true
	}
	if event.HasNumbers() {
		return *event.SeasonNumber, *event.EpisodeNumber, true
	}
	return 0, 0, false
}

// tmdbID returns the effective TMDB id: an explicit id corrected through the
// external id mapping table, else a translation of an IMDB or TVDB id.
func (r *Resolver) tmdbID(ctx context.Context, req *request) (metadata.TMDBMatch, error) {
	ids, event := req.ids, req.event
	if ids.TMDB != "" {
		mapped, err := r.catalog.MappedTMDBID(ctx, event.Source, event.MediaKind, ids.TMDB)
		switch {
		case err == nil && mapped != "":
			logging.Ctx(ctx).Debug().
				Str("from", ids.TMDB).
				Str("to", mapped).
				Msg("applied external id mapping")
			return metadata.TMDBMatch{ID: mapped}, nil
		case err == nil, errors.Is(err, database.ErrNotFound):
			return metadata.TMDBMatch{ID: ids.TMDB}, nil
		default:
			return metadata.TMDBMatch{}, err
		}
	}

	if r.meta == nil {
		return metadata.TMDBMatch{}, nil
	}
	for _, c := range []struct{ kind, id string }{
		{models.IDIMDB, ids.IMDB},
		{models.IDTVDB, ids.TVDB},
	} {
		if c.id == "" {
			continue
		}
		fctx, cancel := context.WithTimeout(ctx, r.metadataTimeout)
		match, err := r.meta.FindTMDB(fctx, c.kind, event.MediaKind, c.id)
		cancel()
		if err == nil && match.ID != "" {
			return match, nil
		}
		if err != nil && !errors.Is(err, metadata.ErrNotFound) {
			logging.Ctx(ctx).Warn().Err(err).Str("id_kind", c.kind).Str("id", c.id).Msg("TMDB id translation failed")
		}
	}
	return metadata.TMDBMatch{}, nil
}

func (r *Resolver) byVideoID(ctx context.Context, req *request) (ResolvedTarget, bool, error) {
	if req.ids.VideoID == "" {
		return ResolvedTarget{}, false, nil
	}
	return r.videoTarget(ctx, req, req.ids.VideoID)
}

func (r *Resolver) byFilePath(ctx context.Context, req *request) (ResolvedTarget, bool, error) {
	if req.ids.Path.VideoID == "" {
		if req.ids.Path.ChannelID != "" {
			logging.Ctx(ctx).Debug().
				Str("channel_id", req.ids.Path.ChannelID).
				Msg("channel directory without a video id file name")
		}
		return ResolvedTarget{}, false, nil
	}
	return r.videoTarget(ctx, req, req.ids.Path.VideoID)
}

// videoTarget looks the video up by its dedup key and otherwise describes how
// to create it. The channel comes from the metadata provider, falling back
// to the channel directory in the file path.
func (r *Resolver) videoTarget(ctx context.Context, req *request, videoID string) (ResolvedTarget, bool, error) {
	ep, err := r.catalog.FindEpisodeByDedupKey(ctx, req.user.ID, models.ProviderYouTube, videoID)
	if err == nil {
		return ResolvedTarget{
			Kind:   TargetMatched,
			Entity: models.EntityRef{Kind: models.EntityEpisode, ID: ep.ID, ShowID: ep.ShowID, SeasonID: ep.SeasonID},
		}, true, nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return ResolvedTarget{}, false, err
	}

	meta := r.videoMetadata(ctx, videoID)
	spec := &VideoSpec{
		VideoID:   videoID,
		ChannelID: req.ids.Path.ChannelID,
		Title:     req.event.Title,
	}
	var published *time.Time
	if meta != nil {
		if meta.ChannelID != "" {
			spec.ChannelID = meta.ChannelID
			spec.ChannelTitle = meta.ChannelTitle
		}
		if meta.Title != "" {
			spec.Title = meta.Title
		}
		spec.DurationSeconds = meta.DurationSeconds
		published = meta.PublishedAt
	}
	if spec.ChannelID == "" {
		return unresolved("video " + videoID + " has no known channel"), true, nil
	}
	if spec.Title == "" {
		spec.Title = videoID
	}
	spec.SeasonNumber = seasonYear(published, req.event.OccurredAt)
	return ResolvedTarget{Kind: TargetCreatableVideo, Video: spec}, true, nil
}

// videoMetadata fetches metadata with a bounded timeout. Failures are logged
// and yield nil.
func (r *Resolver) videoMetadata(ctx context.Context, videoID string) *models.ItemMetadata {
	if r.meta == nil {
		return nil
	}
	fctx, cancel := context.WithTimeout(ctx, r.metadataTimeout)
	defer cancel()

	meta, err := r.meta.FetchItemMetadata(fctx, videoID)
	if err != nil {
		ev := logging.Ctx(ctx).Warn()
		if errors.Is(err, metadata.ErrNotFound) {
			ev = logging.Ctx(ctx).Info()
		}
		ev.Err(err).Str("video_id", videoID).Msg("video metadata unavailable")
		return nil
	}
	return meta
}
