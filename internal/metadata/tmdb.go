// Mediatrack - Media Server Webhook Ingestion and Watch Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediatrack

package metadata

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/tomtom215/mediatrack/internal/models"
)

// externalSources maps identifier kinds to TMDB's external_source values.
var externalSources = map[string]string{
	models.IDIMDB: "imdb_id",
	models.IDTVDB: "tvdb_id",
}

type tmdbFindResult struct {
	MovieResults []struct {
		ID int64 `json:"id"`
	} `json:"movie_results"`
	TVResults []struct {
		ID int64 `json:"id"`
	} `json:"tv_results"`
	TVEpisodeResults []struct {
		ShowID        int64 `json:"show_id"`
		SeasonNumber  int   `json:"season_number"`
		EpisodeNumber int   `json:"episode_number"`
	} `json:"tv_episode_results"`
}

// TMDBMatch is a translated TMDB id. When the external id named a single
// episode, ID is its series and the episode's numbers are set.
type TMDBMatch struct {
	ID            string
	SeasonNumber  *int
	EpisodeNumber *int
}

// HasNumbers reports whether TMDB placed the id at a season and episode.
func (m TMDBMatch) HasNumbers() bool {
	return m.SeasonNumber != nil && m.EpisodeNumber != nil
}

type tmdbMovie struct {
	ID      int64  `json:"id"`
	Title   string `json:"title"`
	Runtime int    `json:"runtime"`
}

// FindTMDB translates an IMDB or TVDB id to a TMDB id. For episodes the
// series id is returned, so an IMDB episode id resolves to its show along
// with the season and episode numbers TMDB files it under.
func (c *Client) FindTMDB(ctx context.Context, idKind string, kind models.MediaKind, id string) (TMDBMatch, error) {
	source, ok := externalSources[idKind]
	if !ok {
		return TMDBMatch{}, fmt.Errorf("metadata: unsupported id kind %q", idKind)
	}
	if !c.tmdb.configured() {
		return TMDBMatch{}, ErrNotConfigured
	}

	key := "tmdb-find:" + idKind + ":" + string(kind) + ":" + id
	return cached(c, key, func() (TMDBMatch, error) {
		u, err := url.Parse(c.tmdb.baseURL + "/find/" + url.PathEscape(id))
		if err != nil {
			return TMDBMatch{}, fmt.Errorf("metadata: tmdb base url: %w", err)
		}
		q := u.Query()
		q.Set("external_source", source)
		q.Set("api_key", c.tmdb.apiKey)
		u.RawQuery = q.Encode()

		body, err := c.get(ctx, "tmdb_find", u)
		if err != nil {
			return TMDBMatch{}, err
		}

		var res tmdbFindResult
		if err := decode(body, &res); err != nil {
			return TMDBMatch{}, err
		}

		switch kind {
		case models.MediaMovie:
			if len(res.MovieResults) > 0 {
				return TMDBMatch{ID: strconv.FormatInt(res.MovieResults[0].ID, 10)}, nil
			}
		default:
			if len(res.TVResults) > 0 {
				return TMDBMatch{ID: strconv.FormatInt(res.TVResults[0].ID, 10)}, nil
			}
			if len(res.TVEpisodeResults) > 0 {
				ep := res.TVEpisodeResults[0]
				match := TMDBMatch{ID: strconv.FormatInt(ep.ShowID, 10)}
				if ep.EpisodeNumber > 0 {
					season, episode := ep.SeasonNumber, ep.EpisodeNumber
					match.SeasonNumber, match.EpisodeNumber = &season, &episode
				}
				return match, nil
			}
		}
		return TMDBMatch{}, ErrNotFound
	})
}

// MovieRuntime returns a TMDB movie's runtime in minutes. A movie TMDB
// knows but has no runtime for yields ErrNotFound.
func (c *Client) MovieRuntime(ctx context.Context, tmdbID string) (int, error) {
	if !c.tmdb.configured() {
		return 0, ErrNotConfigured
	}
	return cached(c, "tmdb-movie:"+tmdbID, func() (int, error) {
		u, err := url.Parse(c.tmdb.baseURL + "/movie/" + url.PathEscape(tmdbID))
		if err != nil {
			return 0, fmt.Errorf("metadata: tmdb base url: %w", err)
		}
		q := u.Query()
		q.Set("api_key", c.tmdb.apiKey)
		u.RawQuery = q.Encode()

		body, err := c.get(ctx, "tmdb_movie", u)
		if err != nil {
			return 0, err
		}

		var movie tmdbMovie
		if err := decode(body, &movie); err != nil {
			return 0, err
		}
		if movie.Runtime <= 0 {
			return 0, ErrNotFound
		}
		return movie.Runtime, nil
	})
}
