// Mediatrack - Media Server Webhook Ingestion and Watch Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediatrack

// Package reconcile turns a resolved target into catalog rows.
//
// Every get-or-create follows the same shape: attempt the insert, and on a
// uniqueness conflict re-read the row that won. Nothing is locked in
// process; the storage constraints on (user, source, external id),
// (show, season number), (season, episode number) and (user, source,
// dedup key) are what keep concurrent deliveries from duplicating rows.
package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/avast/retry-go/v4"

	"github.com/tomtom215/mediatrack/internal/database"
	"github.com/tomtom215/mediatrack/internal/logging"
	"github.com/tomtom215/mediatrack/internal/metrics"
	"github.com/tomtom215/mediatrack/internal/models"
	"github.com/tomtom215/mediatrack/internal/resolve"
)

var (
	// ErrFiltered is returned when the target's channel is on the user's
	// filter list. No rows were written.
	ErrFiltered = errors.New("reconcile: channel filtered")

	// ErrUnresolved is returned for targets that carry nothing to reconcile.
	ErrUnresolved = errors.New("reconcile: target is unresolved")

	// ErrNumberContention is returned when concurrent creations in one
	// season kept taking the next episode number. The show and season rows
	// are committed; a re-delivery completes the episode.
	ErrNumberContention = errors.New("reconcile: episode number contention")
)

// Store is the catalog surface the reconciler writes through. Lookups
// return database.ErrNotFound; inserts return database.ErrConflict when a
// uniqueness constraint rejects the row.
type Store interface {
	IsChannelFiltered(ctx context.Context, userID int64, channelID string) (bool, error)

	FindShow(ctx context.Context, userID int64, provider, externalID string) (*models.Show, error)
	GetShow(ctx context.Context, id int64) (*models.Show, error)
	InsertShow(ctx context.Context, show *models.Show) (int64, error)
	UpdateShowStatus(ctx context.Context, id int64, status models.Status, from ...models.Status) (bool, error)

	FindSeason(ctx context.Context, showID int64, number int) (*models.Season, error)
	InsertSeason(ctx context.Context, season *models.Season) (int64, error)

	FindEpisodeByNumber(ctx context.Context, showID int64, seasonNumber, episodeNumber int) (*models.Episode, error)
	FindEpisodeByDedupKey(ctx context.Context, userID int64, provider, dedupKey string) (*models.Episode, error)
	InsertEpisode(ctx context.Context, ep *models.Episode) (int64, error)
	InsertNextEpisode(ctx context.Context, ep *models.Episode) (int64, error)

	FindMovie(ctx context.Context, userID int64, provider, externalID string) (*models.Movie, error)
	InsertMovie(ctx context.Context, m *models.Movie) (int64, error)
}

// Reconciler gets-or-creates catalog entities for resolved targets.
type Reconciler struct {
	store Store
}

// New returns a Reconciler writing through store.
func New(store Store) *Reconciler {
	return &Reconciler{store: store}
}

// Reconcile returns the catalog entity for target, creating the show,
// season, episode or movie rows it needs. Matched targets are returned
// unchanged. ErrFiltered means the channel is filtered for the user.
func (r *Reconciler) Reconcile(ctx context.Context, target resolve.ResolvedTarget, userID int64) (models.EntityRef, error) {
	switch target.Kind {
	case resolve.TargetMatched:
		return target.Entity, nil
	case resolve.TargetCreatableEpisode:
		if target.Episode == nil {
			return models.EntityRef{}, fmt.Errorf("reconcile: %s target without episode", target.Kind)
		}
		return r.reconcileEpisode(ctx, userID, target.Episode)
	case resolve.TargetCreatableVideo:
		if target.Video == nil {
			return models.EntityRef{}, fmt.Errorf("reconcile: %s target without video", target.Kind)
		}
		return r.reconcileVideo(ctx, userID, target.Video)
	case resolve.TargetCreatableMovie:
		if target.Movie == nil {
			return models.EntityRef{}, fmt.Errorf("reconcile: %s target without movie", target.Kind)
		}
		return r.reconcileMovie(ctx, userID, target.Movie)
	default:
		return models.EntityRef{}, ErrUnresolved
	}
}

func (r *Reconciler) checkFilter(ctx context.Context, userID int64, channelID string) error {
	if channelID == "" {
		return nil
	}
	filtered, err := r.store.IsChannelFiltered(ctx, userID, channelID)
	if err != nil {
		return fmt.Errorf("check channel filter: %w", err)
	}
	if filtered {
		return ErrFiltered
	}
	return nil
}

func (r *Reconciler) reconcileEpisode(ctx context.Context, userID int64, spec *resolve.EpisodeSpec) (models.EntityRef, error) {
	if err := r.checkFilter(ctx, userID, spec.ShowExternalID); err != nil {
		return models.EntityRef{}, err
	}

	show, err := r.episodeShow(ctx, userID, spec)
	if err != nil {
		return models.EntityRef{}, err
	}
	season, err := r.getOrCreateSeason(ctx, show, spec.SeasonNumber)
	if err != nil {
		return models.EntityRef{}, err
	}

	ep := &models.Episode{
		SeasonID:      season.ID,
		UserID:        userID,
		Source:        spec.Provider,
		EpisodeNumber: spec.EpisodeNumber,
		Title:         spec.Title,
	}
	created := true
	if _, err := r.store.InsertEpisode(ctx, ep); err != nil {
		if !errors.Is(err, database.ErrConflict) {
			return models.EntityRef{}, fmt.Errorf("create episode: %w", err)
		}
		existing, ferr := r.store.FindEpisodeByNumber(ctx, show.ID, spec.SeasonNumber, spec.EpisodeNumber)
		if ferr != nil {
			return models.EntityRef{}, fmt.Errorf("re-read episode after conflict: %w", ferr)
		}
		ep, created = existing, false
	}
	if created {
		metrics.EntitiesCreated.WithLabelValues("episode").Inc()
	}

	return models.EntityRef{
		Kind:     models.EntityEpisode,
		ID:       ep.ID,
		ShowID:   show.ID,
		SeasonID: season.ID,
		Created:  created,
	}, nil
}

// episodeShow loads the show found during resolution or gets-or-creates it.
func (r *Reconciler) episodeShow(ctx context.Context, userID int64, spec *resolve.EpisodeSpec) (*models.Show, error) {
	if spec.ShowID > 0 {
		show, err := r.store.GetShow(ctx, spec.ShowID)
		if err != nil {
			return nil, fmt.Errorf("load show %d: %w", spec.ShowID, err)
		}
		return show, nil
	}
	title := spec.ShowTitle
	if title == "" {
		title = spec.ShowExternalID
	}
	return r.getOrCreateShow(ctx, &models.Show{
		UserID:     userID,
		Source:     spec.Provider,
		ExternalID: spec.ShowExternalID,
		Title:      title,
		Status:     models.StatusPlanning,
	})
}

func (r *Reconciler) reconcileVideo(ctx context.Context, userID int64, spec *resolve.VideoSpec) (models.EntityRef, error) {
	if err := r.checkFilter(ctx, userID, spec.ChannelID); err != nil {
		return models.EntityRef{}, err
	}

	title := spec.ChannelTitle
	if title == "" {
		title = spec.ChannelID
	}
	show, err := r.getOrCreateShow(ctx, &models.Show{
		UserID:     userID,
		Source:     models.ProviderYouTube,
		ExternalID: spec.ChannelID,
		Title:      title,
		Status:     models.StatusPlanning,
		Notes:      "YouTube Channel ID: " + spec.ChannelID,
	})
	if err != nil {
		return models.EntityRef{}, err
	}
	season, err := r.getOrCreateSeason(ctx, show, spec.SeasonNumber)
	if err != nil {
		return models.EntityRef{}, err
	}

	ep, created, err := r.createNumberedEpisode(ctx, season, &models.Episode{
		SeasonID:       season.ID,
		UserID:         userID,
		Source:         models.ProviderYouTube,
		Title:          spec.Title,
		DedupKey:       spec.VideoID,
		RuntimeMinutes: (spec.DurationSeconds + 59) / 60,
	})
	if err != nil {
		return models.EntityRef{}, err
	}

	ref := models.EntityRef{
		Kind:     models.EntityEpisode,
		ID:       ep.ID,
		ShowID:   show.ID,
		SeasonID: ep.SeasonID,
		Created:  created,
	}
	if !created && ep.ShowID != 0 {
		ref.ShowID = ep.ShowID
	}
	return ref, nil
}

// createNumberedEpisode inserts ep as the next episode of season; the store
// picks the number inside the insert. A conflict on the dedup key means
// another delivery created the video and that row is returned. A conflict
// on the number is retried once.
func (r *Reconciler) createNumberedEpisode(ctx context.Context, season *models.Season, ep *models.Episode) (*models.Episode, bool, error) {
	var existing *models.Episode

	err := retry.Do(
		func() error {
			_, err := r.store.InsertNextEpisode(ctx, ep)
			if err == nil {
				return nil
			}
			if !errors.Is(err, database.ErrConflict) {
				return retry.Unrecoverable(fmt.Errorf("create episode: %w", err))
			}

			found, ferr := r.store.FindEpisodeByDedupKey(ctx, ep.UserID, ep.Source, ep.DedupKey)
			switch {
			case ferr == nil:
				existing = found
				return nil
			case errors.Is(ferr, database.ErrNotFound):
				return fmt.Errorf("%w: season %d", ErrNumberContention, season.ID)
			default:
				return retry.Unrecoverable(fmt.Errorf("re-read episode after conflict: %w", ferr))
			}
		},
		retry.Attempts(2),
		retry.Delay(0),
		retry.RetryIf(func(err error) bool { return errors.Is(err, ErrNumberContention) }),
		retry.OnRetry(func(n uint, err error) {
			logging.Ctx(ctx).Debug().Err(err).Uint("attempt", n+1).Msg("retrying episode numbering")
		}),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, false, err
	}

	if existing != nil {
		return existing, false, nil
	}
	metrics.EntitiesCreated.WithLabelValues("episode").Inc()
	return ep, true, nil
}

func (r *Reconciler) reconcileMovie(ctx context.Context, userID int64, spec *resolve.MovieSpec) (models.EntityRef, error) {
	movie := &models.Movie{
		UserID:     userID,
		Source:     spec.Provider,
		ExternalID: spec.ExternalID,
		Title:      spec.Title,
		Status:     models.StatusPlanning,
	}
	if movie.Title == "" {
		movie.Title = spec.ExternalID
	}

	created := true
	if _, err := r.store.InsertMovie(ctx, movie); err != nil {
		if !errors.Is(err, database.ErrConflict) {
			return models.EntityRef{}, fmt.Errorf("create movie: %w", err)
		}
		existing, ferr := r.store.FindMovie(ctx, userID, spec.Provider, spec.ExternalID)
		if ferr != nil {
			return models.EntityRef{}, fmt.Errorf("re-read movie after conflict: %w", ferr)
		}
		movie, created = existing, false
	}
	if created {
		metrics.EntitiesCreated.WithLabelValues("movie").Inc()
	}
	return models.EntityRef{Kind: models.EntityMovie, ID: movie.ID, Created: created}, nil
}

func (r *Reconciler) getOrCreateShow(ctx context.Context, show *models.Show) (*models.Show, error) {
	existing, err := r.store.FindShow(ctx, show.UserID, show.Source, show.ExternalID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("find show: %w", err)
	}

	if _, err := r.store.InsertShow(ctx, show); err != nil {
		if !errors.Is(err, database.ErrConflict) {
			return nil, fmt.Errorf("create show: %w", err)
		}
		existing, ferr := r.store.FindShow(ctx, show.UserID, show.Source, show.ExternalID)
		if ferr != nil {
			return nil, fmt.Errorf("re-read show after conflict: %w", ferr)
		}
		return existing, nil
	}

	metrics.EntitiesCreated.WithLabelValues("show").Inc()
	logging.Ctx(ctx).Info().
		Int64("show_id", show.ID).
		Str("source", show.Source).
		Str("external_id", show.ExternalID).
		Msg("created show")
	return show, nil
}

// getOrCreateSeason returns the season, creating it when missing. A new
// season under a Completed show moves the show back to InProgress.
func (r *Reconciler) getOrCreateSeason(ctx context.Context, show *models.Show, number int) (*models.Season, error) {
	season, err := r.store.FindSeason(ctx, show.ID, number)
	if err == nil {
		return season, nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("find season: %w", err)
	}

	season = &models.Season{ShowID: show.ID, SeasonNumber: number, Status: models.StatusPlanning}
	if _, err := r.store.InsertSeason(ctx, season); err != nil {
		if !errors.Is(err, database.ErrConflict) {
			return nil, fmt.Errorf("create season: %w", err)
		}
		existing, ferr := r.store.FindSeason(ctx, show.ID, number)
		if ferr != nil {
			return nil, fmt.Errorf("re-read season after conflict: %w", ferr)
		}
		return existing, nil
	}
	metrics.EntitiesCreated.WithLabelValues("season").Inc()

	if show.Status == models.StatusCompleted {
		changed, err := r.store.UpdateShowStatus(ctx, show.ID, models.StatusInProgress, models.StatusCompleted)
		if err != nil {
			return nil, fmt.Errorf("promote show: %w", err)
		}
		if changed {
			show.Status = models.StatusInProgress
			logging.Ctx(ctx).Info().
				Int64("show_id", show.ID).
				Int("season", number).
				Msg("new season under completed show, moved to in progress")
		}
	}
	return season, nil
}
