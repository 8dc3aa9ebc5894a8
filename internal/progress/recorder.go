// Mediatrack - Media Server Webhook Ingestion and Watch Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediatrack

// Package progress records watch activity against reconciled entities.
//
// Watched state only changes for items whose owning show (or the movie
// itself) is Planning or InProgress. Events against any other status are
// kept as seen-only history. Each accepted event appends at most one
// history row per (entity, history kind, time bucket); a completing stop has
// its own history kind.
package progress

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/mediatrack/internal/database"
	"github.com/tomtom215/mediatrack/internal/logging"
	"github.com/tomtom215/mediatrack/internal/metrics"
	"github.com/tomtom215/mediatrack/internal/models"
)

// Store is the catalog surface used for recording.
type Store interface {
	GetEpisode(ctx context.Context, id int64) (*models.Episode, error)
	GetShow(ctx context.Context, id int64) (*models.Show, error)
	UpdateShowStatus(ctx context.Context, id int64, status models.Status, from ...models.Status) (bool, error)
	UpdateSeasonStatus(ctx context.Context, id int64, status models.Status, from ...models.Status) (bool, error)
	MarkEpisodeWatched(ctx context.Context, id int64, at time.Time) (bool, error)

	GetMovie(ctx context.Context, id int64) (*models.Movie, error)
	UpdateMovieProgress(ctx context.Context, m *models.Movie) (bool, error)
	SetMovieRuntime(ctx context.Context, id int64, minutes int) error

	FindHistoryNear(ctx context.Context, kind models.EntityKind, entityID int64, eventKind models.EventKind, at time.Time, window time.Duration) (*models.WatchHistoryEntry, error)
	InsertHistory(ctx context.Context, h *models.WatchHistoryEntry) (int64, error)
}

// RuntimeSource looks up movie runtimes in minutes by TMDB id.
type RuntimeSource interface {
	MovieRuntime(ctx context.Context, tmdbID string) (int, error)
}

// Result classifies what happened to an event's history row.
type Result string

const (
	ResultRecorded  Result = "recorded"
	ResultSeenOnly  Result = "seen_only"
	ResultDuplicate Result = "duplicate"
	ResultNone      Result = "none"
)

// Outcome reports the effect of recording one event.
type Outcome struct {
	Result    Result
	HistoryID int64

	// Watched is set when this event flipped the entity to watched/completed.
	Watched bool

	// StatusChanged is set when a show, season or movie status moved.
	StatusChanged bool

	RuntimeBackfilled bool
}

// Config holds the recorder's timing knobs.
type Config struct {
	// HistoryWindow is the tolerance within which two deliveries of the same
	// event kind for the same entity are treated as one.
	HistoryWindow time.Duration

	// BackfillTimeout bounds the runtime lookup after a movie completes.
	BackfillTimeout time.Duration
}

// Recorder applies watch progress and appends history.
type Recorder struct {
	store    Store
	runtimes RuntimeSource
	cfg      Config
}

// New returns a Recorder. runtimes may be nil, which disables backfill.
func New(store Store, runtimes RuntimeSource, cfg Config) *Recorder {
	if cfg.HistoryWindow < time.Second {
		cfg.HistoryWindow = time.Second
	}
	if cfg.BackfillTimeout <= 0 {
		cfg.BackfillTimeout = 10 * time.Second
	}
	return &Recorder{store: store, runtimes: runtimes, cfg: cfg}
}

// Record applies event to the entity behind ref.
func (r *Recorder) Record(ctx context.Context, ref models.EntityRef, event *models.IngestEvent) (Outcome, error) {
	if event.Kind == models.EventLibraryAdded {
		return Outcome{Result: ResultNone}, nil
	}

	var (
		out Outcome
		err error
	)
	switch ref.Kind {
	case models.EntityEpisode:
		out, err = r.recordEpisode(ctx, ref, event)
	case models.EntityMovie:
		out, err = r.recordMovie(ctx, ref, event)
	default:
		return Outcome{}, fmt.Errorf("progress: unknown entity kind %q", ref.Kind)
	}
	if err != nil {
		return Outcome{}, err
	}

	metrics.HistoryEntries.WithLabelValues(string(event.Kind), string(out.Result)).Inc()
	return out, nil
}

func (r *Recorder) occurredAt(event *models.IngestEvent) time.Time {
	if event.OccurredAt.IsZero() {
		return time.Now().UTC()
	}
	return event.OccurredAt.UTC()
}

// alreadyRecorded reports whether a delivery of this event is already in
// history within the configured window.
func (r *Recorder) alreadyRecorded(ctx context.Context, kind models.EntityKind, id int64, event models.EventKind, at time.Time) (bool, error) {
	_, err := r.store.FindHistoryNear(ctx, kind, id, event, at, r.cfg.HistoryWindow)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, database.ErrNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("check history: %w", err)
	}
}

// appendHistory inserts the entry. A bucket conflict means a concurrent
// delivery got there first and is reported as a duplicate.
func (r *Recorder) appendHistory(ctx context.Context, h *models.WatchHistoryEntry) (Result, error) {
	h.Bucket = h.WatchedAt.Unix() / int64(r.cfg.HistoryWindow/time.Second)
	if _, err := r.store.InsertHistory(ctx, h); err != nil {
		if errors.Is(err, database.ErrConflict) {
			return ResultDuplicate, nil
		}
		return "", fmt.Errorf("append history: %w", err)
	}
	if h.SeenOnly {
		return ResultSeenOnly, nil
	}
	return ResultRecorded, nil
}

func completes(event *models.IngestEvent) bool {
	return event.Kind == models.EventPlaybackStopped && event.Completed
}

func (r *Recorder) recordEpisode(ctx context.Context, ref models.EntityRef, event *models.IngestEvent) (Outcome, error) {
	at := r.occurredAt(event)

	dup, err := r.alreadyRecorded(ctx, models.EntityEpisode, ref.ID, event.HistoryKind(), at)
	if err != nil {
		return Outcome{}, err
	}
	if dup {
		return Outcome{Result: ResultDuplicate}, nil
	}

	ep, err := r.store.GetEpisode(ctx, ref.ID)
	if err != nil {
		return Outcome{}, fmt.Errorf("load episode %d: %w", ref.ID, err)
	}
	show, err := r.store.GetShow(ctx, ep.ShowID)
	if err != nil {
		return Outcome{}, fmt.Errorf("load show %d: %w", ep.ShowID, err)
	}

	out := Outcome{}
	seenOnly := !show.Status.AllowsAutoWatch()
	if seenOnly {
		logging.Ctx(ctx).Debug().
			Int64("episode_id", ep.ID).
			Str("show_status", string(show.Status)).
			Msg("show status forbids automatic progress, recording as seen")
	} else {
		if show.Status == models.StatusPlanning && event.Kind.IsPlayback() {
			changed, err := r.store.UpdateShowStatus(ctx, show.ID, models.StatusInProgress, models.StatusPlanning)
			if err != nil {
				return Outcome{}, fmt.Errorf("start show: %w", err)
			}
			out.StatusChanged = changed
		}
		if event.Kind.IsPlayback() {
			changed, err := r.store.UpdateSeasonStatus(ctx, ep.SeasonID, models.StatusInProgress, models.StatusPlanning)
			if err != nil {
				return Outcome{}, fmt.Errorf("start season: %w", err)
			}
			out.StatusChanged = out.StatusChanged || changed
		}
		if completes(event) {
			watched, err := r.store.MarkEpisodeWatched(ctx, ep.ID, at)
			if err != nil {
				return Outcome{}, fmt.Errorf("mark watched: %w", err)
			}
			out.Watched = watched
		}
	}

	out.Result, err = r.appendHistory(ctx, &models.WatchHistoryEntry{
		EntityKind: models.EntityEpisode,
		EntityID:   ep.ID,
		EventKind:  event.HistoryKind(),
		WatchedAt:  at,
		SeenOnly:   seenOnly,
	})
	if err != nil {
		return Outcome{}, err
	}
	return out, nil
}

func (r *Recorder) recordMovie(ctx context.Context, ref models.EntityRef, event *models.IngestEvent) (Outcome, error) {
	at := r.occurredAt(event)

	dup, err := r.alreadyRecorded(ctx, models.EntityMovie, ref.ID, event.HistoryKind(), at)
	if err != nil {
		return Outcome{}, err
	}
	if dup {
		return Outcome{Result: ResultDuplicate}, nil
	}

	movie, err := r.store.GetMovie(ctx, ref.ID)
	if err != nil {
		return Outcome{}, fmt.Errorf("load movie %d: %w", ref.ID, err)
	}

	out := Outcome{}
	seenOnly := !movie.Status.AllowsAutoWatch()
	if !seenOnly {
		if next, ok := advanceMovie(movie, event, at); ok {
			changed, err := r.store.UpdateMovieProgress(ctx, next)
			if err != nil {
				return Outcome{}, fmt.Errorf("update movie: %w", err)
			}
			out.StatusChanged = changed
			out.Watched = changed && next.Status == models.StatusCompleted
		}
	}

	out.Result, err = r.appendHistory(ctx, &models.WatchHistoryEntry{
		EntityKind: models.EntityMovie,
		EntityID:   movie.ID,
		EventKind:  event.HistoryKind(),
		WatchedAt:  at,
		SeenOnly:   seenOnly,
	})
	if err != nil {
		return Outcome{}, err
	}

	if out.Watched && movie.RuntimeMinutes == 0 {
		out.RuntimeBackfilled = r.backfillRuntime(ctx, movie)
	}
	return out, nil
}

// advanceMovie computes the movie's next state for event. It reports false
// when nothing changes.
func advanceMovie(movie *models.Movie, event *models.IngestEvent, at time.Time) (*models.Movie, bool) {
	if !event.Kind.IsPlayback() {
		return nil, false
	}
	next := *movie
	if next.StartDate == nil {
		next.StartDate = &at
	}
	if completes(event) {
		next.Status = models.StatusCompleted
		next.Progress = 1
		next.EndDate = &at
	} else {
		next.Status = models.StatusInProgress
	}

	if next.Status == movie.Status && movie.StartDate != nil {
		return nil, false
	}
	return &next, true
}

// backfillRuntime fetches and stores a missing runtime. It never fails the
// event; the movie is already committed as completed.
func (r *Recorder) backfillRuntime(ctx context.Context, movie *models.Movie) bool {
	if r.runtimes == nil || movie.Source != models.ProviderTMDB || movie.ExternalID == "" {
		return false
	}
	log := logging.Ctx(ctx).With().Int64("movie_id", movie.ID).Str("tmdb_id", movie.ExternalID).Logger()

	fctx, cancel := context.WithTimeout(ctx, r.cfg.BackfillTimeout)
	defer cancel()

	minutes, err := r.runtimes.MovieRuntime(fctx, movie.ExternalID)
	if err != nil {
		log.Warn().Err(err).Msg("runtime backfill failed")
		return false
	}
	if err := r.store.SetMovieRuntime(ctx, movie.ID, minutes); err != nil {
		log.Warn().Err(err).Msg("failed to store backfilled runtime")
		return false
	}
	log.Debug().Int("runtime_minutes", minutes).Msg("runtime backfilled")
	return true
}
