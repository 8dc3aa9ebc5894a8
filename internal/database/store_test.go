// Mediatrack - Media Server Webhook Ingestion and Watch Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediatrack

package database

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/mediatrack/internal/config"
	"github.com/tomtom215/mediatrack/internal/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	cfg := &config.DatabaseConfig{
		Driver:       "sqlite",
		Path:         filepath.Join(t.TempDir(), "catalog.db"),
		MaxOpenConns: 4,
		BusyTimeout:  5 * time.Second,
	}
	s, err := Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedUser(t *testing.T, s *Store) int64 {
	t.Helper()
	id, err := s.EnsureUser(context.Background(), "alice", "tok-alice", []string{"Alice", " alice_tv "})
	if err != nil {
		t.Fatalf("EnsureUser() error = %v", err)
	}
	return id
}

func TestOpen_MigrationsIdempotent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "catalog.db")
	cfg := &config.DatabaseConfig{Driver: "sqlite", Path: path}
	for i := 0; i < 2; i++ {
		s, err := Open(context.Background(), cfg)
		if err != nil {
			t.Fatalf("Open() #%d error = %v", i+1, err)
		}
		if err := s.Ping(context.Background()); err != nil {
			t.Errorf("Ping() error = %v", err)
		}
		if s.Driver() != "sqlite" {
			t.Errorf("Driver() = %q", s.Driver())
		}
		_ = s.Close()
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	t.Parallel()

	if _, err := Open(context.Background(), &config.DatabaseConfig{Driver: "duckdb"}); err == nil {
		t.Error("expected error for unsupported driver")
	}
}

func TestDialectRebind(t *testing.T) {
	t.Parallel()

	pg := dialect{name: driverPostgres}
	got := pg.rebind("SELECT a FROM t WHERE b = ? AND c IN (?, ?)")
	if want := "SELECT a FROM t WHERE b = $1 AND c IN ($2, $3)"; got != want {
		t.Errorf("rebind() = %q, want %q", got, want)
	}
	lite := dialect{name: driverSQLite}
	if got := lite.rebind("x = ?"); got != "x = ?" {
		t.Errorf("sqlite rebind() = %q", got)
	}
}

func TestUsers(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	id := seedUser(t, s)
	again, err := s.EnsureUser(ctx, "alice", "tok-rotated", nil)
	if err != nil || again != id {
		t.Fatalf("EnsureUser() again = %d, %v; want %d", again, err, id)
	}

	if _, err := s.UserByToken(ctx, "tok-alice"); !errors.Is(err, ErrNotFound) {
		t.Errorf("old token: err = %v, want ErrNotFound", err)
	}
	u, err := s.UserByToken(ctx, "tok-rotated")
	if err != nil {
		t.Fatalf("UserByToken() error = %v", err)
	}
	if u.Username != "alice" || len(u.PlexUsernames) != 0 {
		t.Errorf("user = %+v", u)
	}

	if err := s.SetChannelFilters(ctx, id, []string{"UCaaa", "UCaaa", " ", "UCbbb"}); err != nil {
		t.Fatalf("SetChannelFilters() error = %v", err)
	}
	for ch, want := range map[string]bool{"UCaaa": true, "UCbbb": true, "UCccc": false} {
		got, err := s.IsChannelFiltered(ctx, id, ch)
		if err != nil || got != want {
			t.Errorf("IsChannelFiltered(%s) = %v, %v; want %v", ch, got, err, want)
		}
	}

	if _, err := s.MappedTMDBID(ctx, models.SourcePlex, models.MediaEpisode, "63056"); !errors.Is(err, ErrNotFound) {
		t.Errorf("MappedTMDBID() err = %v, want ErrNotFound", err)
	}
	if err := s.UpsertExternalMapping(ctx, models.SourcePlex, models.MediaEpisode, "63056", "1399"); err != nil {
		t.Fatalf("UpsertExternalMapping() error = %v", err)
	}
	if got, err := s.MappedTMDBID(ctx, models.SourcePlex, models.MediaEpisode, "63056"); err != nil || got != "1399" {
		t.Errorf("MappedTMDBID() = %q, %v", got, err)
	}
}

func TestCatalogHierarchy(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()
	userID := seedUser(t, s)

	show := &models.Show{UserID: userID, Source: models.ProviderYouTube, ExternalID: "UCchan", Title: "Chan", Status: models.StatusPlanning}
	if _, err := s.InsertShow(ctx, show); err != nil {
		t.Fatalf("InsertShow() error = %v", err)
	}
	dup := *show
	if _, err := s.InsertShow(ctx, &dup); !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate InsertShow() err = %v, want ErrConflict", err)
	}

	season := &models.Season{ShowID: show.ID, SeasonNumber: 2024, Status: models.StatusPlanning}
	if _, err := s.InsertSeason(ctx, season); err != nil {
		t.Fatalf("InsertSeason() error = %v", err)
	}

	ep := &models.Episode{SeasonID: season.ID, UserID: userID, Source: models.ProviderYouTube, EpisodeNumber: 1, Title: "v1", DedupKey: "S3HTZSTcieQ"}
	if _, err := s.InsertEpisode(ctx, ep); err != nil {
		t.Fatalf("InsertEpisode() error = %v", err)
	}

	sameNumber := &models.Episode{SeasonID: season.ID, UserID: userID, Source: models.ProviderYouTube, EpisodeNumber: 1, DedupKey: "dQw4w9WgXcQ"}
	if _, err := s.InsertEpisode(ctx, sameNumber); !errors.Is(err, ErrConflict) {
		t.Errorf("number collision err = %v, want ErrConflict", err)
	}
	sameKey := &models.Episode{SeasonID: season.ID, UserID: userID, Source: models.ProviderYouTube, EpisodeNumber: 2, DedupKey: "S3HTZSTcieQ"}
	if _, err := s.InsertEpisode(ctx, sameKey); !errors.Is(err, ErrConflict) {
		t.Errorf("dedup key collision err = %v, want ErrConflict", err)
	}

	// Episodes without a dedup key do not collide with each other.
	for n := 10; n < 12; n++ {
		if _, err := s.InsertEpisode(ctx, &models.Episode{SeasonID: season.ID, UserID: userID, Source: models.ProviderYouTube, EpisodeNumber: n}); err != nil {
			t.Errorf("InsertEpisode(no key, %d) error = %v", n, err)
		}
	}

	next := &models.Episode{SeasonID: season.ID, UserID: userID, Source: models.ProviderYouTube, Title: "v12", DedupKey: "jNQXAC9IVRw"}
	if _, err := s.InsertNextEpisode(ctx, next); err != nil || next.EpisodeNumber != 12 {
		t.Errorf("InsertNextEpisode() number = %d, %v; want 12", next.EpisodeNumber, err)
	}
	again := &models.Episode{SeasonID: season.ID, UserID: userID, Source: models.ProviderYouTube, DedupKey: "jNQXAC9IVRw"}
	if _, err := s.InsertNextEpisode(ctx, again); !errors.Is(err, ErrConflict) {
		t.Errorf("InsertNextEpisode(same key) err = %v, want ErrConflict", err)
	}

	found, err := s.FindEpisodeByDedupKey(ctx, userID, models.ProviderYouTube, "S3HTZSTcieQ")
	if err != nil {
		t.Fatalf("FindEpisodeByDedupKey() error = %v", err)
	}
	if found.ID != ep.ID || found.ShowID != show.ID || found.Watched {
		t.Errorf("found = %+v", found)
	}
	if byNum, err := s.FindEpisodeByNumber(ctx, show.ID, 2024, 1); err != nil || byNum.ID != ep.ID {
		t.Errorf("FindEpisodeByNumber() = %+v, %v", byNum, err)
	}

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	if changed, err := s.MarkEpisodeWatched(ctx, ep.ID, at); err != nil || !changed {
		t.Errorf("MarkEpisodeWatched() = %v, %v", changed, err)
	}
	if changed, _ := s.MarkEpisodeWatched(ctx, ep.ID, at.Add(time.Hour)); changed {
		t.Error("second MarkEpisodeWatched() should not change the row")
	}
	got, _ := s.GetEpisode(ctx, ep.ID)
	if !got.Watched || got.WatchedAt == nil || !got.WatchedAt.Equal(at) {
		t.Errorf("episode after watch = %+v", got)
	}

	if changed, err := s.UpdateShowStatus(ctx, show.ID, models.StatusInProgress, models.StatusPlanning); err != nil || !changed {
		t.Errorf("UpdateShowStatus() = %v, %v", changed, err)
	}
	if changed, _ := s.UpdateShowStatus(ctx, show.ID, models.StatusInProgress, models.StatusPlanning); changed {
		t.Error("promotion from Planning should apply once")
	}
	reloaded, _ := s.GetShow(ctx, show.ID)
	if reloaded.Status != models.StatusInProgress {
		t.Errorf("show status = %s", reloaded.Status)
	}
}

func TestMovies(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()
	userID := seedUser(t, s)

	m := &models.Movie{UserID: userID, Source: models.ProviderTMDB, ExternalID: "27205", Title: "Inception", Status: models.StatusInProgress}
	if _, err := s.InsertMovie(ctx, m); err != nil {
		t.Fatalf("InsertMovie() error = %v", err)
	}

	end := time.Date(2026, 2, 1, 22, 0, 0, 0, time.UTC)
	m.Status, m.Progress, m.EndDate = models.StatusCompleted, 1, &end
	if changed, err := s.UpdateMovieProgress(ctx, m); err != nil || !changed {
		t.Fatalf("UpdateMovieProgress() = %v, %v", changed, err)
	}

	m.Status, m.Progress, m.EndDate = models.StatusInProgress, 0, nil
	if changed, _ := s.UpdateMovieProgress(ctx, m); changed {
		t.Error("completed movie must not regress")
	}

	if err := s.SetMovieRuntime(ctx, m.ID, 148); err != nil {
		t.Fatalf("SetMovieRuntime() error = %v", err)
	}
	_ = s.SetMovieRuntime(ctx, m.ID, 999)

	got, err := s.FindMovie(ctx, userID, models.ProviderTMDB, "27205")
	if err != nil {
		t.Fatalf("FindMovie() error = %v", err)
	}
	if got.Status != models.StatusCompleted || got.Progress != 1 || got.RuntimeMinutes != 148 || got.EndDate == nil {
		t.Errorf("movie = %+v", got)
	}
}

func TestHistory(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	entry := &models.WatchHistoryEntry{EntityKind: models.EntityEpisode, EntityID: 42, EventKind: models.EventPlaybackStopped, Bucket: at.Unix() / 5, WatchedAt: at}
	if _, err := s.InsertHistory(ctx, entry); err != nil {
		t.Fatalf("InsertHistory() error = %v", err)
	}

	dup := *entry
	if _, err := s.InsertHistory(ctx, &dup); !errors.Is(err, ErrConflict) {
		t.Errorf("same bucket err = %v, want ErrConflict", err)
	}

	if _, err := s.FindHistoryNear(ctx, models.EntityEpisode, 42, models.EventPlaybackStopped, at.Add(4*time.Second), 5*time.Second); err != nil {
		t.Errorf("FindHistoryNear(+4s) error = %v", err)
	}
	if _, err := s.FindHistoryNear(ctx, models.EntityEpisode, 42, models.EventPlaybackStopped, at.Add(time.Minute), 5*time.Second); !errors.Is(err, ErrNotFound) {
		t.Errorf("FindHistoryNear(+1m) err = %v, want ErrNotFound", err)
	}
	if _, err := s.FindHistoryNear(ctx, models.EntityEpisode, 42, models.EventPlaybackStarted, at, 5*time.Second); !errors.Is(err, ErrNotFound) {
		t.Errorf("other event kind err = %v, want ErrNotFound", err)
	}

	entries, err := s.ListHistory(ctx, models.EntityEpisode, 42)
	if err != nil || len(entries) != 1 {
		t.Fatalf("ListHistory() = %d entries, %v", len(entries), err)
	}
	if !entries[0].WatchedAt.Equal(at) {
		t.Errorf("WatchedAt = %v, want %v", entries[0].WatchedAt, at)
	}
}

// Concurrent inserts of the same show produce exactly one row; every loser
// sees ErrConflict rather than a generic failure.
func TestInsertShow_Concurrent(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()
	userID := seedUser(t, s)

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		created   int
		conflicts int
		failures  []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.InsertShow(ctx, &models.Show{UserID: userID, Source: models.ProviderTMDB, ExternalID: "1399", Title: "GoT", Status: models.StatusPlanning})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, ErrConflict):
				conflicts++
			default:
				failures = append(failures, err)
			}
		}()
	}
	wg.Wait()

	if len(failures) > 0 {
		t.Fatalf("unexpected errors: %v", failures)
	}
	if created != 1 || conflicts != workers-1 {
		t.Errorf("created = %d conflicts = %d", created, conflicts)
	}
	if n, _ := s.CountRows(ctx, "shows"); n != 1 {
		t.Errorf("shows = %d, want 1", n)
	}
}

// Concurrent next-number inserts into one season never share a number.
func TestInsertNextEpisode_Concurrent(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()
	userID := seedUser(t, s)

	show := &models.Show{UserID: userID, Source: models.ProviderYouTube, ExternalID: "UCuAXFkgsw1L7xaCfnd5JJOw", Title: "Channel", Status: models.StatusPlanning}
	if _, err := s.InsertShow(ctx, show); err != nil {
		t.Fatalf("InsertShow() error = %v", err)
	}
	season := &models.Season{ShowID: show.ID, SeasonNumber: 2024, Status: models.StatusPlanning}
	if _, err := s.InsertSeason(ctx, season); err != nil {
		t.Fatalf("InsertSeason() error = %v", err)
	}

	const workers = 8
	numbers := make(map[int]bool, workers)
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		failures []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ep := &models.Episode{SeasonID: season.ID, UserID: userID, Source: models.ProviderYouTube, DedupKey: fmt.Sprintf("video%06d", i)}
			_, err := s.InsertNextEpisode(ctx, ep)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures = append(failures, err)
				return
			}
			numbers[ep.EpisodeNumber] = true
		}(i)
	}
	wg.Wait()

	if len(failures) > 0 {
		t.Fatalf("unexpected errors: %v", failures)
	}
	for n := 1; n <= workers; n++ {
		if !numbers[n] {
			t.Errorf("episode number %d missing from %v", n, numbers)
		}
	}
}
