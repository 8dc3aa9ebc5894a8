// Mediatrack - Media Server Webhook Ingestion and Watch Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediatrack

package resolve

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/tomtom215/mediatrack/internal/database"
	"github.com/tomtom215/mediatrack/internal/identify"
	"github.com/tomtom215/mediatrack/internal/metadata"
	"github.com/tomtom215/mediatrack/internal/models"
)

type fakeCatalog struct {
	shows    map[string]*models.Show    // provider:external
	episodes map[string]*models.Episode // showID:season:episode or provider:dedup
	movies   map[string]*models.Movie
	mappings map[string]string
	err      error
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		shows:    map[string]*models.Show{},
		episodes: map[string]*models.Episode{},
		movies:   map[string]*models.Movie{},
		mappings: map[string]string{},
	}
}

func (f *fakeCatalog) FindShow(_ context.Context, _ int64, provider, externalID string) (*models.Show, error) {
	if f.err != nil {
		return nil, f.err
	}
	if s, ok := f.shows[provider+":"+externalID]; ok {
		return s, nil
	}
	return nil, database.ErrNotFound
}

func (f *fakeCatalog) FindEpisodeByNumber(_ context.Context, showID int64, season, episode int) (*models.Episode, error) {
	if e, ok := f.episodes[fmt.Sprintf("%d:%d:%d", showID, season, episode)]; ok {
		return e, nil
	}
	return nil, database.ErrNotFound
}

func (f *fakeCatalog) FindEpisodeByDedupKey(_ context.Context, _ int64, provider, key string) (*models.Episode, error) {
	if f.err != nil {
		return nil, f.err
	}
	if e, ok := f.episodes[provider+":"+key]; ok {
		return e, nil
	}
	return nil, database.ErrNotFound
}

func (f *fakeCatalog) FindMovie(_ context.Context, _ int64, provider, externalID string) (*models.Movie, error) {
	if m, ok := f.movies[provider+":"+externalID]; ok {
		return m, nil
	}
	return nil, database.ErrNotFound
}

func (f *fakeCatalog) MappedTMDBID(_ context.Context, source models.SourceService, kind models.MediaKind, externalID string) (string, error) {
	if v, ok := f.mappings[fmt.Sprintf("%s:%s:%s", source, kind, externalID)]; ok {
		return v, nil
	}
	return "", database.ErrNotFound
}

type fakeMetadata struct {
	items     map[string]*models.ItemMetadata
	tmdb      map[string]metadata.TMDBMatch
	fetchErr  error
	fetches   int
	findCalls int
}

func (f *fakeMetadata) FetchItemMetadata(_ context.Context, videoID string) (*models.ItemMetadata, error) {
	f.fetches++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	if m, ok := f.items[videoID]; ok {
		return m, nil
	}
	return nil, metadata.ErrNotFound
}

func (f *fakeMetadata) FindTMDB(_ context.Context, idKind string, _ models.MediaKind, id string) (metadata.TMDBMatch, error) {
	f.findCalls++
	if v, ok := f.tmdb[idKind+":"+id]; ok {
		return v, nil
	}
	return metadata.TMDBMatch{}, metadata.ErrNotFound
}

var (
	testUser   = &models.User{ID: 7, Username: "alice"}
	occurredAt = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
)

const (
	channelID = "UCuAXFkgsw1L7xaCfnd5JJOw"
	videoID   = "S3HTZSTcieQ"
)

func resolveEvent(t *testing.T, r *Resolver, ev *models.IngestEvent) ResolvedTarget {
	t.Helper()
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = occurredAt
	}
	target, err := r.Resolve(context.Background(), ev, identify.Extract(ev), testUser)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	return target
}

func episodeEvent(ids map[string]string, path string) *models.IngestEvent {
	return &models.IngestEvent{
		Source:         models.SourcePlex,
		Kind:           models.EventPlaybackStopped,
		MediaKind:      models.MediaEpisode,
		RawIdentifiers: ids,
		FilePath:       path,
		SeriesTitle:    "Game of Thrones",
		Title:          "Winter Is Coming",
		SeasonNumber:   models.IntPtr(1),
		EpisodeNumber:  models.IntPtr(2),
	}
}

func TestResolve_CatalogIDMatched(t *testing.T) {
	t.Parallel()

	cat := newFakeCatalog()
	cat.shows["tmdb:1399"] = &models.Show{ID: 10}
	cat.episodes["10:1:2"] = &models.Episode{ID: 100, SeasonID: 20}

	target := resolveEvent(t, New(cat, nil, time.Second), episodeEvent(map[string]string{models.IDTMDB: "1399"}, ""))
	if target.Kind != TargetMatched || target.Strategy != "catalog_id" {
		t.Fatalf("target = %+v, want matched via catalog_id", target)
	}
	want := models.EntityRef{Kind: models.EntityEpisode, ID: 100, ShowID: 10, SeasonID: 20}
	if target.Entity != want {
		t.Errorf("Entity = %+v, want %+v", target.Entity, want)
	}
}

func TestResolve_CatalogIDCreatable(t *testing.T) {
	t.Parallel()

	cat := newFakeCatalog()
	cat.shows["tmdb:1399"] = &models.Show{ID: 10}

	target := resolveEvent(t, New(cat, nil, time.Second), episodeEvent(map[string]string{models.IDTMDB: "1399"}, ""))
	if target.Kind != TargetCreatableEpisode {
		t.Fatalf("Kind = %s, want creatable_episode", target.Kind)
	}
	if target.Episode.ShowID != 10 || target.Episode.SeasonNumber != 1 || target.Episode.EpisodeNumber != 2 {
		t.Errorf("Episode = %+v", target.Episode)
	}

	target = resolveEvent(t, New(newFakeCatalog(), nil, time.Second), episodeEvent(map[string]string{models.IDTMDB: "1399"}, ""))
	if target.Kind != TargetCreatableEpisode || target.Episode.ShowID != 0 || target.Episode.ShowTitle != "Game of Thrones" {
		t.Errorf("unknown show: target = %+v", target)
	}
}

func TestResolve_ExternalIDMapping(t *testing.T) {
	t.Parallel()

	cat := newFakeCatalog()
	cat.mappings["plex:episode:63056"] = "1399"
	cat.shows["tmdb:1399"] = &models.Show{ID: 10}
	cat.episodes["10:1:2"] = &models.Episode{ID: 100, SeasonID: 20}

	target := resolveEvent(t, New(cat, nil, time.Second), episodeEvent(map[string]string{models.IDTMDB: "63056"}, ""))
	if target.Kind != TargetMatched || target.Entity.ID != 100 {
		t.Errorf("target = %+v, want mapped match", target)
	}
}

func TestResolve_IMDBTranslation(t *testing.T) {
	t.Parallel()

	meta := &fakeMetadata{tmdb: map[string]metadata.TMDBMatch{"imdb:tt1375666": {ID: "27205"}}}
	ev := &models.IngestEvent{
		Source:         models.SourceJellyfin,
		MediaKind:      models.MediaMovie,
		RawIdentifiers: map[string]string{models.IDIMDB: "tt1375666"},
		Title:          "Inception",
	}
	target := resolveEvent(t, New(newFakeCatalog(), meta, time.Second), ev)
	if target.Kind != TargetCreatableMovie || target.Movie.ExternalID != "27205" {
		t.Errorf("target = %+v, want creatable movie 27205", target)
	}

	meta.tmdb = nil
	target = resolveEvent(t, New(newFakeCatalog(), meta, time.Second), ev)
	if target.Kind != TargetUnresolved {
		t.Errorf("failed translation should degrade to unresolved, got %+v", target)
	}
}

func TestResolve_EpisodeNumbersFromTranslation(t *testing.T) {
	t.Parallel()

	cat := newFakeCatalog()
	cat.shows["tmdb:1396"] = &models.Show{ID: 30}
	cat.episodes["30:5:14"] = &models.Episode{ID: 300, SeasonID: 35}

	meta := &fakeMetadata{tmdb: map[string]metadata.TMDBMatch{
		"imdb:tt0959621": {ID: "1396", SeasonNumber: models.IntPtr(5), EpisodeNumber: models.IntPtr(14)},
		"imdb:tt0903747": {ID: "1396"},
	}}
	r := New(cat, meta, time.Second)

	tests := []struct {
		name        string
		imdb        string
		season, ep  *int
		wantKind    TargetKind
		wantID      int64
		wantNumbers [2]int
	}{
		{"translation numbers override event", "tt0959621", models.IntPtr(1), models.IntPtr(2), TargetMatched, 300, [2]int{}},
		{"translation numbers fill missing event numbers", "tt0959621", nil, nil, TargetMatched, 300, [2]int{}},
		{"series match keeps event numbers", "tt0903747", models.IntPtr(2), models.IntPtr(3), TargetCreatableEpisode, 0, [2]int{2, 3}},
		{"series match without numbers", "tt0903747", nil, nil, TargetUnresolved, 0, [2]int{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := episodeEvent(map[string]string{models.IDIMDB: tt.imdb}, "")
			ev.SeasonNumber, ev.EpisodeNumber = tt.season, tt.ep

			target := resolveEvent(t, r, ev)
			if target.Kind != tt.wantKind {
				t.Fatalf("target = %+v, want %s", target, tt.wantKind)
			}
			if tt.wantID != 0 && target.Entity.ID != tt.wantID {
				t.Errorf("entity = %+v, want id %d", target.Entity, tt.wantID)
			}
			if tt.wantKind == TargetCreatableEpisode {
				got := [2]int{target.Episode.SeasonNumber, target.Episode.EpisodeNumber}
				if got != tt.wantNumbers || target.Episode.ShowID != 30 {
					t.Errorf("episode spec = %+v, want numbers %v in show 30", target.Episode, tt.wantNumbers)
				}
			}
		})
	}
}

// An event carrying every kind of identifier resolves through the most
// trusted strategy.
func TestResolve_TrustOrdering(t *testing.T) {
	t.Parallel()

	cat := newFakeCatalog()
	cat.shows["tmdb:1399"] = &models.Show{ID: 10}
	cat.episodes["10:1:2"] = &models.Episode{ID: 100, SeasonID: 20}
	cat.episodes["youtube:"+videoID] = &models.Episode{ID: 555, SeasonID: 55, ShowID: 5}
	cat.episodes["youtube:dQw4w9WgXcQ"] = &models.Episode{ID: 666, SeasonID: 66, ShowID: 6}

	all := map[string]string{models.IDTMDB: "1399", models.IDYouTube: "dQw4w9WgXcQ"}
	path := "/yt/" + channelID + "/" + videoID + ".mp4"
	r := New(cat, nil, time.Second)

	if target := resolveEvent(t, r, episodeEvent(all, path)); target.Entity.ID != 100 {
		t.Errorf("catalog id should win, got %+v", target)
	}

	noCatalog := map[string]string{models.IDYouTube: "dQw4w9WgXcQ"}
	if target := resolveEvent(t, r, episodeEvent(noCatalog, path)); target.Entity.ID != 666 || target.Strategy != "video_id" {
		t.Errorf("explicit video id should beat path, got %+v", target)
	}

	if target := resolveEvent(t, r, episodeEvent(nil, path)); target.Entity.ID != 555 || target.Strategy != "file_path" {
		t.Errorf("path should be used last, got %+v", target)
	}
}

func TestResolve_CreatableVideo(t *testing.T) {
	t.Parallel()

	published := time.Date(2023, 8, 9, 0, 0, 0, 0, time.UTC)
	meta := &fakeMetadata{items: map[string]*models.ItemMetadata{
		videoID: {Title: "Real Title", ChannelID: "UCmetaChannelXXXXXXXXXXX", ChannelTitle: "Meta Channel", PublishedAt: &published, DurationSeconds: 600},
	}}
	ev := &models.IngestEvent{
		Source:    models.SourceTautulli,
		Kind:      models.EventLibraryAdded,
		MediaKind: models.MediaEpisode,
		FilePath:  "/yt/" + channelID + "/" + videoID + ".mp4",
	}

	target := resolveEvent(t, New(newFakeCatalog(), meta, time.Second), ev)
	if target.Kind != TargetCreatableVideo {
		t.Fatalf("Kind = %s", target.Kind)
	}
	v := target.Video
	if v.ChannelID != "UCmetaChannelXXXXXXXXXXX" || v.Title != "Real Title" || v.SeasonNumber != 2023 || v.DurationSeconds != 600 {
		t.Errorf("Video = %+v, want metadata values", v)
	}
	if target.ChannelID() != v.ChannelID {
		t.Errorf("ChannelID() = %q", target.ChannelID())
	}

	// Provider down: channel from path, season from event year.
	down := &fakeMetadata{fetchErr: metadata.ErrTransient}
	target = resolveEvent(t, New(newFakeCatalog(), down, time.Second), ev)
	if target.Kind != TargetCreatableVideo || target.Video.ChannelID != channelID || target.Video.SeasonNumber != 2026 || target.Video.Title != videoID {
		t.Errorf("fallback target = %+v", target.Video)
	}
}

func TestResolve_Unresolved(t *testing.T) {
	t.Parallel()

	r := New(newFakeCatalog(), nil, time.Second)

	tests := []struct {
		name string
		ev   *models.IngestEvent
	}{
		{name: "movie file name", ev: &models.IngestEvent{MediaKind: models.MediaMovie, FilePath: "/movies/Inception.2010.mkv"}},
		{name: "video without channel", ev: &models.IngestEvent{MediaKind: models.MediaEpisode, FilePath: "/downloads/" + videoID + ".mp4"}},
		{name: "episode without numbers", ev: &models.IngestEvent{MediaKind: models.MediaEpisode, RawIdentifiers: map[string]string{models.IDTMDB: "1399"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			target := resolveEvent(t, r, tt.ev)
			if target.Kind != TargetUnresolved || target.Reason == "" {
				t.Errorf("target = %+v, want unresolved with reason", target)
			}
		})
	}
}

func TestResolve_StorageError(t *testing.T) {
	t.Parallel()

	cat := newFakeCatalog()
	cat.err = errors.New("database is locked")
	ev := episodeEvent(map[string]string{models.IDTMDB: "1399"}, "")
	ev.OccurredAt = occurredAt
	if _, err := New(cat, nil, time.Second).Resolve(context.Background(), ev, identify.Extract(ev), testUser); err == nil {
		t.Error("expected storage error to propagate")
	}
}

func TestResolvedTarget_Creatable(t *testing.T) {
	t.Parallel()

	tests := map[TargetKind]bool{
		TargetMatched:          false,
		TargetCreatableEpisode: true,
		TargetCreatableVideo:   true,
		TargetCreatableMovie:   true,
		TargetUnresolved:       false,
	}
	for kind, want := range tests {
		if got := (ResolvedTarget{Kind: kind}).Creatable(); got != want {
			t.Errorf("Creatable(%s) = %v, want %v", kind, got, want)
		}
	}
}
