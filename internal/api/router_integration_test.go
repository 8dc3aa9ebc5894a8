// Mediatrack - Media Server Webhook Ingestion and Watch Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediatrack

package api

import (
	"context"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/tomtom215/mediatrack/internal/config"
	"github.com/tomtom215/mediatrack/internal/database"
	"github.com/tomtom215/mediatrack/internal/pipeline"
	"github.com/tomtom215/mediatrack/internal/progress"
	"github.com/tomtom215/mediatrack/internal/reconcile"
	"github.com/tomtom215/mediatrack/internal/resolve"
)

func TestRouter_EndToEndWithStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store, err := database.Open(ctx, &config.DatabaseConfig{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "catalog.db"),
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	if _, err := store.EnsureUser(ctx, "alice", testToken, []string{"alice"}); err != nil {
		t.Fatalf("EnsureUser() error = %v", err)
	}

	proc := pipeline.New(
		resolve.New(store, nil, time.Second),
		reconcile.New(store),
		progress.New(store, nil, progress.Config{HistoryWindow: 5 * time.Second}),
	)
	h := NewHandler(proc, store, store, enabledWebhooks(), "test")
	t.Cleanup(h.Close)
	router := NewRouter(h, nil).SetupChi()

	play := `{"action":"play","media_type":"episode","title":"clip",
		"file":"/youtube/UCuAXFkgsw1L7xaCfnd5JJOw/dQw4w9WgXcQ.mp4","user":"alice"}`

	rec := post(router, "/webhook/tautulli/"+testToken, play, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("first delivery status = %d; body = %s", rec.Code, rec.Body.String())
	}
	data := decodeResponse(t, rec).Data.(map[string]interface{})
	if data["outcome"] != "processed" || data["created"] != true {
		t.Errorf("first delivery data = %v", data)
	}

	rec = post(router, "/webhook/tautulli/"+testToken, play, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("second delivery status = %d", rec.Code)
	}
	if got := decodeResponse(t, rec).Data.(map[string]interface{})["outcome"]; got != "duplicate" {
		t.Errorf("second delivery outcome = %v, want duplicate", got)
	}

	rec = post(router, "/webhook/tautulli/"+testToken, `{"action":`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body status = %d, want 400", rec.Code)
	}

	if n, err := store.CountRows(ctx, "episodes"); err != nil || n != 1 {
		t.Errorf("episodes = %d, %v; want 1", n, err)
	}

	rec = post(router, "/webhook/tautulli/not-a-real-token", play, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("unknown token status = %d, want 401", rec.Code)
	}
}
