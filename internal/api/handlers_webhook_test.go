// Mediatrack - Media Server Webhook Ingestion and Watch Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediatrack

package api

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/mediatrack/internal/config"
	"github.com/tomtom215/mediatrack/internal/database"
	"github.com/tomtom215/mediatrack/internal/metrics"
	"github.com/tomtom215/mediatrack/internal/models"
	"github.com/tomtom215/mediatrack/internal/normalize"
	"github.com/tomtom215/mediatrack/internal/pipeline"
	"github.com/tomtom215/mediatrack/internal/reconcile"
)

const testToken = "a1b2c3d4e5f60718293a"

type fakeProcessor struct {
	mu       sync.Mutex
	calls    int
	lastBody string
	lastCT   string
	outcome  pipeline.Outcome
	err      error
}

func (f *fakeProcessor) Process(_ context.Context, _ models.SourceService, _ *models.User, contentType string, body []byte) (pipeline.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastBody = string(body)
	f.lastCT = contentType
	return f.outcome, f.err
}

type fakeUsers struct {
	mu      sync.Mutex
	lookups int
	err     error
}

func (f *fakeUsers) UserByToken(_ context.Context, token string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	if f.err != nil {
		return nil, f.err
	}
	if token != testToken {
		return nil, fmt.Errorf("user: %w", database.ErrNotFound)
	}
	return &models.User{ID: 1, Username: "alice", WebhookToken: testToken}, nil
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func enabledWebhooks() config.WebhooksConfig {
	return config.WebhooksConfig{
		MaxBodyBytes: 1 << 16,
		Plex:         config.PlexWebhookConfig{Enabled: true},
		Tautulli:     config.SourceConfig{Enabled: true},
		Jellyfin:     config.SourceConfig{Enabled: true},
		Emby:         config.SourceConfig{Enabled: true},
	}
}

func newTestRouter(t *testing.T, proc EventProcessor, users UserStore, webhooks config.WebhooksConfig) http.Handler {
	t.Helper()
	h := NewHandler(proc, users, fakePinger{}, webhooks, "test")
	t.Cleanup(h.Close)
	return NewRouter(h, nil).SetupChi()
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) models.APIResponse {
	t.Helper()
	var resp models.APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return resp
}

func post(router http.Handler, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestWebhook_StatusMapping(t *testing.T) {
	t.Parallel()

	parseErr := &normalize.ParseError{Source: models.SourceTautulli, Field: "action", Err: errors.New("missing")}

	tests := []struct {
		name     string
		path     string
		headers  map[string]string
		outcome  pipeline.Outcome
		procErr  error
		webhooks func(*config.WebhooksConfig)
		wantCode int
		wantErr  string
		wantOut  string
	}{
		{
			name:     "processed",
			path:     "/webhook/tautulli/" + testToken,
			outcome:  pipeline.Outcome{Status: pipeline.StatusProcessed, Entity: &models.EntityRef{Kind: models.EntityEpisode, ID: 7, Created: true}},
			wantCode: http.StatusOK,
			wantOut:  "processed",
		},
		{
			name:     "unresolved is still 200",
			path:     "/webhook/jellyfin/" + testToken,
			outcome:  pipeline.Outcome{Status: pipeline.StatusUnresolved, Reason: "no identifiers"},
			wantCode: http.StatusOK,
			wantOut:  "unresolved",
		},
		{
			name:     "header token",
			path:     "/webhook/emby",
			headers:  map[string]string{webhookTokenHeader: testToken},
			outcome:  pipeline.Outcome{Status: pipeline.StatusIgnored},
			wantCode: http.StatusOK,
			wantOut:  "ignored",
		},
		{
			name:     "missing token",
			path:     "/webhook/emby",
			wantCode: http.StatusUnauthorized,
			wantErr:  "UNAUTHORIZED",
		},
		{
			name:     "unknown token",
			path:     "/webhook/tautulli/nope",
			wantCode: http.StatusUnauthorized,
			wantErr:  "UNAUTHORIZED",
		},
		{
			name:     "parse error",
			path:     "/webhook/tautulli/" + testToken,
			procErr:  parseErr,
			wantCode: http.StatusBadRequest,
			wantErr:  "INVALID_PAYLOAD",
		},
		{
			name:     "store failure",
			path:     "/webhook/tautulli/" + testToken,
			procErr:  errors.New("database is locked"),
			wantCode: http.StatusInternalServerError,
			wantErr:  "DATABASE_ERROR",
		},
		{
			name:     "numbering contention",
			path:     "/webhook/tautulli/" + testToken,
			procErr:  fmt.Errorf("%w: season 3", reconcile.ErrNumberContention),
			wantCode: http.StatusServiceUnavailable,
			wantErr:  "CATALOG_BUSY",
		},
		{
			name:     "source disabled",
			path:     "/webhook/emby/" + testToken,
			webhooks: func(c *config.WebhooksConfig) { c.Emby.Enabled = false },
			wantCode: http.StatusForbidden,
			wantErr:  "WEBHOOKS_DISABLED",
		},
		{
			name:     "unknown source",
			path:     "/webhook/kodi/" + testToken,
			wantCode: http.StatusNotFound,
			wantErr:  "NOT_FOUND",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			webhooks := enabledWebhooks()
			if tt.webhooks != nil {
				tt.webhooks(&webhooks)
			}
			proc := &fakeProcessor{outcome: tt.outcome, err: tt.procErr}
			router := newTestRouter(t, proc, &fakeUsers{}, webhooks)

			rec := post(router, tt.path, `{"action":"play"}`, tt.headers)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d; body = %s", rec.Code, tt.wantCode, rec.Body.String())
			}

			resp := decodeResponse(t, rec)
			if tt.wantErr != "" {
				if resp.Error == nil || resp.Error.Code != tt.wantErr {
					t.Errorf("error = %+v, want code %s", resp.Error, tt.wantErr)
				}
				return
			}
			data, ok := resp.Data.(map[string]interface{})
			if !ok {
				t.Fatalf("data = %T, want object", resp.Data)
			}
			if data["outcome"] != tt.wantOut {
				t.Errorf("outcome = %v, want %s", data["outcome"], tt.wantOut)
			}
			if resp.Metadata.RequestID == "" {
				t.Error("response metadata missing request_id")
			}
		})
	}
}

func TestWebhook_PassesBodyAndContentType(t *testing.T) {
	t.Parallel()

	proc := &fakeProcessor{outcome: pipeline.Outcome{Status: pipeline.StatusProcessed}}
	router := newTestRouter(t, proc, &fakeUsers{}, enabledWebhooks())

	req := httptest.NewRequest(http.MethodPost, "/webhook/plex/"+testToken, strings.NewReader("--b\r\n"))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=b")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if proc.lastCT != "multipart/form-data; boundary=b" || proc.lastBody != "--b\r\n" {
		t.Errorf("processor got ct=%q body=%q", proc.lastCT, proc.lastBody)
	}
}

func TestWebhook_BodyTooLarge(t *testing.T) {
	t.Parallel()

	webhooks := enabledWebhooks()
	webhooks.MaxBodyBytes = 16
	proc := &fakeProcessor{}
	router := newTestRouter(t, proc, &fakeUsers{}, webhooks)

	rec := post(router, "/webhook/tautulli/"+testToken, strings.Repeat("x", 64), nil)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", rec.Code)
	}
	if proc.calls != 0 {
		t.Errorf("processor called %d times, want 0", proc.calls)
	}
}

func TestWebhook_PlexSignature(t *testing.T) {
	t.Parallel()

	const secret = "0a9b8c7d6e5f4a3b2c1d"
	body := `{"event":"media.play"}`
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	good := hex.EncodeToString(mac.Sum(nil))

	tests := []struct {
		name      string
		signature string
		wantCode  int
	}{
		{"valid", good, http.StatusOK},
		{"valid uppercase", strings.ToUpper(good), http.StatusOK},
		{"missing", "", http.StatusForbidden},
		{"wrong", strings.Repeat("0", 64), http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			webhooks := enabledWebhooks()
			webhooks.Plex.SignatureSecret = secret
			proc := &fakeProcessor{outcome: pipeline.Outcome{Status: pipeline.StatusProcessed}}
			router := newTestRouter(t, proc, &fakeUsers{}, webhooks)

			headers := map[string]string{}
			if tt.signature != "" {
				headers[plexSignatureHeader] = tt.signature
			}
			rec := post(router, "/webhook/plex/"+testToken, body, headers)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if tt.wantCode != http.StatusOK {
				if resp := decodeResponse(t, rec); resp.Error == nil || resp.Error.Code != "INVALID_SIGNATURE" {
					t.Errorf("error = %+v", resp.Error)
				}
			}
		})
	}
}

func TestWebhook_SignatureOnlyCheckedForPlex(t *testing.T) {
	t.Parallel()

	webhooks := enabledWebhooks()
	webhooks.Plex.SignatureSecret = "0a9b8c7d6e5f4a3b2c1d"
	proc := &fakeProcessor{outcome: pipeline.Outcome{Status: pipeline.StatusProcessed}}
	router := newTestRouter(t, proc, &fakeUsers{}, webhooks)

	if rec := post(router, "/webhook/jellyfin/"+testToken, `{}`, nil); rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestWebhook_TokenCache(t *testing.T) {
	t.Parallel()

	webhooks := enabledWebhooks()
	webhooks.TokenCacheTTL = time.Minute
	users := &fakeUsers{}
	router := newTestRouter(t, &fakeProcessor{outcome: pipeline.Outcome{Status: pipeline.StatusProcessed}}, users, webhooks)

	for i := 0; i < 3; i++ {
		if rec := post(router, "/webhook/tautulli/"+testToken, `{}`, nil); rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
	}
	for i := 0; i < 2; i++ {
		post(router, "/webhook/tautulli/unknown-token", `{}`, nil)
	}

	if users.lookups != 3 {
		t.Errorf("store lookups = %d, want 3 (1 cached known token + 2 unknown)", users.lookups)
	}
}

func TestWebhook_UserStoreFailure(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, &fakeProcessor{}, &fakeUsers{err: errors.New("connection refused")}, enabledWebhooks())

	rec := post(router, "/webhook/tautulli/"+testToken, `{}`, nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

func TestWebhook_RejectionMetrics(t *testing.T) {
	t.Parallel()

	webhooks := enabledWebhooks()
	webhooks.Jellyfin.Enabled = false
	router := newTestRouter(t, &fakeProcessor{}, &fakeUsers{}, webhooks)

	counter := metrics.WebhooksRejected.WithLabelValues(string(models.SourceJellyfin), rejectDisabled)
	before := testutil.ToFloat64(counter)

	post(router, "/webhook/jellyfin/"+testToken, `{}`, nil)

	if got := testutil.ToFloat64(counter) - before; got != 1 {
		t.Errorf("rejected counter delta = %v, want 1", got)
	}
}

func TestWebhook_NumberContentionIsRetryable(t *testing.T) {
	t.Parallel()

	proc := &fakeProcessor{err: fmt.Errorf("reconcile: %w", reconcile.ErrNumberContention)}
	router := newTestRouter(t, proc, &fakeUsers{}, enabledWebhooks())

	counter := metrics.WebhooksRejected.WithLabelValues(string(models.SourceEmby), rejectContention)
	before := testutil.ToFloat64(counter)

	rec := post(router, "/webhook/emby/"+testToken, `{}`, nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "1" {
		t.Errorf("Retry-After = %q, want 1", got)
	}
	if got := testutil.ToFloat64(counter) - before; got != 1 {
		t.Errorf("contention counter delta = %v, want 1", got)
	}
}

func TestWebhook_RateLimited(t *testing.T) {
	t.Parallel()

	h := NewHandler(&fakeProcessor{outcome: pipeline.Outcome{Status: pipeline.StatusProcessed}}, &fakeUsers{}, fakePinger{}, enabledWebhooks(), "test")
	t.Cleanup(h.Close)
	mw := NewChiMiddleware(&ChiMiddlewareConfig{RateLimitRequests: 2, RateLimitWindow: time.Minute})
	router := NewRouter(h, mw).SetupChi()

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		codes = append(codes, post(router, "/webhook/tautulli/"+testToken, `{}`, nil).Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("codes = %v, want [200 200 429]", codes)
	}
}
