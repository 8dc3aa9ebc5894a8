// Mediatrack - Media Server Webhook Ingestion and Watch Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediatrack

package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/mediatrack/internal/cache"
	"github.com/tomtom215/mediatrack/internal/database"
	"github.com/tomtom215/mediatrack/internal/logging"
	"github.com/tomtom215/mediatrack/internal/metrics"
	"github.com/tomtom215/mediatrack/internal/models"
	"github.com/tomtom215/mediatrack/internal/normalize"
	"github.com/tomtom215/mediatrack/internal/reconcile"
)

const (
	webhookTokenHeader  = "X-Webhook-Token"
	plexSignatureHeader = "X-Plex-Signature"
)

// Rejection reasons for the webhooks_rejected_total counter.
const (
	rejectDisabled     = "disabled"
	rejectUnauthorized = "unauthorized"
	rejectSignature    = "signature"
	rejectTooLarge     = "too_large"
	rejectParse        = "parse"
	rejectStore        = "store"
	rejectContention   = "contention"
)

// Webhook returns the POST handler for one source service.
//
// Setup on the media server side:
//
//	Plex:      Settings > Webhooks > https://host/webhook/plex/<token>
//	Tautulli:  Notification Agents > Webhook, JSON body, URL https://host/webhook/tautulli/<token>
//	Jellyfin:  Webhook plugin, Generic destination, https://host/webhook/jellyfin/<token>
//	Emby:      Notifications > Webhooks, https://host/webhook/emby/<token>
func (h *Handler) Webhook(source models.SourceService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		metrics.WebhooksReceived.WithLabelValues(string(source)).Inc()

		if !h.webhooks.SourceEnabled(string(source)) {
			h.reject(source, rejectDisabled)
			respondError(w, r, http.StatusForbidden, "WEBHOOKS_DISABLED", string(source)+" webhooks are not enabled", nil)
			return
		}

		user, err := h.authenticate(r)
		if err != nil {
			if errors.Is(err, ErrMissingToken) || errors.Is(err, ErrUnknownToken) {
				h.reject(source, rejectUnauthorized)
				respondError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or missing webhook token", nil)
				return
			}
			h.reject(source, rejectStore)
			respondError(w, r, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to look up webhook token", err)
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.webhooks.MaxBodyBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				h.reject(source, rejectTooLarge)
				respondError(w, r, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Request body too large", nil)
				return
			}
			h.reject(source, rejectParse)
			respondError(w, r, http.StatusBadRequest, "INVALID_REQUEST", "Failed to read request body", err)
			return
		}

		if source == models.SourcePlex && h.webhooks.Plex.SignatureSecret != "" {
			signature := r.Header.Get(plexSignatureHeader)
			if signature == "" || !verifyWebhookSignature(body, signature, h.webhooks.Plex.SignatureSecret) {
				h.reject(source, rejectSignature)
				respondError(w, r, http.StatusForbidden, "INVALID_SIGNATURE", "Webhook signature verification failed", nil)
				return
			}
		}

		outcome, err := h.processor.Process(r.Context(), source, user, r.Header.Get("Content-Type"), body)
		if err != nil {
			if errors.Is(err, normalize.ErrParse) || errors.Is(err, normalize.ErrUnknownSource) {
				h.reject(source, rejectParse)
				respondError(w, r, http.StatusBadRequest, "INVALID_PAYLOAD", "Failed to parse webhook payload", err)
				return
			}
			if errors.Is(err, reconcile.ErrNumberContention) {
				h.reject(source, rejectContention)
				w.Header().Set("Retry-After", "1")
				respondError(w, r, http.StatusServiceUnavailable, "CATALOG_BUSY", "Concurrent catalog update, retry the delivery", err)
				return
			}
			h.reject(source, rejectStore)
			respondError(w, r, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to process webhook", err)
			return
		}

		respondSuccess(w, r, outcome.Result(source), start)
	}
}

func (h *Handler) reject(source models.SourceService, reason string) {
	metrics.WebhooksRejected.WithLabelValues(string(source), reason).Inc()
}

// authenticate resolves the path or header token to a user. Only known
// tokens are cached so guessing cannot grow the cache.
func (h *Handler) authenticate(r *http.Request) (*models.User, error) {
	token := strings.TrimSpace(chi.URLParam(r, "token"))
	if token == "" {
		token = strings.TrimSpace(r.Header.Get(webhookTokenHeader))
	}
	if token == "" {
		return nil, ErrMissingToken
	}

	key := cache.GenerateKey("webhook_token", token)
	if h.tokens != nil {
		if u, ok := h.tokens.Get(key); ok {
			return u, nil
		}
	}

	user, err := h.lookupUser(r.Context(), token)
	if err != nil {
		return nil, err
	}
	if h.tokens != nil {
		h.tokens.Set(key, user)
	}
	logging.Ctx(r.Context()).Debug().
		Str("username", logging.Sanitize(user.Username)).
		Str("token", logging.SanitizeToken(token)).
		Msg("Webhook token resolved")
	return user, nil
}

func (h *Handler) lookupUser(ctx context.Context, token string) (*models.User, error) {
	user, err := h.users.UserByToken(ctx, token)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrUnknownToken
	}
	return user, err
}
