// Mediatrack - Media Server Webhook Ingestion and Watch Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediatrack

package api

import (
	"context"
	"time"

	"github.com/tomtom215/mediatrack/internal/cache"
	"github.com/tomtom215/mediatrack/internal/config"
	"github.com/tomtom215/mediatrack/internal/models"
	"github.com/tomtom215/mediatrack/internal/pipeline"
)

// EventProcessor runs one webhook body through the ingestion pipeline.
type EventProcessor interface {
	Process(ctx context.Context, source models.SourceService, user *models.User, contentType string, body []byte) (pipeline.Outcome, error)
}

// UserStore resolves webhook tokens.
type UserStore interface {
	UserByToken(ctx context.Context, token string) (*models.User, error)
}

// Pinger reports backing store reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds the dependencies of every HTTP handler.
type Handler struct {
	processor EventProcessor
	users     UserStore
	db        Pinger
	webhooks  config.WebhooksConfig
	tokens    *cache.Cache[*models.User]
	startTime time.Time
	version   string
}

const defaultMaxBodyBytes = 10 << 20

// NewHandler builds a Handler. A non-positive TokenCacheTTL disables the
// token cache.
func NewHandler(processor EventProcessor, users UserStore, db Pinger, webhooks config.WebhooksConfig, version string) *Handler {
	if webhooks.MaxBodyBytes <= 0 {
		webhooks.MaxBodyBytes = defaultMaxBodyBytes
	}
	h := &Handler{
		processor: processor,
		users:     users,
		db:        db,
		webhooks:  webhooks,
		startTime: time.Now(),
		version:   version,
	}
	if webhooks.TokenCacheTTL > 0 {
		h.tokens = cache.New[*models.User]("webhook_tokens", webhooks.TokenCacheTTL, webhooks.TokenCacheTTL)
	}
	return h
}

// Close stops the token cache sweeper.
func (h *Handler) Close() {
	if h.tokens != nil {
		h.tokens.Close()
	}
}
