// Mediatrack - Media Server Webhook Ingestion and Watch Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediatrack

/*
Package api exposes the HTTP surface: webhook ingestion, health probes and
Prometheus metrics, routed with chi.

# Routes

	POST /webhook/{source}/{token}   plex, tautulli, jellyfin, emby
	POST /webhook/{source}           token in the X-Webhook-Token header
	GET  /api/v1/health/live
	GET  /api/v1/health/ready
	GET  /metrics

# Status codes

Every event that parses answers 200, including events that were skipped on
purpose (duplicate, filtered, unresolved, ignored); the body's data.outcome
says which. Upstream servers re-deliver on non-2xx, so only failures a retry
could fix answer 5xx.

	400 INVALID_PAYLOAD      body malformed or missing required fields
	401 UNAUTHORIZED         token missing or unknown
	403 INVALID_SIGNATURE    Plex HMAC mismatch
	403 WEBHOOKS_DISABLED    source turned off in config
	413 PAYLOAD_TOO_LARGE    body over webhooks.max_body_bytes
	500 DATABASE_ERROR       catalog store failure
*/
package api
