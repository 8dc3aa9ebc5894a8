// Mediatrack - Media Server Webhook Ingestion and Watch Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediatrack

/*
Package models defines the data structures shared across Mediatrack.

Model Categories:

 1. Ingest models (ingest.go):
    - SourceService: plex, tautulli, jellyfin, emby
    - IngestEvent: the normalized, source-independent form of one webhook
    - EventKind / MediaKind: what happened and to what

 2. Source payloads (webhooks.go):
    - PlexWebhook, TautulliWebhook, JellyfinWebhook, EmbyWebhook
    - FlexInt: tolerant integer decoding for numbers sent as strings

 3. Catalog models (catalog.go):
    - User, Show, Season, Episode, Movie, WatchHistoryEntry
    - Status: the per-title watch status, see Status.AllowsAutoWatch
    - EntityRef: what reconciliation matched or created

 4. API models (api_responses.go):
    - APIResponse / APIError: the standard JSON envelope
    - WebhookResult: the data payload returned for each webhook
*/
package models
