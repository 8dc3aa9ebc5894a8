// Mediatrack - Media Server Webhook Ingestion and Watch Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediatrack

/*
Command server runs the Mediatrack webhook receiver.

Startup order:

 1. Load configuration (defaults, config.yaml, environment)
 2. Initialize zerolog
 3. Open the catalog store and apply migrations
 4. Upsert the configured users and their channel filters
 5. Build the ingestion pipeline, with metadata providers when enabled
 6. Run the HTTP server and store monitor under the supervisor tree

Point Plex, Tautulli, Jellyfin or Emby at

	POST http://<host>:8080/webhook/<source>/<user token>

SIGINT or SIGTERM stops the tree; in-flight requests get
server.shutdown_timeout to finish.
*/
package main
