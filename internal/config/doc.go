// Mediatrack - Media Server Webhook Ingestion and Watch Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediatrack

/*
Package config loads and validates Mediatrack configuration.

# Sources

Configuration is layered with koanf, later layers overriding earlier ones:

 1. Built-in defaults (defaultConfig)
 2. An optional YAML file: $CONFIG_PATH, else config.yaml / config.yml in the
    working directory, else /etc/mediatrack/config.yaml
 3. Environment variables from an explicit allow-list (see envMappings)

Bootstrap users are declared in the file:

	users:
	  - username: alice
	    token: 3f1c0b9e6d2a4e7f8a5b
	    plex_usernames: [alice, AliceTV]
	    filtered_channels: [UCxxxxxxxxxxxxxxxxxxxxxx]

BOOTSTRAP_USERNAME, BOOTSTRAP_TOKEN and BOOTSTRAP_PLEX_USERNAMES add one more
user for container deployments without a file.

# Environment Variables

Server:
  - HTTP_HOST, HTTP_PORT, HTTP_TIMEOUT, SHUTDOWN_TIMEOUT

Database:
  - DB_DRIVER: sqlite (default) or postgres
  - DB_PATH: SQLite file (default: /data/mediatrack.db)
  - DATABASE_URL: PostgreSQL DSN
  - DB_MAX_OPEN_CONNS, DB_BUSY_TIMEOUT

Webhooks:
  - ENABLE_PLEX_WEBHOOKS, ENABLE_TAUTULLI_WEBHOOKS, ENABLE_JELLYFIN_WEBHOOKS, ENABLE_EMBY_WEBHOOKS
  - PLEX_WEBHOOK_SECRET: enables X-Plex-Signature verification
  - WEBHOOK_MAX_BODY_BYTES, WEBHOOK_TOKEN_CACHE_TTL

Pipeline:
  - HISTORY_WINDOW (default: 5s), BACKFILL_TIMEOUT (default: 10s)

Metadata:
  - METADATA_ENABLED, METADATA_TIMEOUT, METADATA_RATE_LIMIT, METADATA_BURST, METADATA_CACHE_TTL
  - TMDB_BASE_URL, TMDB_API_KEY, YOUTUBE_BASE_URL, YOUTUBE_API_KEY

Security:
  - RATE_LIMIT_REQS, RATE_LIMIT_WINDOW, DISABLE_RATE_LIMIT
  - CORS_ORIGINS: comma-separated

Logging:
  - LOG_LEVEL, LOG_FORMAT (json or console), LOG_CALLER

# Usage

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}
*/
package config
