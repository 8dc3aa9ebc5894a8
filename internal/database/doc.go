// Mediatrack - Media Server Webhook Ingestion and Watch Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediatrack

// Package database is the persistence layer for the media catalog.
//
// # Overview
//
// A single Store wraps database/sql and runs against either embedded
// SQLite (modernc.org/sqlite, pure Go) or PostgreSQL (pgx stdlib driver).
// Queries are written once with "?" placeholders and rebound per dialect.
// Schema migrations are embedded SQL files applied in order on Open and
// tracked in a schema_migrations table.
//
// # Files
//
//   - database.go: Open/Close/Ping, pool setup and the exec/query helpers
//   - dialect.go: placeholder rebinding and unique-violation detection
//   - migrations.go: embedded migration runner
//   - crud_users.go: users, webhook tokens, channel filters, id mappings
//   - crud_catalog.go: shows, seasons and episodes
//   - crud_movies.go: movies and runtime backfill
//   - crud_history.go: watch history and the dedup window lookup
//   - errors.go: ErrNotFound, ErrConflict and close helpers
//
// # Concurrency
//
// Inserts that race on a natural key surface as ErrConflict. Callers
// re-read the winning row instead of failing the event.
//
// # Observability
//
// Every statement records metrics.DBQueryDuration and, on failure,
// metrics.DBQueryErrors, labelled by operation and table.
package database
