// Mediatrack - Media Server Webhook Ingestion and Watch Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediatrack

package config

import (
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig    `koanf:"server"`
	Database DatabaseConfig  `koanf:"database"`
	Webhooks WebhooksConfig  `koanf:"webhooks"`
	Pipeline PipelineConfig  `koanf:"pipeline"`
	Metadata MetadataConfig  `koanf:"metadata"`
	Users    []UserConfig    `koanf:"users"`
	Mappings []MappingConfig `koanf:"mappings"`
	Security SecurityConfig  `koanf:"security"`
	Logging  LoggingConfig   `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	Timeout         time.Duration `koanf:"timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// DatabaseConfig selects and tunes the catalog store.
type DatabaseConfig struct {
	// Driver is "sqlite" (default) or "postgres".
	Driver string `koanf:"driver"`

	// Path is the SQLite database file.
	Path string `koanf:"path"`

	// DSN is the PostgreSQL connection string.
	DSN string `koanf:"dsn"`

	MaxOpenConns int           `koanf:"max_open_conns"`
	BusyTimeout  time.Duration `koanf:"busy_timeout"`
}

// WebhooksConfig controls the ingestion endpoint.
type WebhooksConfig struct {
	// MaxBodyBytes caps the request body, multipart uploads included.
	MaxBodyBytes int64 `koanf:"max_body_bytes"`

	// TokenCacheTTL is how long a resolved user token stays cached.
	// Zero disables the cache.
	TokenCacheTTL time.Duration `koanf:"token_cache_ttl"`

	Plex     PlexWebhookConfig `koanf:"plex"`
	Tautulli SourceConfig      `koanf:"tautulli"`
	Jellyfin SourceConfig      `koanf:"jellyfin"`
	Emby     SourceConfig      `koanf:"emby"`
}

// SourceConfig toggles one webhook source.
type SourceConfig struct {
	Enabled bool `koanf:"enabled"`
}

// PlexWebhookConfig adds the optional HMAC check for Plex deliveries.
type PlexWebhookConfig struct {
	Enabled bool `koanf:"enabled"`

	// SignatureSecret enables HMAC-SHA256 verification of X-Plex-Signature
	// when non-empty.
	SignatureSecret string `koanf:"signature_secret"`
}

// SourceEnabled reports whether webhooks from the named source are accepted.
// Unknown sources report true so the normalizer can reject them with a
// descriptive error.
func (w WebhooksConfig) SourceEnabled(source string) bool {
	switch strings.ToLower(source) {
	case "plex":
		return w.Plex.Enabled
	case "tautulli":
		return w.Tautulli.Enabled
	case "jellyfin":
		return w.Jellyfin.Enabled
	case "emby":
		return w.Emby.Enabled
	default:
		return true
	}
}

// PipelineConfig holds the timing knobs of the ingestion pipeline.
type PipelineConfig struct {
	// HistoryWindow is the tolerance inside which repeated deliveries of the
	// same event collapse into one history row.
	HistoryWindow time.Duration `koanf:"history_window"`

	// BackfillTimeout bounds the movie runtime lookup after completion.
	BackfillTimeout time.Duration `koanf:"backfill_timeout"`
}

// MetadataConfig configures the outbound metadata client.
type MetadataConfig struct {
	Enabled bool          `koanf:"enabled"`
	Timeout time.Duration `koanf:"timeout"`

	// RateLimit is requests per second across providers. Zero means unlimited.
	RateLimit float64       `koanf:"rate_limit"`
	Burst     int           `koanf:"burst"`
	CacheTTL  time.Duration `koanf:"cache_ttl"`

	TMDB    ProviderConfig `koanf:"tmdb"`
	YouTube ProviderConfig `koanf:"youtube"`
}

// ProviderConfig points at one metadata provider.
type ProviderConfig struct {
	BaseURL string `koanf:"base_url"`
	APIKey  string `koanf:"api_key"`
}

// Configured reports whether the provider has a key to call with.
func (p ProviderConfig) Configured() bool {
	return p.APIKey != "" && p.BaseURL != ""
}

// UserConfig is a bootstrap user upserted at startup.
type UserConfig struct {
	Username         string   `koanf:"username"`
	Token            string   `koanf:"token"`
	PlexUsernames    []string `koanf:"plex_usernames"`
	FilteredChannels []string `koanf:"filtered_channels"`
}

// MappingConfig corrects a TMDB id a media server reports for an item.
// Mappings are upserted at startup.
type MappingConfig struct {
	// Source is the media server reporting the id: plex, tautulli,
	// jellyfin or emby.
	Source string `koanf:"source"`

	// MediaKind is "movie" or "episode".
	MediaKind  string `koanf:"media_kind"`
	ExternalID string `koanf:"external_id"`
	TMDBID     string `koanf:"tmdb_id"`
}

// SecurityConfig holds ingress protection settings.
type SecurityConfig struct {
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`
}

// LoggingConfig holds zerolog settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Load reads configuration from defaults, an optional YAML file and the
// environment.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
