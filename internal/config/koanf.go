// Mediatrack - Media Server Webhook Ingestion and Watch Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediatrack

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/mediatrack/config.yaml",
	"/etc/mediatrack/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// Bootstrap user environment variables. A single user can be declared
// without a config file; it is appended to the users list.
const (
	BootstrapUsernameEnvVar  = "BOOTSTRAP_USERNAME"
	BootstrapTokenEnvVar     = "BOOTSTRAP_TOKEN"
	BootstrapPlexUsersEnvVar = "BOOTSTRAP_PLEX_USERNAMES"
)

// defaultConfig returns a Config struct with all sensible default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			Timeout:         30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:       "sqlite",
			Path:         "/data/mediatrack.db",
			MaxOpenConns: 10,
			BusyTimeout:  5 * time.Second,
		},
		Webhooks: WebhooksConfig{
			MaxBodyBytes:  10 << 20, // Plex attaches a thumbnail to some events
			TokenCacheTTL: time.Minute,
			Plex:          PlexWebhookConfig{Enabled: true},
			Tautulli:      SourceConfig{Enabled: true},
			Jellyfin:      SourceConfig{Enabled: true},
			Emby:          SourceConfig{Enabled: true},
		},
		Pipeline: PipelineConfig{
			HistoryWindow:   5 * time.Second,
			BackfillTimeout: 10 * time.Second,
		},
		Metadata: MetadataConfig{
			Enabled:   false,
			Timeout:   10 * time.Second,
			RateLimit: 4,
			Burst:     4,
			CacheTTL:  6 * time.Hour,
			TMDB: ProviderConfig{
				BaseURL: "https://api.themoviedb.org/3",
			},
			YouTube: ProviderConfig{
				BaseURL: "https://www.googleapis.com/youtube/v3",
			},
		},
		Security: SecurityConfig{
			RateLimitReqs:   120,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadWithKoanf loads configuration using Koanf with layered sources:
//  1. Defaults: Built-in sensible defaults
//  2. Config File: Optional YAML config file (if exists)
//  3. Environment Variables: Override any setting
//
// Users can only be listed in the file; the BOOTSTRAP_* variables add one more.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// HTTP_PORT -> server.port, METADATA_TMDB_API_KEY -> metadata.tmdb.api_key
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if u, ok := bootstrapUserFromEnv(); ok {
		cfg.Users = append(cfg.Users, u)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"security.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
// Env vars arrive as strings while the file already yields lists.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		parts := splitList(strVal)
		if len(parts) == 0 {
			continue
		}
		if err := k.Set(path, parts); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	trimmed := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			trimmed = append(trimmed, p)
		}
	}
	return trimmed
}

func bootstrapUserFromEnv() (UserConfig, bool) {
	username := strings.TrimSpace(os.Getenv(BootstrapUsernameEnvVar))
	token := strings.TrimSpace(os.Getenv(BootstrapTokenEnvVar))
	if username == "" && token == "" {
		return UserConfig{}, false
	}
	return UserConfig{
		Username:      username,
		Token:         token,
		PlexUsernames: splitList(os.Getenv(BootstrapPlexUsersEnvVar)),
	}, true
}

// envMappings maps environment variable names (lowercased) to koanf paths.
// Unlisted variables are ignored so unrelated environment does not leak in.
var envMappings = map[string]string{
	// Server
	"http_host":        "server.host",
	"http_port":        "server.port",
	"http_timeout":     "server.timeout",
	"shutdown_timeout": "server.shutdown_timeout",

	// Database
	"db_driver":         "database.driver",
	"db_path":           "database.path",
	"database_url":      "database.dsn",
	"db_max_open_conns": "database.max_open_conns",
	"db_busy_timeout":   "database.busy_timeout",

	// Webhooks
	"webhook_max_body_bytes":   "webhooks.max_body_bytes",
	"webhook_token_cache_ttl":  "webhooks.token_cache_ttl",
	"enable_plex_webhooks":     "webhooks.plex.enabled",
	"plex_webhook_secret":      "webhooks.plex.signature_secret",
	"enable_tautulli_webhooks": "webhooks.tautulli.enabled",
	"enable_jellyfin_webhooks": "webhooks.jellyfin.enabled",
	"enable_emby_webhooks":     "webhooks.emby.enabled",

	// Pipeline
	"history_window":   "pipeline.history_window",
	"backfill_timeout": "pipeline.backfill_timeout",

	// Metadata providers
	"metadata_enabled":    "metadata.enabled",
	"metadata_timeout":    "metadata.timeout",
	"metadata_rate_limit": "metadata.rate_limit",
	"metadata_burst":      "metadata.burst",
	"metadata_cache_ttl":  "metadata.cache_ttl",
	"tmdb_base_url":       "metadata.tmdb.base_url",
	"tmdb_api_key":        "metadata.tmdb.api_key",
	"youtube_base_url":    "metadata.youtube.base_url",
	"youtube_api_key":     "metadata.youtube.api_key",

	// Security
	"rate_limit_reqs":    "security.rate_limit_reqs",
	"rate_limit_window":  "security.rate_limit_window",
	"disable_rate_limit": "security.rate_limit_disabled",
	"cors_origins":       "security.cors_origins",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc transforms environment variable names to koanf config paths.
// Unmapped keys return "" so koanf skips them.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
