// Mediatrack - Media Server Webhook Ingestion and Watch Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediatrack

package config

import (
	"fmt"
	"strings"
	"time"
)

// Validate checks that required configuration is present and valid
func (c *Config) Validate() error {
	validators := []func() error{
		c.validateServer,
		c.validateDatabase,
		c.validateWebhooks,
		c.validatePipeline,
		c.validateMetadata,
		c.validateUsers,
		c.validateMappings,
		c.validateSecurity,
		c.validateLogging,
	}

	for _, validator := range validators {
		if err := validator(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive, got %v", c.Server.Timeout)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("SHUTDOWN_TIMEOUT must be positive, got %v", c.Server.ShutdownTimeout)
	}
	return nil
}

// validateDatabase checks the driver and its connection target.
func (c *Config) validateDatabase() error {
	switch c.Database.Driver {
	case "sqlite":
		if strings.TrimSpace(c.Database.Path) == "" {
			return fmt.Errorf("DB_PATH is required when DB_DRIVER=sqlite")
		}
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("DATABASE_URL is required when DB_DRIVER=postgres")
		}
		if err := validatePostgresDSN(c.Database.DSN); err != nil {
			return err
		}
	default:
		return fmt.Errorf("DB_DRIVER must be one of: sqlite, postgres (got %q)", c.Database.Driver)
	}

	if c.Database.MaxOpenConns < 0 {
		return fmt.Errorf("DB_MAX_OPEN_CONNS must not be negative, got %d", c.Database.MaxOpenConns)
	}
	if c.Database.BusyTimeout < 0 {
		return fmt.Errorf("DB_BUSY_TIMEOUT must not be negative, got %v", c.Database.BusyTimeout)
	}
	return nil
}

const minBodyBytes = 1 << 10

func (c *Config) validateWebhooks() error {
	if c.Webhooks.MaxBodyBytes < minBodyBytes {
		return fmt.Errorf("WEBHOOK_MAX_BODY_BYTES must be at least %d, got %d", minBodyBytes, c.Webhooks.MaxBodyBytes)
	}
	if c.Webhooks.TokenCacheTTL < 0 {
		return fmt.Errorf("WEBHOOK_TOKEN_CACHE_TTL must not be negative, got %v", c.Webhooks.TokenCacheTTL)
	}
	if secret := c.Webhooks.Plex.SignatureSecret; secret != "" && containsPlaceholder(secret) {
		return fmt.Errorf("PLEX_WEBHOOK_SECRET appears to be a placeholder value")
	}
	return nil
}

// History rows carry second precision, so a sub-second window would never
// merge anything.
func (c *Config) validatePipeline() error {
	if c.Pipeline.HistoryWindow < time.Second {
		return fmt.Errorf("HISTORY_WINDOW must be at least 1s, got %v", c.Pipeline.HistoryWindow)
	}
	if c.Pipeline.BackfillTimeout <= 0 {
		return fmt.Errorf("BACKFILL_TIMEOUT must be positive, got %v", c.Pipeline.BackfillTimeout)
	}
	return nil
}

// validateMetadata validates provider settings (only if enabled)
func (c *Config) validateMetadata() error {
	m := c.Metadata
	if !m.Enabled {
		return nil
	}

	if m.Timeout <= 0 {
		return fmt.Errorf("METADATA_TIMEOUT must be positive, got %v", m.Timeout)
	}
	if m.RateLimit < 0 {
		return fmt.Errorf("METADATA_RATE_LIMIT must not be negative, got %v", m.RateLimit)
	}
	if m.Burst < 0 {
		return fmt.Errorf("METADATA_BURST must not be negative, got %d", m.Burst)
	}
	if m.CacheTTL < 0 {
		return fmt.Errorf("METADATA_CACHE_TTL must not be negative, got %v", m.CacheTTL)
	}
	if !m.TMDB.Configured() && !m.YouTube.Configured() {
		return fmt.Errorf("METADATA_ENABLED=true requires TMDB_API_KEY or YOUTUBE_API_KEY")
	}

	providers := []struct {
		name string
		p    ProviderConfig
	}{
		{"TMDB", m.TMDB},
		{"YOUTUBE", m.YouTube},
	}
	for _, pr := range providers {
		if pr.p.APIKey == "" {
			continue
		}
		if err := validateHTTPURL(pr.p.BaseURL, pr.name+"_BASE_URL"); err != nil {
			return err
		}
		if containsPlaceholder(pr.p.APIKey) {
			return fmt.Errorf("%s_API_KEY appears to be a placeholder value", pr.name)
		}
	}
	return nil
}

// validateUsers requires unique usernames and unique, non-placeholder tokens.
func (c *Config) validateUsers() error {
	usernames := make(map[string]bool, len(c.Users))
	tokens := make(map[string]bool, len(c.Users))

	for i, u := range c.Users {
		name := strings.TrimSpace(u.Username)
		if name == "" {
			return fmt.Errorf("users[%d]: username is required", i)
		}
		if strings.TrimSpace(u.Token) == "" {
			return fmt.Errorf("users[%d] (%s): token is required", i, name)
		}
		if len(u.Token) < minTokenLength {
			return fmt.Errorf("users[%d] (%s): token must be at least %d characters", i, name, minTokenLength)
		}
		if containsPlaceholder(u.Token) {
			return fmt.Errorf("users[%d] (%s): token appears to be a placeholder value", i, name)
		}

		key := strings.ToLower(name)
		if usernames[key] {
			return fmt.Errorf("users[%d]: duplicate username %q", i, name)
		}
		usernames[key] = true

		if tokens[u.Token] {
			return fmt.Errorf("users[%d] (%s): token is already assigned to another user", i, name)
		}
		tokens[u.Token] = true
	}
	return nil
}

const minTokenLength = 16

var (
	mappingSources = map[string]bool{"plex": true, "tautulli": true, "jellyfin": true, "emby": true}
	mappingKinds   = map[string]bool{"movie": true, "episode": true}
)

func (c *Config) validateMappings() error {
	seen := make(map[string]bool, len(c.Mappings))
	for i, m := range c.Mappings {
		if !mappingSources[m.Source] {
			return fmt.Errorf("mappings[%d]: source must be plex, tautulli, jellyfin or emby, got %q", i, m.Source)
		}
		if !mappingKinds[m.MediaKind] {
			return fmt.Errorf("mappings[%d]: media_kind must be movie or episode, got %q", i, m.MediaKind)
		}
		if !isDigits(m.ExternalID) {
			return fmt.Errorf("mappings[%d]: external_id must be a numeric TMDB id, got %q", i, m.ExternalID)
		}
		if !isDigits(m.TMDBID) {
			return fmt.Errorf("mappings[%d]: tmdb_id must be a numeric TMDB id, got %q", i, m.TMDBID)
		}
		key := m.Source + "/" + m.MediaKind + "/" + m.ExternalID
		if seen[key] {
			return fmt.Errorf("mappings[%d]: duplicate mapping for %s", i, key)
		}
		seen[key] = true
	}
	return nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func (c *Config) validateSecurity() error {
	if c.Security.RateLimitDisabled {
		return nil
	}
	if c.Security.RateLimitReqs < 1 {
		return fmt.Errorf("RATE_LIMIT_REQS must be at least 1 when rate limiting is enabled, got %d", c.Security.RateLimitReqs)
	}
	if c.Security.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be positive, got %v", c.Security.RateLimitWindow)
	}
	return nil
}

var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validLogFormats = map[string]bool{
	"json":    true,
	"console": true,
}

func (c *Config) validateLogging() error {
	if err := c.validateLogLevel(); err != nil {
		return err
	}
	return c.validateLogFormat()
}

// validateLogLevel validates the log level configuration
func (c *Config) validateLogLevel() error {
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	return nil
}

// validateLogFormat validates the log format configuration
func (c *Config) validateLogFormat() error {
	if c.Logging.Format == "" {
		return nil
	}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}
	return nil
}

// placeholderPatterns defines common placeholder patterns that indicate
// the user forgot to set a real value.
var placeholderPatterns = []string{
	"REPLACE",
	"CHANGEME",
	"CHANGE_ME",
	"YOUR_SECRET",
	"YOUR_TOKEN",
	"YOUR_API_KEY",
	"PLACEHOLDER",
	"TODO",
	"FIXME",
	"XXX",
	"EXAMPLE",
}

// containsPlaceholder checks if a value contains common placeholder patterns.
func containsPlaceholder(value string) bool {
	return containsAnyPattern(strings.ToUpper(value), placeholderPatterns)
}

// containsAnyPattern checks if a string contains any of the provided patterns
func containsAnyPattern(s string, patterns []string) bool {
	for _, pattern := range patterns {
		if strings.Contains(s, pattern) {
			return true
		}
	}
	return false
}
