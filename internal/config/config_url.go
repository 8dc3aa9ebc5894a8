// Mediatrack - Media Server Webhook Ingestion and Watch Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediatrack

package config

import (
	"fmt"
	"net/url"
)

// validateHTTPURL validates that a URL is properly formatted for HTTP/HTTPS services.
// API base URLs carry a version path (https://api.themoviedb.org/3), so paths are allowed;
// query strings and fragments are not since the client appends its own.
func validateHTTPURL(rawURL, fieldName string) error {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%s failed to parse URL: %w", fieldName, err)
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("%s scheme must be http or https, got: %s", fieldName, parsedURL.Scheme)
	}

	if parsedURL.Host == "" {
		return fmt.Errorf("%s host is required", fieldName)
	}

	if parsedURL.RawQuery != "" {
		return fmt.Errorf("%s should not contain query parameters, remove: ?%s", fieldName, parsedURL.RawQuery)
	}

	if parsedURL.Fragment != "" {
		return fmt.Errorf("%s should not contain a fragment, remove: #%s", fieldName, parsedURL.Fragment)
	}

	return nil
}

// validatePostgresDSN accepts URL-style DSNs (postgres://...) and libpq
// keyword/value strings ("host=... dbname=...").
func validatePostgresDSN(dsn string) error {
	parsedURL, err := url.Parse(dsn)
	if err == nil && parsedURL.Scheme != "" {
		if parsedURL.Scheme != "postgres" && parsedURL.Scheme != "postgresql" {
			return fmt.Errorf("DATABASE_URL scheme must be postgres or postgresql, got: %s", parsedURL.Scheme)
		}
		if parsedURL.Host == "" {
			return fmt.Errorf("DATABASE_URL host is required")
		}
		return nil
	}
	if !containsAnyPattern(dsn, []string{"host=", "dbname="}) {
		return fmt.Errorf("DATABASE_URL must be a postgres:// URL or a keyword/value connection string")
	}
	return nil
}
