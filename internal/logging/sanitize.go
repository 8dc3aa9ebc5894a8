// Mediatrack - Media Server Webhook Ingestion and Watch Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediatrack

package logging

import (
	"strconv"
	"strings"
	"unicode"
)

// maxLoggedValue caps user-provided strings written to logs.
const maxLoggedValue = 256

// Sanitize prepares an upstream-provided string for logging. Control
// characters are escaped so a payload cannot forge log lines, and long
// values are truncated.
func Sanitize(s string) string {
	if len(s) > maxLoggedValue {
		s = s[:maxLoggedValue] + "..."
	}
	if strings.IndexFunc(s, unicode.IsControl) < 0 {
		return s
	}

	var b strings.Builder
	b.Grow(len(s) + 8)
	for _, r := range s {
		if unicode.IsControl(r) {
			q := strconv.QuoteRune(r)
			b.WriteString(q[1 : len(q)-1])
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SanitizeToken masks a secret, keeping the first and last 4 characters.
// Example: "6f1d2c9ab4e04e5f" -> "6f1d...4e5f"
func SanitizeToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 12 {
		return "***"
	}
	return token[:4] + "..." + token[len(token)-4:]
}
