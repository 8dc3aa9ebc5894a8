// Mediatrack - Media Server Webhook Ingestion and Watch Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediatrack

package models

import (
	"time"
)

// APIResponse is the envelope used by every HTTP endpoint.
//
// Status is "success" or "error". Webhook endpoints answer "success" for every
// event that was parsed, including events that were skipped on purpose:
//
//	{
//	  "status": "success",
//	  "data": {"outcome": "unresolved", "reason": "no identifiers"},
//	  "metadata": {"timestamp": "2026-01-02T12:00:00Z", "query_time_ms": 3}
//	}
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata carries response timing.
type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	QueryTimeMS int64     `json:"query_time_ms,omitempty"`
	RequestID   string    `json:"request_id,omitempty"`
}

// APIError is a machine readable error code plus a message.
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// WebhookResult is the data payload of a webhook response.
type WebhookResult struct {
	Source     SourceService `json:"source"`
	Event      string        `json:"event,omitempty"`
	Outcome    string        `json:"outcome"`
	Reason     string        `json:"reason,omitempty"`
	EntityKind EntityKind    `json:"entity_kind,omitempty"`
	EntityID   int64         `json:"entity_id,omitempty"`
	Created    bool          `json:"created,omitempty"`
	History    string        `json:"history,omitempty"`
}
