// Mediatrack - Media Server Webhook Ingestion and Watch Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediatrack

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/tomtom215/mediatrack/internal/models"
)

const readinessTimeout = 2 * time.Second

// HealthLive handles liveness probe requests (Kubernetes-style)
// Returns 200 OK if the process is alive, regardless of dependencies
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, r, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data: map[string]interface{}{
			"alive":   true,
			"version": h.version,
			"uptime":  time.Since(h.startTime).Seconds(),
		},
		Metadata: models.Metadata{
			Timestamp: time.Now(),
		},
	})
}

// HealthReady handles readiness probe requests (Kubernetes-style)
// Returns 200 OK only if the catalog store answers a ping
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	dbConnected := h.db != nil && h.db.Ping(ctx) == nil

	status := http.StatusOK
	respStatus := "success"
	if !dbConnected {
		status = http.StatusServiceUnavailable
		respStatus = "error"
	}

	resp := &models.APIResponse{
		Status: respStatus,
		Data: map[string]interface{}{
			"ready":              dbConnected,
			"database_connected": dbConnected,
		},
		Metadata: models.Metadata{
			Timestamp: time.Now(),
		},
	}
	if !dbConnected {
		resp.Error = &models.APIError{
			Code:    "SERVICE_UNAVAILABLE",
			Message: "Database is not reachable",
		}
	}
	respondJSON(w, r, status, resp)
}
