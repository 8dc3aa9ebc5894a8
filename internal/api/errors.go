// Mediatrack - Media Server Webhook Ingestion and Watch Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediatrack

package api

import "errors"

// Webhook authentication errors
var (
	// ErrMissingToken indicates the request carried no webhook token
	ErrMissingToken = errors.New("webhook token is required")

	// ErrUnknownToken indicates the token does not belong to any user
	ErrUnknownToken = errors.New("webhook token is not recognized")
)
