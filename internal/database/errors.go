// Mediatrack - Media Server Webhook Ingestion and Watch Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediatrack

package database

import (
	"errors"
	"fmt"
	"io"

	"github.com/tomtom215/mediatrack/internal/logging"
)

var (
	// ErrNotFound is returned by lookups that match no row.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when an insert violates a uniqueness constraint.
	// Callers recover by re-reading the row that won.
	ErrConflict = errors.New("unique constraint conflict")
)

type conflictError struct {
	table string
	err   error
}

func (e *conflictError) Error() string {
	return fmt.Sprintf("insert into %s: %v", e.table, e.err)
}

func (e *conflictError) Unwrap() error { return e.err }

func (e *conflictError) Is(target error) bool { return target == ErrConflict }

// ErrorType implements metrics.ErrorTyper.
func (e *conflictError) ErrorType() string { return "unique_violation" }

// closeWithLog closes a resource and logs any error.
func closeWithLog(closer io.Closer, resourceType string) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		logging.Warn().Str("type", resourceType).Err(err).Msg("Failed to close resource")
	}
}

// closeQuietly closes a resource, ignoring errors.
func closeQuietly(closer io.Closer) {
	if closer != nil {
		_ = closer.Close()
	}
}
