// Mediatrack - Media Server Webhook Ingestion and Watch Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediatrack

// Package normalize converts raw webhook bodies from Plex, Tautulli, Jellyfin
// and Emby into a canonical models.IngestEvent.
//
// Each upstream service has one adapter. Adapters are pure: they never touch
// storage and never consult the clock, the receive time is passed in. Two
// kinds of failure are distinguished:
//
//   - *ParseError (matching ErrParse): the body is malformed or misses a
//     required field. The HTTP layer answers 400.
//   - ErrUnsupportedEvent: the body is well formed but describes an event the
//     pipeline does not act on (e.g. a Plex "media.rate"). The HTTP layer
//     answers 200 with outcome "ignored".
package normalize

import (
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/mediatrack/internal/models"
)

var (
	// ErrParse matches every *ParseError.
	ErrParse = errors.New("payload parse error")

	// ErrUnsupportedEvent is returned for well formed events that carry no
	// catalog meaning.
	ErrUnsupportedEvent = errors.New("unsupported event")

	// ErrUnknownSource is returned by Registry.Normalize for an unregistered source.
	ErrUnknownSource = errors.New("unknown source service")
)

// ParseError describes why a webhook body could not be normalized.
type ParseError struct {
	Source models.SourceService
	Field  string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s payload: field %s: %v", e.Source, e.Field, e.Err)
	}
	return fmt.Sprintf("%s payload: %v", e.Source, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrParse) match any ParseError.
func (e *ParseError) Is(target error) bool { return target == ErrParse }

func parseErr(src models.SourceService, field string, err error) *ParseError {
	return &ParseError{Source: src, Field: field, Err: err}
}

// unsupported wraps ErrUnsupportedEvent with the upstream event name.
func unsupported(src models.SourceService, event string) error {
	return fmt.Errorf("%s event %q: %w", src, event, ErrUnsupportedEvent)
}

// Normalizer is one source adapter.
type Normalizer interface {
	Source() models.SourceService
	Normalize(contentType string, body []byte, receivedAt time.Time) (*models.IngestEvent, error)
}

// Registry dispatches to the adapter registered for a source.
type Registry struct {
	adapters map[models.SourceService]Normalizer
}

// NewRegistry returns a registry holding the four built-in adapters.
func NewRegistry() *Registry {
	r := &Registry{adapters: make(map[models.SourceService]Normalizer, len(models.AllSources))}
	r.Register(PlexNormalizer{})
	r.Register(TautulliNormalizer{})
	r.Register(JellyfinNormalizer{})
	r.Register(EmbyNormalizer{})
	return r
}

// Register adds or replaces the adapter for n.Source().
func (r *Registry) Register(n Normalizer) {
	r.adapters[n.Source()] = n
}

// Normalize runs the adapter for source.
func (r *Registry) Normalize(source models.SourceService, contentType string, body []byte, receivedAt time.Time) (*models.IngestEvent, error) {
	n, ok := r.adapters[source]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, source)
	}
	return n.Normalize(contentType, body, receivedAt)
}

var errEmptyMetadata = errors.New("metadata is required")
