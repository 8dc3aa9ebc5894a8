// Mediatrack - Media Server Webhook Ingestion and Watch Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediatrack

package logging

import (
	"context"
	"log/slog"

	"github.com/rs/zerolog"
)

// SlogHandler lets slog-only libraries (sutureslog) write through zerolog.
// Attributes added with WithAttrs are baked into a child logger; open
// groups become a dotted key prefix.
type SlogHandler struct {
	logger zerolog.Logger
	prefix string
}

// NewSlogHandler wraps the global logger.
func NewSlogHandler() *SlogHandler {
	return &SlogHandler{logger: Logger()}
}

// NewSlogHandlerWithLogger wraps logger.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewSlogHandlerWithLogger(logger zerolog.Logger) *SlogHandler {
	return &SlogHandler{logger: logger}
}

// NewSlogLogger returns an slog.Logger over the global logger, tagged as
// the supervisor component.
func NewSlogLogger() *slog.Logger {
	return slog.New(NewSlogHandlerWithLogger(WithComponent("supervisor")))
}

func (h *SlogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return zerologLevel(level) >= h.logger.GetLevel()
}

//nolint:gocritic // slog.Record is passed by value per slog.Handler interface
func (h *SlogHandler) Handle(_ context.Context, record slog.Record) error {
	event := h.logger.WithLevel(zerologLevel(record.Level))
	if event == nil {
		return nil
	}
	record.Attrs(func(attr slog.Attr) bool {
		appendAttr(eventSink{event}, h.prefix, attr)
		return true
	})
	event.Msg(record.Message)
	return nil
}

func (h *SlogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	ctx := h.logger.With()
	sink := contextSink{&ctx}
	for _, attr := range attrs {
		appendAttr(sink, h.prefix, attr)
	}
	return &SlogHandler{logger: ctx.Logger(), prefix: h.prefix}
}

func (h *SlogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &SlogHandler{logger: h.logger, prefix: h.prefix + name + "."}
}

// fieldSink abstracts over *zerolog.Event and *zerolog.Context, which share
// field methods but no interface.
type fieldSink interface {
	str(key, val string)
	value(key string, val interface{})
	err(key string, err error)
}

type eventSink struct{ e *zerolog.Event }

func (s eventSink) str(k, v string) { s.e.Str(k, v) }
func (s eventSink) value(k string, v interface{}) { s.e.Interface(k, v) }
func (s eventSink) err(k string, e error) { s.e.AnErr(k, e) }

type contextSink struct{ c *zerolog.Context }

func (s contextSink) str(k, v string) { *s.c = s.c.Str(k, v) }
func (s contextSink) value(k string, v interface{}) { *s.c = s.c.Interface(k, v) }
func (s contextSink) err(k string, e error) { *s.c = s.c.AnErr(k, e) }

func appendAttr(sink fieldSink, prefix string, attr slog.Attr) {
	attr.Value = attr.Value.Resolve()
	if attr.Equal(slog.Attr{}) {
		return
	}
	key := prefix + attr.Key

	switch attr.Value.Kind() {
	case slog.KindGroup:
		inner := prefix
		if attr.Key != "" {
			inner = key + "."
		}
		for _, ga := range attr.Value.Group() {
			appendAttr(sink, inner, ga)
		}
	case slog.KindString:
		sink.str(key, attr.Value.String())
	case slog.KindDuration:
		sink.str(key, attr.Value.Duration().String())
	case slog.KindAny:
		if e, ok := attr.Value.Any().(error); ok {
			sink.err(key, e)
			return
		}
		sink.value(key, attr.Value.Any())
	default:
		// Int64, Uint64, Float64, Bool, Time: Any() returns the native value.
		sink.value(key, attr.Value.Any())
	}
}

func zerologLevel(level slog.Level) zerolog.Level {
	switch {
	case level >= slog.LevelError:
		return zerolog.ErrorLevel
	case level >= slog.LevelWarn:
		return zerolog.WarnLevel
	case level >= slog.LevelInfo:
		return zerolog.InfoLevel
	case level >= slog.LevelDebug:
		return zerolog.DebugLevel
	default:
		return zerolog.TraceLevel
	}
}
