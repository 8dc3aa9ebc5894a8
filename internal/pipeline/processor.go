// Mediatrack - Media Server Webhook Ingestion and Watch Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediatrack

// Package pipeline runs one webhook body through normalization, identifier
// extraction, identity resolution, catalog reconciliation and progress
// recording. Each call is independent; the catalog is the only shared state.
package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/tomtom215/mediatrack/internal/identify"
	"github.com/tomtom215/mediatrack/internal/logging"
	"github.com/tomtom215/mediatrack/internal/metrics"
	"github.com/tomtom215/mediatrack/internal/models"
	"github.com/tomtom215/mediatrack/internal/normalize"
	"github.com/tomtom215/mediatrack/internal/progress"
	"github.com/tomtom215/mediatrack/internal/reconcile"
	"github.com/tomtom215/mediatrack/internal/resolve"
)

// Status is the terminal state of one event.
type Status string

const (
	StatusProcessed  Status = "processed"
	StatusDuplicate  Status = "duplicate"
	StatusSkipped    Status = "skipped"
	StatusFiltered   Status = "filtered"
	StatusUnresolved Status = "unresolved"
	StatusIgnored    Status = "ignored"
	StatusError      Status = "error"
)

// Outcome describes what the pipeline did with an event.
type Outcome struct {
	Status   Status
	Reason   string
	Event    *models.IngestEvent
	Strategy string
	Entity   *models.EntityRef
	History  progress.Result
}

// Result renders the outcome for the webhook response body.
func (o Outcome) Result(source models.SourceService) models.WebhookResult {
	res := models.WebhookResult{
		Source:  source,
		Outcome: string(o.Status),
		Reason:  o.Reason,
		History: string(o.History),
	}
	if o.Event != nil {
		res.Event = string(o.Event.Kind)
	}
	if o.Entity != nil {
		res.EntityKind = o.Entity.Kind
		res.EntityID = o.Entity.ID
		res.Created = o.Entity.Created
	}
	return res
}

// Processor wires the stages together.
type Processor struct {
	normalizers *normalize.Registry
	resolver    *resolve.Resolver
	reconciler  *reconcile.Reconciler
	recorder    *progress.Recorder
	now         func() time.Time
}

// New returns a Processor using the built-in source adapters.
func New(resolver *resolve.Resolver, reconciler *reconcile.Reconciler, recorder *progress.Recorder) *Processor {
	return &Processor{
		normalizers: normalize.NewRegistry(),
		resolver:    resolver,
		reconciler:  reconciler,
		recorder:    recorder,
		now:         time.Now,
	}
}

// Process handles one webhook body for user. The returned error is a
// *normalize.ParseError (the payload is bad), reconcile.ErrNumberContention
// (retry later) or a storage failure. Every other result, including
// deliberate skips, is an Outcome.
func (p *Processor) Process(ctx context.Context, source models.SourceService, user *models.User, contentType string, body []byte) (out Outcome, err error) {
	start := p.now()
	defer func() {
		status := string(out.Status)
		if err != nil {
			status = string(StatusError)
		}
		metrics.RecordPipelineOutcome(string(source), status, time.Since(start))
	}()

	event, err := p.normalizers.Normalize(source, contentType, body, start.UTC())
	if err != nil {
		if errors.Is(err, normalize.ErrUnsupportedEvent) {
			return Outcome{Status: StatusIgnored, Reason: err.Error()}, nil
		}
		return Outcome{}, err
	}

	log := logging.Ctx(ctx).With().
		Str("source", string(source)).
		Str("event", string(event.Kind)).
		Str("title", logging.Sanitize(event.DisplayTitle())).
		Int64("user_id", user.ID).
		Logger()
	ctx = logging.ContextWithLogger(ctx, log)

	if source == models.SourcePlex && !plexAccountAllowed(user, event.UserAccountHint) {
		log.Debug().Str("account", logging.Sanitize(event.UserAccountHint)).Msg("plex account not linked to user, ignoring")
		return Outcome{Status: StatusIgnored, Reason: "plex account not linked to user", Event: event}, nil
	}

	ids := identify.Extract(event)
	target, err := p.resolver.Resolve(ctx, event, ids, user)
	if err != nil {
		return Outcome{}, err
	}
	if target.Kind != resolve.TargetUnresolved {
		metrics.ResolverStrategyHits.WithLabelValues(target.Strategy, string(target.Kind)).Inc()
	}
	if target.Kind == resolve.TargetUnresolved {
		log.Info().Str("reason", target.Reason).Msg("event could not be resolved")
		return Outcome{Status: StatusUnresolved, Reason: target.Reason, Event: event}, nil
	}

	if target.Creatable() {
		log.Debug().Str("target", string(target.Kind)).Str("strategy", target.Strategy).Msg("target not in catalog, creating")
	}
	ref, err := p.reconciler.Reconcile(ctx, target, user.ID)
	if err != nil {
		if errors.Is(err, reconcile.ErrFiltered) {
			log.Info().Str("channel_id", target.ChannelID()).Msg("channel filtered, skipping")
			return Outcome{Status: StatusFiltered, Reason: "channel filtered", Event: event, Strategy: target.Strategy}, nil
		}
		if errors.Is(err, reconcile.ErrNumberContention) {
			log.Warn().Str("channel_id", target.ChannelID()).Msg("episode numbering contended, delivery should be retried")
		}
		return Outcome{}, err
	}

	rec, err := p.recorder.Record(ctx, ref, event)
	if err != nil {
		return Outcome{}, err
	}

	out = Outcome{
		Status:   StatusProcessed,
		Event:    event,
		Strategy: target.Strategy,
		Entity:   &ref,
		History:  rec.Result,
	}
	switch rec.Result {
	case progress.ResultDuplicate:
		out.Status = StatusDuplicate
		out.Reason = "event already recorded"
	case progress.ResultSeenOnly:
		out.Status = StatusSkipped
		out.Reason = "status does not allow automatic progress"
	}

	log.Info().
		Str("outcome", string(out.Status)).
		Str("strategy", target.Strategy).
		Str("entity_kind", string(ref.Kind)).
		Int64("entity_id", ref.ID).
		Bool("created", ref.Created).
		Bool("watched", rec.Watched).
		Msg("webhook event processed")
	return out, nil
}

// plexAccountAllowed matches the Plex account title against the user's
// linked Plex usernames. A user with no linked names accepts nothing.
func plexAccountAllowed(user *models.User, account string) bool {
	account = strings.TrimSpace(account)
	if account == "" {
		return false
	}
	for _, name := range user.PlexUsernames {
		if strings.EqualFold(strings.TrimSpace(name), account) {
			return true
		}
	}
	return false
}
