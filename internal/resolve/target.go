// Mediatrack - Media Server Webhook Ingestion and Watch Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediatrack

package resolve

import (
	"time"

	"github.com/tomtom215/mediatrack/internal/models"
)

// TargetKind is the variant of a ResolvedTarget.
type TargetKind string

const (
	TargetMatched          TargetKind = "matched"
	TargetCreatableEpisode TargetKind = "creatable_episode"
	TargetCreatableVideo   TargetKind = "creatable_video"
	TargetCreatableMovie   TargetKind = "creatable_movie"
	TargetUnresolved       TargetKind = "unresolved"
)

// EpisodeSpec describes a catalog episode that does not exist yet.
// ShowID is set when the owning show was found during resolution.
type EpisodeSpec struct {
	Provider       string
	ShowExternalID string
	ShowID         int64
	ShowTitle      string
	SeasonNumber   int
	EpisodeNumber  int
	Title          string
}

// VideoSpec describes a channel video that does not exist yet. The video id
// is the dedup key; the episode number is assigned on creation.
type VideoSpec struct {
	VideoID         string
	ChannelID       string
	ChannelTitle    string
	Title           string
	SeasonNumber    int
	DurationSeconds int
}

// MovieSpec describes a movie that does not exist yet.
type MovieSpec struct {
	Provider   string
	ExternalID string
	Title      string
}

// ResolvedTarget is the outcome of identity resolution. Exactly one of the
// variant fields is set, according to Kind.
type ResolvedTarget struct {
	Kind TargetKind

	// Strategy names the strategy that produced the target.
	Strategy string

	Entity  models.EntityRef
	Episode *EpisodeSpec
	Video   *VideoSpec
	Movie   *MovieSpec

	// Reason explains an Unresolved target.
	Reason string
}

// Creatable reports whether reconciliation will have to create entities.
func (t ResolvedTarget) Creatable() bool {
	switch t.Kind {
	case TargetCreatableEpisode, TargetCreatableVideo, TargetCreatableMovie:
		return true
	default:
		return false
	}
}

// ChannelID returns the channel a creatable video belongs to.
func (t ResolvedTarget) ChannelID() string {
	if t.Video != nil {
		return t.Video.ChannelID
	}
	return ""
}

func unresolved(reason string) ResolvedTarget {
	return ResolvedTarget{Kind: TargetUnresolved, Reason: reason}
}

// seasonYear picks the season for a channel video: the publish year, else
// the year the event occurred.
func seasonYear(published *time.Time, occurredAt time.Time) int {
	if published != nil && !published.IsZero() {
		return published.Year()
	}
	return occurredAt.Year()
}
