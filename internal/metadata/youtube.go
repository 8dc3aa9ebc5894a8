// Mediatrack - Media Server Webhook Ingestion and Watch Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediatrack

package metadata

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"github.com/tomtom215/mediatrack/internal/models"
)

type youtubeVideoList struct {
	Items []youtubeVideo `json:"items"`
}

type youtubeVideo struct {
	ID      string `json:"id"`
	Snippet struct {
		PublishedAt  string `json:"publishedAt"`
		ChannelID    string `json:"channelId"`
		Title        string `json:"title"`
		ChannelTitle string `json:"channelTitle"`
		Thumbnails   map[string]struct {
			URL string `json:"url"`
		} `json:"thumbnails"`
	} `json:"snippet"`
	ContentDetails struct {
		Duration string `json:"duration"`
	} `json:"contentDetails"`
}

// thumbnailPreference lists YouTube thumbnail sizes from best to worst.
var thumbnailPreference = []string{"maxres", "standard", "high", "medium", "default"}

// FetchItemMetadata returns the title, channel, duration and publish date of
// a YouTube video.
func (c *Client) FetchItemMetadata(ctx context.Context, videoID string) (*models.ItemMetadata, error) {
	if !c.youtube.configured() {
		return nil, ErrNotConfigured
	}
	return cached(c, "youtube:"+videoID, func() (*models.ItemMetadata, error) {
		u, err := url.Parse(c.youtube.baseURL + "/videos")
		if err != nil {
			return nil, fmt.Errorf("metadata: youtube base url: %w", err)
		}
		q := u.Query()
		q.Set("part", "snippet,contentDetails")
		q.Set("id", videoID)
		q.Set("key", c.youtube.apiKey)
		u.RawQuery = q.Encode()

		body, err := c.get(ctx, "youtube_video", u)
		if err != nil {
			return nil, err
		}

		var list youtubeVideoList
		if err := decode(body, &list); err != nil {
			return nil, err
		}
		if len(list.Items) == 0 {
			return nil, ErrNotFound
		}
		return list.Items[0].toItemMetadata(), nil
	})
}

func (v *youtubeVideo) toItemMetadata() *models.ItemMetadata {
	meta := &models.ItemMetadata{
		Title:           v.Snippet.Title,
		ChannelID:       v.Snippet.ChannelID,
		ChannelTitle:    v.Snippet.ChannelTitle,
		DurationSeconds: parseISODuration(v.ContentDetails.Duration),
	}
	for _, size := range thumbnailPreference {
		if thumb, ok := v.Snippet.Thumbnails[size]; ok && thumb.URL != "" {
			meta.ThumbnailURL = thumb.URL
			break
		}
	}
	if published, err := time.Parse(time.RFC3339, v.Snippet.PublishedAt); err == nil {
		published = published.UTC()
		meta.PublishedAt = &published
	}
	return meta
}

var isoDuration = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)

// parseISODuration converts the ISO 8601 durations YouTube reports
// (PT1H2M3S, P1DT2H) to seconds. Anything else yields 0.
func parseISODuration(s string) int {
	m := isoDuration.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	total := 0
	for i, unit := range []int{86400, 3600, 60, 1} {
		if m[i+1] == "" {
			continue
		}
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return 0
		}
		total += n * unit
	}
	return total
}
