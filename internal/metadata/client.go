// Mediatrack - Media Server Webhook Ingestion and Watch Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediatrack

// Package metadata is the HTTP client for the external metadata providers:
// TMDB for movie and series ids and runtimes, and the YouTube Data API for
// video details.
//
// Every request goes through a token-bucket limiter and a circuit breaker.
// Successful lookups and confirmed misses are cached for the configured TTL.
// Callers see exactly two failure classes: ErrNotFound when the provider
// has no such item and ErrTransient for everything that may succeed later.
package metadata

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/mediatrack/internal/cache"
	"github.com/tomtom215/mediatrack/internal/config"
	"github.com/tomtom215/mediatrack/internal/logging"
	"github.com/tomtom215/mediatrack/internal/metrics"
)

var (
	// ErrNotFound means the provider answered and has no such item.
	ErrNotFound = errors.New("metadata: not found")

	// ErrTransient covers network failures, 5xx/429 responses, an open
	// circuit and cancelled waits. Retrying later may succeed.
	ErrTransient = errors.New("metadata: transient failure")

	// ErrNotConfigured is returned when the provider a call needs has no API key.
	ErrNotConfigured = errors.New("metadata: provider not configured")
)

const (
	maxErrorBody    = 64 * 1024
	cleanupInterval = 10 * time.Minute
	userAgent       = "mediatrack/1.0"
)

type endpoint struct {
	baseURL string
	apiKey  string
}

func (e endpoint) configured() bool {
	return e.baseURL != "" && e.apiKey != ""
}

// Client talks to TMDB and YouTube. It is safe for concurrent use.
type Client struct {
	http    *http.Client
	tmdb    endpoint
	youtube endpoint
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[[]byte]
	cache   *cache.Cache[any]
	log     zerolog.Logger
}

// New builds a client from cfg.
func New(cfg *config.MetadataConfig) *Client {
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}

	return &Client{
		http: &http.Client{Timeout: cfg.Timeout},
		tmdb: endpoint{
			baseURL: strings.TrimRight(cfg.TMDB.BaseURL, "/"),
			apiKey:  cfg.TMDB.APIKey,
		},
		youtube: endpoint{
			baseURL: strings.TrimRight(cfg.YouTube.BaseURL, "/"),
			apiKey:  cfg.YouTube.APIKey,
		},
		limiter: rate.NewLimiter(limit, burst),
		breaker: newBreaker("metadata-api"),
		cache:   cache.New[any]("metadata", cfg.CacheTTL, cleanupInterval),
		log:     logging.WithComponent("metadata"),
	}
}

// Close releases the response cache.
func (c *Client) Close() {
	c.cache.Close()
}

// cached wraps a lookup with the response cache. A confirmed miss is cached
// too so an unknown id does not cost a request per webhook.
func cached[T any](c *Client, key string, fetch func() (T, error)) (T, error) {
	if v, ok := c.cache.Get(key); ok {
		if err, isErr := v.(error); isErr {
			var zero T
			return zero, err
		}
		return v.(T), nil
	}

	v, err := fetch()
	switch {
	case err == nil:
		c.cache.Set(key, v)
	case errors.Is(err, ErrNotFound):
		c.cache.Set(key, ErrNotFound)
	}
	return v, err
}

// get issues a rate-limited, breaker-protected GET and returns the body of
// a 200 response.
func (c *Client) get(ctx context.Context, operation string, u *url.URL) ([]byte, error) {
	start := time.Now()
	body, err := c.fetch(ctx, u)
	elapsed := time.Since(start)
	metrics.RecordMetadataRequest(operation, resultLabel(err), elapsed)
	c.log.Debug().
		Str("operation", operation).
		Str("result", resultLabel(err)).
		Dur("elapsed", elapsed).
		Msg("metadata request")
	return body, err
}

func (c *Client) fetch(ctx context.Context, u *url.URL) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limiter: %v", ErrTransient, err)
	}

	body, err := execute(c.breaker, func() ([]byte, error) {
		return c.doRequest(ctx, u)
	})
	if err != nil && (errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)) {
		return nil, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	return body, err
}

func (c *Client) doRequest(ctx context.Context, u *url.URL) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", ErrTransient, req.Method, u.Path, err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.log.Debug().Err(cerr).Msg("failed to close metadata response body")
		}
	}()

	switch {
	case resp.StatusCode == http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: read body: %v", ErrTransient, err)
		}
		return body, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: %s returned %d: %s", ErrTransient, u.Path, resp.StatusCode, readBodyForError(resp.Body))
	default:
		return nil, fmt.Errorf("metadata: %s returned %d: %s", u.Path, resp.StatusCode, readBodyForError(resp.Body))
	}
}

// readBodyForError reads a bounded amount of an error response for context.
func readBodyForError(r io.Reader) string {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil {
		return "(failed to read response body)"
	}
	return strings.TrimSpace(string(body))
}

func decode(body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("metadata: decode response: %w", err)
	}
	return nil
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrTransient):
		return "transient"
	default:
		return "error"
	}
}
