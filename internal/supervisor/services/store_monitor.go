// Mediatrack - Media Server Webhook Ingestion and Watch Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediatrack

package services

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/mediatrack/internal/logging"
)

// Pinger is satisfied by *database.Store. Its Ping refreshes the
// connection pool gauge.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StoreMonitorService pings the catalog store on an interval and logs
// reachability changes.
type StoreMonitorService struct {
	store    Pinger
	interval time.Duration
	timeout  time.Duration
	log      zerolog.Logger
	healthy  atomic.Bool
	checks   atomic.Int64
}

// NewStoreMonitorService creates a monitor. A non-positive interval becomes 30s.
func NewStoreMonitorService(store Pinger, interval time.Duration) *StoreMonitorService {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	timeout := 5 * time.Second
	if interval < timeout {
		timeout = interval
	}
	s := &StoreMonitorService{
		store:    store,
		interval: interval,
		timeout:  timeout,
		log:      logging.WithComponent("store-monitor"),
	}
	s.healthy.Store(true)
	return s
}

// Serve implements suture.Service.
func (s *StoreMonitorService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.check(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *StoreMonitorService) check(ctx context.Context) {
	pingCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	err := s.store.Ping(pingCtx)
	s.checks.Add(1)
	if ctx.Err() != nil {
		return
	}

	was := s.healthy.Swap(err == nil)
	switch {
	case err != nil && was:
		s.log.Error().Err(err).Msg("Catalog store unreachable")
	case err == nil && !was:
		s.log.Info().Msg("Catalog store reachable again")
	}
}

// Healthy reports the result of the last ping.
func (s *StoreMonitorService) Healthy() bool {
	return s.healthy.Load()
}

// Checks returns the number of pings performed.
func (s *StoreMonitorService) Checks() int64 {
	return s.checks.Load()
}

// String implements fmt.Stringer.
func (s *StoreMonitorService) String() string {
	return "store-monitor"
}
