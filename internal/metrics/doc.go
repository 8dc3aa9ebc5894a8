// Mediatrack - Media Server Webhook Ingestion and Watch Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediatrack

/*
Package metrics provides Prometheus collectors for the webhook pipeline.

All collectors are registered on the default registry through promauto and
exposed at /metrics:

	curl http://localhost:8080/metrics

# Available Metrics

Webhooks and pipeline:
  - webhooks_received_total{source}
  - webhooks_rejected_total{source, reason}
  - pipeline_outcomes_total{source, outcome}
  - pipeline_duration_seconds{source}
  - resolver_strategy_hits_total{strategy, target}
  - catalog_entities_created_total{kind}
  - watch_history_entries_total{event_kind, result}

Storage:
  - db_query_duration_seconds{operation, table}
  - db_query_errors_total{operation, table, error_type}
  - db_unique_conflicts_total{table}
  - db_open_connections

Metadata provider:
  - metadata_requests_total{operation, result}
  - metadata_request_duration_seconds{operation}
  - circuit_breaker_state{name}: 0=closed, 1=half-open, 2=open
  - circuit_breaker_requests_total{name, result}
  - circuit_breaker_consecutive_failures{name}
  - circuit_breaker_state_transitions_total{name, from_state, to_state}

HTTP:
  - api_requests_total{method, endpoint, status_code}
  - api_request_duration_seconds{method, endpoint}
  - api_active_requests
  - api_rate_limit_hits_total{endpoint}

Cache:
  - cache_hits_total{cache_type}
  - cache_misses_total{cache_type}

# Usage

	start := time.Now()
	err := store.InsertEpisode(ctx, ep)
	metrics.RecordDBQuery("insert", "episodes", time.Since(start), err)

Label values are always drawn from small fixed sets so cardinality stays
bounded. Error messages longer than 50 characters are truncated when used
as error_type.
*/
package metrics
