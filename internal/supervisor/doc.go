// Mediatrack - Media Server Webhook Ingestion and Watch Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediatrack

/*
Package supervisor runs long-lived components under a suture v4 tree.

Services restart with backoff when they fail; a panic or error in one layer
does not stop the others. Lifecycle events are logged through sutureslog,
bridged into zerolog by logging.NewSlogLogger.

	logger := logging.NewSlogLogger()
	tree, err := supervisor.NewSupervisorTree(logger, supervisor.DefaultTreeConfig())
	tree.Add(supervisor.LayerData, services.NewStoreMonitorService(store, 30*time.Second))
	tree.Add(supervisor.LayerAPI, services.NewHTTPServerService(server, 10*time.Second))
	err = tree.Serve(ctx)

Each request runs to completion inside its HTTP handler; there are no
background workers between receipt and response.
*/
package supervisor
