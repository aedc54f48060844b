// Package dev provides the development server and live reload.
//
// The server keeps the last good compilation in memory and serves it while
// new builds run. A failed build never replaces it.
//
// # Architecture
//
//   - Watcher: polls the watched directories and reports batches of changes
//   - scheduler: runs one build at a time and coalesces changes that arrive
//     meanwhile; a new change cancels the build in flight
//   - Server: serves assets with history fallback and tracks its State
//   - ReloadServer: notifies browsers via WebSocket
//
// # Usage
//
//	b, err := build.New(cfg, build.Options{InMemory: true})
//	if err != nil {
//	    return err
//	}
//	srv := dev.NewServer(dev.ServerOptions{
//	    Config:  cfg,
//	    Builder: b,
//	})
//	if err := srv.Start(ctx); err != nil {
//	    return err
//	}
//
// # Routes
//
//	/_vpack/ws      live reload WebSocket
//	/_vpack/status  JSON state, compilation summary and errors
//	/metrics        Prometheus metrics
//	/*              assets, then the index document, then 404
//
// # Reload Protocol
//
// Messages are JSON-encoded. A new connection first receives the message
// for the current state.
//
//	{"type": "build-success", "hash": "..."}   // reload if the hash changed
//	{"type": "build-error", "errors": ["..."]} // show the error overlay
package dev
