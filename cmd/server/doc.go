// Package main is the entry point for the stubterm backend.
//
// The server keeps a registry of deployed web stubs, opens emulated
// terminals on them and serves a local JSON API to the operator UI.
//
//	Operator UI → stubterm API → HTTP stub on the remote host
//
// Configuration:
//   - Environment variables (see internal/infrastructure/config)
//   - CLI flags override the environment
//
// Usage:
//
//	./server -port 8787 -db data/stubterm.db -profile profile.yaml
//
//	# Development logging
//	LOG_DEV=true LOG_LEVEL=debug ./server
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
