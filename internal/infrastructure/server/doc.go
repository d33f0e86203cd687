// Package server assembles the service: shell store, stub transport,
// session registry, background prober and the gin API, all built from a
// config.Config.
package server
