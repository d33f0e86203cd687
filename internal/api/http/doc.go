// Package http exposes the registry and the local monitor as a JSON API.
//
// Routes:
//   - /shells: register, list, update, delete, init, test and one-shot exec
//   - /terminals: terminal lifecycle, commands, environment, history, prompt
//   - /local: host metrics, interfaces, listening ports, connections
//   - /metrics, /stats: Prometheus exposition and a JSON summary
//
// Errors are returned as {"error": message} with a status derived from
// the error type: 404 unknown shell or terminal, 409 duplicate, 400
// validation, 422 failed bootstrap, 502 stub or protocol failure.
package http
