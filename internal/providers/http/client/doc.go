// Package client is the stub transport: one blocking HTTP exchange per
// command, no session token and no retries.
//
// Built on go-resty/resty over the pooled go-retryablehttp transport, with a
// per-host circuit breaker so a dead stub fails fast instead of tying up a
// worker for the full timeout. Retry policy belongs to the caller: every
// failure surfaces as a *TransportError and Reachable tells the caller
// whether the stub answered at all.
//
// Cancelling the context only stops the local wait. A stub that already
// received the request runs the command to completion regardless.
//
// Example Usage:
//
//	c := client.NewClient(client.DefaultConfig(), logger)
//	raw, err := c.Send(ctx, "http://host/x.php", body)
package client
