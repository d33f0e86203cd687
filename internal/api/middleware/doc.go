// Package middleware holds the gin middleware in front of the API.
//
//   - CORS: origin allow-list for the operator UI
//   - RateLimit: per-IP token bucket, idle clients evicted
//   - GlobalRateLimit: one bucket shared by every client
//   - RequestID: X-Request-ID propagation, ULID when absent
//   - Logger: one structured line per request
//
// Example:
//
//	router.Use(middleware.CORS(middleware.CORSForOrigins(cfg.Server.CORSOrigins)))
//	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
package middleware
