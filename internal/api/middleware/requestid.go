package middleware

import (
	"context"

	"github.com/GriffinCanCode/stubterm/backend/internal/shared/id"
	"github.com/gin-gonic/gin"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

type requestIDKey struct{}

// maxRequestIDLen bounds caller-supplied ids.
const maxRequestIDLen = 64

// RequestID tags each request with the caller's X-Request-ID, or a fresh
// prefixed ULID when it is absent or too long. The id is echoed in the
// response and stored in the request context.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(RequestIDHeader)
		if rid == "" || len(rid) > maxRequestIDLen {
			rid = id.NewRequestID().String()
		}

		c.Set(RequestIDHeader, rid)
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), requestIDKey{}, rid))
		c.Header(RequestIDHeader, rid)

		c.Next()
	}
}

// RequestIDFrom returns the id RequestID stored in ctx.
func RequestIDFrom(ctx context.Context) string {
	rid, _ := ctx.Value(requestIDKey{}).(string)
	return rid
}
