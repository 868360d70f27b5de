package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/member-portal/member-portal/internal/telemetry"
)

// MetricsMiddleware records request count and duration for every request.
//
// The path label comes from c.FullPath(), the matched route template
// (e.g. /api/v1/org/invites/:id) rather than the raw URL. Requests that match
// no registered route use the literal "<no-route>" so unhandled paths do not
// inflate label cardinality.
//
// Register after gin.Recovery() and RequestIDMiddleware so the status set by
// error handlers is captured correctly.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "<no-route>"
		}

		method := c.Request.Method
		status := strconv.Itoa(c.Writer.Status())

		telemetry.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
		telemetry.HTTPRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}
