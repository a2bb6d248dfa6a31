package middleware

import (
	"strconv"
	"strings"
	"time"

	"github.com/ErlanBelekov/app-launch-scheduler/internal/metrics"
	"github.com/gin-gonic/gin"
)

// Metrics records request counts by route template. A schedule stream lives
// as long as its client stays attached, so its duration goes to the session
// histogram instead of the request latency one.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		elapsed := time.Since(start).Seconds()

		status := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = "unknown"
		}
		method := c.Request.Method

		metrics.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
		if isEventStream(c) {
			metrics.StreamSessionDuration.WithLabelValues(path).Observe(elapsed)
			return
		}
		metrics.HTTPRequestDuration.WithLabelValues(method, path, status).Observe(elapsed)
	}
}

func isEventStream(c *gin.Context) bool {
	return strings.HasPrefix(c.Writer.Header().Get("Content-Type"), "text/event-stream")
}
