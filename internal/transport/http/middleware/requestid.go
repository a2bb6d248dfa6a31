package middleware

import (
	"strings"

	"github.com/ErlanBelekov/app-launch-scheduler/internal/requestid"
	"github.com/gin-gonic/gin"
)

// RequestID attaches a correlation id to the request context and echoes it
// in X-Request-ID. A well-formed incoming id is kept, anything else is
// replaced so it never reaches the logs. Stream clients cannot set headers,
// so they may pass the id as the request_id query value instead.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := incomingID(c)
		if !requestid.Valid(id) {
			id = requestid.New()
		}

		c.Request = c.Request.WithContext(requestid.WithRequestID(c.Request.Context(), id))
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

func incomingID(c *gin.Context) string {
	if id := c.GetHeader("X-Request-ID"); id != "" {
		return id
	}
	if strings.Contains(c.GetHeader("Accept"), "text/event-stream") {
		return c.Query("request_id")
	}
	return ""
}
