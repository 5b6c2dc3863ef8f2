package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// maxRequestIDLength caps the request id copied onto a span
const maxRequestIDLength = 128

// Tracing starts a server span per request through otelgin.
// When disabled it only calls the next handler.
func Tracing(serviceName string, enabled bool) gin.HandlerFunc {
	if !enabled {
		return func(c *gin.Context) {
			c.Next()
		}
	}
	return otelgin.Middleware(serviceName)
}

// SpanAttributes tags the request span with the request id and marks it
// failed on any 4xx or 5xx. It must run after Tracing, while the span is open.
func SpanAttributes() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			c.Next()
			return
		}
		if id := requestID(c); id != "" {
			span.SetAttributes(attribute.String("request_id", id))
		}

		c.Next()

		if status := c.Writer.Status(); status >= http.StatusBadRequest {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	}
}

func requestID(c *gin.Context) string {
	id := c.GetString("request_id")
	if id == "" {
		id = c.GetHeader("X-Request-ID")
	}
	if len(id) > maxRequestIDLength {
		return id[:maxRequestIDLength]
	}
	return id
}
