package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/alecKarfonta/graphrag/internal/observability"
	"github.com/alecKarfonta/graphrag/internal/platform/ctxutil"
	"github.com/alecKarfonta/graphrag/internal/platform/logger"
)

// RequestLog logs each request with its trace id and reports latency to
// prometheus.
func RequestLog(log *logger.Logger, metrics *observability.Metrics) gin.HandlerFunc {
	log = log.With("component", "http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		elapsed := time.Since(start)

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		metrics.ObserveRequest(route, statusClass(status), elapsed)

		traceID := ""
		if td := ctxutil.GetTraceData(c.Request.Context()); td != nil {
			traceID = td.TraceID
		}
		log.Info("request",
			"method", c.Request.Method,
			"route", route,
			"status", status,
			"elapsed_ms", elapsed.Milliseconds(),
			"trace_id", traceID,
		)
	}
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	default:
		return "2xx"
	}
}
