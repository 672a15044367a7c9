package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/alecKarfonta/graphrag/internal/platform/ctxutil"
)

// AttachRequestContext stamps every request with trace identifiers so logs
// and downstream calls correlate.
func AttachRequestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := strings.TrimSpace(c.GetHeader("X-Trace-Id"))
		if traceID == "" {
			traceID = uuid.NewString()
		}
		td := &ctxutil.TraceData{
			TraceID:   traceID,
			RequestID: uuid.NewString(),
		}
		c.Request = c.Request.WithContext(ctxutil.WithTraceData(c.Request.Context(), td))
		c.Header("X-Trace-Id", traceID)
		c.Next()
	}
}
