package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	checks map[string]func() bool
}

// NewHealthHandler takes named readiness checks; health is the conjunction.
func NewHealthHandler(checks map[string]func() bool) *HealthHandler {
	return &HealthHandler{checks: checks}
}

func (h *HealthHandler) Health(c *gin.Context) {
	healthy := true
	detail := map[string]bool{}
	for name, check := range h.checks {
		ok := check()
		detail[name] = ok
		if !ok {
			healthy = false
		}
	}
	status := "healthy"
	code := http.StatusOK
	if !healthy {
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"services":  detail,
	})
}
