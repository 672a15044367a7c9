package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// NewServer wraps the router with timeouts suited to the retrieval deadlines.
func NewServer(addr string, router *gin.Engine) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      120 * time.Second,
	}
}

// Shutdown drains in-flight requests within the grace period.
func Shutdown(ctx context.Context, srv *http.Server, grace time.Duration) error {
	sctx, cancel := context.WithTimeout(ctx, grace)
	defer cancel()
	return srv.Shutdown(sctx)
}
