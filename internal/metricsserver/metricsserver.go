// Package metricsserver exposes a small local-only HTTP surface mounting
// Prometheus metrics and a health check, for operators who want to scrape
// the daemon rather than poll it over the control socket.
package metricsserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/loykin/petri/internal/metrics"
)

// Server is a standalone HTTP server exposing GET /metrics and GET
// /healthz. It is independent of the control plane's Unix socket.
type Server struct {
	http *http.Server
}

// New builds a Server bound to addr. Call ListenAndServe to run it.
func New(addr string) *Server {
	g := gin.New()
	g.Use(gin.Recovery())
	g.GET("/metrics", gin.WrapH(metrics.Handler()))
	g.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	return &Server{http: &http.Server{
		Addr:              addr,
		Handler:           g,
		ReadHeaderTimeout: 5 * time.Second,
	}}
}

// ListenAndServe runs the server until it is shut down or fails to bind.
func (s *Server) ListenAndServe() error {
	return s.http.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
