package middleware

import (
	"context"
	"strings"
	"time"

	"arnime/internal/repository"
	"arnime/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// untracked paths are probes and static assets
var untracked = []string{"/health", "/ready", "/static/", "/favicon.ico"}

// Metrics returns a middleware that records request metrics.
// Handlers report upstream failures with c.Error; they are counted by kind.
func Metrics(metrics *repository.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, prefix := range untracked {
			if strings.HasPrefix(c.Request.URL.Path, prefix) {
				c.Next()
				return
			}
		}

		start := time.Now()

		c.Next()

		call := repository.Call{
			Route:     routeOf(c),
			Status:    c.Writer.Status(),
			LatencyMs: float64(time.Since(start).Milliseconds()),
		}
		for _, e := range c.Errors {
			if kind := service.ErrorKind(e.Err); kind != "" {
				call.UpstreamErrors = append(call.UpstreamErrors, kind)
			}
		}

		// the request context is done once the response is written
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		if err := metrics.Record(ctx, call); err != nil {
			log.Warn().Err(err).Msg("Failed to record metrics")
		}
	}
}

// routeOf groups requests by their route pattern, e.g. /anime/:slug
func routeOf(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return "unmatched"
}
