package middleware

import (
	"time"

	"arnime/internal/auth"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Logging returns a logging middleware
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		logEvent := log.Info()
		if status >= 400 {
			logEvent = log.Warn()
		}
		if status >= 500 {
			logEvent = log.Error()
		}
		if len(c.Errors) > 0 {
			logEvent = logEvent.Str("errors", c.Errors.String())
		}

		logEvent.
			Int("status", status).
			Str("method", c.Request.Method).
			Str("path", path).
			Str("route", c.FullPath()).
			Str("query", query).
			Dur("latency", latency).
			Str("ip", c.ClientIP()).
			Bool("signed_in", auth.CurrentUserID(c) != "").
			Msg("request")
	}
}
