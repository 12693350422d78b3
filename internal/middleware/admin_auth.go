package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"arnime/internal/model"

	"github.com/gin-gonic/gin"
)

// AdminAuth returns a middleware that validates the admin API key.
// If apiKey is empty, authentication is disabled.
func AdminAuth(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" {
			c.Next()
			return
		}

		// "Bearer <key>", "ApiKey <key>" or ?api_key=
		key := c.GetHeader("Authorization")
		if key == "" {
			key = c.Query("api_key")
			if key == "" {
				c.AbortWithStatusJSON(http.StatusUnauthorized, model.APIResponse{
					Code:  http.StatusUnauthorized,
					Error: "unauthorized: missing API key",
				})
				return
			}
		} else {
			key = strings.TrimPrefix(key, "Bearer ")
			key = strings.TrimPrefix(key, "ApiKey ")
		}

		if subtle.ConstantTimeCompare([]byte(key), []byte(apiKey)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, model.APIResponse{
				Code:  http.StatusForbidden,
				Error: "forbidden: invalid API key",
			})
			return
		}

		c.Next()
	}
}
