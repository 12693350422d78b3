package middleware

import (
	"net/http"

	"arnime/internal/auth"
	"arnime/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Session loads the user from the session cookie. Requests without a
// valid cookie continue signed out; a stale cookie is cleared.
func Session(tokens auth.TokenService, secureCookies bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := c.Cookie(auth.SessionCookie)
		if err != nil || raw == "" {
			c.Next()
			return
		}

		claims, err := tokens.Parse(raw)
		if err != nil {
			log.Debug().Err(err).Msg("Dropping invalid session cookie")
			auth.ClearSessionCookie(c, secureCookies)
			c.Next()
			return
		}

		auth.SetUser(c, claims.User())
		c.Next()
	}
}

// RequireUser rejects JSON requests without a signed-in user
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if auth.CurrentUser(c) == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, model.APIResponse{
				Code:  http.StatusUnauthorized,
				Error: "sign in required",
			})
			return
		}
		c.Next()
	}
}
