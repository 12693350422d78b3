package auth

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Cookie names
const (
	SessionCookie = "arnime_session"
	StateCookie   = "arnime_oauth_state"
)

const ctxUserKey = "auth_user"

// SetUser stores the signed-in user on the request context
func SetUser(c *gin.Context, u *User) {
	c.Set(ctxUserKey, u)
}

// CurrentUser returns the signed-in user, or nil
func CurrentUser(c *gin.Context) *User {
	v, ok := c.Get(ctxUserKey)
	if !ok {
		return nil
	}
	u, _ := v.(*User)
	return u
}

// CurrentUserID returns the signed-in user's id, or ""
func CurrentUserID(c *gin.Context) string {
	if u := CurrentUser(c); u != nil {
		return u.UID
	}
	return ""
}

// WriteSessionCookie stores a session token on the response
func WriteSessionCookie(c *gin.Context, token string, expires time.Time, secure bool) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie signs the browser out
func ClearSessionCookie(c *gin.Context, secure bool) {
	clearCookie(c, SessionCookie, "/", secure)
}

// ClearStateCookie drops the OAuth2 state once the callback ran
func ClearStateCookie(c *gin.Context, secure bool) {
	clearCookie(c, StateCookie, "/auth", secure)
}

func clearCookie(c *gin.Context, name, path string, secure bool) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     path,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// WriteStateCookie stores the OAuth2 state for the callback check
func WriteStateCookie(c *gin.Context, state string, secure bool) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     StateCookie,
		Value:    state,
		Path:     "/auth",
		MaxAge:   int((10 * time.Minute).Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}
