package handler

import (
	"net/http"
	"net/url"
	"strings"

	"arnime/internal/auth"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// AuthHandler handles sign in and sign out
type AuthHandler struct {
	view     View
	provider auth.Provider
	tokens   auth.TokenService
	secure   bool
}

// NewAuthHandler creates a new AuthHandler; provider may be nil when
// sign in is not configured
func NewAuthHandler(view View, provider auth.Provider, tokens auth.TokenService, secureCookies bool) *AuthHandler {
	return &AuthHandler{
		view:     view,
		provider: provider,
		tokens:   tokens,
		secure:   secureCookies,
	}
}

// localPath keeps redirects on this site
func localPath(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	return next
}

func withNotice(path, notice string) string {
	u, err := url.Parse(path)
	if err != nil {
		return "/?notice=" + notice
	}
	q := u.Query()
	q.Set("notice", notice)
	u.RawQuery = q.Encode()
	return u.String()
}

// Login starts the provider redirect flow
// GET /auth/login?next=/path
func (h *AuthHandler) Login(c *gin.Context) {
	next := localPath(c.Query("next"))
	if h.provider == nil {
		c.Redirect(http.StatusFound, withNotice(next, "login-unavailable"))
		return
	}

	// state and return path travel together in the short-lived cookie
	state := uuid.NewString()
	auth.WriteStateCookie(c, state+"|"+url.QueryEscape(next), h.secure)
	c.Redirect(http.StatusFound, h.provider.AuthCodeURL(state))
}

// Callback finishes sign in and sets the session cookie
// GET /auth/callback?state=...&code=...
func (h *AuthHandler) Callback(c *gin.Context) {
	// c.Cookie unescapes the value
	raw, _ := c.Cookie(auth.StateCookie)
	auth.ClearStateCookie(c, h.secure)

	state, next, _ := strings.Cut(raw, "|")
	next = localPath(next)

	if h.provider == nil || state == "" || c.Query("state") != state {
		log.Warn().Str("ip", c.ClientIP()).Msg("OAuth state mismatch")
		c.Redirect(http.StatusFound, withNotice(next, "login-failed"))
		return
	}
	if reason := c.Query("error"); reason != "" {
		log.Info().Str("reason", reason).Msg("Sign in cancelled at provider")
		c.Redirect(http.StatusFound, withNotice(next, "login-failed"))
		return
	}

	user, err := h.provider.Exchange(c.Request.Context(), c.Query("code"))
	if err != nil {
		log.Error().Err(err).Msg("OAuth exchange failed")
		c.Redirect(http.StatusFound, withNotice(next, "login-failed"))
		return
	}

	token, expires, err := h.tokens.Sign(user)
	if err != nil {
		log.Error().Err(err).Msg("Failed to sign session")
		c.Redirect(http.StatusFound, withNotice(next, "login-failed"))
		return
	}

	auth.WriteSessionCookie(c, token, expires, h.secure)
	log.Info().Str("uid", user.UID).Msg("🔑 User signed in")
	c.Redirect(http.StatusFound, withNotice(next, "signed-in"))
}

// LogoutPage asks for confirmation
// GET /auth/logout
func (h *AuthHandler) LogoutPage(c *gin.Context) {
	h.view.render(c, http.StatusOK, "logout.html", gin.H{"Title": "Sign out"})
}

// Logout clears the session
// POST /auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	auth.ClearSessionCookie(c, h.secure)
	if uid := auth.CurrentUserID(c); uid != "" {
		log.Info().Str("uid", uid).Msg("👋 User signed out")
	}
	c.Redirect(http.StatusSeeOther, withNotice("/", "signed-out"))
}
