package handler

import (
	"context"
	"net/http"

	"arnime/internal/auth"
	"arnime/internal/library"
	"arnime/internal/model"
	"arnime/internal/page"
	"arnime/internal/service"
	"arnime/pkg/httpclient"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// notices shown after a redirect, keyed by ?notice=
var notices = map[string]string{
	"signed-in":         "Signed in successfully.",
	"signed-out":        "You have been signed out.",
	"login-failed":      "Sign in failed, please try again.",
	"login-unavailable": "Sign in is not available right now.",
}

// View carries the settings every page needs
type View struct {
	AuthEnabled bool
}

// render writes an HTML page with the shared layout fields
func (v View) render(c *gin.Context, status int, name string, data gin.H) {
	base := gin.H{
		"Title":       "",
		"Query":       "",
		"Error":       "",
		"Notice":      notices[c.Query("notice")],
		"User":        auth.CurrentUser(c),
		"AuthEnabled": v.AuthEnabled,
		"Path":        c.Request.URL.RequestURI(),
	}
	for k, val := range data {
		base[k] = val
	}
	c.HTML(status, name, base)
}

// renderState writes a page from a controller state: content when ready,
// the error panel otherwise
func renderState[T any](v View, c *gin.Context, name string, st page.State[T], data gin.H) {
	if st.Status == page.Failed {
		c.Error(st.Err)
		data["Error"] = st.Message()
		v.render(c, statusFor(st.Err), name, data)
		return
	}
	v.render(c, http.StatusOK, name, data)
}

// statusFor maps an error to the HTTP status shown with its panel
func statusFor(err error) int {
	var notFound *service.NotFoundError
	var httpErr *httpclient.HTTPError
	var formatErr *httpclient.FormatError

	switch {
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.Is(err, library.ErrInvalidComment), errors.Is(err, library.ErrUnknownParent):
		return http.StatusBadRequest
	case errors.As(err, &httpErr), errors.As(err, &formatErr), errors.Is(err, service.ErrPlayerUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, context.Canceled):
		// client went away; nobody reads this
		return 499
	}
	return http.StatusInternalServerError
}

// jsonError writes an APIResponse for err and records it on the context
func jsonError(c *gin.Context, err error, message string) {
	c.Error(err)
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg(message)
	}
	c.JSON(status, model.APIResponse{
		Code:    status,
		Message: message,
		Error:   page.ErrorMessage(err),
	})
}

// likesFor loads the signed-in user's liked slugs; failures only cost the hearts
func likesFor(c *gin.Context, bookmarks *library.Bookmarks) map[string]bool {
	userID := auth.CurrentUserID(c)
	if userID == "" {
		return map[string]bool{}
	}
	likes, err := bookmarks.Likes(c.Request.Context(), userID)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load favorites")
		return map[string]bool{}
	}
	return likes.Slugs()
}
