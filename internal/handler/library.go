package handler

import (
	"context"
	"net/http"

	"arnime/internal/auth"
	"arnime/internal/library"
	"arnime/internal/model"
	"arnime/internal/page"

	"github.com/gin-gonic/gin"
)

// LibraryHandler handles a user's favorites and watch history
type LibraryHandler struct {
	view      View
	bookmarks *library.Bookmarks
	history   *library.History
}

// NewLibraryHandler creates a new LibraryHandler
func NewLibraryHandler(view View, bookmarks *library.Bookmarks, history *library.History) *LibraryHandler {
	return &LibraryHandler{
		view:      view,
		bookmarks: bookmarks,
		history:   history,
	}
}

// Favorites renders the user's bookmarks, newest first.
// Signed-out visitors get the sign-in prompt.
// GET /favorites
func (h *LibraryHandler) Favorites(c *gin.Context) {
	userID := auth.CurrentUserID(c)
	if userID == "" {
		h.view.render(c, http.StatusOK, "favorites.html", gin.H{"Title": "Favorites"})
		return
	}

	st := page.NewController(h.bookmarks.List).Load(c.Request.Context(), userID)
	renderState(h.view, c, "favorites.html", st, gin.H{
		"Title":     "Favorites",
		"Bookmarks": st.Data,
	})
}

// WatchHistory renders the user's history, most recent first
// GET /watchhistory
func (h *LibraryHandler) WatchHistory(c *gin.Context) {
	userID := auth.CurrentUserID(c)
	if userID == "" {
		h.view.render(c, http.StatusOK, "watchhistory.html", gin.H{"Title": "Watch History"})
		return
	}

	st := page.NewController(h.history.List).Load(c.Request.Context(), userID)
	renderState(h.view, c, "watchhistory.html", st, gin.H{
		"Title":   "Watch History",
		"History": st.Data,
	})
}

// toggleRequest describes the anime being liked
type toggleRequest struct {
	Title  string `json:"title"`
	Poster string `json:"poster"`
	Type   string `json:"type"`
}

// ToggleFavorite likes or unlikes an anime
// POST /api/v1/favorites/:slug
func (h *LibraryHandler) ToggleFavorite(c *gin.Context) {
	ctx := c.Request.Context()
	slug := c.Param("slug")
	userID := auth.CurrentUserID(c)

	var req toggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.APIResponse{
			Code:  http.StatusBadRequest,
			Error: "invalid request body",
		})
		return
	}

	likes, err := h.bookmarks.LikeState(ctx, userID, slug)
	if err != nil {
		jsonError(c, err, "failed to load favorite")
		return
	}

	liked, err := h.bookmarks.Toggle(ctx, likes, userID, library.BookmarkInput{
		Slug:   slug,
		Title:  req.Title,
		Poster: req.Poster,
		Type:   req.Type,
	})
	if err != nil {
		c.Error(err)
		c.JSON(http.StatusInternalServerError, model.APIResponse{
			Code:    http.StatusInternalServerError,
			Data:    gin.H{"slug": slug, "liked": liked},
			Message: "failed to update favorites",
			Error:   page.ErrorMessage(err),
		})
		return
	}

	c.JSON(http.StatusOK, model.APIResponse{
		Code: http.StatusOK,
		Data: gin.H{"slug": slug, "liked": liked},
	})
}

// DeleteHistory removes one watch history entry
// DELETE /api/v1/history/:slug
func (h *LibraryHandler) DeleteHistory(c *gin.Context) {
	h.remove(c, h.history.Delete, "failed to delete history entry")
}

// DeleteFavorite removes one bookmark
// DELETE /api/v1/favorites/:slug
func (h *LibraryHandler) DeleteFavorite(c *gin.Context) {
	h.remove(c, h.bookmarks.Remove, "failed to remove favorite")
}

func (h *LibraryHandler) remove(c *gin.Context, del func(ctx context.Context, userID, slug string) error, message string) {
	slug := c.Param("slug")
	if err := del(c.Request.Context(), auth.CurrentUserID(c), slug); err != nil {
		jsonError(c, err, message)
		return
	}
	c.JSON(http.StatusOK, model.APIResponse{
		Code: http.StatusOK,
		Data: gin.H{"slug": slug},
	})
}
