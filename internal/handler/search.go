package handler

import (
	"net/http"
	"strings"

	"arnime/internal/library"
	"arnime/internal/page"
	"arnime/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// SearchHandler handles the search page
type SearchHandler struct {
	view      View
	anime     *service.AnimeService
	bookmarks *library.Bookmarks
}

// NewSearchHandler creates a new SearchHandler
func NewSearchHandler(view View, anime *service.AnimeService, bookmarks *library.Bookmarks) *SearchHandler {
	return &SearchHandler{
		view:      view,
		anime:     anime,
		bookmarks: bookmarks,
	}
}

// Search handles search requests. A blank query shows the prompt and
// calls nothing upstream.
// GET /search?q=keyword
func (h *SearchHandler) Search(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		h.view.render(c, http.StatusOK, "search.html", gin.H{"Title": "Search"})
		return
	}

	log.Info().Str("query", query).Msg("🔍 Searching anime")

	ctrl := page.NewController(h.anime.Search)
	st := ctrl.Load(c.Request.Context(), query)

	renderState(h.view, c, "search.html", st, gin.H{
		"Title": "Search: " + query,
		"Query": query,
		"Items": st.Data,
		"Likes": likesFor(c, h.bookmarks),
	})
}
