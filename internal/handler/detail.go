package handler

import (
	"sync"

	"arnime/internal/auth"
	"arnime/internal/library"
	"arnime/internal/model"
	"arnime/internal/page"
	"arnime/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// DetailHandler handles anime detail pages
type DetailHandler struct {
	view      View
	anime     *service.AnimeService
	bookmarks *library.Bookmarks
}

// NewDetailHandler creates a new DetailHandler
func NewDetailHandler(view View, anime *service.AnimeService, bookmarks *library.Bookmarks) *DetailHandler {
	return &DetailHandler{
		view:      view,
		anime:     anime,
		bookmarks: bookmarks,
	}
}

// GetDetail renders one anime with its episode, batch and full lists
// GET /anime/:slug
func (h *DetailHandler) GetDetail(c *gin.Context) {
	ctx := c.Request.Context()
	slug := c.Param("slug")
	userID := auth.CurrentUserID(c)

	var st page.State[*model.AnimeDetail]
	var liked bool

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		st = page.NewController(h.anime.Detail).Load(ctx, slug)
	}()
	go func() {
		defer wg.Done()
		if userID == "" {
			return
		}
		var err error
		if liked, err = h.bookmarks.IsLiked(ctx, userID, slug); err != nil {
			log.Warn().Err(err).Str("slug", slug).Msg("Failed to load favorite state")
		}
	}()
	wg.Wait()

	data := gin.H{
		"Slug":   slug,
		"Detail": st.Data,
		"Liked":  liked,
	}
	if st.Data != nil {
		data["Title"] = st.Data.Title
		data["StatusTag"] = library.StatusTag(st.Data)
	}
	renderState(h.view, c, "detail.html", st, data)
}
