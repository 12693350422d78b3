package handler

import (
	"net/http"
	"net/url"
	"strings"

	"arnime/internal/auth"
	"arnime/internal/library"
	"arnime/internal/model"
	"arnime/internal/page"
	"arnime/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Entry kinds accepted by Open
const (
	KindEpisode = "episode"
	KindBatch   = "batch"
	KindFull    = "full"
)

// WatchHandler handles episode, batch and complete-series pages
type WatchHandler struct {
	view    View
	anime   *service.AnimeService
	history *library.History
}

// NewWatchHandler creates a new WatchHandler
func NewWatchHandler(view View, anime *service.AnimeService, history *library.History) *WatchHandler {
	return &WatchHandler{
		view:    view,
		anime:   anime,
		history: history,
	}
}

// openRequest is posted when a visitor picks an entry on the detail page
type openRequest struct {
	Kind   string `form:"kind" json:"kind" binding:"required"`
	Slug   string `form:"slug" json:"slug" binding:"required"`
	Label  string `form:"label" json:"label"`
	Title  string `form:"title" json:"title"`
	Poster string `form:"poster" json:"poster"`
}

func entryPath(animeSlug string, req openRequest) (string, bool) {
	base := "/anime/" + url.PathEscape(animeSlug)
	switch req.Kind {
	case KindEpisode:
		return base + "/watch/" + url.PathEscape(req.Slug), true
	case KindBatch:
		return base + "/batch/" + url.PathEscape(req.Slug), true
	case KindFull:
		return base + "/full/" + url.PathEscape(req.Slug), true
	}
	return "", false
}

// Open records the picked entry in the watch history of a signed-in user
// and redirects to it. Signed-out visitors are redirected without a write.
// POST /anime/:slug/open
func (h *WatchHandler) Open(c *gin.Context) {
	animeSlug := c.Param("slug")

	var req openRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.APIResponse{
			Code:  http.StatusBadRequest,
			Error: "kind and slug are required",
		})
		return
	}

	target, ok := entryPath(animeSlug, req)
	if !ok {
		c.JSON(http.StatusBadRequest, model.APIResponse{
			Code:  http.StatusBadRequest,
			Error: "kind must be episode, batch or full",
		})
		return
	}

	label := strings.TrimSpace(req.Label)
	if label == "" {
		label = req.Slug
	}

	// a failed history write never blocks navigation
	if _, err := h.history.Record(c.Request.Context(), auth.CurrentUserID(c), library.WatchInput{
		Slug:       animeSlug,
		Title:      req.Title,
		Poster:     req.Poster,
		EntryLabel: label,
		EntrySlug:  req.Slug,
	}); err != nil {
		c.Error(err)
		log.Warn().Err(err).Str("slug", animeSlug).Msg("Failed to record watch history")
	}

	c.Redirect(http.StatusSeeOther, target)
}

// Watch renders an episode with its player. ?quality= picks the mirror
// group; the first mirror of the chosen group is resolved on load.
// GET /anime/:slug/watch/:episode
func (h *WatchHandler) Watch(c *gin.Context) {
	ctx := c.Request.Context()
	animeSlug := c.Param("slug")
	episodeSlug := c.Param("episode")

	st := page.NewController(h.anime.Episode).Load(ctx, episodeSlug)

	data := gin.H{
		"Slug":        animeSlug,
		"Episode":     st.Data,
		"Player":      page.Player{},
		"PlayerSrc":   "",
		"PlayerError": "",
	}

	if st.Status == page.Ready {
		player := page.SelectPlayer(st.Data, c.Query("quality"))
		ps := page.Start(ctx, player, page.NewPlayerController(h.anime))
		switch ps.Status {
		case page.Ready:
			data["PlayerSrc"] = ps.Data
		case page.Failed:
			c.Error(ps.Err)
			data["PlayerError"] = ps.Message()
		}
		data["Player"] = player
		data["Title"] = st.Data.Title
	}

	renderState(h.view, c, "watch.html", st, data)
}

// Player resolves one mirror token to its player URL
// GET /api/v1/player?content=token
func (h *WatchHandler) Player(c *gin.Context) {
	content := c.Query("content")
	if content == "" {
		c.JSON(http.StatusBadRequest, model.APIResponse{
			Code:  http.StatusBadRequest,
			Error: "content parameter required",
		})
		return
	}

	src, err := h.anime.ResolveMirror(c.Request.Context(), content)
	if err != nil {
		jsonError(c, err, "failed to load player")
		return
	}

	c.JSON(http.StatusOK, model.APIResponse{
		Code: http.StatusOK,
		Data: gin.H{"src": src},
	})
}

// Batch renders a batch release
// GET /anime/:slug/batch/:batch
func (h *WatchHandler) Batch(c *gin.Context) {
	st := page.NewController(h.anime.Batch).Load(c.Request.Context(), c.Param("batch"))

	data := gin.H{"Slug": c.Param("slug"), "Batch": st.Data}
	if st.Data != nil {
		data["Title"] = st.Data.Title
	}
	renderState(h.view, c, "batch.html", st, data)
}

// Full renders a complete-series release
// GET /anime/:slug/full/:full
func (h *WatchHandler) Full(c *gin.Context) {
	st := page.NewController(h.anime.Full).Load(c.Request.Context(), c.Param("full"))

	data := gin.H{"Slug": c.Param("slug"), "Full": st.Data}
	if st.Data != nil {
		data["Title"] = st.Data.Title
	}
	renderState(h.view, c, "full.html", st, data)
}
