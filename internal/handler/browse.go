package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"arnime/internal/library"
	"arnime/internal/model"
	"arnime/internal/page"
	"arnime/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// BrowseHandler handles the home page and its list API
type BrowseHandler struct {
	view      View
	anime     *service.AnimeService
	bookmarks *library.Bookmarks
}

// NewBrowseHandler creates a new BrowseHandler
func NewBrowseHandler(view View, anime *service.AnimeService, bookmarks *library.Bookmarks) *BrowseHandler {
	return &BrowseHandler{
		view:      view,
		anime:     anime,
		bookmarks: bookmarks,
	}
}

// listQuery is the key input of a browse page
type listQuery struct {
	Type      string
	GenreSlug string
	Page      int
}

func (q listQuery) key() string {
	return fmt.Sprintf("%s|%s|%d", q.Type, q.GenreSlug, q.Page)
}

func parseListQuery(c *gin.Context) listQuery {
	q := listQuery{Type: service.TypeOngoing, Page: 1}
	if c.Query("type") == service.TypeComplete {
		q.Type = service.TypeComplete
	}
	if g := strings.TrimSpace(c.Query("genre")); g != "" && g != "All" {
		q.GenreSlug = g
	}
	if n, err := strconv.Atoi(c.Query("page")); err == nil && n > 0 {
		q.Page = n
	}
	return q
}

func (h *BrowseHandler) pages(q listQuery) page.PageFetcher {
	return func(ctx context.Context, n int) ([]model.AnimeSummary, error) {
		if q.GenreSlug != "" {
			return h.anime.ListByGenre(ctx, q.GenreSlug, n)
		}
		return h.anime.ListByType(ctx, q.Type, n)
	}
}

// resolveGenre accepts a genre slug or a genre name
func resolveGenre(genres []model.Genre, value string) (slug, name string) {
	for _, g := range genres {
		if g.Slug == value {
			return g.Slug, g.Name
		}
	}
	return service.GenreSlug(genres, value), value
}

type homeData struct {
	Items   []model.AnimeSummary
	Page    int
	HasMore bool
}

// Home renders the browse page. Without JavaScript ?page=N renders
// pages 1..N at once.
// GET /?type=ongoing|complete&genre=slug&page=N
func (h *BrowseHandler) Home(c *gin.Context) {
	ctx := c.Request.Context()
	q := parseListQuery(c)

	var genres []model.Genre
	var likes map[string]bool

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		genres = h.anime.GenresOrFallback(ctx)
	}()
	go func() {
		defer wg.Done()
		likes = likesFor(c, h.bookmarks)
	}()
	wg.Wait()

	heading := "Ongoing Anime"
	if q.Type == service.TypeComplete {
		heading = "Completed Anime"
	}
	if q.GenreSlug != "" {
		q.GenreSlug, heading = resolveGenre(genres, q.GenreSlug)
	}

	target := min(q.Page, page.MaxPages)
	ctrl := page.NewController(func(ctx context.Context, _ string) (homeData, error) {
		pager := page.NewPager(h.pages(q))
		for pager.Page() < target && pager.HasMore() {
			if _, err := pager.LoadMore(ctx); err != nil {
				return homeData{}, err
			}
		}
		return homeData{Items: pager.Items(), Page: pager.Page(), HasMore: pager.HasMore()}, nil
	})
	st := ctrl.Load(ctx, q.key())

	log.Debug().Str("type", q.Type).Str("genre", q.GenreSlug).Int("items", len(st.Data.Items)).Msg("Browse page")

	renderState(h.view, c, "home.html", st, gin.H{
		"Title":   heading,
		"Heading": heading,
		"Type":    q.Type,
		"Genre":   q.GenreSlug,
		"Genres":  genres,
		"Items":   st.Data.Items,
		"Page":    st.Data.Page,
		"HasMore": st.Data.HasMore,
		"Likes":   likes,
	})
}

// List returns one page of anime for infinite scroll
// GET /api/v1/anime?type=ongoing|complete&genre=slug&page=N
func (h *BrowseHandler) List(c *gin.Context) {
	q := parseListQuery(c)

	res, err := page.FetchPage(c.Request.Context(), q.Page, h.pages(q))
	if err != nil {
		jsonError(c, err, "failed to load anime")
		return
	}

	c.JSON(http.StatusOK, model.APIResponse{
		Code: http.StatusOK,
		Data: gin.H{
			"items":   res.Items,
			"page":    res.Page,
			"hasMore": res.HasMore,
			"likes":   likesFor(c, h.bookmarks),
		},
	})
}
