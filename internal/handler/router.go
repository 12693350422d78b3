package handler

import (
	"net/http"

	"arnime/internal/auth"
	"arnime/internal/library"
	"arnime/internal/middleware"
	"arnime/internal/repository"
	"arnime/internal/service"
	"arnime/internal/store"
	"arnime/internal/web"

	"github.com/gin-gonic/gin"
)

// Deps are the collaborators the router wires into handlers
type Deps struct {
	Anime *service.AnimeService
	Store store.Store
	// Metrics is optional
	Metrics *repository.Metrics
	Tokens  auth.TokenService
	// Provider is nil when sign in is not configured
	Provider      auth.Provider
	SecureCookies bool
	// CORSOrigins may read the JSON API; empty allows any origin
	CORSOrigins []string

	StoreBackend      string
	AdminAPIKey       string
	CommentRatePerMin int
}

// NewRouter builds the gin engine with every page and API route
func NewRouter(d Deps) (*gin.Engine, error) {
	tmpl, err := web.Templates()
	if err != nil {
		return nil, err
	}

	corsMiddleware, err := middleware.CORS(d.CORSOrigins)
	if err != nil {
		return nil, err
	}

	view := View{AuthEnabled: d.Provider != nil}

	bookmarks := library.NewBookmarks(d.Store)
	history := library.NewHistory(d.Store)
	comments := library.NewComments(d.Store)

	browseHandler := NewBrowseHandler(view, d.Anime, bookmarks)
	searchHandler := NewSearchHandler(view, d.Anime, bookmarks)
	detailHandler := NewDetailHandler(view, d.Anime, bookmarks)
	watchHandler := NewWatchHandler(view, d.Anime, history)
	scheduleHandler := NewScheduleHandler(view, d.Anime)
	libraryHandler := NewLibraryHandler(view, bookmarks, history)
	commentHandler := NewCommentHandler(view, comments)
	authHandler := NewAuthHandler(view, d.Provider, d.Tokens, d.SecureCookies)
	adminHandler := NewAdminHandler(d.Metrics, d.Store, d.StoreBackend, view.AuthEnabled)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logging())
	if d.Metrics != nil {
		r.Use(middleware.Metrics(d.Metrics))
	}
	r.Use(corsMiddleware)
	r.Use(middleware.Session(d.Tokens, d.SecureCookies))

	r.SetHTMLTemplate(tmpl)
	r.StaticFS("/static", http.FS(web.Static()))

	r.NoRoute(func(c *gin.Context) {
		view.render(c, http.StatusNotFound, "error.html", gin.H{
			"Title": "Not found",
			"Error": "Page not found",
		})
	})

	r.GET("/health", adminHandler.Health)
	r.GET("/ready", adminHandler.Ready)

	// Pages
	r.GET("/", browseHandler.Home)
	r.GET("/search", searchHandler.Search)
	r.GET("/anime/:slug", detailHandler.GetDetail)
	r.POST("/anime/:slug/open", watchHandler.Open)
	r.GET("/anime/:slug/watch/:episode", watchHandler.Watch)
	r.GET("/anime/:slug/batch/:batch", watchHandler.Batch)
	r.GET("/anime/:slug/full/:full", watchHandler.Full)
	r.GET("/schedule", scheduleHandler.GetSchedule)
	r.GET("/favorites", libraryHandler.Favorites)
	r.GET("/watchhistory", libraryHandler.WatchHistory)
	r.GET("/comments", commentHandler.Page)

	authGroup := r.Group("/auth")
	{
		authGroup.GET("/login", authHandler.Login)
		authGroup.GET("/callback", authHandler.Callback)
		authGroup.GET("/logout", authHandler.LogoutPage)
		authGroup.POST("/logout", authHandler.Logout)
	}

	// Public JSON API
	api := r.Group("/api/v1")
	{
		api.GET("/status", adminHandler.GetStatus)
		api.GET("/anime", browseHandler.List)
		api.GET("/player", watchHandler.Player)
	}

	// Per-user JSON API
	user := r.Group("/api/v1")
	user.Use(middleware.RequireUser())
	{
		user.POST("/favorites/:slug", libraryHandler.ToggleFavorite)
		user.DELETE("/favorites/:slug", libraryHandler.DeleteFavorite)
		user.DELETE("/history/:slug", libraryHandler.DeleteHistory)
	}

	commentLimiter := middleware.NewRateLimiter(d.CommentRatePerMin)
	commentsAPI := r.Group("/api/comments")
	{
		commentsAPI.GET("", commentHandler.List)
		commentsAPI.POST("", middleware.RateLimit(commentLimiter), commentHandler.Create)
	}

	// Admin routes, guarded when ADMIN_API_KEY is set
	admin := r.Group("/api/v1")
	admin.Use(middleware.AdminAuth(d.AdminAPIKey))
	{
		admin.GET("/analytics", adminHandler.GetAnalytics)
		admin.GET("/analytics/endpoint", adminHandler.GetEndpointStats)
		admin.DELETE("/analytics", adminHandler.ResetAnalytics)
	}

	return r, nil
}
