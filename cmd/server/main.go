package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"arnime/internal/auth"
	"arnime/internal/config"
	"arnime/internal/handler"
	"arnime/internal/repository"
	"arnime/internal/service"
	"arnime/internal/store"
	"arnime/pkg/httpclient"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Setup logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})

	// Load configuration
	cfg := config.Load()
	log.Info().
		Str("port", cfg.Port).
		Str("mode", cfg.GinMode).
		Str("store", cfg.StoreBackend).
		Str("upstream", cfg.AnimeAPIBaseURL).
		Msg("🚀 Starting arnime")

	// Set Gin mode
	gin.SetMode(cfg.GinMode)

	// Open the document store
	st, err := store.Open(store.Options{
		Backend:     cfg.StoreBackend,
		RedisURL:    cfg.RedisURL,
		DatabaseURL: cfg.DatabaseURL,
		AutoMigrate: cfg.AutoMigrate,
	})
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.StoreBackend).Msg("Failed to open store")
	}
	defer st.Close()

	// Initialize metrics
	var metrics *repository.Metrics
	if cfg.MetricsEnabled {
		metrics, err = repository.NewMetrics(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize metrics")
		}
		defer metrics.Close()
		metrics.RecordServerStart(context.Background())
		log.Info().Msg("📊 Metrics enabled")
	}

	// Sign in
	tokens := auth.TokenService{
		Secret:   []byte(cfg.SessionSecret),
		Issuer:   "arnime",
		Duration: cfg.SessionTTL,
	}
	if cfg.UsesDefaultSecret() {
		log.Warn().Msg("⚠️  SESSION_SECRET is not set, sessions use the development secret")
	}

	var provider auth.Provider
	if cfg.AuthEnabled() {
		provider = auth.NewGoogleProvider(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.PublicURL+"/auth/callback")
		log.Info().Msg("🔑 Google sign in enabled")
	} else {
		log.Warn().Msg("⚠️  Google sign in not configured, favorites and history are unavailable")
	}

	anime := service.NewAnimeService(httpclient.NewClient(), cfg.AnimeAPIBaseURL)

	r, err := handler.NewRouter(handler.Deps{
		Anime:             anime,
		Store:             st,
		Metrics:           metrics,
		Tokens:            tokens,
		Provider:          provider,
		SecureCookies:     cfg.SecureCookies(),
		CORSOrigins:       cfg.CORSOrigins,
		StoreBackend:      cfg.StoreBackend,
		AdminAPIKey:       cfg.AdminAPIKey,
		CommentRatePerMin: cfg.CommentRatePerMin,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build router")
	}

	if cfg.AdminAPIKey != "" {
		log.Info().Msg("🔐 Admin API authentication enabled")
	} else {
		log.Warn().Msg("⚠️  ADMIN_API_KEY not set, admin endpoints are open")
	}

	// Create HTTP server with graceful shutdown support
	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Str("url", cfg.PublicURL).Msg("🌐 Server listening")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("🛑 Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("👋 Server exited")
}
