package main

import (
	"flag"
	"os"
	"time"

	"arnime/internal/config"
	"arnime/internal/store"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// migrator applies the document table migrations for a SQL backend
func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})

	cfg := config.Load()

	backend := flag.String("backend", cfg.StoreBackend, "SQL backend: postgres or sqlite")
	dsn := flag.String("dsn", cfg.DatabaseURL, "database URL or sqlite file")
	flag.Parse()

	dialect, err := store.DialectFor(*backend)
	if err != nil {
		log.Fatal().Err(err).Msg("Backend has no SQL migrations")
	}
	if *dsn == "" {
		log.Fatal().Msg("DATABASE_URL or -dsn is required")
	}

	s, err := store.NewSQLStore(dialect, *dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect")
	}
	defer s.Close()

	if err := s.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Migration failed")
	}
	log.Info().Str("backend", dialect.Name).Msg("✅ Migrations applied")
}
