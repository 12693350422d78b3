package store

import (
	"fmt"
)

// Backend names accepted by Open
const (
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendMemory   = "memory"
)

// Options selects and configures a backend
type Options struct {
	Backend     string
	RedisURL    string
	DatabaseURL string
	// AutoMigrate applies SQL migrations on open
	AutoMigrate bool
}

// Open connects the configured backend
func Open(opts Options) (Store, error) {
	switch opts.Backend {
	case BackendRedis, "":
		return NewRedisStore(opts.RedisURL)
	case BackendMemory:
		return NewMemoryStore(), nil
	case BackendPostgres, BackendSQLite:
		if opts.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required for the %s backend", opts.Backend)
		}
		dialect, err := DialectFor(opts.Backend)
		if err != nil {
			return nil, err
		}
		s, err := NewSQLStore(dialect, opts.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if opts.AutoMigrate {
			if err := s.Migrate(); err != nil {
				s.Close()
				return nil, err
			}
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown store backend %q", opts.Backend)
}
