package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds all configuration for the server
type Config struct {
	Port    string
	GinMode string

	AnimeAPIBaseURL string

	StoreBackend string
	RedisURL     string
	DatabaseURL  string
	AutoMigrate  bool

	MetricsEnabled bool
	AdminAPIKey    string
	CORSOrigins    []string

	SessionSecret      string
	SessionTTL         time.Duration
	GoogleClientID     string
	GoogleClientSecret string
	PublicURL          string

	CommentRatePerMin int
}

const defaultSessionSecret = "dev-secret-change-me"

// Load reads configuration from the environment, after a .env file if present
func Load() *Config {
	if err := godotenv.Load(); err == nil {
		log.Info().Msg("📄 Loaded .env file")
	}

	return &Config{
		Port:               getEnv("PORT", "8080"),
		GinMode:            getEnv("GIN_MODE", "debug"),
		AnimeAPIBaseURL:    getEnv("ANIME_API_BASE_URL", "https://api.ammaricano.my.id/api/otakudesu"),
		StoreBackend:       strings.ToLower(getEnv("STORE_BACKEND", "redis")),
		RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		AutoMigrate:        getEnvBool("DB_AUTO_MIGRATE", true),
		MetricsEnabled:     getEnvBool("METRICS_ENABLED", true),
		AdminAPIKey:        getEnv("ADMIN_API_KEY", ""),
		CORSOrigins:        getEnvList("CORS_ORIGINS"),
		SessionSecret:      getEnv("SESSION_SECRET", defaultSessionSecret),
		SessionTTL:         getEnvDuration("SESSION_TTL", 720*time.Hour),
		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		PublicURL:          strings.TrimRight(getEnv("PUBLIC_URL", "http://localhost:8080"), "/"),
		CommentRatePerMin:  getEnvInt("COMMENT_RATE_PER_MIN", 6),
	}
}

// AuthEnabled reports whether an identity provider is configured
func (c *Config) AuthEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

// SecureCookies reports whether cookies should carry the Secure flag
func (c *Config) SecureCookies() bool {
	return strings.HasPrefix(c.PublicURL, "https://")
}

// UsesDefaultSecret reports whether SESSION_SECRET was left unset
func (c *Config) UsesDefaultSecret() bool {
	return c.SessionSecret == defaultSessionSecret
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvList splits a comma separated variable, dropping blank entries
func getEnvList(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		log.Warn().Str("key", key).Str("value", value).Msg("Invalid boolean, using default")
		return defaultValue
	}
	return b
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		log.Warn().Str("key", key).Str("value", value).Msg("Invalid integer, using default")
		return defaultValue
	}
	return n
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		log.Warn().Str("key", key).Str("value", value).Msg("Invalid duration, using default")
		return defaultValue
	}
	return d
}
