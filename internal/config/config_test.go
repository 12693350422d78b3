package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "STORE_BACKEND", "SESSION_TTL", "METRICS_ENABLED", "COMMENT_RATE_PER_MIN", "GOOGLE_CLIENT_ID", "PUBLIC_URL", "CORS_ORIGINS"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "redis", cfg.StoreBackend)
	assert.Equal(t, 720*time.Hour, cfg.SessionTTL)
	assert.True(t, cfg.MetricsEnabled)
	assert.Equal(t, 6, cfg.CommentRatePerMin)
	assert.False(t, cfg.AuthEnabled())
	assert.False(t, cfg.SecureCookies())
	assert.Empty(t, cfg.CORSOrigins)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", "SQLite")
	t.Setenv("SESSION_TTL", "2h")
	t.Setenv("METRICS_ENABLED", "false")
	t.Setenv("COMMENT_RATE_PER_MIN", "nope")
	t.Setenv("GOOGLE_CLIENT_ID", "id")
	t.Setenv("GOOGLE_CLIENT_SECRET", "secret")
	t.Setenv("PUBLIC_URL", "https://arnime.example/")
	t.Setenv("CORS_ORIGINS", "https://a.example, ,https://b.example")

	cfg := Load()
	assert.Equal(t, "sqlite", cfg.StoreBackend)
	assert.Equal(t, 2*time.Hour, cfg.SessionTTL)
	assert.False(t, cfg.MetricsEnabled)
	assert.Equal(t, 6, cfg.CommentRatePerMin)
	assert.True(t, cfg.AuthEnabled())
	assert.True(t, cfg.SecureCookies())
	assert.Equal(t, "https://arnime.example", cfg.PublicURL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
}
