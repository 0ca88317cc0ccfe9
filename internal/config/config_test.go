package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dbmlviewer/internal/layout"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "DB_PORT", "REDIS_ADDR", "CORS_ORIGINS", "COOKIE_SECURE", "LAYOUT_DIRECTION"} {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "5432", cfg.DBPort)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.CORSOrigins)
	assert.True(t, cfg.SecureCookies)
	assert.Equal(t, layout.LeftRight, cfg.LayoutDirection)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("COOKIE_SECURE", "FALSE")
	t.Setenv("LAYOUT_DIRECTION", "tb")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.False(t, cfg.SecureCookies)
	assert.Equal(t, layout.TopBottom, cfg.LayoutDirection)
}

func TestLoadRejectsUnknownDirection(t *testing.T) {
	t.Setenv("LAYOUT_DIRECTION", "up")
	_, err := Load()
	assert.ErrorContains(t, err, "LAYOUT_DIRECTION")
}

func TestValidate(t *testing.T) {
	cfg := &Config{
		DBHost:             "localhost",
		DBUser:             "app",
		DBPassword:         "secret",
		DBName:             "diagrams",
		AccessTokenSecret:  "a",
		RefreshTokenSecret: "r",
	}
	require.NoError(t, cfg.Validate())

	cfg.RefreshTokenSecret = ""
	assert.EqualError(t, cfg.Validate(), "REFRESH_TOKEN_SECRET environment variable is required")
}
