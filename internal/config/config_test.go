package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("STORE_BACKEND", "")
	t.Setenv("ALLOWED_ORIGINS", "")
	t.Setenv("ENV", "")

	cfg := Load()
	assert.Equal(t, "8083", cfg.Port)
	assert.Equal(t, "memory", cfg.StoreBackend)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("STORE_BACKEND", "Postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/dm")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("DEBUG_ROUTES", "true")

	cfg := Load()
	assert.Equal(t, "postgres", cfg.StoreBackend)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.True(t, cfg.DebugRoutes)
}

func TestLoadPanicsWithoutSecretInProduction(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("AUTH_SECRET", "")
	assert.Panics(t, func() { Load() })
}
