package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsAndEnv(t *testing.T) {
	t.Setenv("MINIO_ACCESS_KEY_ID", "minio")
	t.Setenv("MINIO_SECRET_ACCESS_KEY", "minio-secret")
	t.Setenv("API_ALLOWED_ORIGINS", "https://app.jobgenie.io, http://localhost:3000")
	t.Setenv("RESOURCES_CACHE_TTL", "48h")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.API.Port)
	assert.Equal(t, []string{"https://app.jobgenie.io", "http://localhost:3000"}, cfg.API.Origins())
	assert.Equal(t, 48*time.Hour, cfg.Resources.TTL)
	assert.Equal(t, 30*24*time.Hour, cfg.Resources.Retention)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
	assert.Equal(t, "gemini", cfg.AI.Provider)
	assert.Equal(t, 9091, cfg.Worker.MetricsPort)
}

func TestLoad_RejectsUnknownAIProvider(t *testing.T) {
	t.Setenv("MINIO_ACCESS_KEY_ID", "minio")
	t.Setenv("MINIO_SECRET_ACCESS_KEY", "minio-secret")
	t.Setenv("AI_PROVIDER", "parrot")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported ai provider")
}

func TestStripePricePlans(t *testing.T) {
	cfg := StripeConfig{Prices: "price_pro=pro, price_max = unlimited, broken, =free"}
	assert.Equal(t, map[string]string{
		"price_pro": "pro",
		"price_max": "unlimited",
	}, cfg.PricePlans())
}
