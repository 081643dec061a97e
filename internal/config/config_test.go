package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// unsetenv clears keys for the duration of the test.
func unsetenv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		_ = os.Unsetenv(k)
	}
}

func TestLoadDefaults(t *testing.T) {
	unsetenv(t, "API_KEY", "API_BASE_URL", "PORT", "CACHE_BACKEND", "CACHE_TTL", "MAX_BODY_BYTES", "UPSTREAM_READ_TIMEOUT")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "https://api.openai.com", cfg.BaseURL)
	require.Equal(t, "3000", cfg.Port)
	require.Equal(t, "none", cfg.CacheBackend)
	require.Equal(t, 5*time.Minute, cfg.CacheTTL)
	require.Equal(t, int64(1<<20), cfg.MaxBodyBytes)
	require.Zero(t, cfg.UpstreamReadTimeout)
	require.Empty(t, cfg.Credential)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("API_KEY", "sk-env")
	t.Setenv("API_BASE_URL", "http://localhost:11434/v1")
	t.Setenv("PORT", "8081")
	t.Setenv("UPSTREAM_READ_TIMEOUT", "45s")
	t.Setenv("CACHE_BACKEND", "redis")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("REDIS_DB", "2")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "8081", cfg.Port)
	require.Equal(t, 45*time.Second, cfg.UpstreamReadTimeout)
	require.Equal(t, "redis:6379", cfg.RedisAddr)
	require.Equal(t, 2, cfg.RedisDB)

	tc := cfg.Target()
	require.Equal(t, "sk-env", tc.Credential)
	require.Equal(t, "http://localhost:11434/v1", tc.BaseURL)

	require.Equal(t, 45*time.Second, cfg.Relay().ReadTimeout)
	require.Equal(t, "redis", cfg.Cache().Backend)
}

func TestUnknownCacheBackendFailsValidation(t *testing.T) {
	t.Setenv("CACHE_BACKEND", "memcached")

	cfg, err := Load()
	require.NoError(t, err)
	require.ErrorContains(t, cfg.Validate(), "CACHE_BACKEND")
}

func TestOverrideAfterLoadFixesBackend(t *testing.T) {
	t.Setenv("CACHE_BACKEND", "bogus")

	cfg, err := Load()
	require.NoError(t, err)

	// what a --cache-backend flag does before validation
	cfg.CacheBackend = "memory"
	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	base := Config{Port: "3000", CacheBackend: "none"}
	require.NoError(t, base.Validate())

	bad := base
	bad.UpstreamReadTimeout = -time.Second
	require.ErrorContains(t, bad.Validate(), "UPSTREAM_READ_TIMEOUT")

	noTTL := base
	noTTL.CacheBackend = "memory"
	require.ErrorContains(t, noTTL.Validate(), "CACHE_TTL")
}
