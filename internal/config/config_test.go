package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigDir(t *testing.T, base string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "base.yaml"), []byte(base), 0o600))
	t.Setenv("CONFIG_DIR", dir)
	t.Setenv("CONFIG_ENV", "test")
	return dir
}

func TestLoad_AppliesDefaultsAndEnv(t *testing.T) {
	writeConfigDir(t, `
db:
  host: localhost
  name: selftracker
jwt:
  secret: ${JWT_SECRET}
`)
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("SERVER_PORT", ":9999")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.JWT.Secret)
	assert.Equal(t, ":9999", cfg.Server.Port)
	assert.Equal(t, 24*time.Hour, cfg.JWT.TTL)
	assert.Equal(t, time.Second, cfg.RateLimit.Window)
	assert.Equal(t, 5, cfg.RateLimit.APIMax)
	assert.Equal(t, 3, cfg.RateLimit.AuthMax)
	assert.Equal(t, 2, cfg.RateLimit.CreateMax)
	assert.Equal(t, int64(3), cfg.Worker.MaxRetries)
}

func TestLoad_RequiresJWTSecret(t *testing.T) {
	writeConfigDir(t, `
db:
  host: localhost
  name: selftracker
jwt:
  secret: ${JWT_SECRET}
`)
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	assert.ErrorContains(t, err, "jwt.secret")
}

func TestLoad_ReadsRateLimitSection(t *testing.T) {
	writeConfigDir(t, `
db:
  host: localhost
  name: selftracker
jwt:
  secret: abc
rate_limit:
  enabled: true
  window: 2s
  api_max: 10
`)

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 2*time.Second, cfg.RateLimit.Window)
	assert.Equal(t, 10, cfg.RateLimit.APIMax)
}
