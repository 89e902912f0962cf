package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}

func TestLoadConfig_MergesEnvironmentOverBase(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", `
server:
  port: ":5000"
db:
  host: localhost
  port: 5432
jwt:
  secret: ${JWT_SECRET}
  ttl: 24h
`)
	writeFile(t, dir, "production.yaml", `
db:
  host: db.internal
`)
	writeFile(t, dir, "secrets.env", `
# comment
JWT_SECRET="s3cret"
`)

	raw, err := LoadConfig("production", dir)
	require.NoError(t, err)

	var out struct {
		Server ServerConfig `yaml:"server"`
		DB     DBConfig     `yaml:"db"`
		JWT    JWTConfig    `yaml:"jwt"`
	}
	require.NoError(t, Decode(raw, &out))

	assert.Equal(t, ":5000", out.Server.Port)
	assert.Equal(t, "db.internal", out.DB.Host)
	assert.Equal(t, 5432, out.DB.Port, "nested keys missing from the env file are kept")
	assert.Equal(t, "s3cret", out.JWT.Secret)
	assert.Equal(t, 24*time.Hour, out.JWT.TTL)
}

func TestLoadConfig_MissingBase(t *testing.T) {
	_, err := LoadConfig("local", t.TempDir())
	assert.Error(t, err)
}

func TestLoadConfig_UnknownEnvFileIsOptional(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", "server:\n  port: \":8080\"\n")

	raw, err := LoadConfig("staging", dir)
	require.NoError(t, err)

	var out struct {
		Server ServerConfig `yaml:"server"`
	}
	require.NoError(t, Decode(raw, &out))
	assert.Equal(t, ":8080", out.Server.Port)
}

func TestOverrideDBFromEnv(t *testing.T) {
	t.Setenv("DB_HOST", "pg")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("DB_NAME", "tracker")

	cfg := DBConfig{Host: "localhost", Port: 5432, Name: "dev"}
	OverrideDBFromEnv(&cfg)

	assert.Equal(t, "pg", cfg.Host)
	assert.Equal(t, 6543, cfg.Port)
	assert.Equal(t, "tracker", cfg.Name)
}

func TestOverrideDBFromEnv_IgnoresBadPort(t *testing.T) {
	t.Setenv("DB_PORT", "not-a-number")

	cfg := DBConfig{Port: 5432}
	OverrideDBFromEnv(&cfg)

	assert.Equal(t, 5432, cfg.Port)
}

func TestOverrideRateLimitFromEnv(t *testing.T) {
	t.Setenv("RATE_LIMIT_ENABLED", "false")

	cfg := RateLimitConfig{Enabled: true}
	OverrideRateLimitFromEnv(&cfg)

	assert.False(t, cfg.Enabled)
}
