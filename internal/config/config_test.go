package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  host: localhost
  name: presence
  user: presence
  password: presence
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, 20, cfg.Database.MaxConns)
	assert.Equal(t, 0.35, cfg.Verify.MatchThreshold)
	assert.Equal(t, 100.0, cfg.Verify.MaxAccuracyM)
	assert.Equal(t, 200.0, cfg.Verify.DefaultRadiusM)
	assert.Equal(t, 7, cfg.Verify.TZOffsetHours)
	assert.Equal(t, 10*time.Second, cfg.Vision.ExtractTimeout)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
verify:
  match_threshold: 0.5
`)

	t.Setenv("PRESENCE_SERVER_PORT", "7777")
	t.Setenv("PRESENCE_MATCH_THRESHOLD", "0.42")
	t.Setenv("PRESENCE_JWT_SECRET", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7777, cfg.Server.Port)
	assert.Equal(t, 0.42, cfg.Verify.MatchThreshold)
	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
}

func TestDatabaseDSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5433, Name: "presence", User: "u", Password: "p"}
	assert.Equal(t, "postgres://u:p@db:5433/presence?sslmode=disable", d.DSN())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
