package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsAndEnvOverride(t *testing.T) {
	t.Chdir(t.TempDir()) // no .env here
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("DATABASE_HOST", "db.internal")
	t.Setenv("OUTBOX_MAX_ATTEMPTS", "3")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, "5432", cfg.Database.Port)
	assert.Equal(t, 3, cfg.Outbox.MaxAttempts)
	assert.Equal(t, 24*time.Hour, cfg.JWT.Expiry)
	assert.Equal(t, "none", cfg.Telemetry.Exporter)
}

func TestLoad_FileValues(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("JWT_SECRET", "test-secret")
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: "9090"
ratelimit:
  join_per_minute: 30
cors:
  origins: ["https://academvault.test"]
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 30, cfg.RateLimit.JoinPerMinute)
	assert.Equal(t, []string{"https://academvault.test"}, cfg.CORS.Origins)
}

func TestLoad_RequiresSecret(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("JWT_SECRET", "")
	_, err := Load("")
	assert.Error(t, err)
}

func TestValidate_ProductionSecretLength(t *testing.T) {
	cfg := &Config{App: AppConfig{Env: "production"}, JWT: JWTConfig{Secret: "short"}}
	assert.Error(t, cfg.Validate())
	cfg.JWT.Secret = "0123456789abcdef0123456789abcdef"
	assert.NoError(t, cfg.Validate())
}

func TestDBConfigDSN(t *testing.T) {
	d := DBConfig{Host: "h", Port: "5432", User: "u", Password: "p", Name: "n", SSLMode: "disable", TimeZone: "UTC"}
	assert.Equal(t, "host=h user=u password=p dbname=n port=5432 sslmode=disable TimeZone=UTC", d.DSN())
	assert.Equal(t, "postgres://u:p@h:5432/n?sslmode=disable", d.URL())
}
