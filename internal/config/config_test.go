package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
  host: "0.0.0.0"
  allowed_origins: ["http://localhost:3000"]

database:
  driver: memory

ingest:
  default_policy: update
  workers: 4

sync:
  drupal_dsn: "drupal:drupal@tcp(localhost:3306)/drupal?parseTime=true"
  site_url: "https://forms.example.org"
  timeout_seconds: 90

reports:
  type: s3
  s3_bucket: contact-reports

log:
  level: debug
  redact_pii: false
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, "update", cfg.Ingest.DefaultPolicy)
	assert.Equal(t, 4, cfg.Ingest.Workers)
	assert.Equal(t, "https://forms.example.org", cfg.Sync.SiteURL)
	assert.Equal(t, 90*time.Second, cfg.Sync.Timeout())
	assert.Equal(t, 180*time.Second, cfg.Sync.LockTTL())
	assert.Equal(t, "contact-reports", cfg.Reports.S3Bucket)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.False(t, cfg.Log.Redact())
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "server:\n  port: 0\n"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "skip", cfg.Ingest.DefaultPolicy)
	assert.Equal(t, 1, cfg.Ingest.Workers)
	assert.Equal(t, 5, cfg.Ingest.PreviewRows)
	assert.Equal(t, "http://localhost:8080", cfg.Sync.SiteURL)
	assert.Equal(t, "Drupal Site", cfg.Sync.SiteName)
	assert.Equal(t, 60*time.Second, cfg.Sync.Timeout())
	assert.Equal(t, "local", cfg.Reports.Type)
	assert.True(t, cfg.Log.Redact())
	assert.Greater(t, cfg.Server.WriteTimeout(), cfg.Sync.Timeout())
}

func TestLoadFromEnv(t *testing.T) {
	path := writeConfig(t, `
database:
  url: "postgres://file"
`)
	t.Setenv("DATABASE_URL", "postgres://env")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("DRUPAL_DSN", "env-dsn")
	t.Setenv("REPORTS_S3_BUCKET", "env-bucket")
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("SYNC_TIMEOUT_SECONDS", "15")

	cfg, err := LoadFromEnv(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres://env", cfg.Database.URL)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Redis.URL)
	assert.Equal(t, "env-dsn", cfg.Sync.DrupalDSN)
	assert.Equal(t, "s3", cfg.Reports.Type)
	assert.Equal(t, "env-bucket", cfg.Reports.S3Bucket)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 15*time.Second, cfg.Sync.Timeout())
}

func TestLoadFileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	assert.Error(t, err)
}

func TestGetAWSProfile(t *testing.T) {
	c := ReportsConfig{AWSProfile: "dev"}
	assert.Equal(t, "dev", c.GetAWSProfile())
	t.Setenv("AWS_PROFILE_OVERRIDE", "iam")
	assert.Equal(t, "", c.GetAWSProfile())
}
