package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
app:
  name: result-notifier
  env: test
database:
  host: db.local
  port: 3306
  user: notifier
  password: secret
  name: results
  charset: utf8mb4
  parse_time: true
  loc: UTC
redis:
  host: cache.local
  port: 6379
portal:
  base_url: http://portal.example
  login_path: /students
workers:
  notifier:
    interval: 90s
    batch_size: 5
`), 0o644))
	t.Setenv("CONFIG_PATH", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "result-notifier", cfg.App.Name)
	assert.Equal(t, 90*time.Second, cfg.Workers.Notifier.Interval)
	assert.Equal(t, 5, cfg.Workers.Notifier.BatchSize)

	assert.Equal(t, "notifier:secret@tcp(db.local:3306)/results?charset=utf8mb4&parseTime=true&loc=UTC", cfg.DatabaseDSN())
	assert.Equal(t, "cache.local:6379", cfg.RedisAddr())
}

func TestLoad_AppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("app:\n  name: result-notifier\n"), 0o644))
	t.Setenv("CONFIG_PATH", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 2*time.Minute, cfg.Workers.Notifier.Interval)
	assert.Equal(t, 7, cfg.Workers.Notifier.BatchSize)
	assert.Equal(t, 500*time.Millisecond, cfg.Workers.Notifier.BatchDelay)
	assert.Equal(t, 45*time.Second, cfg.Portal.FetchTimeout)
	assert.Equal(t, "result:detections", cfg.Redis.DetectionQueue)
	assert.Equal(t, "result:inflight", cfg.Redis.InFlightSet)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := Load()
	assert.Error(t, err)
}
