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
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "backend: {}\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.HTTP.Host)
	assert.Equal(t, 9400, cfg.HTTP.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 300, cfg.Command.DefaultTimeout)
	assert.Equal(t, 3, cfg.Command.DefaultMaxRetries)
	assert.Equal(t, 50, cfg.Command.FetchLimit)
	assert.Equal(t, 10*time.Second, cfg.Command.MonitorInterval)
	assert.Equal(t, 6, cfg.Command.ReconcileEvery)
	assert.Equal(t, 24*time.Hour, cfg.Command.QueueRetention)
	assert.Equal(t, 24*time.Hour, cfg.Command.ResultTTL)
	assert.Equal(t, time.Hour, cfg.Command.ProgressTTL)
	assert.Equal(t, 60, cfg.JWT.ExpMin)
}

func TestLoad_Overrides(t *testing.T) {
	path := writeConfig(t, `
backend:
  http:
    host: 0.0.0.0
    port: 8080
  log_level: debug
  command:
    default_timeout: 120
    fetch_limit: 25
    monitor_interval: 5s
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.HTTP.Host)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 120, cfg.Command.DefaultTimeout)
	assert.Equal(t, 25, cfg.Command.FetchLimit)
	assert.Equal(t, 5*time.Second, cfg.Command.MonitorInterval)
}

func TestLoad_ClampsOutOfRangeValues(t *testing.T) {
	path := writeConfig(t, `
backend:
  command:
    default_timeout: -5
    fetch_limit: 500
    monitor_interval: 0s
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 300, cfg.Command.DefaultTimeout)
	assert.Equal(t, 50, cfg.Command.FetchLimit)
	assert.Equal(t, 10*time.Second, cfg.Command.MonitorInterval)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
