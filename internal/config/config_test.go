package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadOverridesDefaults(t *testing.T) {
	doc := `
log:
  level: debug
  output: /var/log/simulator.log
  rotation:
    maxSize: 10
    compress: true
api:
  addr: 127.0.0.1:9000
  pathPrefix: /v1
scan:
  timeout: 250ms
  cacheTTL: 5m
rules:
  provider: mariadb
  dsn: root:pw@tcp(db:3306)/fw
`
	cfg, err := Read(strings.NewReader(doc))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	require.NotNil(t, cfg.Log.Rotation)
	assert.Equal(t, 10, cfg.Log.Rotation.MaxSize)
	assert.True(t, cfg.Log.Rotation.Compress)
	assert.Equal(t, "127.0.0.1:9000", cfg.API.Addr)
	assert.Equal(t, "/v1", cfg.API.PathPrefix)
	assert.True(t, cfg.API.AccessLog, "unset keys keep their defaults")
	assert.Equal(t, 250*time.Millisecond, cfg.Scan.Timeout)
	assert.Equal(t, 5*time.Minute, cfg.Scan.CacheTTL)
	assert.Equal(t, 100, cfg.Scan.Concurrency)
	assert.Equal(t, "mariadb", cfg.Rules.Provider)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
}

func TestLoadExplicitPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "simulator.yaml")
	require.NoError(t, os.WriteFile(path, []byte("evaluator:\n  workers: 3\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Evaluator.Workers)
	assert.Equal(t, ":8000", cfg.API.Addr)
}

func TestLoadMissingExplicitPathFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestEnvOverridesDefaults(t *testing.T) {
	t.Setenv("FWSIM_API_ADDR", ":9999")
	t.Setenv("FWSIM_LOG_LEVEL", "DEBUG")
	t.Setenv("FWSIM_SCAN_TIMEOUT", "2s")
	t.Setenv("FWSIM_METRICS_ENABLED", "false")

	path := filepath.Join(t.TempDir(), "simulator.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scan:\n  concurrency: 7\n"), 0o644))
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.API.Addr)
	assert.Equal(t, "DEBUG", cfg.Log.Level)
	assert.Equal(t, 2*time.Second, cfg.Scan.Timeout)
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, 7, cfg.Scan.Concurrency)
	assert.Equal(t, "/api", cfg.API.PathPrefix)
	assert.Nil(t, cfg.Log.Rotation)

	cfg, err = Read(strings.NewReader("api:\n  pathPrefix: /v2\n"))
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.API.Addr)
	assert.Equal(t, "/v2", cfg.API.PathPrefix)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "INFO", cfg.Log.Level)
	assert.Equal(t, "/api", cfg.API.PathPrefix)
	assert.Equal(t, time.Second, cfg.Scan.Timeout)
	assert.Positive(t, cfg.Evaluator.Workers)
}
