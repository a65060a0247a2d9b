package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets every variable read by the loader for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PLAYGROUND_CONFIG", "PLAYGROUND_API_URL", "PLAYGROUND_CLIENT_TIMEOUT", "PLAYGROUND_SLOW_REQUEST",
		"PLAYGROUND_CACHE_BACKEND", "PLAYGROUND_CACHE_PATH", "PLAYGROUND_LOG_FILE", "PLAYGROUND_LOG_LEVEL",
		"PLAYGROUND_HUB_ADDR", "PLAYGROUND_TSNE_MIN_TEXTS", "SURREALDB_URL", "SURREALDB_NAMESPACE",
		"SURREALDB_DATABASE", "SURREALDB_USER", "SURREALDB_PASS", "SURREALDB_AUTH_LEVEL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg := Load()
	assert.Equal(t, "http://localhost:8000", cfg.APIURL)
	assert.Equal(t, 2*time.Minute, cfg.ClientTimeout)
	assert.Equal(t, CacheBackendFile, cfg.CacheBackend)
	assert.NotEmpty(t, cfg.CachePath)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, 5, cfg.MinTextsForTsne)
	assert.Equal(t, ":8585", cfg.HubAddr)
}

func TestLoadFileWithEnvOverride(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "playground.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
api:
  url: http://gpu-box:8000
  timeout: 30s
cache:
  backend: SurrealDB
  surrealdb:
    namespace: lab
log:
  level: debug
tsne:
  min_texts: 8
`), 0o644))

	t.Setenv("PLAYGROUND_API_URL", "http://override:8000")

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "http://override:8000", cfg.APIURL, "env wins over file")
	assert.Equal(t, 30*time.Second, cfg.ClientTimeout)
	assert.Equal(t, CacheBackendSurrealDB, cfg.CacheBackend)
	assert.Equal(t, "lab", cfg.SurrealDBNamespace)
	assert.Equal(t, "client", cfg.SurrealDBDatabase)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, 8, cfg.MinTextsForTsne)
}

func TestLoadFileMissing(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Load(), cfg)
}

func TestLoadFileInvalid(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api: [unterminated"), 0o644))

	_, err := LoadFile(path)
	assert.Error(t, err)
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"nonsense", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := parseLogLevel(tt.in); got != tt.want {
				t.Errorf("parseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestSetupLoggerWithWriters(t *testing.T) {
	var stderr, file bytes.Buffer
	logger := SetupLoggerWithWriters(&stderr, &file, slog.LevelInfo)

	logger.Debug("hidden")
	logger.Info("fetch clips", "count", 3)

	assert.Contains(t, stderr.String(), "fetch clips")
	assert.NotContains(t, stderr.String(), "hidden")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(file.Bytes(), &entry))
	assert.Equal(t, "fetch clips", entry["msg"])
	assert.Equal(t, float64(3), entry["count"])
}

func TestSetupLoggerQuietFile(t *testing.T) {
	cfg := Config{LogFile: filepath.Join(t.TempDir(), "playground.log"), LogLevel: slog.LevelInfo}

	logger, cleanup := SetupLogger(cfg, true)
	logger.Info("written to file only")
	require.NoError(t, cleanup())

	data, err := os.ReadFile(cfg.LogFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written to file only")
}
