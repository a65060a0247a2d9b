// Package config loads client configuration from environment variables and an
// optional YAML file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Cache backends.
const (
	CacheBackendFile      = "file"
	CacheBackendSurrealDB = "surrealdb"
)

// Config holds all configuration values.
type Config struct {
	// Remote service
	APIURL               string
	ClientTimeout        time.Duration
	SlowRequestThreshold time.Duration

	// Text cache
	CacheBackend string
	CachePath    string

	// SurrealDB text cache
	SurrealDBURL       string
	SurrealDBNamespace string
	SurrealDBDatabase  string
	SurrealDBUser      string
	SurrealDBPass      string
	SurrealDBAuthLevel string

	// Logging
	LogFile  string
	LogLevel slog.Level

	// State hub
	HubAddr string

	// Texts t-SNE is only requested above this many texts
	MinTextsForTsne int
}

// fileConfig mirrors Config in the YAML file. Every field is optional.
type fileConfig struct {
	API struct {
		URL                  string `yaml:"url"`
		Timeout              string `yaml:"timeout"`
		SlowRequestThreshold string `yaml:"slow_request_threshold"`
	} `yaml:"api"`
	Cache struct {
		Backend   string `yaml:"backend"`
		Path      string `yaml:"path"`
		SurrealDB struct {
			URL       string `yaml:"url"`
			Namespace string `yaml:"namespace"`
			Database  string `yaml:"database"`
			User      string `yaml:"user"`
			Pass      string `yaml:"pass"`
			AuthLevel string `yaml:"auth_level"`
		} `yaml:"surrealdb"`
	} `yaml:"cache"`
	Log struct {
		File  string `yaml:"file"`
		Level string `yaml:"level"`
	} `yaml:"log"`
	Hub struct {
		Addr string `yaml:"addr"`
	} `yaml:"hub"`
	Tsne struct {
		MinTexts int `yaml:"min_texts"`
	} `yaml:"tsne"`
}

// Load reads configuration from environment variables only.
func Load() Config {
	return build(fileConfig{})
}

// LoadFile reads the YAML file at path and applies environment overrides on top.
// A missing file is not an error. An empty path falls back to PLAYGROUND_CONFIG.
func LoadFile(path string) (Config, error) {
	if path == "" {
		path = os.Getenv("PLAYGROUND_CONFIG")
	}
	if path == "" {
		return Load(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Load(), nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return build(fc), nil
}

func build(fc fileConfig) Config {
	return Config{
		APIURL:               getEnv("PLAYGROUND_API_URL", or(fc.API.URL, "http://localhost:8000")),
		ClientTimeout:        parseDuration(getEnv("PLAYGROUND_CLIENT_TIMEOUT", fc.API.Timeout), 2*time.Minute),
		SlowRequestThreshold: parseDuration(getEnv("PLAYGROUND_SLOW_REQUEST", fc.API.SlowRequestThreshold), 2*time.Second),

		CacheBackend: strings.ToLower(getEnv("PLAYGROUND_CACHE_BACKEND", or(fc.Cache.Backend, CacheBackendFile))),
		CachePath:    getEnv("PLAYGROUND_CACHE_PATH", or(fc.Cache.Path, defaultCachePath())),

		SurrealDBURL:       getEnv("SURREALDB_URL", or(fc.Cache.SurrealDB.URL, "ws://localhost:8000/rpc")),
		SurrealDBNamespace: getEnv("SURREALDB_NAMESPACE", or(fc.Cache.SurrealDB.Namespace, "playground")),
		SurrealDBDatabase:  getEnv("SURREALDB_DATABASE", or(fc.Cache.SurrealDB.Database, "client")),
		SurrealDBUser:      getEnv("SURREALDB_USER", or(fc.Cache.SurrealDB.User, "root")),
		SurrealDBPass:      getEnv("SURREALDB_PASS", or(fc.Cache.SurrealDB.Pass, "root")),
		SurrealDBAuthLevel: getEnv("SURREALDB_AUTH_LEVEL", or(fc.Cache.SurrealDB.AuthLevel, "root")),

		LogFile:  getEnv("PLAYGROUND_LOG_FILE", or(fc.Log.File, "/tmp/playground.log")),
		LogLevel: parseLogLevel(getEnv("PLAYGROUND_LOG_LEVEL", or(fc.Log.Level, "INFO"))),

		HubAddr: getEnv("PLAYGROUND_HUB_ADDR", or(fc.Hub.Addr, ":8585")),

		MinTextsForTsne: parseInt(getEnv("PLAYGROUND_TSNE_MIN_TEXTS", ""), or(fc.Tsne.MinTexts, 5)),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func or[T comparable](val, defaultVal T) T {
	var zero T
	if val == zero {
		return defaultVal
	}
	return val
}

func defaultCachePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "all-texts.yaml"
	}
	return filepath.Join(dir, "playground", "all-texts.yaml")
}

func parseDuration(s string, defaultVal time.Duration) time.Duration {
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

func parseInt(s string, defaultVal int) int {
	if s == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return n
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
