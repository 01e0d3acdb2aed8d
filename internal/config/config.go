// Package config loads runtime configuration from environment
// variables, nested by double underscore (APP_SECTION__KEY).
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the full set of sections the server needs at startup.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	S3        S3Config
	Auth      AuthConfig
	Scan      ScanConfig
	Transcode TranscodeConfig
}

type ServerConfig struct {
	Addr string
}

type DatabaseConfig struct {
	URL             string
	MaxConns        int
	MaxConnLifetime time.Duration
}

// S3Config is only populated/used when a music folder's backend is
// "s3"; local-only deployments leave this zero-valued.
type S3Config struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	PresignTTL      time.Duration
}

type AuthConfig struct {
	// ServerSecret is PBKDF2-stretched into the AES-128 key used to
	// encrypt stored user passwords at rest.
	ServerSecret        string
	RateLimitAuthCount  int
	RateLimitAuthWindow time.Duration
}

type ScanConfig struct {
	WorkerConcurrency int
	FolderConcurrency int
	Watch             bool
	WatchDebounce     time.Duration
	IgnoredArticles   []string
	AllowedExtensions []string
}

type TranscodeConfig struct {
	CacheDir      string
	PresignTTL    time.Duration
	MaxConcurrent int
}

// FromEnv builds a Config from environment variables. Section keys use
// a double underscore separator, e.g. APP_DATABASE__URL,
// APP_AUTH__SERVER_SECRET.
func FromEnv() (Config, error) {
	cfg := Config{
		Server: ServerConfig{
			Addr: getenv("APP_SERVER__ADDR", ":4533"),
		},
		Database: DatabaseConfig{
			URL:             getenv("APP_DATABASE__URL", ""),
			MaxConns:        intEnv("APP_DATABASE__MAX_CONNS", 10),
			MaxConnLifetime: durationEnv("APP_DATABASE__MAX_CONN_LIFETIME", time.Hour),
		},
		S3: S3Config{
			Endpoint:        getenv("APP_S3__ENDPOINT", ""),
			AccessKeyID:     getenv("APP_S3__ACCESS_KEY_ID", ""),
			SecretAccessKey: getenv("APP_S3__SECRET_ACCESS_KEY", ""),
			UseSSL:          boolEnv("APP_S3__USE_SSL", true),
			PresignTTL:      durationEnv("APP_S3__PRESIGN_TTL", 15*time.Minute),
		},
		Auth: AuthConfig{
			ServerSecret:        getenv("APP_AUTH__SERVER_SECRET", ""),
			RateLimitAuthCount:  intEnv("APP_AUTH__RATE_LIMIT_AUTH_COUNT", 10),
			RateLimitAuthWindow: durationEnv("APP_AUTH__RATE_LIMIT_AUTH_WINDOW", time.Minute),
		},
		Scan: ScanConfig{
			WorkerConcurrency: intEnv("APP_SCAN__WORKER_CONCURRENCY", 8),
			FolderConcurrency: intEnv("APP_SCAN__FOLDER_CONCURRENCY", 2),
			Watch:             boolEnv("APP_SCAN__WATCH", false),
			WatchDebounce:     durationEnv("APP_SCAN__WATCH_DEBOUNCE", 5*time.Second),
			IgnoredArticles:   listEnv("APP_SCAN__IGNORED_ARTICLES", []string{"the", "a", "an"}),
			AllowedExtensions: listEnv("APP_SCAN__ALLOWED_EXTENSIONS", []string{".mp3", ".flac", ".m4a", ".ogg", ".opus", ".wav"}),
		},
		Transcode: TranscodeConfig{
			CacheDir:      getenv("APP_TRANSCODE__CACHE_DIR", "./cache/transcode"),
			PresignTTL:    durationEnv("APP_TRANSCODE__PRESIGN_TTL", 15*time.Minute),
			MaxConcurrent: intEnv("APP_TRANSCODE__MAX_CONCURRENT", 4),
		},
	}

	if cfg.Database.URL == "" {
		return cfg, errors.New("APP_DATABASE__URL is required")
	}
	if cfg.Auth.ServerSecret == "" {
		return cfg, errors.New("APP_AUTH__SERVER_SECRET is required")
	}
	return cfg, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durationEnv(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func boolEnv(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func intEnv(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func listEnv(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
