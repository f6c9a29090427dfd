package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	ProgressBackendFile  = "file"
	ProgressBackendRedis = "redis"

	CommentBackendContent = "content"
	CommentBackendSQL     = "sql"

	DatabaseDriverSQLite   = "sqlite"
	DatabaseDriverPostgres = "postgres"
)

type Config struct {
	Port           string
	BaseURL        string
	LogMode        string
	DataDir        string
	MaxBodyBytes   int64
	AllowedOrigins []string

	ShareSecret string
	ShareTTL    time.Duration

	ContentProjectID  string
	ContentDataset    string
	ContentAPIVersion string
	ContentToken      string
	ContentFixtures   string

	ProgressBackend string
	RedisAddr       string
	RedisPrefix     string

	CommentBackend string
	DatabaseDriver string
	DatabaseDSN    string
}

func LoadConfig() (Config, error) {
	cfg := Config{}

	cfg.Port = envOrDefault("PORT", "8080")
	cfg.BaseURL = envOrDefault("BASE_URL", fmt.Sprintf("http://localhost:%s", cfg.Port))
	cfg.LogMode = envOrDefault("LOG_MODE", "dev")
	cfg.DataDir = envOrDefault("DATA_DIR", "data")
	cfg.AllowedOrigins = splitList(envOrDefault("ALLOWED_ORIGINS", "http://localhost:3000"))

	cfg.ShareSecret = envOrDefault("SHARE_SECRET", "change-me")
	shareTTLSeconds, err := parseIntEnv("SHARE_TTL_SECONDS", 3600)
	if err != nil {
		return Config{}, fmt.Errorf("parse SHARE_TTL_SECONDS: %w", err)
	}
	cfg.ShareTTL = time.Duration(shareTTLSeconds) * time.Second

	maxBodyKB, err := parseIntEnv("MAX_BODY_KB", 64)
	if err != nil {
		return Config{}, fmt.Errorf("parse MAX_BODY_KB: %w", err)
	}
	cfg.MaxBodyBytes = maxBodyKB * 1024

	cfg.ContentProjectID = os.Getenv("CONTENT_PROJECT_ID")
	cfg.ContentDataset = envOrDefault("CONTENT_DATASET", "production")
	cfg.ContentAPIVersion = envOrDefault("CONTENT_API_VERSION", "2024-01-01")
	cfg.ContentToken = os.Getenv("CONTENT_TOKEN")
	cfg.ContentFixtures = os.Getenv("CONTENT_FIXTURES")

	cfg.ProgressBackend = strings.ToLower(envOrDefault("PROGRESS_BACKEND", ProgressBackendFile))
	switch cfg.ProgressBackend {
	case ProgressBackendFile, ProgressBackendRedis:
	default:
		return Config{}, fmt.Errorf("unknown PROGRESS_BACKEND %q", cfg.ProgressBackend)
	}
	cfg.RedisAddr = os.Getenv("REDIS_ADDR")
	cfg.RedisPrefix = envOrDefault("REDIS_PREFIX", "coursesite")
	if cfg.ProgressBackend == ProgressBackendRedis && cfg.RedisAddr == "" {
		return Config{}, fmt.Errorf("PROGRESS_BACKEND=redis requires REDIS_ADDR")
	}

	cfg.CommentBackend = strings.ToLower(envOrDefault("COMMENT_BACKEND", CommentBackendContent))
	switch cfg.CommentBackend {
	case CommentBackendContent, CommentBackendSQL:
	default:
		return Config{}, fmt.Errorf("unknown COMMENT_BACKEND %q", cfg.CommentBackend)
	}

	absDataDir, err := filepath.Abs(cfg.DataDir)
	if err != nil {
		return Config{}, fmt.Errorf("resolve data dir: %w", err)
	}
	cfg.DataDir = absDataDir

	cfg.DatabaseDriver = strings.ToLower(envOrDefault("DATABASE_DRIVER", DatabaseDriverSQLite))
	switch cfg.DatabaseDriver {
	case DatabaseDriverSQLite, DatabaseDriverPostgres:
	default:
		return Config{}, fmt.Errorf("unknown DATABASE_DRIVER %q", cfg.DatabaseDriver)
	}
	cfg.DatabaseDSN = envOrDefault("DATABASE_DSN", filepath.Join(cfg.DataDir, "site.db"))

	return cfg, nil
}

// UsesHostedContent reports whether course and comment documents come from
// the hosted content store rather than a local fixture file.
func (c Config) UsesHostedContent() bool {
	return c.ContentFixtures == ""
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}

func parseIntEnv(key string, fallback int64) (int64, error) {
	value := envOrDefault(key, "")
	if value == "" {
		return fallback, nil
	}

	num, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, err
	}
	return num, nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
