package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	API       APIConfig
	Storage   StorageConfig
	Describer DescriberConfig
	Engine    EngineConfig
	RateLimit RateLimitConfig
	Database  DatabaseConfig
	Trace     TraceConfig
}

type APIConfig struct {
	Addr string
	// PublicBaseURL overrides the request Host when building artifact URLs.
	// Leave empty to derive the base URL per request.
	PublicBaseURL string
}

type StorageConfig struct {
	Backend   string
	OutputDir string

	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	UseSSL    bool
}

type DescriberConfig struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

type EngineConfig struct {
	URL                  string
	Timeout              time.Duration
	MaxActiveSeparations int
}

type RateLimitConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Capacity      int
	Window        time.Duration
}

type DatabaseConfig struct {
	DSN string
}

type TraceConfig struct {
	Exporter     string
	OTLPEndpoint string
	OTLPInsecure bool
}

const (
	BackendFS     = "fs"
	BackendObject = "s3"
)

// Load reads configuration from the environment. The Gemini API key is the
// only hard requirement: without it the description step can never succeed,
// so startup fails instead.
func Load() (Config, error) {
	apiKey := env("GEMINI_API_KEY", "")
	if apiKey == "" {
		return Config{}, fmt.Errorf("GEMINI_API_KEY is required")
	}

	cfg := Config{
		API: APIConfig{
			Addr:          env("VOXSPLIT_API_ADDR", ":8080"),
			PublicBaseURL: env("VOXSPLIT_PUBLIC_BASE_URL", ""),
		},
		Storage: StorageConfig{
			Backend:   env("VOXSPLIT_STORAGE_BACKEND", BackendFS),
			OutputDir: env("VOXSPLIT_OUTPUT_DIR", "output"),
			Endpoint:  env("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey: env("MINIO_ACCESS_KEY", "minioadmin"),
			SecretKey: env("MINIO_SECRET_KEY", "minioadmin"),
			Bucket:    env("MINIO_BUCKET", "voxsplit-jobs"),
			Prefix:    env("MINIO_PREFIX", "output"),
			UseSSL:    envBool("MINIO_USE_SSL", false),
		},
		Describer: DescriberConfig{
			APIKey:  apiKey,
			Model:   env("GEMINI_MODEL", "gemini-2.0-flash"),
			Timeout: envSeconds("GEMINI_TIMEOUT_SECONDS", 60),
		},
		Engine: EngineConfig{
			URL:                  env("VOXSPLIT_ENGINE_URL", "http://localhost:9090"),
			Timeout:              envSeconds("VOXSPLIT_ENGINE_TIMEOUT_SECONDS", 600),
			MaxActiveSeparations: envInt("VOXSPLIT_MAX_ACTIVE_SEPARATIONS", 1),
		},
		RateLimit: RateLimitConfig{
			RedisAddr:     env("REDIS_ADDR", ""),
			RedisPassword: env("REDIS_PASSWORD", ""),
			RedisDB:       envInt("REDIS_DB", 0),
			Capacity:      envInt("RATE_LIMIT_CAPACITY", 10),
			Window:        envSeconds("RATE_LIMIT_WINDOW_SECONDS", 60),
		},
		Database: DatabaseConfig{
			DSN: env("POSTGRES_DSN", ""),
		},
		Trace: TraceConfig{
			Exporter:     env("VOXSPLIT_TRACE_EXPORTER", "none"),
			OTLPEndpoint: env("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			OTLPInsecure: envBool("OTEL_EXPORTER_OTLP_INSECURE", false),
		},
	}

	if cfg.Storage.Backend != BackendFS && cfg.Storage.Backend != BackendObject {
		return Config{}, fmt.Errorf("unsupported storage backend: %s", cfg.Storage.Backend)
	}
	if cfg.Engine.MaxActiveSeparations < 1 {
		cfg.Engine.MaxActiveSeparations = 1
	}

	return cfg, nil
}

func env(key, fallback string) string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	return value
}

func envInt(key string, fallback int) int {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envBool(key string, fallback bool) bool {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envSeconds(key string, fallbackSeconds int) time.Duration {
	return time.Duration(envInt(key, fallbackSeconds)) * time.Second
}
