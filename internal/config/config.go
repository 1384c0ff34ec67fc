package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	APIURL  string `yaml:"api_url"`
	SyncURL string `yaml:"sync_url"`
	// Local cache
	CacheBackend  string        `yaml:"cache_backend"`
	CacheDir      string        `yaml:"cache_dir"`
	CacheLifetime time.Duration `yaml:"cache_lifetime"`
	RedisURL      string        `yaml:"redis_url"`
	// Token storage: "memory" or "redis"
	TokenStore string `yaml:"token_store"`
	// Synchronisation timings
	AutosaveDelay       time.Duration `yaml:"autosave_delay"`
	RetryDelay          time.Duration `yaml:"retry_delay"`
	ReconnectDelay      time.Duration `yaml:"reconnect_delay"`
	OverlaySyncInterval time.Duration `yaml:"overlay_sync_interval"`
	CursorRate          float64       `yaml:"cursor_rate"`
	// Image upload route
	UploadAddr    string `yaml:"upload_addr"`
	UploadDir     string `yaml:"upload_dir"`
	UploadBaseURL string `yaml:"upload_base_url"`
	CORSOrigin    string `yaml:"cors_origin"`
	// S3-compatible upload storage, disk storage is used when MinioEndpoint is empty
	MinioEndpoint  string `yaml:"minio_endpoint"`
	MinioAccessKey string `yaml:"minio_access_key"`
	MinioSecretKey string `yaml:"minio_secret_key"`
	MinioBucket    string `yaml:"minio_bucket"`
	MinioUseSSL    bool   `yaml:"minio_use_ssl"`

	LogLevel    string `yaml:"log_level"`
	MetricsAddr string `yaml:"metrics_addr"`
}

func Defaults() Config {
	return Config{
		APIURL:              "http://localhost:8000/api",
		SyncURL:             "ws://localhost:8001",
		CacheBackend:        "badger",
		CacheDir:            "./data/cache",
		CacheLifetime:       24 * time.Hour,
		RedisURL:            "redis://localhost:6379/0",
		TokenStore:          "memory",
		AutosaveDelay:       300 * time.Millisecond,
		RetryDelay:          5 * time.Second,
		ReconnectDelay:      time.Second,
		OverlaySyncInterval: time.Second,
		CursorRate:          20,
		UploadAddr:          ":3001",
		UploadDir:           "./public/uploads",
		UploadBaseURL:       "/uploads",
		CORSOrigin:          "*",
		MinioBucket:         "uploads",
		LogLevel:            "info",
	}
}

// Load builds the configuration from defaults, the optional YAML file named by
// EDITOR_CONFIG, and finally environment variables.
func Load() (Config, error) {
	cfg := Defaults()
	if path := os.Getenv("EDITOR_CONFIG"); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.APIURL = getenv("EDITOR_API_URL", cfg.APIURL)
	cfg.SyncURL = getenv("EDITOR_SYNC_URL", cfg.SyncURL)
	cfg.CacheBackend = getenv("EDITOR_CACHE_BACKEND", cfg.CacheBackend)
	cfg.CacheDir = getenv("EDITOR_CACHE_DIR", cfg.CacheDir)
	cfg.CacheLifetime = getenvDuration("EDITOR_CACHE_LIFETIME", cfg.CacheLifetime)
	cfg.RedisURL = getenv("REDIS_URL", cfg.RedisURL)
	cfg.TokenStore = getenv("EDITOR_TOKEN_STORE", cfg.TokenStore)
	cfg.AutosaveDelay = getenvDuration("EDITOR_AUTOSAVE_DELAY", cfg.AutosaveDelay)
	cfg.RetryDelay = getenvDuration("EDITOR_RETRY_DELAY", cfg.RetryDelay)
	cfg.ReconnectDelay = getenvDuration("EDITOR_RECONNECT_DELAY", cfg.ReconnectDelay)
	cfg.OverlaySyncInterval = getenvDuration("EDITOR_OVERLAY_SYNC_INTERVAL", cfg.OverlaySyncInterval)
	cfg.CursorRate = float64(getenvInt("EDITOR_CURSOR_RATE", int(cfg.CursorRate)))
	cfg.UploadAddr = getenv("UPLOAD_ADDR", cfg.UploadAddr)
	cfg.UploadDir = getenv("UPLOAD_DIR", cfg.UploadDir)
	cfg.UploadBaseURL = getenv("UPLOAD_BASE_URL", cfg.UploadBaseURL)
	cfg.CORSOrigin = getenv("UPLOAD_CORS_ORIGIN", cfg.CORSOrigin)
	cfg.MinioEndpoint = getenv("MINIO_ENDPOINT", cfg.MinioEndpoint)
	cfg.MinioAccessKey = getenv("MINIO_ACCESS_KEY", cfg.MinioAccessKey)
	cfg.MinioSecretKey = getenv("MINIO_SECRET_KEY", cfg.MinioSecretKey)
	cfg.MinioBucket = getenv("MINIO_BUCKET", cfg.MinioBucket)
	cfg.MinioUseSSL = getenvBool("MINIO_USE_SSL", cfg.MinioUseSSL)
	cfg.LogLevel = getenv("EDITOR_LOG_LEVEL", cfg.LogLevel)
	cfg.MetricsAddr = getenv("EDITOR_METRICS_ADDR", cfg.MetricsAddr)
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

// getenvDuration accepts Go duration strings ("300ms") or a bare number of
// milliseconds.
func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	if parsed, err := time.ParseDuration(value); err == nil {
		return parsed
	}
	if ms, err := strconv.Atoi(value); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return fallback
}
