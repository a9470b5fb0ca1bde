package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	// Service configuration
	ServicePort string `yaml:"service_port"`
	ServiceName string `yaml:"service_name"`

	// Project API configuration
	BackendURL           string `yaml:"backend_url"`
	BackendSessionCookie string `yaml:"backend_session_cookie"`
	BackendTimeoutSec    int    `yaml:"backend_timeout_seconds"`

	// Uploads
	MaxUploadMB       int `yaml:"max_upload_mb"`
	UploadChunkSizeMB int `yaml:"upload_chunk_size_mb"`

	// Workspace behaviour
	ActivitySyncIntervalSec int `yaml:"activity_sync_interval_seconds"`
	ProjectCacheTTLSec      int `yaml:"project_cache_ttl_seconds"`

	// Redis configuration
	RedisEnabled  bool   `yaml:"redis_enabled"`
	RedisHost     string `yaml:"redis_host"`
	RedisPort     string `yaml:"redis_port"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`

	// Tracing configuration
	TracingEnabled bool   `yaml:"tracing_enabled"`
	JaegerEndpoint string `yaml:"jaeger_endpoint"`

	// Logging and metrics
	LogLevel       string `yaml:"log_level"`
	LogFormat      string `yaml:"log_format"`
	MetricsEnabled bool   `yaml:"metrics_enabled"`
}

// LoadConfig loads configuration from environment variables with sensible defaults.
// If CONFIG_FILE names a YAML file its values override the environment.
func LoadConfig() (*Config, error) {
	config := &Config{
		// Service defaults
		ServicePort: getEnv("SERVICE_PORT", "8080"),
		ServiceName: getEnv("SERVICE_NAME", "buildmanager-workspace"),

		// Project API defaults
		BackendURL:           getEnv("BACKEND_URL", "http://localhost:5000/api"),
		BackendSessionCookie: getEnv("BACKEND_SESSION_COOKIE", ""),
		BackendTimeoutSec:    getEnvAsInt("BACKEND_TIMEOUT_SECONDS", 30),

		// Upload defaults
		MaxUploadMB:       getEnvAsInt("MAX_UPLOAD_MB", 100),
		UploadChunkSizeMB: getEnvAsInt("UPLOAD_CHUNK_SIZE_MB", 1),

		// Workspace defaults
		ActivitySyncIntervalSec: getEnvAsInt("ACTIVITY_SYNC_INTERVAL_SECONDS", 60),
		ProjectCacheTTLSec:      getEnvAsInt("PROJECT_CACHE_TTL_SECONDS", 300),

		// Redis defaults
		RedisEnabled:  getEnvAsBool("REDIS_ENABLED", false),
		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		// Tracing defaults
		TracingEnabled: getEnvAsBool("TRACING_ENABLED", false),
		JaegerEndpoint: getEnv("JAEGER_ENDPOINT", "localhost:4318"),

		// Logging and metrics defaults
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "json"),
		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := config.applyFile(path); err != nil {
			return nil, err
		}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// applyFile overlays the YAML file at path. A missing file is ignored.
func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config YAML: %w", err)
	}
	return nil
}

// Validate rejects configurations the workspace cannot run with
func (c *Config) Validate() error {
	var errs []error
	if c.BackendURL == "" {
		errs = append(errs, errors.New("BACKEND_URL is required"))
	}
	if c.MaxUploadMB <= 0 {
		errs = append(errs, errors.New("MAX_UPLOAD_MB must be positive"))
	}
	if c.UploadChunkSizeMB <= 0 {
		errs = append(errs, errors.New("UPLOAD_CHUNK_SIZE_MB must be positive"))
	}
	if c.ActivitySyncIntervalSec <= 0 {
		errs = append(errs, errors.New("ACTIVITY_SYNC_INTERVAL_SECONDS must be positive"))
	}
	return errors.Join(errs...)
}

// GetRedisAddr returns the Redis address
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}

// GetMaxUploadBytes returns the upload limit in bytes
func (c *Config) GetMaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) * 1024 * 1024
}

// GetChunkSizeBytes returns the upload read chunk size in bytes
func (c *Config) GetChunkSizeBytes() int64 {
	return int64(c.UploadChunkSizeMB) * 1024 * 1024
}

// GetBackendTimeout returns the per-request timeout for the project API
func (c *Config) GetBackendTimeout() time.Duration {
	return time.Duration(c.BackendTimeoutSec) * time.Second
}

// GetActivitySyncInterval returns the minimum spacing of last-active syncs
func (c *Config) GetActivitySyncInterval() time.Duration {
	return time.Duration(c.ActivitySyncIntervalSec) * time.Second
}

// GetProjectCacheTTL returns how long a cached project aggregate stays valid
func (c *Config) GetProjectCacheTTL() time.Duration {
	return time.Duration(c.ProjectCacheTTLSec) * time.Second
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}
