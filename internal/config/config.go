/**
 * Configuration for the form extraction worker
 *
 * Loads configuration from environment variables (optionally seeded from .env)
 */

package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/adverant/nexus/formextract-worker/internal/layout"
)

// Queue backends
const (
	BackendRedis = "redis"
	BackendAsynq = "asynq"
)

// Config holds worker configuration
type Config struct {
	// Job storage
	JobsDir        string
	AssetURLPrefix string

	// Redis / queue configuration
	RedisURL     string
	QueueBackend string
	QueueName    string

	// Worker configuration
	WorkerConcurrency int
	ProcessingTimeout int64 // milliseconds

	// OCR configuration
	OCRLanguages   string
	TessdataPrefix string

	// Rasterization
	PdftoppmPath string
	RenderScale  float64

	// Layout template used for every job
	TemplateID string

	// Logging
	LogLevel  string
	LogFormat string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		JobsDir:           getEnvOrDefault("JOBS_DIR", "storage/jobs"),
		AssetURLPrefix:    getEnvOrDefault("ASSET_URL_PREFIX", "/v1/jobs"),
		RedisURL:          getEnvOrDefault("REDIS_URL", "redis://localhost:6379/0"),
		QueueBackend:      getEnvOrDefault("QUEUE_BACKEND", BackendRedis),
		QueueName:         getEnvOrDefault("QUEUE_NAME", "formextract:jobs"),
		WorkerConcurrency: getEnvAsIntOrDefault("WORKER_CONCURRENCY", 1),
		ProcessingTimeout: getEnvAsInt64OrDefault("PROCESSING_TIMEOUT", 300000), // 5 minutes
		OCRLanguages:      getEnvOrDefault("OCR_LANGUAGES", "eng+jpn"),
		TessdataPrefix:    getEnvOrDefault("TESSDATA_PREFIX", ""),
		PdftoppmPath:      getEnvOrDefault("PDFTOPPM_PATH", "pdftoppm"),
		RenderScale:       getEnvAsFloatOrDefault("RENDER_SCALE", 2.0),
		TemplateID:        getEnvOrDefault("TEMPLATE_ID", layout.InnerCurvatureV1),
		LogLevel:          getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:         getEnvOrDefault("LOG_FORMAT", "text"),
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.JobsDir == "" {
		return fmt.Errorf("JOBS_DIR is required")
	}

	if _, err := layout.Lookup(c.TemplateID); err != nil {
		return fmt.Errorf("TEMPLATE_ID: %w", err)
	}

	if c.QueueBackend != BackendRedis && c.QueueBackend != BackendAsynq {
		return fmt.Errorf("QUEUE_BACKEND must be %q or %q, got %q", BackendRedis, BackendAsynq, c.QueueBackend)
	}

	if c.QueueName == "" {
		return fmt.Errorf("QUEUE_NAME is required")
	}

	if c.WorkerConcurrency < 1 || c.WorkerConcurrency > 16 {
		return fmt.Errorf("WORKER_CONCURRENCY must be between 1 and 16, got %d", c.WorkerConcurrency)
	}

	if c.ProcessingTimeout < 1000 {
		return fmt.Errorf("PROCESSING_TIMEOUT must be at least 1000ms, got %d", c.ProcessingTimeout)
	}

	if c.RenderScale <= 0 || c.RenderScale > 8 {
		return fmt.Errorf("RENDER_SCALE must be in (0, 8], got %v", c.RenderScale)
	}

	return nil
}

// getEnvOrDefault gets environment variable or returns default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault gets environment variable as int or returns default
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsInt64OrDefault gets environment variable as int64 or returns default
func getEnvAsInt64OrDefault(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloatOrDefault(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}
