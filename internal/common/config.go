package common

import (
	"os"
	"strconv"
	"time"

	"github.com/joseph-ayodele/receipts-lifecycle/constants"
)

// Config holds all application configuration
type Config struct {
	Storage  StorageConfig
	Retry    RetryConfig
	Rotation RotationConfig
	Daemon   DaemonConfig
}

// StorageConfig holds log file storage configuration
type StorageConfig struct {
	LogFilePath string
	BackupDir   string
}

// RetryConfig holds retry pacing configuration
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	Strategy   string
}

// RotationConfig holds log rotation configuration
type RotationConfig struct {
	MaxFileSizeMB int
	MaxBackups    int
	RetentionDays int
}

// DaemonConfig holds maintenance loop configuration
type DaemonConfig struct {
	PollInterval time.Duration
	LogLevel     string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			LogFilePath: getEnv("LOG_FILE_PATH", "data/receipt_log.json"),
			BackupDir:   getEnv("BACKUP_DIR", ""),
		},
		Retry: RetryConfig{
			MaxRetries: getEnvAsInt("MAX_RETRIES", 3),
			BaseDelay:  getEnvAsDuration("RETRY_BASE_DELAY", time.Second),
			Strategy:   getEnv("RETRY_STRATEGY", string(constants.StrategyExponential)),
		},
		Rotation: RotationConfig{
			MaxFileSizeMB: getEnvAsInt("MAX_LOG_SIZE_MB", 50),
			MaxBackups:    getEnvAsInt("MAX_BACKUPS", 10),
			RetentionDays: getEnvAsInt("LOG_RETENTION_DAYS", 180),
		},
		Daemon: DaemonConfig{
			PollInterval: getEnvAsDuration("POLL_INTERVAL", 30*time.Second),
			LogLevel:     getEnv("LOG_LEVEL", "info"),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// ValidateConfig validates the loaded configuration
func (c *Config) Validate() error {
	if c.Storage.LogFilePath == "" {
		return NewAppError("CONFIG_ERROR", "LOG_FILE_PATH is required", ErrInvalidInput)
	}
	if c.Retry.MaxRetries < 0 {
		return NewAppError("CONFIG_ERROR", "MAX_RETRIES must be >= 0", ErrInvalidInput)
	}
	if c.Retry.BaseDelay < 0 {
		return NewAppError("CONFIG_ERROR", "RETRY_BASE_DELAY must be >= 0", ErrInvalidInput)
	}
	if _, ok := constants.ParseRetryStrategy(c.Retry.Strategy); !ok {
		return NewAppError("CONFIG_ERROR", "RETRY_STRATEGY is not a known strategy", ErrInvalidInput)
	}
	if c.Rotation.MaxFileSizeMB <= 0 {
		return NewAppError("CONFIG_ERROR", "MAX_LOG_SIZE_MB must be > 0", ErrInvalidInput)
	}
	return nil
}
