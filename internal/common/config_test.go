package common

import (
	"errors"
	"testing"
	"time"

	"github.com/joseph-ayodele/receipts-lifecycle/constants"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, key := range []string{
		"LOG_FILE_PATH", "BACKUP_DIR",
		"MAX_RETRIES", "RETRY_BASE_DELAY", "RETRY_STRATEGY",
		"MAX_LOG_SIZE_MB", "MAX_BACKUPS", "LOG_RETENTION_DAYS",
	} {
		t.Setenv(key, "")
	}
	cfg := LoadConfig()

	if cfg.Storage.LogFilePath != "data/receipt_log.json" {
		t.Errorf("LogFilePath = %q", cfg.Storage.LogFilePath)
	}
	if cfg.Retry.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", cfg.Retry.MaxRetries)
	}
	if cfg.Retry.BaseDelay != time.Second {
		t.Errorf("BaseDelay = %v, want 1s", cfg.Retry.BaseDelay)
	}
	if cfg.Retry.Strategy != string(constants.StrategyExponential) {
		t.Errorf("Strategy = %q, want exponential_backoff", cfg.Retry.Strategy)
	}
	if cfg.Rotation.MaxFileSizeMB != 50 || cfg.Rotation.MaxBackups != 10 || cfg.Rotation.RetentionDays != 180 {
		t.Errorf("Rotation = %+v", cfg.Rotation)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate, got %v", err)
	}
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("LOG_FILE_PATH", "/var/lib/receipts/log.json")
	t.Setenv("MAX_RETRIES", "5")
	t.Setenv("RETRY_BASE_DELAY", "250ms")
	t.Setenv("RETRY_STRATEGY", string(constants.StrategyFixed))
	t.Setenv("MAX_LOG_SIZE_MB", "not-a-number")

	cfg := LoadConfig()
	if cfg.Storage.LogFilePath != "/var/lib/receipts/log.json" {
		t.Errorf("LogFilePath = %q", cfg.Storage.LogFilePath)
	}
	if cfg.Retry.MaxRetries != 5 {
		t.Errorf("MaxRetries = %d, want 5", cfg.Retry.MaxRetries)
	}
	if cfg.Retry.BaseDelay != 250*time.Millisecond {
		t.Errorf("BaseDelay = %v, want 250ms", cfg.Retry.BaseDelay)
	}
	if cfg.Retry.Strategy != string(constants.StrategyFixed) {
		t.Errorf("Strategy = %q", cfg.Retry.Strategy)
	}
	// Unparseable values fall back to the default.
	if cfg.Rotation.MaxFileSizeMB != 50 {
		t.Errorf("MaxFileSizeMB = %d, want default 50", cfg.Rotation.MaxFileSizeMB)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty log path", func(c *Config) { c.Storage.LogFilePath = "" }},
		{"negative retries", func(c *Config) { c.Retry.MaxRetries = -1 }},
		{"negative delay", func(c *Config) { c.Retry.BaseDelay = -time.Second }},
		{"unknown strategy", func(c *Config) { c.Retry.Strategy = "random_backoff" }},
		{"zero rotation size", func(c *Config) { c.Rotation.MaxFileSizeMB = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := LoadConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate should reject the config")
			}
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("err = %v, want ErrInvalidInput", err)
			}
			var appErr *AppError
			if !errors.As(err, &appErr) || appErr.Code != "CONFIG_ERROR" {
				t.Errorf("err = %v, want AppError with CONFIG_ERROR code", err)
			}
		})
	}
}
