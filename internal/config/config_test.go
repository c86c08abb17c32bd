package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("JWT_SECRET", "secret")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Processing.BatchSize)
	assert.Equal(t, 3, cfg.Processing.MaxRetries)
	assert.Equal(t, 4, cfg.Processing.MaxConcurrent)
	assert.Equal(t, time.Second, cfg.Processing.RetryBaseDelay)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, ExtractionModeJSON, cfg.OpenAI.ExtractionMode)
	assert.Equal(t, StorageLocal, cfg.Storage.Backend)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 5, cfg.Server.MaxUploadFiles)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("BATCH_SIZE", "5")
	t.Setenv("MAX_RETRIES", "4")
	t.Setenv("MAX_CONCURRENT_PROCESSING", "8")
	t.Setenv("OPENAI_EXTRACTION_MODE", "function")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://app.example.com, https://admin.example.com")
	t.Setenv("JWT_EXPIRY", "2h")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Processing.BatchSize)
	assert.Equal(t, 4, cfg.Processing.MaxRetries)
	assert.Equal(t, 8, cfg.Processing.MaxConcurrent)
	assert.Equal(t, ExtractionModeFunction, cfg.OpenAI.ExtractionMode)
	assert.Equal(t, 2*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, []string{"https://app.example.com", "https://admin.example.com"}, cfg.Server.AllowedOrigins)
}

func TestLoad_ConfigFile(t *testing.T) {
	setRequiredEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte("processing:\n  batch_size: 6\n  max_concurrent: 6\nserver:\n  port: 9090\n")
	require.NoError(t, os.WriteFile(path, content, 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 6, cfg.Processing.BatchSize)
	assert.Equal(t, 6, cfg.Processing.MaxConcurrent)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestLoad_MissingAPIKeyIsFatal(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("JWT_SECRET", "secret")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "openai.api_key is required")
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			OpenAI:     OpenAIConfig{APIKey: "k", ExtractionMode: ExtractionModeJSON},
			Auth:       AuthConfig{JWTSecret: "s", TokenTTL: time.Hour},
			Processing: ProcessingConfig{BatchSize: 2, MaxRetries: 3, MaxConcurrent: 4},
			Storage:    StorageConfig{Backend: StorageLocal, UploadDir: "uploads"},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing jwt secret", func(c *Config) { c.Auth.JWTSecret = "" }, "auth.jwt_secret"},
		{"zero batch size", func(c *Config) { c.Processing.BatchSize = 0 }, "batch_size"},
		{"zero retries", func(c *Config) { c.Processing.MaxRetries = 0 }, "max_retries"},
		{"zero concurrency", func(c *Config) { c.Processing.MaxConcurrent = 0 }, "max_concurrent"},
		{"concurrency below batch size", func(c *Config) { c.Processing.MaxConcurrent = 1 }, "must not be below processing.batch_size"},
		{"concurrency equal to batch size", func(c *Config) { c.Processing.MaxConcurrent = 2 }, ""},
		{"bad mode", func(c *Config) { c.OpenAI.ExtractionMode = "xml" }, "extraction_mode"},
		{"unknown backend", func(c *Config) { c.Storage.Backend = "s3" }, "storage.backend"},
		{"minio without credentials", func(c *Config) { c.Storage.Backend = StorageMinIO }, "storage.minio"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
