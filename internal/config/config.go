package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Extraction modes understood by the structured-data extractor
const (
	ExtractionModeJSON     = "json_object"
	ExtractionModeFunction = "function"
)

// Storage backends for uploaded files
const (
	StorageLocal = "local"
	StorageMinIO = "minio"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	OpenAI     OpenAIConfig     `mapstructure:"openai"`
	Processing ProcessingConfig `mapstructure:"processing"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Logger     LoggerConfig     `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	MaxUploadFiles int           `mapstructure:"max_upload_files"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// OpenAIConfig holds OpenAI API configuration
type OpenAIConfig struct {
	APIKey         string        `mapstructure:"api_key"`
	BaseURL        string        `mapstructure:"base_url"`
	Model          string        `mapstructure:"model"`
	ExtractionMode string        `mapstructure:"extraction_mode"`
	Temperature    float32       `mapstructure:"temperature"`
	MaxTokens      int           `mapstructure:"max_tokens"`
	Timeout        time.Duration `mapstructure:"timeout"`
	PromptsPath    string        `mapstructure:"prompts_path"`
}

// ProcessingConfig holds batch pipeline settings
type ProcessingConfig struct {
	BatchSize      int           `mapstructure:"batch_size"`
	MaxRetries     int           `mapstructure:"max_retries"`
	MaxConcurrent  int           `mapstructure:"max_concurrent"`
	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay"`
}

// AuthConfig holds bearer token settings
type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

// StorageConfig selects where uploaded files live
type StorageConfig struct {
	Backend   string        `mapstructure:"backend"`
	UploadDir string        `mapstructure:"upload_dir"`
	Retention time.Duration `mapstructure:"retention"`
	MinIO     MinIOConfig   `mapstructure:"minio"`
}

// MinIOConfig holds object storage credentials
type MinIOConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load reads configuration from an optional YAML file and the environment.
// Environment variables always win over file values.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	if err := bindEnvVars(v); err != nil {
		return nil, fmt.Errorf("failed to bind environment: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Server.AllowedOrigins = splitOrigins(cfg.Server.AllowedOrigins)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3001)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Minute)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.max_upload_files", 5)

	// Database defaults
	v.SetDefault("database.path", "data/invoices.db")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	// OpenAI defaults
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.extraction_mode", ExtractionModeJSON)
	v.SetDefault("openai.temperature", 0)
	v.SetDefault("openai.max_tokens", 2000)
	v.SetDefault("openai.timeout", 60*time.Second)

	// Pipeline defaults
	v.SetDefault("processing.batch_size", 2)
	v.SetDefault("processing.max_retries", 3)
	v.SetDefault("processing.max_concurrent", 4)
	v.SetDefault("processing.retry_base_delay", time.Second)

	v.SetDefault("auth.token_ttl", 24*time.Hour)

	// Storage defaults
	v.SetDefault("storage.backend", StorageLocal)
	v.SetDefault("storage.upload_dir", "uploads")
	v.SetDefault("storage.retention", 7*24*time.Hour)
	v.SetDefault("storage.minio.bucket", "invoices")

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")
}

// bindEnvVars maps the documented environment variables onto config keys
func bindEnvVars(v *viper.Viper) error {
	bindings := map[string]string{
		"openai.api_key":              "OPENAI_API_KEY",
		"openai.base_url":             "OPENAI_BASE_URL",
		"openai.model":                "OPENAI_MODEL",
		"openai.extraction_mode":      "OPENAI_EXTRACTION_MODE",
		"openai.prompts_path":         "OPENAI_PROMPTS_PATH",
		"processing.batch_size":       "BATCH_SIZE",
		"processing.max_retries":      "MAX_RETRIES",
		"processing.max_concurrent":   "MAX_CONCURRENT_PROCESSING",
		"processing.retry_base_delay": "RETRY_BASE_DELAY",
		"auth.jwt_secret":             "JWT_SECRET",
		"auth.token_ttl":              "JWT_EXPIRY",
		"server.port":                 "PORT",
		"server.allowed_origins":      "CORS_ALLOWED_ORIGINS",
		"database.path":               "DATABASE_PATH",
		"storage.backend":             "STORAGE_BACKEND",
		"storage.upload_dir":          "UPLOAD_DIR",
		"storage.retention":           "UPLOAD_RETENTION",
		"storage.minio.endpoint":      "MINIO_ENDPOINT",
		"storage.minio.access_key":    "MINIO_ACCESS_KEY",
		"storage.minio.secret_key":    "MINIO_SECRET_KEY",
		"storage.minio.bucket":        "MINIO_BUCKET",
		"storage.minio.use_ssl":       "MINIO_USE_SSL",
		"logger.level":                "LOG_LEVEL",
		"logger.format":               "LOG_FORMAT",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return err
		}
	}
	return nil
}

// splitOrigins accepts both a YAML list and a comma separated env value
func splitOrigins(raw []string) []string {
	var origins []string
	for _, entry := range raw {
		for _, origin := range strings.Split(entry, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				origins = append(origins, origin)
			}
		}
	}
	return origins
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.OpenAI.APIKey == "" {
		return fmt.Errorf("openai.api_key is required (set OPENAI_API_KEY)")
	}
	if c.OpenAI.ExtractionMode != ExtractionModeJSON && c.OpenAI.ExtractionMode != ExtractionModeFunction {
		return fmt.Errorf("openai.extraction_mode must be %q or %q", ExtractionModeJSON, ExtractionModeFunction)
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required (set JWT_SECRET)")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl must be positive")
	}

	if c.Processing.BatchSize < 1 {
		return fmt.Errorf("processing.batch_size must be at least 1")
	}
	if c.Processing.MaxRetries < 1 {
		return fmt.Errorf("processing.max_retries must be at least 1")
	}
	if c.Processing.MaxConcurrent < 1 {
		return fmt.Errorf("processing.max_concurrent must be at least 1")
	}
	// every file of a batch runs at once
	if c.Processing.MaxConcurrent < c.Processing.BatchSize {
		return fmt.Errorf("processing.max_concurrent (%d) must not be below processing.batch_size (%d)",
			c.Processing.MaxConcurrent, c.Processing.BatchSize)
	}

	switch c.Storage.Backend {
	case StorageLocal:
		if c.Storage.UploadDir == "" {
			return fmt.Errorf("storage.upload_dir is required")
		}
	case StorageMinIO:
		m := c.Storage.MinIO
		if m.Endpoint == "" || m.AccessKey == "" || m.SecretKey == "" || m.Bucket == "" {
			return fmt.Errorf("storage.minio endpoint, access_key, secret_key and bucket are required")
		}
	default:
		return fmt.Errorf("unknown storage.backend %q", c.Storage.Backend)
	}

	return nil
}
