package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	ProviderGemini     = "gemini"
	ProviderOpenRouter = "openrouter"

	StorageS3     = "s3"
	StorageMemory = "memory"
)

type Config struct {
	Port        string `yaml:"port"`
	DatabaseURL string `yaml:"database_url"`
	LogLevel    string `yaml:"log_level"`

	// Object storage
	StorageDriver     string `yaml:"storage_driver"`
	S3Endpoint        string `yaml:"s3_endpoint"`
	S3AccessKeyID     string `yaml:"s3_access_key_id"`
	S3SecretAccessKey string `yaml:"s3_secret_access_key"`
	S3BucketName      string `yaml:"s3_bucket_name"`
	S3UseSSL          bool   `yaml:"s3_use_ssl"`

	// Model provider
	LLMProvider       string        `yaml:"llm_provider"`
	LLMTimeout        time.Duration `yaml:"llm_timeout"`
	GeminiAPIKey      string        `yaml:"gemini_api_key"`
	GeminiModel       string        `yaml:"gemini_model"`
	OpenRouterAPIKey  string        `yaml:"openrouter_api_key"`
	OpenRouterModel   string        `yaml:"openrouter_model"`
	OpenRouterBaseURL string        `yaml:"openrouter_base_url"`

	// Upload limits
	MaxFileSize int64 `yaml:"max_file_size"`

	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
}

func defaults() *Config {
	return &Config{
		Port:              "8080",
		DatabaseURL:       "data/docmind.db",
		LogLevel:          "info",
		StorageDriver:     StorageS3,
		S3Endpoint:        "localhost:9000",
		S3AccessKeyID:     "minioadmin",
		S3SecretAccessKey: "minioadmin",
		S3BucketName:      "documents",
		LLMProvider:       ProviderGemini,
		LLMTimeout:        120 * time.Second,
		GeminiModel:       "gemini-3-flash-preview",
		OpenRouterModel:   "google/gemini-2.5-flash",
		OpenRouterBaseURL: "https://openrouter.ai/api/v1",
		MaxFileSize:       50 << 20,

		CORSAllowedOrigins: []string{"*"},
	}
}

// Load reads .env (if present), then the YAML file at CONFIG_PATH (if set), then
// environment variables, each layer overriding the previous one.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := defaults()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.StorageDriver = getEnv("STORAGE_DRIVER", cfg.StorageDriver)
	cfg.S3Endpoint = getEnv("S3_ENDPOINT", cfg.S3Endpoint)
	cfg.S3AccessKeyID = getEnv("S3_ACCESS_KEY_ID", cfg.S3AccessKeyID)
	cfg.S3SecretAccessKey = getEnv("S3_SECRET_ACCESS_KEY", cfg.S3SecretAccessKey)
	cfg.S3BucketName = getEnv("S3_BUCKET_NAME", cfg.S3BucketName)
	cfg.LLMProvider = strings.ToLower(getEnv("LLM_PROVIDER", cfg.LLMProvider))
	cfg.GeminiAPIKey = getEnv("GEMINI_API_KEY", getEnv("GOOGLE_API_KEY", cfg.GeminiAPIKey))
	cfg.GeminiModel = getEnv("GEMINI_MODEL", cfg.GeminiModel)
	cfg.OpenRouterAPIKey = getEnv("OPENROUTER_API_KEY", cfg.OpenRouterAPIKey)
	cfg.OpenRouterModel = getEnv("OPENROUTER_MODEL", cfg.OpenRouterModel)
	cfg.OpenRouterBaseURL = getEnv("OPENROUTER_BASE_URL", cfg.OpenRouterBaseURL)

	if v := os.Getenv("S3_USE_SSL"); v != "" {
		cfg.S3UseSSL = v == "true"
	}
	if v := os.Getenv("LLM_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid LLM_TIMEOUT: %w", err)
		}
		cfg.LLMTimeout = d
	}
	if v := os.Getenv("MAX_FILE_SIZE"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid MAX_FILE_SIZE: %w", err)
		}
		cfg.MaxFileSize = n
	}
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		cfg.CORSAllowedOrigins = strings.Split(v, ",")
	}
	return nil
}

func (c *Config) Validate() error {
	switch c.LLMProvider {
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required")
		}
	case ProviderOpenRouter:
		if c.OpenRouterAPIKey == "" {
			return fmt.Errorf("OPENROUTER_API_KEY is required")
		}
	default:
		return fmt.Errorf("unsupported LLM_PROVIDER %q", c.LLMProvider)
	}

	switch c.StorageDriver {
	case StorageS3, StorageMemory:
	default:
		return fmt.Errorf("unsupported STORAGE_DRIVER %q", c.StorageDriver)
	}

	if c.MaxFileSize <= 0 {
		return fmt.Errorf("MAX_FILE_SIZE must be positive")
	}
	return nil
}

// IsPostgres reports whether DatabaseURL points at postgres rather than a sqlite file.
func (c *Config) IsPostgres() bool {
	return IsPostgresURL(c.DatabaseURL)
}

func IsPostgresURL(databaseURL string) bool {
	return strings.HasPrefix(databaseURL, "postgres://") || strings.HasPrefix(databaseURL, "postgresql://")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
