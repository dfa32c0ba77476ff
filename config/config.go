package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/upb/llm-chat-client/utils"
)

// Config represents the complete application configuration
type Config struct {
	Environment   string `validate:"required"`
	Chat          ChatConfig
	HTTP          HTTPConfig
	Providers     ProvidersConfig
	Observability ObservabilityConfig
}

// ChatConfig holds session and settings-file configuration
type ChatConfig struct {
	SettingsPath    string `validate:"required"`
	DefaultProvider string `validate:"omitempty,oneof=openrouter huggingface"`
	SystemPrompt    string
}

// HTTPConfig holds outbound HTTP client configuration
type HTTPConfig struct {
	Timeout time.Duration `validate:"gt=0"`
	// Referer and Title are sent to OpenRouter for app attribution
	Referer string `validate:"omitempty,url"`
	Title   string
}

// ProvidersConfig holds per-provider overrides
type ProvidersConfig struct {
	OpenRouter  ProviderConfig
	HuggingFace ProviderConfig
}

// ProviderConfig holds one provider's optional credential, model and endpoint
type ProviderConfig struct {
	APIKey   string
	Model    string
	Endpoint string `validate:"omitempty,url"`
}

// ObservabilityConfig holds monitoring and logging configuration
type ObservabilityConfig struct {
	LogLevel       string `validate:"required,oneof=debug info warn error"`
	LogFormat      string `validate:"required,oneof=json text console"`
	MetricsEnabled bool
}

// New creates a new Config instance by loading environment variables
func New(ctx context.Context) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load(".env")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Chat: ChatConfig{
			SettingsPath:    getEnv("CHAT_SETTINGS_PATH", defaultSettingsPath()),
			DefaultProvider: getEnv("CHAT_DEFAULT_PROVIDER", ""),
			SystemPrompt:    getEnv("CHAT_SYSTEM_PROMPT", ""),
		},
		HTTP: HTTPConfig{
			Timeout: getEnvAsDuration("HTTP_TIMEOUT", 60*time.Second),
			Referer: getEnv("HTTP_REFERER", ""),
			Title:   getEnv("APP_TITLE", "Browser Chat UI"),
		},
		Providers: ProvidersConfig{
			OpenRouter: ProviderConfig{
				APIKey:   getEnv("OPENROUTER_API_KEY", ""),
				Model:    getEnv("OPENROUTER_MODEL", ""),
				Endpoint: getEnv("OPENROUTER_ENDPOINT", ""),
			},
			HuggingFace: ProviderConfig{
				APIKey:   getEnv("HUGGINGFACE_API_KEY", ""),
				Model:    getEnv("HUGGINGFACE_MODEL", ""),
				Endpoint: getEnv("HUGGINGFACE_ENDPOINT", ""),
			},
		},
		Observability: ObservabilityConfig{
			LogLevel:       strings.ToLower(getEnv("LOG_LEVEL", "warn")),
			LogFormat:      strings.ToLower(getEnv("LOG_FORMAT", "text")),
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", false),
		},
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	return utils.ValidateStruct(c)
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// Credentials returns the environment-provided credentials keyed by provider id
func (p *ProvidersConfig) Credentials() map[string]string {
	return map[string]string{
		"openrouter":  p.OpenRouter.APIKey,
		"huggingface": p.HuggingFace.APIKey,
	}
}

// Models returns the environment-provided models keyed by provider id
func (p *ProvidersConfig) Models() map[string]string {
	return map[string]string{
		"openrouter":  p.OpenRouter.Model,
		"huggingface": p.HuggingFace.Model,
	}
}

// Helper functions

func defaultSettingsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".llm-chat", "settings.toml")
	}
	return filepath.Join(home, ".llm-chat", "settings.toml")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
