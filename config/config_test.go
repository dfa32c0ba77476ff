package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		wantErr bool
		check   func(*testing.T, *Config)
	}{
		{
			name: "default configuration",
			envVars: map[string]string{
				"HOME": "/home/chat",
			},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "development", cfg.Environment)
				assert.True(t, cfg.IsDevelopment())
				assert.Equal(t, filepath.Join("/home/chat", ".llm-chat", "settings.toml"), cfg.Chat.SettingsPath)
				assert.Equal(t, "", cfg.Chat.DefaultProvider)
				assert.Equal(t, 60*time.Second, cfg.HTTP.Timeout)
				assert.Equal(t, "Browser Chat UI", cfg.HTTP.Title)
				assert.Equal(t, "warn", cfg.Observability.LogLevel)
				assert.Equal(t, "text", cfg.Observability.LogFormat)
				assert.False(t, cfg.Observability.MetricsEnabled)
			},
		},
		{
			name: "provider overrides",
			envVars: map[string]string{
				"OPENROUTER_API_KEY":   "sk-or-v1-env",
				"OPENROUTER_MODEL":     "mistralai/mistral-7b-instruct:free",
				"HUGGINGFACE_API_KEY":  "hf_env",
				"HUGGINGFACE_ENDPOINT": "http://localhost:8080/v1/chat/completions",
				"HTTP_REFERER":         "http://localhost:5173",
			},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, map[string]string{
					"openrouter":  "sk-or-v1-env",
					"huggingface": "hf_env",
				}, cfg.Providers.Credentials())
				assert.Equal(t, "mistralai/mistral-7b-instruct:free", cfg.Providers.Models()["openrouter"])
				assert.Equal(t, "http://localhost:8080/v1/chat/completions", cfg.Providers.HuggingFace.Endpoint)
				assert.Equal(t, "http://localhost:5173", cfg.HTTP.Referer)
			},
		},
		{
			name: "chat settings",
			envVars: map[string]string{
				"CHAT_SETTINGS_PATH":    "/tmp/chat.toml",
				"CHAT_DEFAULT_PROVIDER": "huggingface",
				"CHAT_SYSTEM_PROMPT":    "Be brief.",
				"HTTP_TIMEOUT":          "15s",
			},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "/tmp/chat.toml", cfg.Chat.SettingsPath)
				assert.Equal(t, "huggingface", cfg.Chat.DefaultProvider)
				assert.Equal(t, "Be brief.", cfg.Chat.SystemPrompt)
				assert.Equal(t, 15*time.Second, cfg.HTTP.Timeout)
			},
		},
		{
			name: "invalid timeout falls back to default",
			envVars: map[string]string{
				"HTTP_TIMEOUT": "soon",
			},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 60*time.Second, cfg.HTTP.Timeout)
			},
		},
		{
			name: "observability configuration",
			envVars: map[string]string{
				"ENVIRONMENT":     "production",
				"LOG_LEVEL":       "DEBUG",
				"LOG_FORMAT":      "json",
				"METRICS_ENABLED": "true",
			},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				assert.True(t, cfg.IsProduction())
				assert.Equal(t, "debug", cfg.Observability.LogLevel)
				assert.Equal(t, "json", cfg.Observability.LogFormat)
				assert.True(t, cfg.Observability.MetricsEnabled)
			},
		},
		{
			name: "unknown default provider",
			envVars: map[string]string{
				"CHAT_DEFAULT_PROVIDER": "anthropic",
			},
			wantErr: true,
		},
		{
			name: "invalid log level",
			envVars: map[string]string{
				"LOG_LEVEL": "verbose",
			},
			wantErr: true,
		},
		{
			name: "invalid endpoint",
			envVars: map[string]string{
				"OPENROUTER_ENDPOINT": "not a url",
			},
			wantErr: true,
		},
		{
			name: "negative timeout",
			envVars: map[string]string{
				"HTTP_TIMEOUT": "-1s",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Clear environment
			os.Clearenv()

			// Set test environment variables
			for k, v := range tt.envVars {
				os.Setenv(k, v)
			}

			// Create config
			cfg, err := New(context.Background())

			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, cfg)
			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Environment: "development",
			Chat:        ChatConfig{SettingsPath: "/tmp/settings.toml"},
			HTTP:        HTTPConfig{Timeout: time.Second},
			Observability: ObservabilityConfig{
				LogLevel:  "info",
				LogFormat: "json",
			},
		}
	}

	assert.NoError(t, valid().Validate())

	missingPath := valid()
	missingPath.Chat.SettingsPath = ""
	assert.Error(t, missingPath.Validate())

	zeroTimeout := valid()
	zeroTimeout.HTTP.Timeout = 0
	assert.Error(t, zeroTimeout.Validate())
}
