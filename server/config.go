package server

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the backend configuration, loaded from YAML with environment
// overrides for secrets.
type Config struct {
	Addr        string        `yaml:"addr"`
	DatabaseURL string        `yaml:"database_url"`
	KeyExpiry   time.Duration `yaml:"key_expiry"`

	Provider ProviderConfig `yaml:"provider"`
}

// ProviderConfig points at the realtime model provider.
type ProviderConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	Model          string `yaml:"model"`
	Voice          string `yaml:"voice"`
	EmbeddingModel string `yaml:"embedding_model"`
}

// DefaultConfig returns a config with everything except secrets filled in.
func DefaultConfig() Config {
	return Config{
		Addr:      ":8080",
		KeyExpiry: 5 * time.Minute,
		Provider: ProviderConfig{
			BaseURL:        "https://api.openai.com/v1",
			Model:          "gpt-4o-realtime-preview",
			Voice:          "alloy",
			EmbeddingModel: "text-embedding-3-small",
		},
	}
}

// LoadConfig reads the YAML file at path on top of the defaults, then applies
// environment overrides. A missing file is not an error; missing secrets are.
func LoadConfig(path string) (Config, error) {
	config := DefaultConfig()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(raw, &config); err != nil {
				return Config{}, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	if apiKey := os.Getenv("FRONTDESK_PROVIDER_API_KEY"); apiKey != "" {
		config.Provider.APIKey = apiKey
	}
	if databaseURL := os.Getenv("FRONTDESK_DATABASE_URL"); databaseURL != "" {
		config.DatabaseURL = databaseURL
	}
	if addr := os.Getenv("FRONTDESK_ADDR"); addr != "" {
		config.Addr = addr
	}

	if config.Provider.APIKey == "" {
		return Config{}, fmt.Errorf("provider API key is not configured")
	}
	if config.DatabaseURL == "" {
		return Config{}, fmt.Errorf("database URL is not configured")
	}

	return config, nil
}
