package registry

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// Loader handles loading model configurations
type Loader struct {
	configPath string
}

// NewLoader creates a new configuration loader
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
	}
}

// LoadRegistry loads the model registry. Without a config file the built-in
// defaults are returned.
func (l *Loader) LoadRegistry() (*Registry, error) {
	if configPath := os.Getenv("MODELS_CONFIG"); configPath != "" {
		l.configPath = configPath
	}
	if l.configPath == "" {
		return GetDefaultRegistry(), nil
	}

	data, err := os.ReadFile(l.configPath)
	if errors.Is(err, fs.ErrNotExist) {
		return GetDefaultRegistry(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", l.configPath, err)
	}
	return LoadRegistryFromBytes(data)
}

// LoadRegistryFromBytes loads registry from byte data
func LoadRegistryFromBytes(data []byte) (*Registry, error) {
	var registry Registry
	if err := yaml.Unmarshal(data, &registry); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	return &registry, nil
}

// GetDefaultRegistry returns a registry with one model per supported provider.
func GetDefaultRegistry() *Registry {
	return &Registry{
		Default: "anthropic:claude-3-7-sonnet-20250219",
		Models: []ModelConfig{
			{
				ID:          "anthropic:claude-3-7-sonnet-20250219",
				Provider:    "anthropic",
				BaseURL:     "https://api.anthropic.com",
				APIKeyEnv:   "ANTHROPIC_API_KEY",
				MaxTokens:   8192,
				Temperature: 0.7,
				MaxRPM:      50,
				MaxTPM:      40000,
			},
			{
				ID:          "openai:gpt-4o",
				Provider:    "openai",
				BaseURL:     "https://api.openai.com/v1",
				APIKeyEnv:   "OPENAI_API_KEY",
				MaxTokens:   8192,
				Temperature: 0.7,
				MaxRPM:      500,
				MaxTPM:      100000,
			},
			{
				ID:          "gemini:gemini-2.0-flash",
				Provider:    "gemini",
				APIKeyEnv:   "GEMINI_API_KEY",
				MaxTokens:   8192,
				Temperature: 0.7,
				MaxRPM:      60,
			},
			{
				ID:          "ollama:llama3.2",
				Provider:    "ollama",
				BaseURL:     "http://localhost:11434",
				MaxTokens:   8192,
				Temperature: 0.7,
			},
		},
	}
}
