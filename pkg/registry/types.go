package registry

// ModelConfig describes one generator model and how to reach it.
type ModelConfig struct {
	ID          string  `json:"id" yaml:"id"`             // "anthropic:claude-3-7-sonnet-20250219"
	Provider    string  `json:"provider" yaml:"provider"` // openai|anthropic|ollama|gemini|vllm|lmstudio|openrouter
	Model       string  `json:"model" yaml:"model"`
	BaseURL     string  `json:"base_url" yaml:"base_url"`
	APIKeyEnv   string  `json:"api_key_env" yaml:"api_key_env"`
	MaxTokens   int     `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	MaxRPM      int     `json:"max_rpm,omitempty" yaml:"max_rpm,omitempty"` // requests per minute
	MaxTPM      int     `json:"max_tpm,omitempty" yaml:"max_tpm,omitempty"` // tokens per minute
}

// Name returns the provider-side model name, falling back to the part of ID after the colon.
func (m ModelConfig) Name() string {
	if m.Model != "" {
		return m.Model
	}
	for i := 0; i < len(m.ID); i++ {
		if m.ID[i] == ':' {
			return m.ID[i+1:]
		}
	}
	return m.ID
}

// Registry represents the model registry
type Registry struct {
	Default string        `json:"default,omitempty" yaml:"default,omitempty"`
	Models  []ModelConfig `json:"models" yaml:"models"`
}

// FindModel finds a model by ID in the registry
func (r *Registry) FindModel(id string) *ModelConfig {
	for _, model := range r.Models {
		if model.ID == id {
			return &model
		}
	}
	return nil
}

// GetModelsByProvider returns all models for a specific provider
func (r *Registry) GetModelsByProvider(provider string) []ModelConfig {
	var models []ModelConfig
	for _, model := range r.Models {
		if model.Provider == provider {
			models = append(models, model)
		}
	}
	return models
}

// Resolve picks the model for a provider. An explicit model name wins over the
// registry default; unknown names are synthesized from the provider's first entry.
func (r *Registry) Resolve(provider, model string) (ModelConfig, bool) {
	candidates := r.GetModelsByProvider(provider)
	for _, c := range candidates {
		if model != "" && (c.Name() == model || c.ID == model) {
			return c, true
		}
	}
	if model == "" {
		if d := r.FindModel(r.Default); d != nil && d.Provider == provider {
			return *d, true
		}
	}
	if len(candidates) == 0 {
		return ModelConfig{}, false
	}
	mc := candidates[0]
	if model != "" {
		mc.ID = provider + ":" + model
		mc.Model = model
	}
	return mc, true
}
