package worker

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds configuration for the refinement worker.
type Config struct {
	MaxGenAttempts   int `yaml:"max_gen_attempts"`
	MaxRefineRounds  int `yaml:"max_refine_rounds"`
	MaxInnerAttempts int `yaml:"max_inner_attempts"`
	MaxEmptyRetries  int `yaml:"max_empty_retries"`

	CheckerTimeout time.Duration `yaml:"checker_timeout"`
	CheckerCommand string        `yaml:"checker_command"`
	CheckerBinary  string        `yaml:"checker_binary"`
	CheckerModule  string        `yaml:"checker_module"`

	WorkDir    string `yaml:"work_dir"`
	KBPath     string `yaml:"kb_path"`
	KBBackend  string `yaml:"kb_backend"` // json|sqlite
	RAGPath    string `yaml:"rag_path"`
	SyntaxPath string `yaml:"syntax_path"`

	LLMProvider      string `yaml:"llm_provider"` // mock|openai|anthropic|ollama|gemini|vllm|lmstudio|openrouter
	LLMModel         string `yaml:"llm_model"`
	LLMBaseURL       string `yaml:"llm_base_url"`
	LLMMockResponses string `yaml:"llm_mock_responses"`
	ModelsConfig     string `yaml:"models_config"`
	Embedder         string `yaml:"embedder"` // tfidf|openai|gemini

	LogLevel       string `yaml:"log_level"`
	LogFormat      string `yaml:"log_format"`
	HTTPAddr       string `yaml:"http_addr"`
	JaegerEndpoint string `yaml:"jaeger_endpoint"`
	Concurrency    int    `yaml:"concurrency"`
}

// LoadConfig loads configuration from environment variables, then overlays the
// YAML file named by PATREFINE_CONFIG when set.
func LoadConfig() (*Config, error) {
	config := &Config{
		MaxGenAttempts:   getEnvInt("MAX_GEN_ATTEMPTS", 3),
		MaxRefineRounds:  getEnvInt("MAX_REFINE_ROUNDS", 5),
		MaxInnerAttempts: getEnvInt("MAX_INNER_ATTEMPTS", 3),
		MaxEmptyRetries:  getEnvInt("MAX_EMPTY_RETRIES", 3),

		CheckerTimeout: getEnvDuration("CHECKER_TIMEOUT", "300s"),
		CheckerCommand: getEnv("CHECKER_COMMAND", "mono"),
		CheckerBinary:  getEnv("CHECKER_BINARY", "PAT3.Console.exe"),
		CheckerModule:  getEnv("CHECKER_MODULE", "-csp"),

		WorkDir:    getEnv("WORK_DIR", "./generated_code"),
		KBPath:     getEnv("KB_PATH", "./database-algorithm.json"),
		KBBackend:  getEnv("KB_BACKEND", "json"),
		RAGPath:    getEnv("RAG_PATH", "./database-rag.json"),
		SyntaxPath: getEnv("SYNTAX_PATH", "./syntax-dataset.json"),

		LLMProvider:      getEnv("LLM_PROVIDER", "mock"),
		LLMModel:         getEnv("LLM_MODEL", ""),
		LLMBaseURL:       getEnv("LLM_BASE_URL", ""),
		LLMMockResponses: getEnv("LLM_MOCK_RESPONSES", ""),
		ModelsConfig:     getEnv("MODELS_CONFIG", ""),
		Embedder:         getEnv("EMBEDDER", "tfidf"),

		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "json"),
		HTTPAddr:       getEnv("HTTP_ADDR", ":8090"),
		JaegerEndpoint: getEnv("JAEGER_ENDPOINT", ""),
		Concurrency:    getEnvInt("CONCURRENCY", 1),
	}

	if path := os.Getenv("PATREFINE_CONFIG"); path != "" {
		if err := config.Overlay(path); err != nil {
			return nil, err
		}
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Overlay replaces every field present in the YAML file at path.
func (c *Config) Overlay(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Validate rejects budgets and backends the worker cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.MaxGenAttempts < 1 {
		errs = append(errs, fmt.Errorf("max_gen_attempts must be at least 1, got %d", c.MaxGenAttempts))
	}
	if c.MaxRefineRounds < 0 {
		errs = append(errs, fmt.Errorf("max_refine_rounds must not be negative, got %d", c.MaxRefineRounds))
	}
	if c.MaxInnerAttempts < 1 {
		errs = append(errs, fmt.Errorf("max_inner_attempts must be at least 1, got %d", c.MaxInnerAttempts))
	}
	if c.MaxEmptyRetries < 0 {
		errs = append(errs, fmt.Errorf("max_empty_retries must not be negative, got %d", c.MaxEmptyRetries))
	}
	if c.CheckerTimeout <= 0 {
		errs = append(errs, fmt.Errorf("checker_timeout must be positive, got %s", c.CheckerTimeout))
	}
	if c.KBBackend != "json" && c.KBBackend != "sqlite" {
		errs = append(errs, fmt.Errorf("unsupported kb_backend %q", c.KBBackend))
	}
	if c.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency))
	}
	return errors.Join(errs...)
}

// Budgets returns the loop limits of this configuration.
func (c *Config) Budgets() Budgets {
	return Budgets{
		MaxGenAttempts:   c.MaxGenAttempts,
		MaxRefineRounds:  c.MaxRefineRounds,
		MaxInnerAttempts: c.MaxInnerAttempts,
		MaxEmptyRetries:  c.MaxEmptyRetries,
	}
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvDuration gets a duration environment variable with a default value
func getEnvDuration(key, defaultValue string) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}
