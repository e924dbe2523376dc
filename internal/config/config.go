// Package config centralizes configuration for the TARS assistant.
// Values come from a YAML file layered over defaults, with environment
// variables taking final precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config holds all TARS configuration.
type Config struct {
	// Data directory for conversations, vector index and logs
	DataDir string `yaml:"data_dir" env:"TARS_DATA_DIR"`

	Provider    ProviderConfig    `yaml:"provider"`
	Personality PersonalityConfig `yaml:"personality"`
	Memory      MemoryConfig      `yaml:"memory"`
	Knowledge   KnowledgeConfig   `yaml:"knowledge"`
	Server      ServerConfig      `yaml:"server"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// ProviderConfig configures the LLM backends.
type ProviderConfig struct {
	// Primary backend: openai, gemini, lm_studio or ollama
	Name string `yaml:"name" env:"TARS_LLM_PROVIDER"`

	OpenAIAPIKey string `yaml:"openai_api_key" env:"OPENAI_API_KEY"`
	OpenAIModel  string `yaml:"openai_model" env:"OPENAI_MODEL"`

	GeminiAPIKey string `yaml:"gemini_api_key" env:"GEMINI_API_KEY"`
	GeminiModel  string `yaml:"gemini_model" env:"GEMINI_MODEL"`

	LMStudioBaseURL string `yaml:"lm_studio_base_url" env:"LM_STUDIO_BASE_URL"`
	LMStudioModel   string `yaml:"lm_studio_model" env:"LM_STUDIO_MODEL"`

	OllamaBaseURL string `yaml:"ollama_base_url" env:"OLLAMA_BASE_URL"`
	OllamaModel   string `yaml:"ollama_model" env:"OLLAMA_MODEL"`

	MaxTokens      int `yaml:"max_tokens" env:"TARS_MAX_TOKENS"`
	TimeoutSeconds int `yaml:"timeout_seconds" env:"TARS_LLM_TIMEOUT"`
}

// PersonalityConfig holds the initial trait dials.
type PersonalityConfig struct {
	Humor      float64 `yaml:"humor" env:"TARS_HUMOR_LEVEL"`
	Honesty    float64 `yaml:"honesty" env:"TARS_HONESTY_LEVEL"`
	Discretion float64 `yaml:"discretion" env:"TARS_DISCRETION_LEVEL"`
}

// MemoryConfig configures conversation persistence.
type MemoryConfig struct {
	PersistDir  string `yaml:"persist_dir" env:"TARS_MEMORY_DIR"`
	MaxMessages int    `yaml:"max_messages" env:"TARS_MAX_MESSAGES"`
	AutoSave    bool   `yaml:"auto_save"`
}

// KnowledgeConfig configures the retrieval system.
type KnowledgeConfig struct {
	Enabled     bool   `yaml:"enabled" env:"TARS_RAG_ENABLED"`
	PersistDir  string `yaml:"persist_dir" env:"TARS_VECTOR_DIR"`
	DatasetsDir string `yaml:"datasets_dir" env:"TARS_DATASETS_DIR"`

	// Embedding engine: ollama or genai
	EmbeddingProvider string `yaml:"embedding_provider" env:"TARS_EMBEDDING_PROVIDER"`
	EmbeddingModel    string `yaml:"embedding_model" env:"TARS_EMBEDDING_MODEL"`
	EmbeddingAPIKey   string `yaml:"embedding_api_key" env:"TARS_EMBEDDING_API_KEY"`
}

// ServerConfig configures the HTTP/WebSocket transport.
type ServerConfig struct {
	Host string `yaml:"host" env:"TARS_API_HOST"`
	Port int    `yaml:"port" env:"TARS_API_PORT"`
}

// LoggingConfig configures debug logging.
type LoggingConfig struct {
	Debug      bool   `yaml:"debug" env:"TARS_DEBUG"`
	Level      string `yaml:"level" env:"TARS_LOG_LEVEL"`
	JSONFormat bool   `yaml:"json_format"`
}

// DefaultConfig returns the baseline configuration.
func DefaultConfig() *Config {
	return &Config{
		DataDir: "./data",
		Provider: ProviderConfig{
			Name:            "lm_studio",
			LMStudioBaseURL: "http://localhost:1234/v1",
			LMStudioModel:   "meta-llama-3.2-1b-instruct-q4_0",
			OllamaBaseURL:   "http://localhost:11434",
			OllamaModel:     "mistral",
			MaxTokens:       16384,
			TimeoutSeconds:  120,
		},
		Personality: PersonalityConfig{
			Humor:      0.60,
			Honesty:    0.90,
			Discretion: 0.95,
		},
		Memory: MemoryConfig{
			PersistDir:  "./data/memory",
			MaxMessages: 50,
			AutoSave:    true,
		},
		Knowledge: KnowledgeConfig{
			Enabled:           true,
			PersistDir:        "./data/vector_db",
			DatasetsDir:       "./data/datasets",
			EmbeddingProvider: "ollama",
			EmbeddingModel:    "nomic-embed-text",
		},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8000,
		},
		Logging: LoggingConfig{
			Debug: false,
			Level: "info",
		},
	}
}

// Load reads configuration from a YAML file, falling back to defaults when
// the file is absent, then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("apply env overrides: %w", err)
	}

	cfg.clampTraits()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) clampTraits() {
	clamp := func(v float64) float64 {
		if v < 0 {
			return 0
		}
		if v > 1 {
			return 1
		}
		return v
	}
	c.Personality.Humor = clamp(c.Personality.Humor)
	c.Personality.Honesty = clamp(c.Personality.Honesty)
	c.Personality.Discretion = clamp(c.Personality.Discretion)
}

// Validate checks settings that would otherwise fail deep inside a turn.
func (c *Config) Validate() error {
	switch c.Provider.Name {
	case "openai", "gemini", "lm_studio", "ollama":
	default:
		return fmt.Errorf("unknown provider %q", c.Provider.Name)
	}
	if c.Memory.MaxMessages < 1 {
		return fmt.Errorf("memory.max_messages must be positive, got %d", c.Memory.MaxMessages)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	return nil
}

// Addr returns the server listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Save writes the configuration as YAML, creating parent directories.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
