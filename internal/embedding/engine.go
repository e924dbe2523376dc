// Package embedding generates vector embeddings for knowledge retrieval.
// Supports two backends: Ollama (local) and Google GenAI (cloud).
package embedding

import (
	"context"
	"fmt"

	"tars/internal/logging"
)

// Engine generates vector embeddings for text.
type Engine interface {
	// Embed generates the embedding for a single text
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the dimensionality of embeddings
	Dimensions() int

	// Name returns the engine name
	Name() string
}

// Config holds embedding engine configuration.
type Config struct {
	// Provider: "ollama" or "genai"
	Provider string

	OllamaEndpoint string // default "http://localhost:11434"
	OllamaModel    string // default "nomic-embed-text"

	GenAIAPIKey string
	GenAIModel  string // default "gemini-embedding-001"
	TaskType    string // GenAI task hint, default SEMANTIC_SIMILARITY
}

// DefaultConfig returns local-first defaults.
func DefaultConfig() Config {
	return Config{
		Provider:       "ollama",
		OllamaEndpoint: "http://localhost:11434",
		OllamaModel:    "nomic-embed-text",
		GenAIModel:     "gemini-embedding-001",
		TaskType:       "SEMANTIC_SIMILARITY",
	}
}

// NewEngine creates an embedding engine based on configuration.
func NewEngine(cfg Config) (Engine, error) {
	log := logging.Get(logging.CategoryEmbedding)
	log.Info("creating embedding engine: provider=%s", cfg.Provider)

	var engine Engine
	var err error

	switch cfg.Provider {
	case "ollama":
		engine, err = NewOllamaEngine(cfg.OllamaEndpoint, cfg.OllamaModel)
	case "genai":
		engine, err = NewGenAIEngine(cfg.GenAIAPIKey, cfg.GenAIModel, cfg.TaskType)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s (use 'ollama' or 'genai')", cfg.Provider)
	}

	if err != nil {
		log.Error("failed to create embedding engine: %v", err)
		return nil, err
	}

	log.Info("embedding engine ready: name=%s dimensions=%d", engine.Name(), engine.Dimensions())
	return engine, nil
}
