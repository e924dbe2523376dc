package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "lm_studio", cfg.Provider.Name)
	assert.Equal(t, "http://localhost:1234/v1", cfg.Provider.LMStudioBaseURL)
	assert.Equal(t, "http://localhost:11434", cfg.Provider.OllamaBaseURL)
	assert.Equal(t, 0.60, cfg.Personality.Humor)
	assert.Equal(t, 0.90, cfg.Personality.Honesty)
	assert.Equal(t, 0.95, cfg.Personality.Discretion)
	assert.Equal(t, 50, cfg.Memory.MaxMessages)
	assert.True(t, cfg.Memory.AutoSave)
	assert.True(t, cfg.Knowledge.Enabled)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "lm_studio", cfg.Provider.Name)
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tars.yaml")
	body := `
provider:
  name: ollama
  ollama_model: llama3
personality:
  humor: 0.25
server:
  port: 9100
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "ollama", cfg.Provider.Name)
	assert.Equal(t, "llama3", cfg.Provider.OllamaModel)
	assert.Equal(t, 0.25, cfg.Personality.Humor)
	assert.Equal(t, 9100, cfg.Server.Port)
	// Untouched sections keep defaults
	assert.Equal(t, "http://localhost:11434", cfg.Provider.OllamaBaseURL)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TARS_LLM_PROVIDER", "gemini")
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("TARS_HUMOR_LEVEL", "0.9")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "gemini", cfg.Provider.Name)
	assert.Equal(t, "test-key", cfg.Provider.GeminiAPIKey)
	assert.Equal(t, 0.9, cfg.Personality.Humor)
}

func TestTraitClamping(t *testing.T) {
	t.Setenv("TARS_HUMOR_LEVEL", "3.5")
	t.Setenv("TARS_HONESTY_LEVEL", "-1")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 1.0, cfg.Personality.Humor)
	assert.Equal(t, 0.0, cfg.Personality.Honesty)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Provider.Name = "skynet"
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Memory.MaxMessages = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Server.Port = 0
	assert.Error(t, cfg.Validate())
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "tars.yaml")

	cfg := DefaultConfig()
	cfg.Provider.Name = "openai"
	cfg.Provider.OpenAIModel = "gpt-4o-mini"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "openai", loaded.Provider.Name)
	assert.Equal(t, "gpt-4o-mini", loaded.Provider.OpenAIModel)
}
