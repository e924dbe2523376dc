package provider

import (
	"fmt"
	"time"

	"tars/internal/config"
)

// Kind enumerates the supported backends.
type Kind string

const (
	KindOpenAI   Kind = "openai"
	KindGemini   Kind = "gemini"
	KindLMStudio Kind = "lm_studio"
	KindOllama   Kind = "ollama"
)

// fallbackOrder is the fixed probe order when the primary backend is down:
// local servers first, then hosted APIs.
var fallbackOrder = []Kind{KindLMStudio, KindOllama, KindGemini, KindOpenAI}

// constructors maps each kind to its handler builder.
var constructors = map[Kind]func(Config) Handler{
	KindOpenAI:   func(c Config) Handler { return NewOpenAIHandler(KindOpenAI, c) },
	KindLMStudio: func(c Config) Handler { return NewOpenAIHandler(KindLMStudio, c) },
	KindOllama:   func(c Config) Handler { return NewOpenAIHandler(KindOllama, c) },
	KindGemini:   func(c Config) Handler { return NewGeminiHandler(c) },
}

// ParseKind validates a backend name.
func ParseKind(name string) (Kind, error) {
	k := Kind(name)
	if _, ok := constructors[k]; !ok {
		return "", fmt.Errorf("unknown provider %q", name)
	}
	return k, nil
}

// New builds a handler for the given kind.
func New(kind Kind, cfg Config) (Handler, error) {
	ctor, ok := constructors[kind]
	if !ok {
		return nil, fmt.Errorf("unknown provider %q", kind)
	}
	return ctor(cfg), nil
}

// FallbackKinds returns the probe order minus the primary.
func FallbackKinds(primary Kind) []Kind {
	out := make([]Kind, 0, len(fallbackOrder))
	for _, k := range fallbackOrder {
		if k != primary {
			out = append(out, k)
		}
	}
	return out
}

// configFor maps application settings onto one backend's Config, starting
// from that backend's defaults.
func configFor(kind Kind, pc config.ProviderConfig) Config {
	var c Config
	switch kind {
	case KindOpenAI:
		c = DefaultOpenAIConfig(pc.OpenAIAPIKey)
		if pc.OpenAIModel != "" {
			c.Model = pc.OpenAIModel
		}
	case KindGemini:
		c = DefaultGeminiConfig(pc.GeminiAPIKey)
		if pc.GeminiModel != "" {
			c.Model = pc.GeminiModel
		}
	case KindLMStudio:
		c = DefaultLMStudioConfig()
		if pc.LMStudioBaseURL != "" {
			c.BaseURL = pc.LMStudioBaseURL
		}
		if pc.LMStudioModel != "" {
			c.Model = pc.LMStudioModel
		}
	case KindOllama:
		c = DefaultOllamaConfig()
		if pc.OllamaBaseURL != "" {
			c.BaseURL = pc.OllamaBaseURL + "/v1"
		}
		if pc.OllamaModel != "" {
			c.Model = pc.OllamaModel
		}
	}
	if pc.MaxTokens > 0 {
		c.MaxTokens = pc.MaxTokens
	}
	if pc.TimeoutSeconds > 0 {
		c.Timeout = time.Duration(pc.TimeoutSeconds) * time.Second
	}
	return c
}

// hasCredentials reports whether a backend is usable with the given
// settings. Local servers need no key; hosted APIs do.
func hasCredentials(kind Kind, pc config.ProviderConfig) bool {
	switch kind {
	case KindOpenAI:
		return pc.OpenAIAPIKey != ""
	case KindGemini:
		return pc.GeminiAPIKey != ""
	default:
		return true
	}
}

// NewRouterFromConfig builds the primary handler plus its fallback chain.
// An unusable primary (bad name, missing key) is a construction error.
func NewRouterFromConfig(pc config.ProviderConfig) (*Router, error) {
	primary, err := ParseKind(pc.Name)
	if err != nil {
		return nil, err
	}
	if !hasCredentials(primary, pc) {
		return nil, fmt.Errorf("provider %s requires an API key", primary)
	}

	primaryHandler, err := New(primary, configFor(primary, pc))
	if err != nil {
		return nil, err
	}

	var fallbacks []Handler
	for _, k := range FallbackKinds(primary) {
		if !hasCredentials(k, pc) {
			continue
		}
		h, err := New(k, configFor(k, pc))
		if err != nil {
			return nil, err
		}
		fallbacks = append(fallbacks, h)
	}

	return NewRouter(primaryHandler, fallbacks), nil
}
