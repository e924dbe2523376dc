package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"tars/internal/logging"
)

// OpenAIHandler speaks the OpenAI chat-completions protocol. LM Studio and
// Ollama expose the same surface on their local ports, so all three kinds
// share this implementation with different base URLs and credentials.
type OpenAIHandler struct {
	kind        Kind
	apiKey      string
	baseURL     string
	model       string
	maxTokens   int
	httpClient  *http.Client
	mu          sync.Mutex
	lastRequest time.Time
}

// Config holds the settings common to every backend.
type Config struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// DefaultOpenAIConfig returns hosted OpenAI defaults.
func DefaultOpenAIConfig(apiKey string) Config {
	return Config{
		APIKey:    apiKey,
		BaseURL:   "https://api.openai.com/v1",
		Model:     "gpt-4o-mini",
		MaxTokens: 16384,
		Timeout:   2 * time.Minute,
	}
}

// DefaultLMStudioConfig returns local LM Studio defaults.
func DefaultLMStudioConfig() Config {
	return Config{
		APIKey:    "lm-studio",
		BaseURL:   "http://localhost:1234/v1",
		Model:     "meta-llama-3.2-1b-instruct-q4_0",
		MaxTokens: 16384,
		Timeout:   2 * time.Minute,
	}
}

// DefaultOllamaConfig returns local Ollama defaults. Ollama serves the
// OpenAI-compatible surface under /v1.
func DefaultOllamaConfig() Config {
	return Config{
		APIKey:    "ollama",
		BaseURL:   "http://localhost:11434/v1",
		Model:     "mistral",
		MaxTokens: 16384,
		Timeout:   2 * time.Minute,
	}
}

// NewOpenAIHandler creates a handler for an OpenAI-compatible backend.
func NewOpenAIHandler(kind Kind, config Config) *OpenAIHandler {
	maxTokens := config.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 16384
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &OpenAIHandler{
		kind:      kind,
		apiKey:    config.APIKey,
		baseURL:   strings.TrimSuffix(config.BaseURL, "/"),
		model:     config.Model,
		maxTokens: maxTokens,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Kind identifies the backend.
func (h *OpenAIHandler) Kind() Kind { return h.kind }

// Model returns the configured model name.
func (h *OpenAIHandler) Model() string { return h.model }

// OpenAI-compatible wire types.

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float64         `json:"temperature,omitempty"`
	Stream      bool            `json:"stream,omitempty"`
}

type openAIResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		Delta *struct {
			Role    string `json:"role,omitempty"`
			Content string `json:"content,omitempty"`
		} `json:"delta,omitempty"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error,omitempty"`
}

func (h *OpenAIHandler) buildMessages(system, user string, history []Turn) []openAIMessage {
	messages := make([]openAIMessage, 0, len(history)+2)
	if system != "" {
		messages = append(messages, openAIMessage{Role: "system", Content: system})
	}
	for _, t := range history {
		messages = append(messages, openAIMessage{Role: t.Role, Content: t.Content})
	}
	messages = append(messages, openAIMessage{Role: "user", Content: user})
	return messages
}

// throttle enforces a minimum spacing between requests to one backend.
func (h *OpenAIHandler) throttle() {
	h.mu.Lock()
	elapsed := time.Since(h.lastRequest)
	if elapsed < 100*time.Millisecond {
		time.Sleep(100*time.Millisecond - elapsed)
	}
	h.lastRequest = time.Now()
	h.mu.Unlock()
}

// Generate produces one complete reply.
func (h *OpenAIHandler) Generate(ctx context.Context, system, user string, history []Turn) (string, error) {
	// Auto-apply timeout if context has no deadline
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.httpClient.Timeout)
		defer cancel()
	}

	startTime := time.Now()
	log := logging.Get(logging.CategoryProvider)
	log.Debug("[%s] Generate: model=%s history=%d user_len=%d", h.kind, h.model, len(history), len(user))

	if h.apiKey == "" {
		return "", fmt.Errorf("%s: API key not configured", h.kind)
	}

	h.throttle()

	reqBody := openAIRequest{
		Model:       h.model,
		Messages:    h.buildMessages(system, user, history),
		MaxTokens:   h.maxTokens,
		Temperature: 0.7,
	}

	// Retry loop for rate limits
	maxRetries := 3
	var lastErr error

	for i := 0; i <= maxRetries; i++ {
		if i > 0 {
			time.Sleep(time.Duration(1<<uint(i-1)) * time.Second)
		}

		jsonData, err := json.Marshal(reqBody)
		if err != nil {
			return "", fmt.Errorf("failed to marshal request: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, "POST", h.baseURL+"/chat/completions", bytes.NewReader(jsonData))
		if err != nil {
			return "", fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+h.apiKey)

		resp, err := h.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read response: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limit exceeded (429)")
			continue
		}

		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("%s request failed with status %d: %s", h.kind, resp.StatusCode, string(body))
		}

		var parsed openAIResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			return "", fmt.Errorf("failed to parse response: %w", err)
		}

		// Problems the API reports on a 200 become in-character text
		if parsed.Error != nil {
			log.Warn("[%s] API-reported error: %s", h.kind, parsed.Error.Message)
			return snagReply(parsed.Error.Message), nil
		}
		if len(parsed.Choices) == 0 {
			log.Warn("[%s] no completion returned", h.kind)
			return snagReply("empty completion"), nil
		}

		response := strings.TrimSpace(parsed.Choices[0].Message.Content)
		log.Info("[%s] Generate: completed in %v response_len=%d", h.kind, time.Since(startTime), len(response))
		return response, nil
	}

	log.Error("[%s] Generate: max retries exceeded after %v: %v", h.kind, time.Since(startTime), lastErr)
	return "", fmt.Errorf("max retries exceeded: %w", lastErr)
}

// GenerateStream produces incremental reply chunks over SSE.
func (h *OpenAIHandler) GenerateStream(ctx context.Context, system, user string, history []Turn) (<-chan string, <-chan error) {
	contentChan := make(chan string, 100)
	errorChan := make(chan error, 1)

	log := logging.Get(logging.CategoryProvider)
	log.Debug("[%s] GenerateStream: model=%s", h.kind, h.model)

	go func() {
		defer close(contentChan)
		defer close(errorChan)

		if _, hasDeadline := ctx.Deadline(); !hasDeadline {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, h.httpClient.Timeout)
			defer cancel()
		}

		startTime := time.Now()

		if h.apiKey == "" {
			errorChan <- fmt.Errorf("%s: API key not configured", h.kind)
			return
		}

		h.throttle()

		reqBody := openAIRequest{
			Model:       h.model,
			Messages:    h.buildMessages(system, user, history),
			MaxTokens:   h.maxTokens,
			Temperature: 0.7,
			Stream:      true,
		}

		jsonData, err := json.Marshal(reqBody)
		if err != nil {
			errorChan <- fmt.Errorf("failed to marshal request: %w", err)
			return
		}

		req, err := http.NewRequestWithContext(ctx, "POST", h.baseURL+"/chat/completions", bytes.NewReader(jsonData))
		if err != nil {
			errorChan <- fmt.Errorf("failed to create request: %w", err)
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+h.apiKey)
		req.Header.Set("Accept", "text/event-stream")

		resp, err := h.httpClient.Do(req)
		if err != nil {
			errorChan <- fmt.Errorf("request failed: %w", err)
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			errorChan <- fmt.Errorf("%s request failed with status %d: %s", h.kind, resp.StatusCode, string(body))
			return
		}

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "" {
				continue
			}
			if data == "[DONE]" {
				log.Info("[%s] GenerateStream: completed in %v", h.kind, time.Since(startTime))
				return
			}

			var chunk openAIResponse
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				continue
			}
			if chunk.Error != nil {
				errorChan <- fmt.Errorf("API error: %s", chunk.Error.Message)
				return
			}
			if len(chunk.Choices) > 0 && chunk.Choices[0].Delta != nil {
				delta := chunk.Choices[0].Delta.Content
				if delta != "" {
					select {
					case contentChan <- delta:
					case <-ctx.Done():
						errorChan <- ctx.Err()
						return
					}
				}
			}
		}
		if err := scanner.Err(); err != nil {
			log.Error("[%s] GenerateStream: stream error after %v: %v", h.kind, time.Since(startTime), err)
			errorChan <- fmt.Errorf("stream error: %w", err)
		}
	}()

	return contentChan, errorChan
}
