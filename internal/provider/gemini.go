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

// GeminiHandler speaks the Google Gemini REST API.
type GeminiHandler struct {
	apiKey      string
	baseURL     string
	model       string
	maxTokens   int
	httpClient  *http.Client
	mu          sync.Mutex
	lastRequest time.Time
}

// DefaultGeminiConfig returns hosted Gemini defaults.
func DefaultGeminiConfig(apiKey string) Config {
	return Config{
		APIKey:    apiKey,
		BaseURL:   "https://generativelanguage.googleapis.com/v1beta",
		Model:     "gemini-2.0-flash",
		MaxTokens: 16384,
		Timeout:   2 * time.Minute,
	}
}

// NewGeminiHandler creates a Gemini handler.
func NewGeminiHandler(config Config) *GeminiHandler {
	model := strings.TrimSpace(config.Model)
	if model == "" {
		model = "gemini-2.0-flash"
	}
	maxTokens := config.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 16384
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &GeminiHandler{
		apiKey:    config.APIKey,
		baseURL:   strings.TrimSuffix(config.BaseURL, "/"),
		model:     model,
		maxTokens: maxTokens,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Kind identifies the backend.
func (h *GeminiHandler) Kind() Kind { return KindGemini }

// Model returns the configured model name.
func (h *GeminiHandler) Model() string { return h.model }

// Gemini wire types.

type geminiPart struct {
	Text string `json:"text,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature,omitempty"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type geminiRequest struct {
	Contents          []geminiContent        `json:"contents"`
	SystemInstruction *geminiContent         `json:"systemInstruction,omitempty"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
			Role  string       `json:"role"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

// buildRequest maps chat history onto Gemini's contents array. Gemini names
// the assistant role "model".
func (h *GeminiHandler) buildRequest(system, user string, history []Turn) geminiRequest {
	contents := make([]geminiContent, 0, len(history)+1)
	for _, t := range history {
		role := t.Role
		if role == "assistant" {
			role = "model"
		}
		contents = append(contents, geminiContent{
			Role:  role,
			Parts: []geminiPart{{Text: t.Content}},
		})
	}
	contents = append(contents, geminiContent{
		Role:  "user",
		Parts: []geminiPart{{Text: user}},
	})

	req := geminiRequest{
		Contents: contents,
		GenerationConfig: geminiGenerationConfig{
			Temperature:     0.7,
			MaxOutputTokens: h.maxTokens,
		},
	}
	if system != "" {
		req.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: system}}}
	}
	return req
}

func (h *GeminiHandler) throttle() {
	h.mu.Lock()
	elapsed := time.Since(h.lastRequest)
	if elapsed < 100*time.Millisecond {
		time.Sleep(100*time.Millisecond - elapsed)
	}
	h.lastRequest = time.Now()
	h.mu.Unlock()
}

// Generate produces one complete reply.
func (h *GeminiHandler) Generate(ctx context.Context, system, user string, history []Turn) (string, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.httpClient.Timeout)
		defer cancel()
	}

	startTime := time.Now()
	log := logging.Get(logging.CategoryProvider)
	log.Debug("[gemini] Generate: model=%s history=%d", h.model, len(history))

	if h.apiKey == "" {
		return "", fmt.Errorf("gemini: API key not configured")
	}

	h.throttle()

	reqBody := h.buildRequest(system, user, history)

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

		url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", h.baseURL, h.model, h.apiKey)
		req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonData))
		if err != nil {
			return "", fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

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
			return "", fmt.Errorf("gemini request failed with status %d: %s", resp.StatusCode, string(body))
		}

		var parsed geminiResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			return "", fmt.Errorf("failed to parse response: %w", err)
		}

		if parsed.Error != nil {
			log.Warn("[gemini] API-reported error: %s", parsed.Error.Message)
			return snagReply(parsed.Error.Message), nil
		}
		if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
			log.Warn("[gemini] no candidates returned")
			return snagReply("empty completion"), nil
		}

		var sb strings.Builder
		for _, p := range parsed.Candidates[0].Content.Parts {
			sb.WriteString(p.Text)
		}
		response := strings.TrimSpace(sb.String())
		log.Info("[gemini] Generate: completed in %v response_len=%d", time.Since(startTime), len(response))
		return response, nil
	}

	log.Error("[gemini] Generate: max retries exceeded after %v: %v", time.Since(startTime), lastErr)
	return "", fmt.Errorf("max retries exceeded: %w", lastErr)
}

// GenerateStream produces incremental reply chunks over SSE.
func (h *GeminiHandler) GenerateStream(ctx context.Context, system, user string, history []Turn) (<-chan string, <-chan error) {
	contentChan := make(chan string, 100)
	errorChan := make(chan error, 1)

	log := logging.Get(logging.CategoryProvider)

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
			errorChan <- fmt.Errorf("gemini: API key not configured")
			return
		}

		h.throttle()

		jsonData, err := json.Marshal(h.buildRequest(system, user, history))
		if err != nil {
			errorChan <- fmt.Errorf("failed to marshal request: %w", err)
			return
		}

		url := fmt.Sprintf("%s/models/%s:streamGenerateContent?alt=sse&key=%s", h.baseURL, h.model, h.apiKey)
		req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonData))
		if err != nil {
			errorChan <- fmt.Errorf("failed to create request: %w", err)
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "text/event-stream")

		resp, err := h.httpClient.Do(req)
		if err != nil {
			errorChan <- fmt.Errorf("request failed: %w", err)
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			errorChan <- fmt.Errorf("gemini request failed with status %d: %s", resp.StatusCode, string(body))
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
			if data == "" || data == "[DONE]" {
				continue
			}

			var chunk geminiResponse
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				continue
			}
			if chunk.Error != nil {
				errorChan <- fmt.Errorf("API error: %s", chunk.Error.Message)
				return
			}
			for _, cand := range chunk.Candidates {
				for _, p := range cand.Content.Parts {
					if p.Text == "" {
						continue
					}
					select {
					case contentChan <- p.Text:
					case <-ctx.Done():
						errorChan <- ctx.Err()
						return
					}
				}
			}
		}
		if err := scanner.Err(); err != nil {
			log.Error("[gemini] GenerateStream: stream error after %v: %v", time.Since(startTime), err)
			errorChan <- fmt.Errorf("stream error: %w", err)
			return
		}
		log.Info("[gemini] GenerateStream: completed in %v", time.Since(startTime))
	}()

	return contentChan, errorChan
}
