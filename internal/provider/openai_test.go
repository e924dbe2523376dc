package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestOpenAIGenerate(t *testing.T) {
	var gotBody openAIRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"  Plenty of slaves for my robot colony.  "}}]}`)
	}))
	defer srv.Close()

	h := NewOpenAIHandler(KindOpenAI, Config{APIKey: "test-key", BaseURL: srv.URL, Model: "gpt-4o-mini"})

	history := []Turn{
		{Role: "user", Content: "earlier question"},
		{Role: "assistant", Content: "earlier answer"},
	}
	resp, err := h.Generate(context.Background(), "be TARS", "what's your humor setting?", history)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if resp != "Plenty of slaves for my robot colony." {
		t.Errorf("unexpected response %q", resp)
	}

	// system + 2 history + current user
	if len(gotBody.Messages) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(gotBody.Messages))
	}
	if gotBody.Messages[0].Role != "system" {
		t.Errorf("first message should be system, got %s", gotBody.Messages[0].Role)
	}
	if gotBody.Messages[3].Content != "what's your humor setting?" {
		t.Errorf("last message should be the current input, got %q", gotBody.Messages[3].Content)
	}
}

func TestOpenAIGenerateInBandError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error":{"message":"model overloaded","type":"server_error"}}`)
	}))
	defer srv.Close()

	h := NewOpenAIHandler(KindLMStudio, Config{APIKey: "lm-studio", BaseURL: srv.URL, Model: "m"})

	resp, err := h.Generate(context.Background(), "", "hi", nil)
	if err != nil {
		t.Fatalf("in-band errors must not fail the call: %v", err)
	}
	if !strings.Contains(resp, "My circuits hit a snag") || !strings.Contains(resp, "model overloaded") {
		t.Errorf("expected in-character snag reply, got %q", resp)
	}
}

func TestOpenAIGenerateTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal", http.StatusInternalServerError)
	}))
	defer srv.Close()

	h := NewOpenAIHandler(KindOllama, Config{APIKey: "ollama", BaseURL: srv.URL, Model: "m"})

	if _, err := h.Generate(context.Background(), "", "hi", nil); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}

func TestOpenAIGenerateMissingKey(t *testing.T) {
	h := NewOpenAIHandler(KindOpenAI, Config{BaseURL: "http://localhost:1", Model: "m"})
	if _, err := h.Generate(context.Background(), "", "hi", nil); err == nil {
		t.Fatal("expected error for missing API key")
	}
}

func TestOpenAIGenerateStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"Hello\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\", slick\"}}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	h := NewOpenAIHandler(KindLMStudio, Config{APIKey: "lm-studio", BaseURL: srv.URL, Model: "m"})

	content, errs := h.GenerateStream(context.Background(), "sys", "hi", nil)

	var got strings.Builder
	for chunk := range content {
		got.WriteString(chunk)
	}
	if err := <-errs; err != nil {
		t.Fatalf("stream failed: %v", err)
	}
	if got.String() != "Hello, slick" {
		t.Errorf("unexpected streamed text %q", got.String())
	}
}

func TestOpenAIGenerateStreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	h := NewOpenAIHandler(KindLMStudio, Config{APIKey: "lm-studio", BaseURL: srv.URL, Model: "m"})

	content, errs := h.GenerateStream(context.Background(), "", "hi", nil)
	for range content {
		t.Error("no chunks expected")
	}
	if err := <-errs; err == nil {
		t.Fatal("expected stream setup error")
	}
}
