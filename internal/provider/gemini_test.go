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

func TestGeminiGenerate(t *testing.T) {
	var gotBody geminiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, ":generateContent") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if key := r.URL.Query().Get("key"); key != "g-key" {
			t.Errorf("unexpected key %q", key)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		fmt.Fprint(w, `{"candidates":[{"content":{"parts":[{"text":"Honesty setting: "},{"text":"ninety percent."}],"role":"model"}}]}`)
	}))
	defer srv.Close()

	h := NewGeminiHandler(Config{APIKey: "g-key", BaseURL: srv.URL, Model: "gemini-2.0-flash"})

	history := []Turn{{Role: "assistant", Content: "prior reply"}}
	resp, err := h.Generate(context.Background(), "be TARS", "honesty?", history)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if resp != "Honesty setting: ninety percent." {
		t.Errorf("unexpected response %q", resp)
	}

	if gotBody.SystemInstruction == nil || gotBody.SystemInstruction.Parts[0].Text != "be TARS" {
		t.Error("system instruction not forwarded")
	}
	// assistant history turns must be renamed to model
	if gotBody.Contents[0].Role != "model" {
		t.Errorf("history role not mapped, got %q", gotBody.Contents[0].Role)
	}
	if gotBody.Contents[len(gotBody.Contents)-1].Role != "user" {
		t.Error("current input must be the final user content")
	}
}

func TestGeminiGenerateInBandError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error":{"code":500,"message":"quota exhausted","status":"RESOURCE_EXHAUSTED"}}`)
	}))
	defer srv.Close()

	h := NewGeminiHandler(Config{APIKey: "g-key", BaseURL: srv.URL})

	resp, err := h.Generate(context.Background(), "", "hi", nil)
	if err != nil {
		t.Fatalf("in-band errors must not fail the call: %v", err)
	}
	if !strings.Contains(resp, "quota exhausted") {
		t.Errorf("expected snag reply with detail, got %q", resp)
	}
}

func TestGeminiGenerateStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, ":streamGenerateContent") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"chunk one \"}]}}]}\n\n")
		fmt.Fprint(w, "data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"chunk two\"}]}}]}\n\n")
	}))
	defer srv.Close()

	h := NewGeminiHandler(Config{APIKey: "g-key", BaseURL: srv.URL})

	content, errs := h.GenerateStream(context.Background(), "", "hi", nil)
	var got strings.Builder
	for chunk := range content {
		got.WriteString(chunk)
	}
	if err := <-errs; err != nil {
		t.Fatalf("stream failed: %v", err)
	}
	if got.String() != "chunk one chunk two" {
		t.Errorf("unexpected streamed text %q", got.String())
	}
}

func TestGeminiMissingKey(t *testing.T) {
	h := NewGeminiHandler(Config{})
	if _, err := h.Generate(context.Background(), "", "hi", nil); err == nil {
		t.Fatal("expected error for missing API key")
	}
}
