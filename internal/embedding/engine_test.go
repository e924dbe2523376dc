package embedding

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOllamaEngineEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		fmt.Fprint(w, `{"embedding":[0.1,0.2,0.3]}`)
	}))
	defer srv.Close()

	e, err := NewOllamaEngine(srv.URL, "nomic-embed-text")
	if err != nil {
		t.Fatalf("NewOllamaEngine failed: %v", err)
	}

	vec, err := e.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(vec) != 3 || vec[0] != 0.1 {
		t.Errorf("unexpected embedding %v", vec)
	}

	if e.Dimensions() != 768 {
		t.Errorf("unexpected dimensions %d", e.Dimensions())
	}
	if e.Name() != "ollama:nomic-embed-text" {
		t.Errorf("unexpected name %s", e.Name())
	}
}

func TestOllamaEngineServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	e, _ := NewOllamaEngine(srv.URL, "missing")
	if _, err := e.Embed(context.Background(), "hello"); err == nil {
		t.Fatal("expected error from server failure")
	}
}

func TestOllamaEngineBatch(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprintf(w, `{"embedding":[%d]}`, calls)
	}))
	defer srv.Close()

	e, _ := NewOllamaEngine(srv.URL, "nomic-embed-text")
	vecs, err := e.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("EmbedBatch failed: %v", err)
	}
	if len(vecs) != 3 || calls != 3 {
		t.Errorf("expected 3 sequential calls, got %d vectors from %d calls", len(vecs), calls)
	}
}

func TestNewEngineUnknownProvider(t *testing.T) {
	if _, err := NewEngine(Config{Provider: "quantum"}); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestNewEngineGenAIRequiresKey(t *testing.T) {
	if _, err := NewEngine(Config{Provider: "genai"}); err == nil {
		t.Error("expected error for missing GenAI key")
	}
}

func TestNewGenAIEngineNormalizesTaskType(t *testing.T) {
	cases := map[string]string{
		"SEMANTIC_SIMILARITY": "SEMANTIC_SIMILARITY",
		"RETRIEVAL_DOCUMENT":  "RETRIEVAL_DOCUMENT",
		"RETRIEVAL_QUERY":     "RETRIEVAL_QUERY",
		"QUESTION_ANSWERING":  "QUESTION_ANSWERING",
		"":                    "SEMANTIC_SIMILARITY",
		"CLASSIFICATION":      "SEMANTIC_SIMILARITY",
	}
	for in, want := range cases {
		eng, err := NewGenAIEngine("test-key", "", in)
		if err != nil {
			t.Fatalf("NewGenAIEngine(%q): %v", in, err)
		}
		if eng.taskType != want {
			t.Errorf("task type for %q: got %q, want %q", in, eng.taskType, want)
		}
		if eng.Name() != "genai:gemini-embedding-001" {
			t.Errorf("unexpected engine name %q", eng.Name())
		}
	}
}
