package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestOllamaGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		var req ollamaChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Stream {
			t.Error("expected non-streaming request")
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"message": map[string]any{"role": "assistant", "content": "local says hi"},
			"done":    true,
		})
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL, 5*time.Second, 2, 5*time.Millisecond, 20*time.Millisecond)
	resp, err := c.Generate(context.Background(), GenerateRequest{
		Model:    "llama3.1",
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if resp.Text() != "local says hi" {
		t.Fatalf("text: got %q", resp.Text())
	}
}

func TestOllamaGenerateValidation(t *testing.T) {
	c := NewOllamaClient("", time.Second, 1, time.Millisecond, time.Millisecond)
	if _, err := c.Generate(context.Background(), GenerateRequest{}); err == nil {
		t.Fatal("expected empty-model error")
	}
	if _, err := c.Generate(context.Background(), GenerateRequest{Model: "m"}); err == nil {
		t.Fatal("expected empty-messages error")
	}
}

func TestRuntimeRegistry(t *testing.T) {
	if _, ok := GetRuntime(ProviderOpenRouter, RuntimeConfig{APIKey: "k"}); !ok {
		t.Fatal("openrouter runtime not registered")
	}
	if _, ok := GetRuntime(ProviderOllama, RuntimeConfig{}); !ok {
		t.Fatal("ollama runtime not registered")
	}
	if _, ok := GetRuntime("nope", RuntimeConfig{}); ok {
		t.Fatal("unexpected runtime for unknown provider")
	}
}
