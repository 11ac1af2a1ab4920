package clients

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mikeboe/market-research/pkg/config"
	"google.golang.org/genai"
)

func TestOllamaComplete(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/x-ndjson")
		_, _ = w.Write([]byte(`{"model":"llama3.2","response":"{\"queries\":[\"a\"]}","done":true}` + "\n"))
	}))
	defer srv.Close()

	o, err := NewOllama(srv.URL, "")
	if err != nil {
		t.Fatal(err)
	}
	out, err := o.Complete(context.Background(), Request{System: "sys", Prompt: "user", JSON: true})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if out != `{"queries":["a"]}` {
		t.Errorf("Complete() = %q", out)
	}
	if got["model"] != ollamaDefault || got["system"] != "sys" || got["format"] != "json" || got["stream"] != false {
		t.Errorf("request body = %v", got)
	}
}

func TestGenAIConfig(t *testing.T) {
	g := &GenAI{model: "gemini-test"}

	cfg := g.generateConfig(Request{System: "sys", JSON: true})
	if cfg.SystemInstruction == nil || cfg.SystemInstruction.Parts[0].Text != "sys" {
		t.Errorf("SystemInstruction = %+v", cfg.SystemInstruction)
	}
	if cfg.ResponseMIMEType != "application/json" || cfg.ResponseSchema == nil {
		t.Fatalf("JSON request not constrained: %+v", cfg)
	}
	if items := cfg.ResponseSchema.Properties["queries"]; items == nil || items.Type != genai.TypeArray {
		t.Errorf("queries schema = %+v", items)
	}

	plain := g.generateConfig(Request{Prompt: "x"})
	if plain.ResponseMIMEType != "" || plain.SystemInstruction != nil {
		t.Errorf("plain request config = %+v", plain)
	}
}

func TestNewCompleterErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.Config
	}{
		{"Unknown backend", config.Config{LLMBackend: "mystery"}},
		{"Google without key", config.Config{LLMBackend: "googleai"}},
		{"Anthropic without key", config.Config{LLMBackend: "anthropic"}},
		{"GenAI without key", config.Config{LLMBackend: "genai"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewCompleter(context.Background(), &tt.cfg); err == nil {
				t.Errorf("NewCompleter() error = nil")
			}
		})
	}
}

func TestCompatibleModel(t *testing.T) {
	tests := []struct {
		backend, model, want string
	}{
		{"googleai", "gemini-3-pro-preview", "gemini-3-pro-preview"},
		{"genai", "gemini-3-flash-preview", "gemini-3-flash-preview"},
		{"anthropic", "gemini-3-pro-preview", ""},
		{"anthropic", "claude-opus-4-20250514", "claude-opus-4-20250514"},
		{"ollama", "gemini-3-flash-preview", ""},
		{"ollama", " llama3.2 ", "llama3.2"},
	}
	for _, tt := range tests {
		if got := compatibleModel(tt.backend, tt.model); got != tt.want {
			t.Errorf("compatibleModel(%q, %q) = %q, want %q", tt.backend, tt.model, got, tt.want)
		}
	}
}
