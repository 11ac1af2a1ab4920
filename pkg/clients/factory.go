package clients

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mikeboe/market-research/pkg/config"
)

// NewCompleter builds the backend named by cfg.LLMBackend.
func NewCompleter(ctx context.Context, cfg *config.Config) (Completer, error) {
	backend := backendName(cfg.LLMBackend)
	model := compatibleModel(backend, cfg.ReasoningModel)
	switch backend {
	case "googleai":
		llm, err := GoogleAI(ctx, cfg.GoogleApiKey, ModelType(model))
		if err != nil {
			return nil, err
		}
		return &LangChain{LLM: llm}, nil
	case "anthropic":
		llm, err := AnthropicAI(cfg.AnthropicApiKey, ModelType(model))
		if err != nil {
			return nil, err
		}
		return &LangChain{LLM: llm}, nil
	case "genai":
		return NewGenAI(ctx, cfg.GoogleApiKey, model)
	case "ollama":
		return NewOllama(cfg.OllamaHost, model)
	default:
		return nil, fmt.Errorf("unsupported LLM backend: %s", cfg.LLMBackend)
	}
}

// NewReasonerFromConfig wires a Reasoner for the configured backend. Query
// generation uses the fast model; synthesis uses the reasoning model.
func NewReasonerFromConfig(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Reasoner, error) {
	llm, err := NewCompleter(ctx, cfg)
	if err != nil {
		return nil, err
	}
	r := NewReasoner(llm)
	if logger != nil {
		r.Logger = logger
	}
	backend := backendName(cfg.LLMBackend)
	r.QueryModel = compatibleModel(backend, cfg.FastModel)
	r.SynthesisModel = compatibleModel(backend, cfg.ReasoningModel)
	return r, nil
}

func backendName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "googleai"
	}
	return s
}

// compatibleModel drops Gemini model names configured for a non-Google
// backend so that the backend default applies instead.
func compatibleModel(backend, model string) string {
	model = strings.TrimSpace(model)
	isGemini := strings.HasPrefix(strings.ToLower(model), "gemini-")
	switch backend {
	case "googleai", "genai":
		return model
	default:
		if isGemini {
			return ""
		}
		return model
	}
}
