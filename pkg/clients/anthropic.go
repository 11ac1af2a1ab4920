package clients

import (
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/llms/anthropic"
)

const (
	Claude4Sonnet ModelType = "claude-sonnet-4-20250514"
	Claude4Opus   ModelType = "claude-opus-4-20250514"
	Claude35Haiku ModelType = "claude-3-5-haiku-20241022"
)

// AnthropicAI creates a langchaingo Claude client.
func AnthropicAI(apiKey string, model ModelType) (*anthropic.LLM, error) {
	if apiKey == "" {
		return nil, errors.New("ANTHROPIC_API_KEY is not set")
	}
	if model == "" {
		model = Claude4Sonnet
	}
	llm, err := anthropic.New(anthropic.WithToken(apiKey), anthropic.WithModel(string(model)))
	if err != nil {
		return nil, fmt.Errorf("anthropic client init: %w", err)
	}
	return llm, nil
}
