package clients

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GenAI talks to Gemini through the official SDK. JSON requests are
// constrained with a response schema instead of a prompt-only contract.
type GenAI struct {
	client *genai.Client
	model  string
}

func NewGenAI(ctx context.Context, apiKey, model string) (*GenAI, error) {
	if apiKey == "" {
		return nil, errors.New("GOOGLE_API_KEY is not set")
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini client init: %w", err)
	}
	if strings.TrimSpace(model) == "" {
		model = string(DefaultModel)
	}
	return &GenAI{client: c, model: model}, nil
}

// queriesResponseSchema mirrors SearchQueriesSchema.
func queriesResponseSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"queries": {
				Type:        genai.TypeArray,
				Items:       &genai.Schema{Type: genai.TypeString},
				Description: "List of specific web search queries",
			},
		},
		Required: []string{"queries"},
	}
}

func (g *GenAI) generateConfig(req Request) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if req.System != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.System}}}
	}
	if req.JSON {
		cfg.ResponseMIMEType = "application/json"
		cfg.ResponseSchema = queriesResponseSchema()
	}
	return cfg
}

func (g *GenAI) Complete(ctx context.Context, req Request) (string, error) {
	model := g.model
	if req.Model != "" {
		model = req.Model
	}
	resp, err := g.client.Models.GenerateContent(ctx, model, genai.Text(req.Prompt), g.generateConfig(req))
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("gemini: empty response")
	}
	var out strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		out.WriteString(p.Text)
	}
	return out.String(), nil
}
