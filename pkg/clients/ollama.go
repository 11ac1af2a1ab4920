package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
)

const ollamaDefault = "llama3.2"

// Ollama runs against a local Ollama server.
type Ollama struct {
	client *api.Client
	model  string
}

// NewOllama connects to host, or to OLLAMA_HOST when host is empty.
func NewOllama(host, model string) (*Ollama, error) {
	var c *api.Client
	if strings.TrimSpace(host) == "" {
		var err error
		if c, err = api.ClientFromEnvironment(); err != nil {
			return nil, fmt.Errorf("ollama: %w", err)
		}
	} else {
		u, err := url.Parse(host)
		if err != nil {
			return nil, fmt.Errorf("ollama: bad host %q: %w", host, err)
		}
		c = api.NewClient(u, http.DefaultClient)
	}
	if strings.TrimSpace(model) == "" {
		model = ollamaDefault
	}
	return &Ollama{client: c, model: model}, nil
}

func (o *Ollama) Complete(ctx context.Context, req Request) (string, error) {
	model := o.model
	if req.Model != "" {
		model = req.Model
	}
	stream := false
	gr := &api.GenerateRequest{
		Model:  model,
		System: req.System,
		Prompt: req.Prompt,
		Stream: &stream,
	}
	if req.JSON {
		gr.Format = json.RawMessage(`"json"`)
		gr.Prompt += "\n\nReturn ONLY strict JSON. No extra text."
	}

	var out strings.Builder
	if err := o.client.Generate(ctx, gr, func(resp api.GenerateResponse) error {
		out.WriteString(resp.Response)
		return nil
	}); err != nil {
		return "", fmt.Errorf("ollama generate: %w", err)
	}
	return out.String(), nil
}
