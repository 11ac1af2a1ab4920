// Package clients implements the reasoning capability on top of the LLM
// backends the project supports.
package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Request is one completion call.
type Request struct {
	System string
	Prompt string
	// Model overrides the backend default when set.
	Model string
	// JSON asks the backend for a JSON-only answer.
	JSON bool
}

// Completer is the minimal contract every LLM backend satisfies.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Reasoner formulates search queries and synthesizes findings with any
// Completer. Query generation is validated and retried.
type Reasoner struct {
	LLM    Completer
	Logger *slog.Logger

	// QueryModel and SynthesisModel override the backend default model for
	// the two kinds of calls.
	QueryModel     string
	SynthesisModel string

	MaxRetries int
	Backoff    time.Duration
}

func NewReasoner(llm Completer) *Reasoner {
	return &Reasoner{
		LLM:        llm,
		Logger:     slog.Default(),
		MaxRetries: 3,
		Backoff:    time.Second,
	}
}

var errEmptyAnswer = errors.New("llm returned an empty answer")

// GenerateQueries asks for a JSON list of search queries for the given role.
func (r *Reasoner) GenerateQueries(ctx context.Context, role, contextText string) ([]string, error) {
	var queries []string
	_, err := r.generateWithRetry(ctx, Request{
		System: role + "\n\nGenerate 3 to 5 specific web search queries that will gather evidence for your area of focus.\n\n# Response Format:\n\n" + SearchQueriesSchema(),
		Prompt: contextText,
		Model:  r.QueryModel,
		JSON:   true,
	}, func(content string) error {
		parsed, err := ParseQueries(content)
		if err != nil {
			return err
		}
		queries = parsed
		return nil
	})
	if err != nil {
		return nil, err
	}
	r.logger().Debug("Generated queries", "count", len(queries))
	return queries, nil
}

// Synthesize produces free text for the role from content.
func (r *Reasoner) Synthesize(ctx context.Context, role, content string) (string, error) {
	out, err := r.LLM.Complete(ctx, Request{System: role, Prompt: content, Model: r.SynthesisModel})
	if err != nil {
		return "", fmt.Errorf("llm generation failed: %w", err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", errEmptyAnswer
	}
	return out, nil
}

// generateWithRetry calls the backend until validator accepts the answer or
// MaxRetries attempts have failed. The wait grows linearly between attempts.
func (r *Reasoner) generateWithRetry(ctx context.Context, req Request, validator func(string) error) (string, error) {
	maxRetries := r.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 1
	}
	var lastErr error

	for i := 0; i < maxRetries; i++ {
		if i > 0 {
			r.logger().Warn("Retrying LLM generation", "attempt", i+1, "last_error", lastErr)
			if err := sleepCtx(ctx, r.Backoff*time.Duration(i)); err != nil {
				return "", err
			}
		}

		content, err := r.LLM.Complete(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				return "", err
			}
			lastErr = fmt.Errorf("llm generation failed: %w", err)
			continue
		}
		if err := validator(content); err != nil {
			lastErr = fmt.Errorf("validation failed: %w", err)
			continue
		}
		return content, nil
	}

	return "", fmt.Errorf("operation failed after %d retries: %w", maxRetries, lastErr)
}

func (r *Reasoner) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// SearchQueriesSchema describes the expected query-list answer.
func SearchQueriesSchema() string {
	return `Return the JSON object directly without any formatting or additional text. The JSON object should have the following structure as defined in the schema. Make sure to answer in valid json and include all necessary properties:{
  "type": "object",
  "properties": {
    "queries": {
      "type": "array",
      "items": {
        "type": "string"
      },
      "description": "List of specific web search queries"
    }
  },
  "required": ["queries"]
}`
}

// ParseQueries accepts {"queries": [...]} or a bare JSON array, optionally
// wrapped in a markdown code fence. Blank and duplicate queries are dropped.
func ParseQueries(content string) ([]string, error) {
	content = stripCodeFence(content)

	var raw []string
	var obj struct {
		Queries []string `json:"queries"`
	}
	if err := json.Unmarshal([]byte(content), &obj); err == nil {
		raw = obj.Queries
	} else if errArr := json.Unmarshal([]byte(content), &raw); errArr != nil {
		return nil, fmt.Errorf("json parse error: %w (content: %s)", err, content)
	}

	seen := make(map[string]bool, len(raw))
	var queries []string
	for _, q := range raw {
		q = strings.TrimSpace(q)
		if q == "" || seen[q] {
			continue
		}
		seen[q] = true
		queries = append(queries, q)
	}
	if len(queries) == 0 {
		return nil, errors.New("empty queries list")
	}
	return queries, nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
