// Package archive keeps the findings of finished research runs in a pgvector
// table so later runs and the API can search them semantically.
package archive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mikeboe/market-research/pkg/config"
	"github.com/mikeboe/market-research/pkg/embeddings"
	"github.com/mikeboe/market-research/pkg/research"
	"github.com/mikeboe/market-research/pkg/splitter"
	"github.com/mikeboe/market-research/pkg/vectorstore"
)

// Document kinds stored in metadata.
const (
	KindFinding  = "finding"
	KindEvidence = "evidence"
)

// ErrNotConfigured is returned by Search when the archive has no backing store.
var ErrNotConfigured = errors.New("findings archive not configured")

type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

type VectorStore interface {
	AddDocuments(ctx context.Context, docs []vectorstore.Document) error
	SimilaritySearch(ctx context.Context, queryEmbedding []float32, topK int, filter map[string]any) ([]vectorstore.SimilaritySearchResult, error)
	FindByMetadata(ctx context.Context, filter map[string]any) ([]vectorstore.Document, error)
}

type Splitter interface {
	SplitText(text string) ([]string, error)
}

// Archive implements research.FindingsIndexer.
type Archive struct {
	Store    VectorStore
	Embedder Embedder
	Splitter Splitter
	Logger   *slog.Logger
}

func New(store VectorStore, embedder Embedder, splitter Splitter) *Archive {
	return &Archive{
		Store:    store,
		Embedder: embedder,
		Splitter: splitter,
		Logger:   slog.Default(),
	}
}

// NewFromConfig wires Gemini embeddings, a markdown splitter and the pgvector
// table named by cfg.FindingsCollection. The table must already exist.
func NewFromConfig(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, logger *slog.Logger) (*Archive, error) {
	if cfg.GoogleApiKey == "" {
		return nil, errors.New("findings archive requires GOOGLE_API_KEY for embeddings")
	}
	embedder, err := embeddings.NewGoogleEmbedder(ctx, cfg.EmbeddingModel, cfg.GoogleApiKey)
	if err != nil {
		return nil, err
	}
	store, err := vectorstore.NewPGVectorStore(pool, cfg.FindingsCollection)
	if err != nil {
		return nil, err
	}
	a := New(store, embedder, splitter.NewMarkdownTextSplitter(cfg.ChunkSize, cfg.ChunkOverlap))
	if logger != nil {
		a.Logger = logger
	}
	return a, nil
}

var _ research.FindingsIndexer = (*Archive)(nil)

// IndexFindings chunks each topic's findings, adds one document per piece of
// evidence, embeds everything and stores it tagged with the run.
func (a *Archive) IndexFindings(ctx context.Context, runID, query string, data map[research.Topic]research.TopicRecord) error {
	if a == nil || a.Store == nil {
		return ErrNotConfigured
	}

	docs, err := a.documents(runID, query, data)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return nil
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Content
	}
	vecs, err := a.Embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed findings: %w", err)
	}
	if len(vecs) != len(docs) {
		return fmt.Errorf("embed findings: got %d vectors for %d chunks", len(vecs), len(docs))
	}
	for i := range docs {
		docs[i].Embedding = vecs[i]
	}

	if err := a.Store.AddDocuments(ctx, docs); err != nil {
		return fmt.Errorf("store findings: %w", err)
	}
	a.logger().Info("Indexed findings", "run_id", runID, "documents", len(docs))
	return nil
}

func (a *Archive) documents(runID, query string, data map[research.Topic]research.TopicRecord) ([]vectorstore.Document, error) {
	var docs []vectorstore.Document
	for _, topic := range research.Topics {
		rec, ok := data[topic]
		if !ok {
			continue
		}
		base := map[string]any{
			"run_id": runID,
			"query":  query,
			"topic":  string(topic),
		}

		if strings.TrimSpace(rec.Findings) != "" {
			chunks, err := a.Splitter.SplitText(rec.Findings)
			if err != nil {
				return nil, fmt.Errorf("split %s findings: %w", topic, err)
			}
			for i, chunk := range chunks {
				if strings.TrimSpace(chunk) == "" {
					continue
				}
				meta := with(base, "kind", KindFinding)
				meta["chunk"] = i
				docs = append(docs, vectorstore.Document{Content: chunk, Metadata: meta})
			}
		}

		for _, ev := range rec.Evidence {
			content := strings.TrimSpace(ev.Title + "\n" + ev.Content)
			if content == "" {
				continue
			}
			meta := with(base, "kind", KindEvidence)
			meta["title"] = ev.Title
			if ev.URL != "" {
				meta["source"] = ev.URL
			}
			docs = append(docs, vectorstore.Document{Content: content, Metadata: meta})
		}
	}
	return docs, nil
}

// Hit is one search match.
type Hit struct {
	Content string         `json:"content"`
	Score   float64        `json:"score"`
	RunID   string         `json:"run_id,omitempty"`
	Topic   string         `json:"topic,omitempty"`
	Kind    string         `json:"kind,omitempty"`
	Source  string         `json:"source,omitempty"`
	Meta    map[string]any `json:"metadata,omitempty"`
}

// Search returns the topK archived chunks closest to query. filter follows
// the vector store's metadata filter syntax and may be nil.
func (a *Archive) Search(ctx context.Context, query string, topK int, filter map[string]any) ([]Hit, error) {
	if a == nil || a.Store == nil {
		return nil, ErrNotConfigured
	}
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty search query", research.ErrInvalidInput)
	}
	if topK <= 0 {
		topK = 5
	}

	vec, err := a.Embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	results, err := a.Store.SimilaritySearch(ctx, vec, topK, filter)
	if err != nil {
		return nil, err
	}

	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		hits = append(hits, toHit(r.Document, r.Score))
	}
	return hits, nil
}

// RunFindings returns every archived document of one run.
func (a *Archive) RunFindings(ctx context.Context, runID string) ([]Hit, error) {
	if a == nil || a.Store == nil {
		return nil, ErrNotConfigured
	}
	docs, err := a.Store.FindByMetadata(ctx, map[string]any{"run_id": runID})
	if err != nil {
		return nil, err
	}
	hits := make([]Hit, 0, len(docs))
	for _, d := range docs {
		hits = append(hits, toHit(d, 0))
	}
	return hits, nil
}

func toHit(d vectorstore.Document, score float64) Hit {
	h := Hit{Content: d.Content, Score: score, Meta: d.Metadata}
	h.RunID, _ = d.Metadata["run_id"].(string)
	h.Topic, _ = d.Metadata["topic"].(string)
	h.Kind, _ = d.Metadata["kind"].(string)
	h.Source, _ = d.Metadata["source"].(string)
	return h
}

func with(base map[string]any, key string, value any) map[string]any {
	out := make(map[string]any, len(base)+3)
	for k, v := range base {
		out[k] = v
	}
	out[key] = value
	return out
}

func (a *Archive) logger() *slog.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return slog.Default()
}
