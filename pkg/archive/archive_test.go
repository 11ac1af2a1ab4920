package archive

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/mikeboe/market-research/pkg/research"
	"github.com/mikeboe/market-research/pkg/vectorstore"
)

type fakeEmbedder struct {
	texts   []string
	queries []string
	err     error
}

func (f *fakeEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.texts = append(f.texts, texts...)
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t))}
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	f.queries = append(f.queries, text)
	return []float32{1}, nil
}

type fakeStore struct {
	added      []vectorstore.Document
	lastFilter map[string]any
	lastTopK   int
	results    []vectorstore.SimilaritySearchResult
}

func (f *fakeStore) AddDocuments(_ context.Context, docs []vectorstore.Document) error {
	f.added = append(f.added, docs...)
	return nil
}

func (f *fakeStore) SimilaritySearch(_ context.Context, _ []float32, topK int, filter map[string]any) ([]vectorstore.SimilaritySearchResult, error) {
	f.lastTopK = topK
	f.lastFilter = filter
	return f.results, nil
}

func (f *fakeStore) FindByMetadata(_ context.Context, filter map[string]any) ([]vectorstore.Document, error) {
	f.lastFilter = filter
	var out []vectorstore.Document
	for _, d := range f.added {
		if d.Metadata["run_id"] == filter["run_id"] {
			out = append(out, d)
		}
	}
	return out, nil
}

// paragraphSplitter splits on blank lines.
type paragraphSplitter struct{}

func (paragraphSplitter) SplitText(text string) ([]string, error) {
	return strings.Split(text, "\n\n"), nil
}

func sampleData() map[research.Topic]research.TopicRecord {
	return map[research.Topic]research.TopicRecord{
		research.TopicConsumer: {
			Findings: "Buyers compare range.\n\nPrice matters most.",
		},
		research.TopicMarketTrends: {
			Findings: "Sales doubled.",
			Evidence: []research.SearchResult{
				{Title: "EV sales report", Content: "Q3 sales doubled", URL: "https://example.com/ev"},
				{Title: "", Content: "  "},
			},
		},
	}
}

func TestIndexFindings(t *testing.T) {
	store := &fakeStore{}
	emb := &fakeEmbedder{}
	a := New(store, emb, paragraphSplitter{})

	if err := a.IndexFindings(context.Background(), "run-1", "EV market", sampleData()); err != nil {
		t.Fatalf("IndexFindings() error = %v", err)
	}

	wantContent := []string{"Sales doubled.", "EV sales report\nQ3 sales doubled", "Buyers compare range.", "Price matters most."}
	var got []string
	for _, d := range store.added {
		got = append(got, d.Content)
		if d.Metadata["run_id"] != "run-1" || d.Metadata["query"] != "EV market" {
			t.Errorf("document %q missing run metadata: %v", d.Content, d.Metadata)
		}
		if len(d.Embedding) != 1 || d.Embedding[0] != float32(len(d.Content)) {
			t.Errorf("document %q has embedding %v", d.Content, d.Embedding)
		}
	}
	if !reflect.DeepEqual(got, wantContent) {
		t.Errorf("documents = %q, want %q", got, wantContent)
	}

	ev := store.added[1].Metadata
	if ev["kind"] != KindEvidence || ev["source"] != "https://example.com/ev" || ev["topic"] != "market_trends" {
		t.Errorf("evidence metadata = %v", ev)
	}
	if store.added[3].Metadata["chunk"] != 1 || store.added[3].Metadata["kind"] != KindFinding {
		t.Errorf("second consumer chunk metadata = %v", store.added[3].Metadata)
	}
}

func TestIndexFindingsEmbedFailure(t *testing.T) {
	boom := errors.New("quota")
	store := &fakeStore{}
	a := New(store, &fakeEmbedder{err: boom}, paragraphSplitter{})

	err := a.IndexFindings(context.Background(), "run-1", "q", sampleData())
	if !errors.Is(err, boom) {
		t.Fatalf("IndexFindings() error = %v, want %v", err, boom)
	}
	if len(store.added) != 0 {
		t.Errorf("stored %d documents after a failed embed", len(store.added))
	}
}

func TestIndexFindingsNothingToStore(t *testing.T) {
	store := &fakeStore{}
	emb := &fakeEmbedder{}
	a := New(store, emb, paragraphSplitter{})

	if err := a.IndexFindings(context.Background(), "run-1", "q", nil); err != nil {
		t.Fatalf("IndexFindings() error = %v", err)
	}
	if len(emb.texts) != 0 || len(store.added) != 0 {
		t.Errorf("empty data still embedded or stored")
	}
}

func TestSearch(t *testing.T) {
	store := &fakeStore{results: []vectorstore.SimilaritySearchResult{{
		Document: vectorstore.Document{
			Content:  "Sales doubled.",
			Metadata: map[string]any{"run_id": "run-1", "topic": "market_trends", "kind": KindFinding},
		},
		Score: 0.91,
	}}}
	emb := &fakeEmbedder{}
	a := New(store, emb, paragraphSplitter{})

	filter := map[string]any{"topic": "market_trends"}
	hits, err := a.Search(context.Background(), "ev growth", 0, filter)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if store.lastTopK != 5 {
		t.Errorf("topK = %d, want default 5", store.lastTopK)
	}
	if !reflect.DeepEqual(store.lastFilter, filter) {
		t.Errorf("filter = %v", store.lastFilter)
	}
	if len(hits) != 1 || hits[0].RunID != "run-1" || hits[0].Topic != "market_trends" || hits[0].Score != 0.91 {
		t.Errorf("hits = %+v", hits)
	}
	if !reflect.DeepEqual(emb.queries, []string{"ev growth"}) {
		t.Errorf("embedded queries = %v", emb.queries)
	}

	if _, err := a.Search(context.Background(), "  ", 3, nil); !errors.Is(err, research.ErrInvalidInput) {
		t.Errorf("Search(blank) error = %v, want ErrInvalidInput", err)
	}
}

func TestRunFindings(t *testing.T) {
	store := &fakeStore{}
	a := New(store, &fakeEmbedder{}, paragraphSplitter{})
	ctx := context.Background()
	if err := a.IndexFindings(ctx, "run-1", "q", sampleData()); err != nil {
		t.Fatal(err)
	}
	if err := a.IndexFindings(ctx, "run-2", "q", map[research.Topic]research.TopicRecord{
		research.TopicCompetitor: {Findings: "Other run."},
	}); err != nil {
		t.Fatal(err)
	}

	hits, err := a.RunFindings(ctx, "run-2")
	if err != nil {
		t.Fatalf("RunFindings() error = %v", err)
	}
	if len(hits) != 1 || hits[0].Content != "Other run." || hits[0].Topic != "competitor" {
		t.Errorf("hits = %+v", hits)
	}
}

func TestUnconfiguredArchive(t *testing.T) {
	var a *Archive
	if _, err := a.Search(context.Background(), "q", 1, nil); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Search() error = %v, want ErrNotConfigured", err)
	}
	if err := a.IndexFindings(context.Background(), "r", "q", nil); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("IndexFindings() error = %v, want ErrNotConfigured", err)
	}
}
