package search

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/mikeboe/market-research/pkg/config"
	"github.com/mikeboe/market-research/pkg/research"
)

const atomFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <title>Battery Cost Curves
      and EV Adoption</title>
    <summary>  We model adoption of
      electric vehicles.  </summary>
    <published>2026-01-02T00:00:00Z</published>
    <link href="http://arxiv.org/abs/2601.00001v1" rel="alternate" type="text/html"/>
    <link title="pdf" href="http://arxiv.org/pdf/2601.00001v1" rel="related" type="application/pdf"/>
  </entry>
  <entry>
    <title>Charging Networks</title>
    <summary>Infrastructure.</summary>
    <link title="pdf" href="http://arxiv.org/pdf/2601.00002v1" rel="related" type="application/pdf"/>
  </entry>
</feed>`

func TestArxivSearch(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("search_query")
		if r.URL.Query().Get("max_results") != "2" {
			t.Errorf("max_results = %q", r.URL.Query().Get("max_results"))
		}
		_, _ = w.Write([]byte(atomFeed))
	}))
	defer srv.Close()

	a := NewArxiv(2)
	a.BaseURL = srv.URL

	got, err := a.Search(context.Background(), "ev adoption")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if gotQuery != "all:ev adoption" {
		t.Errorf("search_query = %q", gotQuery)
	}
	want := []research.SearchResult{
		{
			Title:   "Battery Cost Curves and EV Adoption",
			Content: "Published 2026-01-02T00:00:00Z. We model adoption of electric vehicles.",
			URL:     "http://arxiv.org/abs/2601.00001v1",
		},
		{Title: "Charging Networks", Content: "Infrastructure.", URL: "http://arxiv.org/pdf/2601.00002v1"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Search() = %+v, want %+v", got, want)
	}
}

func TestArxivSearchStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	a := NewArxiv(2)
	a.BaseURL = srv.URL
	if _, err := a.Search(context.Background(), "x"); err == nil || !strings.Contains(err.Error(), "503") {
		t.Errorf("Search() error = %v", err)
	}
}

const ddgPage = `<html><body>
<div class="result results_links result--ad">
  <a class="result__a" href="https://ads.example.com">Sponsored</a>
</div>
<div class="result results_links">
  <h2><a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fexample.com%2Fev%2Dreport&amp;rut=abc">EV Market
   Report 2026</a></h2>
  <a class="result__snippet">Sales grew   35% year over year.</a>
</div>
<div class="result results_links">
  <h2><a class="result__a" href="https://direct.example.org/page">Direct Link</a></h2>
  <a class="result__snippet">Second snippet.</a>
</div>
<div class="result results_links">
  <h2><a class="result__a" href="https://third.example.org">Third</a></h2>
</div>
</body></html>`

func TestWebSearch(t *testing.T) {
	var gotQ, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQ = r.URL.Query().Get("q")
		gotUA = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte(ddgPage))
	}))
	defer srv.Close()

	web := NewWeb(2)
	web.BaseURL = srv.URL

	got, err := web.Search(context.Background(), "ev market europe")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if gotQ != "ev market europe" || gotUA == "" {
		t.Errorf("request q=%q ua=%q", gotQ, gotUA)
	}
	want := []research.SearchResult{
		{Title: "EV Market Report 2026", Content: "Sales grew 35% year over year.", URL: "https://example.com/ev-report"},
		{Title: "Direct Link", Content: "Second snippet.", URL: "https://direct.example.org/page"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Search() = %+v, want %+v", got, want)
	}
}

type stubSearcher struct {
	results []research.SearchResult
	err     error
}

func (s stubSearcher) Search(context.Context, string) ([]research.SearchResult, error) {
	return s.results, s.err
}

func TestMultiMergesInBackendOrder(t *testing.T) {
	m := &Multi{Backends: []research.Searcher{
		stubSearcher{results: []research.SearchResult{{Title: "A", URL: "u1"}, {Title: "B"}}},
		stubSearcher{results: []research.SearchResult{{Title: "A again", URL: "u1"}, {Title: "C", URL: "u3"}, {Title: "B"}}},
	}}

	got, err := m.Search(context.Background(), "q")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	want := []research.SearchResult{{Title: "A", URL: "u1"}, {Title: "B"}, {Title: "C", URL: "u3"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Search() = %+v, want %+v", got, want)
	}
}

func TestMultiPropagatesFailure(t *testing.T) {
	boom := errors.New("boom")
	m := &Multi{
		Backends: []research.Searcher{stubSearcher{}, stubSearcher{err: boom}},
		Names:    []string{"web", "arxiv"},
	}
	_, err := m.Search(context.Background(), "q")
	if !errors.Is(err, boom) || !strings.HasPrefix(err.Error(), "arxiv: ") {
		t.Errorf("Search() error = %v", err)
	}
}

func TestNewSearcher(t *testing.T) {
	tests := []struct {
		name     string
		backends []string
		wantType string
		wantErr  bool
	}{
		{"Default is web", nil, "*search.Web", false},
		{"Single arxiv", []string{"arxiv"}, "*search.Arxiv", false},
		{"Both", []string{"web", "arxiv"}, "*search.Multi", false},
		{"Unknown", []string{"bing"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewSearcher(&config.Config{SearchBackends: tt.backends, MaxResultsPerQuery: 3}, nil)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewSearcher() error = %v", err)
			}
			if err == nil && reflect.TypeOf(s).String() != tt.wantType {
				t.Errorf("NewSearcher() type = %T, want %s", s, tt.wantType)
			}
		})
	}
}
