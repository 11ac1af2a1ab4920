package search

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/mikeboe/market-research/pkg/research"
)

// Multi queries several backends concurrently and merges their results in
// backend order. Results whose URL (or title, when there is no URL) was
// already seen are dropped. Any backend failure fails the search.
type Multi struct {
	Backends []research.Searcher
	Names    []string
}

func (m *Multi) Search(ctx context.Context, query string) ([]research.SearchResult, error) {
	perBackend := make([][]research.SearchResult, len(m.Backends))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(len(m.Backends))
	for i, b := range m.Backends {
		g.Go(func() error {
			res, err := b.Search(gctx, query)
			if err != nil {
				return fmt.Errorf("%s: %w", m.name(i), err)
			}
			perBackend[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	var merged []research.SearchResult
	for _, res := range perBackend {
		for _, r := range res {
			key := r.URL
			if key == "" {
				key = r.Title
			}
			if seen[key] {
				continue
			}
			seen[key] = true
			merged = append(merged, r)
		}
	}
	return merged, nil
}

func (m *Multi) name(i int) string {
	if i < len(m.Names) {
		return m.Names[i]
	}
	return fmt.Sprintf("backend %d", i)
}
