// Package search implements the evidence-gathering capability.
package search

import (
	"fmt"
	"log/slog"

	"github.com/mikeboe/market-research/pkg/config"
	"github.com/mikeboe/market-research/pkg/research"
)

// NewSearcher builds the backends listed in cfg.SearchBackends. More than
// one backend yields a Multi.
func NewSearcher(cfg *config.Config, logger *slog.Logger) (research.Searcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	names := cfg.SearchBackends
	if len(names) == 0 {
		names = []string{"web"}
	}

	var backends []research.Searcher
	for _, name := range names {
		switch name {
		case "web":
			w := NewWeb(cfg.MaxResultsPerQuery)
			w.Logger = logger
			backends = append(backends, w)
		case "arxiv":
			a := NewArxiv(cfg.MaxResultsPerQuery)
			a.Logger = logger
			backends = append(backends, a)
		default:
			return nil, fmt.Errorf("unsupported search backend: %s", name)
		}
	}

	if len(backends) == 1 {
		return backends[0], nil
	}
	return &Multi{Backends: backends, Names: names}, nil
}
