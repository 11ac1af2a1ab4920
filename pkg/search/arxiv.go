package search

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mikeboe/market-research/pkg/research"
)

const arxivBaseURL = "https://export.arxiv.org/api/query"

// ArxivEntry struct to hold arXiv entry data
type ArxivEntry struct {
	Title     string      `xml:"title"`
	Summary   string      `xml:"summary"`
	Published string      `xml:"published"`
	Link      []ArxivLink `xml:"link"`
}

// ArxivLink struct to hold arXiv link data
type ArxivLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
	Type string `xml:"type,attr"`
}

// ArxivFeed struct to hold the entire arXiv feed
type ArxivFeed struct {
	XMLName xml.Name     `xml:"feed"`
	Entry   []ArxivEntry `xml:"entry"`
}

// Arxiv searches the arXiv Atom API. Useful for technology-heavy markets
// where papers precede products.
type Arxiv struct {
	Client     *http.Client
	BaseURL    string
	MaxResults int
	Logger     *slog.Logger
}

func NewArxiv(maxResults int) *Arxiv {
	return &Arxiv{
		Client:     &http.Client{Timeout: 20 * time.Second},
		BaseURL:    arxivBaseURL,
		MaxResults: maxResults,
		Logger:     slog.Default(),
	}
}

func (a *Arxiv) Search(ctx context.Context, query string) ([]research.SearchResult, error) {
	maxResults := a.MaxResults
	if maxResults <= 0 {
		maxResults = 5
	}

	params := url.Values{}
	params.Add("search_query", "all:"+query)
	params.Add("max_results", strconv.Itoa(maxResults))
	params.Add("start", "0")
	apiURL := a.BaseURL + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := a.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("arxiv returned %d: %s", resp.StatusCode, string(bodyBytes))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var feed ArxivFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("failed to unmarshal XML: %w", err)
	}

	results := make([]research.SearchResult, 0, len(feed.Entry))
	for _, entry := range feed.Entry {
		title := collapseSpace(entry.Title)
		if title == "" {
			continue
		}
		content := collapseSpace(entry.Summary)
		if entry.Published != "" {
			content = fmt.Sprintf("Published %s. %s", entry.Published, content)
		}
		results = append(results, research.SearchResult{
			Title:   title,
			Content: content,
			URL:     entry.link(),
		})
	}
	a.logger().Debug("arXiv search", "query", query, "results", len(results))
	return results, nil
}

// link prefers the abstract page over the PDF.
func (e ArxivEntry) link() string {
	var pdf string
	for _, l := range e.Link {
		switch {
		case l.Rel == "alternate":
			return l.Href
		case l.Type == "application/pdf" && pdf == "":
			pdf = l.Href
		}
	}
	return pdf
}

func (a *Arxiv) logger() *slog.Logger {
	if a.Logger == nil {
		return slog.Default()
	}
	return a.Logger
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
