package search

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/mikeboe/market-research/pkg/research"
)

const duckDuckGoURL = "https://html.duckduckgo.com/html/"

// Web searches the public web through DuckDuckGo's HTML endpoint.
type Web struct {
	Client     *http.Client
	BaseURL    string
	MaxResults int
	UserAgent  string
	Logger     *slog.Logger
}

func NewWeb(maxResults int) *Web {
	return &Web{
		Client:     &http.Client{Timeout: 20 * time.Second},
		BaseURL:    duckDuckGoURL,
		MaxResults: maxResults,
		UserAgent:  "Mozilla/5.0 (compatible; market-research/1.0)",
		Logger:     slog.Default(),
	}
}

func (w *Web) Search(ctx context.Context, query string) ([]research.SearchResult, error) {
	doc, err := w.fetchDocument(ctx, query)
	if err != nil {
		return nil, err
	}
	results := parseResults(doc, w.MaxResults)
	if w.Logger != nil {
		w.Logger.Debug("Web search", "query", query, "results", len(results))
	}
	return results, nil
}

func (w *Web) fetchDocument(ctx context.Context, query string) (*goquery.Document, error) {
	pageURL := w.BaseURL + "?" + url.Values{"q": {query}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", w.UserAgent)

	resp, err := w.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request search page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return doc, nil
}

func parseResults(doc *goquery.Document, limit int) []research.SearchResult {
	var results []research.SearchResult
	doc.Find(".result").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if s.HasClass("result--ad") {
			return true
		}
		link := s.Find("a.result__a").First()
		title := collapseSpace(link.Text())
		if title == "" {
			return true
		}
		href, _ := link.Attr("href")
		results = append(results, research.SearchResult{
			Title:   title,
			Content: collapseSpace(s.Find(".result__snippet").First().Text()),
			URL:     resolveRedirect(href),
		})
		return limit <= 0 || len(results) < limit
	})
	return results
}

// resolveRedirect unwraps DuckDuckGo's /l/?uddg=<target> links.
func resolveRedirect(href string) string {
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	return href
}
