// Package scrape fetches a business website's landing page through a chain
// of scrapers: hosted APIs first, a direct fetch with readability last.
package scrape

import (
	"context"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
)

// Page is one fetched page with the fields the website rater reads.
type Page struct {
	URL         string
	Title       string
	Description string
	Markdown    string
	HTML        string
	StatusCode  int
	Source      string // e.g. "firecrawl", "jina", "local_http"
}

// Content returns the best text body for rating: markdown when present,
// otherwise HTML.
func (p *Page) Content() string {
	if p == nil {
		return ""
	}
	if strings.TrimSpace(p.Markdown) != "" {
		return p.Markdown
	}
	return p.HTML
}

// Fetcher fetches a single page. It is the page-fetch capability used by
// website scoring.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*Page, error)
}

// Scraper is one strategy in a Chain.
type Scraper interface {
	Scrape(ctx context.Context, url string) (*Page, error)
	Name() string
	Supports(url string) bool
}

// NormalizeURL trims rawURL and adds an https scheme when none is present.
// Only http and https URLs with a host are accepted.
func NormalizeURL(rawURL string) (string, error) {
	s := strings.TrimSpace(rawURL)
	if s == "" {
		return "", eris.New("scrape: empty url")
	}
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return "", eris.Wrapf(err, "scrape: parse url %q", rawURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", eris.Errorf("scrape: unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", eris.Errorf("scrape: url %q has no host", rawURL)
	}
	return u.String(), nil
}
