package scrape

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadscore/pkg/firecrawl"
)

// FirecrawlAdapter wraps a Firecrawl client as a Scraper.
type FirecrawlAdapter struct {
	client firecrawl.Client
}

// NewFirecrawlAdapter creates a FirecrawlAdapter from a Firecrawl client.
func NewFirecrawlAdapter(client firecrawl.Client) *FirecrawlAdapter {
	return &FirecrawlAdapter{client: client}
}

// Name implements Scraper.
func (f *FirecrawlAdapter) Name() string { return "firecrawl" }

// Supports returns true; Firecrawl can attempt any URL.
func (f *FirecrawlAdapter) Supports(_ string) bool { return true }

// Scrape fetches the page's main content, headings and meta tags.
func (f *FirecrawlAdapter) Scrape(ctx context.Context, targetURL string) (*Page, error) {
	resp, err := f.client.Scrape(ctx, firecrawl.NewScrapeRequest(targetURL))
	if err != nil {
		return nil, err
	}
	d := resp.Data
	if strings.TrimSpace(d.Markdown) == "" && strings.TrimSpace(d.HTML) == "" {
		return nil, eris.Errorf("firecrawl: empty page for %s", targetURL)
	}
	pageURL := d.Metadata.SourceURL
	if pageURL == "" {
		pageURL = targetURL
	}
	return &Page{
		URL:         pageURL,
		Title:       d.Metadata.Title,
		Description: d.Metadata.Description,
		Markdown:    d.Markdown,
		HTML:        d.HTML,
		StatusCode:  d.Metadata.StatusCode,
		Source:      "firecrawl",
	}, nil
}
