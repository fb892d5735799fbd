package presence

import (
	"context"

	"github.com/sells-group/leadscore/pkg/brave"
	"github.com/sells-group/leadscore/pkg/jina"
)

// Searcher runs a web search and returns the result URLs in rank order.
type Searcher interface {
	Search(ctx context.Context, query string) ([]string, error)
	Name() string
}

// BraveSearcher searches with the Brave web search API.
type BraveSearcher struct {
	client brave.Client
}

// NewBraveSearcher wraps a Brave client.
func NewBraveSearcher(client brave.Client) *BraveSearcher {
	return &BraveSearcher{client: client}
}

// Name implements Searcher.
func (s *BraveSearcher) Name() string { return "brave" }

// Search implements Searcher.
func (s *BraveSearcher) Search(ctx context.Context, query string) ([]string, error) {
	resp, err := s.client.WebSearch(ctx, query)
	if err != nil {
		return nil, err
	}
	return resp.URLs(), nil
}

// JinaSearcher searches with Jina Search.
type JinaSearcher struct {
	client jina.Client
}

// NewJinaSearcher wraps a Jina client.
func NewJinaSearcher(client jina.Client) *JinaSearcher {
	return &JinaSearcher{client: client}
}

// Name implements Searcher.
func (s *JinaSearcher) Name() string { return "jina_search" }

// Search implements Searcher.
func (s *JinaSearcher) Search(ctx context.Context, query string) ([]string, error) {
	resp, err := s.client.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	urls := make([]string, 0, len(resp.Data))
	for _, r := range resp.Data {
		urls = append(urls, r.URL)
	}
	return urls, nil
}
